package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maseda27/mealflow/configs"
)

// ArchiveService keeps an off-site copy of every stored meal image in
// Cloudflare R2. Optional: it stays inert unless the R2 settings are present.
type ArchiveService struct {
	config config.Config
}

func NewArchiveService(cfg config.Config) *ArchiveService {
	return &ArchiveService{config: cfg}
}

func (a *ArchiveService) Enabled() bool {
	r2 := a.config.R2
	return r2.AccountID != "" && r2.AccessKey != "" && r2.SecretKey != "" && r2.BucketName != ""
}

func (a *ArchiveService) r2Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(a.config.R2.AccessKey, a.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", a.config.R2.AccountID))
	}), nil
}

// Upload stores the image bytes under the given key, sniffing the content
// type from the payload itself.
func (a *ArchiveService) Upload(ctx context.Context, key string, file []byte) error {
	contentType := "application/octet-stream"
	if kind, err := filetype.Match(file); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}

	client, err := a.r2Client(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
