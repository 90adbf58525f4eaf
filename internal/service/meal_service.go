package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	config "github.com/maseda27/mealflow/configs"
	"github.com/maseda27/mealflow/internal/models"
	"github.com/maseda27/mealflow/internal/repository"
	"github.com/maseda27/mealflow/internal/transfer"
)

// Shown in the result when the caller asked for a post but posting is
// switched off in configuration.
const instagramDisabledNotice = "Instagram posting is disabled. Please post manually."

const fallbackDescription = "today's meals"

type MealService interface {
	AnalyzeSingleMeal(ctx context.Context, meal *transfer.MealInput) (*transfer.PFCData, error)
	ProcessDailyMeals(ctx context.Context, daily *transfer.DailyMealInput) (*transfer.PFCData, error)
	CreateAndPost(ctx context.Context, daily *transfer.DailyMealInput, autoPost bool) (*transfer.PostResult, error)
	ListLogs(ctx context.Context, limit int) ([]*models.MealLog, error)
}

type mealService struct {
	db        *sql.DB
	cfg       config.Config
	logs      repository.MealLogRepository
	nutrition NutritionService
	caption   CaptionService
	image     ImageService
	instagram InstagramService
	archive   *ArchiveService

	now func() time.Time
}

func NewMealService(
	db *sql.DB,
	cfg config.Config,
	logs repository.MealLogRepository,
	nutrition NutritionService,
	caption CaptionService,
	image ImageService,
	instagram InstagramService,
	archive *ArchiveService) MealService {
	return &mealService{
		db:        db,
		cfg:       cfg,
		logs:      logs,
		nutrition: nutrition,
		caption:   caption,
		image:     image,
		instagram: instagram,
		archive:   archive,
		now:       time.Now,
	}
}

// AnalyzeSingleMeal estimates PFC for one meal, preferring the photo over the
// text when both are present.
func (s *mealService) AnalyzeSingleMeal(ctx context.Context, meal *transfer.MealInput) (*transfer.PFCData, error) {
	switch {
	case meal.HasImage():
		return s.nutrition.AnalyzeImage(ctx, meal.ImageBase64, meal.Description)
	case meal.Description != "":
		return s.nutrition.AnalyzeText(ctx, meal.Description)
	default:
		return nil, ErrNoMealData
	}
}

// ProcessDailyMeals produces the day's aggregate estimate. A summary
// description short-circuits per-meal processing entirely; otherwise each
// meal is estimated in order and the numeric fields are summed.
func (s *mealService) ProcessDailyMeals(ctx context.Context, daily *transfer.DailyMealInput) (*transfer.PFCData, error) {
	if daily.TotalDescription != "" {
		return s.nutrition.AnalyzeText(ctx, daily.TotalDescription)
	}

	if len(daily.Meals) == 0 {
		return nil, ErrNoMealData
	}

	total := &transfer.PFCData{}
	for i := range daily.Meals {
		pfc, err := s.AnalyzeSingleMeal(ctx, &daily.Meals[i])
		if err != nil {
			return nil, err
		}
		total.Protein += pfc.Protein
		total.Fat += pfc.Fat
		total.Carbs += pfc.Carbs
		total.Calories += pfc.Calories
		if pfc.Comment != "" {
			// Last non-empty comment wins.
			total.Comment = pfc.Comment
		}
	}

	total.Protein = round1(total.Protein)
	total.Fat = round1(total.Fat)
	total.Carbs = round1(total.Carbs)
	total.Calories = math.Round(total.Calories)

	return total, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// CreateAndPost runs the full pipeline: aggregate nutrition, generate the
// caption, resolve the image, store it locally, publish when asked to, and
// persist one log row. AI-step failures come back as a structured unsuccessful
// PostResult; storage failures propagate as errors.
func (s *mealService) CreateAndPost(ctx context.Context, daily *transfer.DailyMealInput, autoPost bool) (*transfer.PostResult, error) {
	hasPhoto := false
	for i := range daily.Meals {
		if daily.Meals[i].HasImage() {
			hasPhoto = true
			break
		}
	}

	pfc, err := s.ProcessDailyMeals(ctx, daily)
	if err != nil {
		return pipelineFailure(err)
	}

	description := daily.TotalDescription
	if description == "" {
		var parts []string
		for i := range daily.Meals {
			if d := daily.Meals[i].Description; d != "" {
				parts = append(parts, d)
			}
		}
		if len(parts) > 0 {
			description = strings.Join(parts, ", ")
		} else {
			description = fallbackDescription
		}
	}

	caption, err := s.caption.Generate(ctx, pfc, description, hasPhoto)
	if err != nil {
		return pipelineFailure(err)
	}

	imageData, mode, err := s.image.Resolve(ctx, daily, pfc)
	if err != nil {
		return pipelineFailure(err)
	}

	// Second-resolution timestamp; a same-second rerun overwrites the file.
	imageName := fmt.Sprintf("meal_%s.jpg", s.now().Format("20060102_150405"))
	imagePath := filepath.Join(s.cfg.ImagesDir, imageName)
	if err := os.WriteFile(imagePath, imageData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store meal image: %w", err)
	}

	if s.archive != nil && s.archive.Enabled() {
		if err := s.archive.Upload(ctx, imageName, imageData); err != nil {
			slog.Info("image archive upload failed: " + err.Error())
		}
	}

	var postID string
	var postError string
	if autoPost && s.cfg.InstagramEnabled {
		id, err := s.instagram.PostPhoto(ctx, imageData, caption)
		if err != nil {
			if detail := s.instagram.LastError(); detail != "" {
				postError = detail
			} else {
				postError = err.Error()
			}
			slog.Info("instagram publish failed: " + postError)
		} else {
			postID = id
		}
	} else if autoPost {
		postError = instagramDisabledNotice
	}

	log := &models.MealLog{
		CreatedAt:       s.now().UTC(),
		Date:            daily.Date,
		Protein:         pfc.Protein,
		Fat:             pfc.Fat,
		Carbs:           pfc.Carbs,
		Calories:        pfc.Calories,
		MealDescription: description,
		AIComment:       pfc.Comment,
		InstagramPostID: sql.NullString{String: postID, Valid: postID != ""},
		Caption:         caption,
		ImagePath:       imagePath,
		Mode:            mode,
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	if _, err := s.logs.Create(ctx, tx, log); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to persist meal log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meal log: %w", err)
	}

	// Publishing only counts against success when the caller asked for a
	// post and posting is globally enabled.
	success := postID != "" || !autoPost || !s.cfg.InstagramEnabled

	result := &transfer.PostResult{
		Success:     success,
		ImageURL:    imagePath,
		ImageBase64: base64.StdEncoding.EncodeToString(imageData),
		Caption:     caption,
		PFC:         pfc,
	}
	if postID != "" {
		result.PostID = &postID
	}
	if postError != "" {
		result.Error = &postError
	}
	return result, nil
}

func (s *mealService) ListLogs(ctx context.Context, limit int) ([]*models.MealLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	return s.logs.List(ctx, limit)
}

// pipelineFailure converts an expected pipeline error into a structured
// unsuccessful result so the response contract stays uniform. Unexpected
// errors still propagate.
func pipelineFailure(err error) (*transfer.PostResult, error) {
	var estErr *EstimationError
	var capErr *CaptionError
	var imgErr *ImageGenerationError
	if errors.Is(err, ErrNoMealData) || errors.As(err, &estErr) || errors.As(err, &capErr) || errors.As(err, &imgErr) {
		msg := err.Error()
		return &transfer.PostResult{Success: false, Error: &msg}, nil
	}
	return nil, err
}
