package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/maseda27/mealflow/internal/models"
	"github.com/maseda27/mealflow/internal/transfer"
)

const imagePromptTemplate = `Minimal design on a white background.
Large centered text reading "P %d / F %d / C %d".
Below it, "%d kcal".
Small "#chatgptdiet" lettering in the bottom right corner.
Calm pastel accents (light green and blue).
Plenty of whitespace, clean composition.
Flat design, illustration style.`

type ImageService interface {
	Resolve(ctx context.Context, daily *transfer.DailyMealInput, pfc *transfer.PFCData) ([]byte, string, error)
}

type imageService struct {
	ai *OpenAIClient
}

func NewImageService(ai *OpenAIClient) ImageService {
	return &imageService{ai: ai}
}

// Resolve yields the image bytes to post: the first photographed meal's photo
// when one exists, otherwise a generated placeholder graphic. The second
// return value is the mode tag for the log row.
func (s *imageService) Resolve(ctx context.Context, daily *transfer.DailyMealInput, pfc *transfer.PFCData) ([]byte, string, error) {
	for i := range daily.Meals {
		if !daily.Meals[i].HasImage() {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(daily.Meals[i].ImageBase64)
		if err != nil {
			return nil, "", &ImageGenerationError{Err: fmt.Errorf("error decoding meal photo: %w", err)}
		}
		return data, models.ModePhoto, nil
	}

	prompt := fmt.Sprintf(imagePromptTemplate,
		int(pfc.Protein), int(pfc.Fat), int(pfc.Carbs), int(pfc.Calories))

	data, err := s.ai.GenerateImage(ctx, prompt, "1024x1024")
	if err != nil {
		slog.Info(err.Error())
		return nil, "", &ImageGenerationError{Err: err}
	}

	return data, models.ModeTextOnly, nil
}
