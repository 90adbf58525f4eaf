package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maseda27/mealflow/internal/transfer"
)

const captionTemplateWithPhoto = `Write an Instagram caption from the information below.

PFC data:
- Protein: %.1fg
- Fat: %.1fg
- Carbs: %.1fg
- Calories: %.0fkcal

AI comment: %s

Output in exactly this shape, line breaks included:
---
(one short remark about the meal, emoji allowed)

P %.1f / F %.1f / C %.1f / %.0f kcal

AI comment: %s
---

Do not append hashtags at the end (they are added separately).`

const captionTemplateNoPhoto = `Write an Instagram caption from the information below.
This is a post for a day without a photo.

Meal: %s

PFC data:
- Protein: %.1fg
- Fat: %.1fg
- Carbs: %.1fg
- Calories: %.0fkcal

AI comment: %s

Output in exactly this shape, line breaks included:
---
No photo today, so this entry was logged with AI only

%s

P %.1f / F %.1f / C %.1f / %.0f kcal

AI comment: %s
---

Do not append hashtags at the end (they are added separately).`

type CaptionService interface {
	Generate(ctx context.Context, pfc *transfer.PFCData, description string, hasPhoto bool) (string, error)
}

type captionService struct {
	ai *OpenAIClient
}

func NewCaptionService(ai *OpenAIClient) CaptionService {
	return &captionService{ai: ai}
}

func (s *captionService) Generate(ctx context.Context, pfc *transfer.PFCData, description string, hasPhoto bool) (string, error) {
	var prompt string
	if hasPhoto {
		prompt = fmt.Sprintf(captionTemplateWithPhoto,
			pfc.Protein, pfc.Fat, pfc.Carbs, pfc.Calories, pfc.Comment,
			pfc.Protein, pfc.Fat, pfc.Carbs, pfc.Calories, pfc.Comment)
	} else {
		prompt = fmt.Sprintf(captionTemplateNoPhoto,
			description,
			pfc.Protein, pfc.Fat, pfc.Carbs, pfc.Calories, pfc.Comment,
			description,
			pfc.Protein, pfc.Fat, pfc.Carbs, pfc.Calories, pfc.Comment)
	}

	messages := []ChatMessage{{Role: "user", Content: prompt}}

	content, err := s.ai.ChatCompletion(ctx, "gpt-4o-mini", messages, false, 300)
	if err != nil {
		slog.Info(err.Error())
		return "", &CaptionError{Err: err}
	}

	return stripDelimiters(content), nil
}

// stripDelimiters removes the --- markers when the model echoes the template
// framing back.
func stripDelimiters(caption string) string {
	caption = strings.TrimSpace(caption)
	caption = strings.TrimPrefix(caption, "---\n")
	caption = strings.TrimPrefix(caption, "---")
	caption = strings.TrimSuffix(caption, "\n---")
	caption = strings.TrimSuffix(caption, "---")
	return strings.TrimSpace(caption)
}
