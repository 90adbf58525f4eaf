package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maseda27/mealflow/internal/transfer"
)

const systemPromptPFC = `You are a nutrition management expert.
Estimate the PFC (protein, fat, carbohydrates) and calories from the meal information the user provides.

Always answer with exactly this JSON object:
{
    "protein": <number>,
    "fat": <number>,
    "carbs": <number>,
    "calories": <number>,
    "comment": "<short advice or encouragement>"
}

Estimation guidelines:
- Assume a typical single serving
- When unsure, estimate conservatively
- Keep the comment to one short encouraging sentence`

type NutritionService interface {
	AnalyzeText(ctx context.Context, description string) (*transfer.PFCData, error)
	AnalyzeImage(ctx context.Context, imageBase64, additionalInfo string) (*transfer.PFCData, error)
}

type nutritionService struct {
	ai *OpenAIClient
}

func NewNutritionService(ai *OpenAIClient) NutritionService {
	return &nutritionService{ai: ai}
}

func (s *nutritionService) AnalyzeText(ctx context.Context, description string) (*transfer.PFCData, error) {
	if description == "" {
		return nil, &EstimationError{Reason: "empty meal description"}
	}

	messages := []ChatMessage{
		{Role: "system", Content: systemPromptPFC},
		{Role: "user", Content: fmt.Sprintf("Estimate the PFC and calories of this meal:\n\n%s", description)},
	}

	content, err := s.ai.ChatCompletion(ctx, "gpt-4o", messages, true, 500)
	if err != nil {
		slog.Info(err.Error())
		return nil, &EstimationError{Reason: "chat completion request failed", Err: err}
	}

	return parsePFC(content)
}

func (s *nutritionService) AnalyzeImage(ctx context.Context, imageBase64, additionalInfo string) (*transfer.PFCData, error) {
	imagePart := ImageURLPart{Type: "image_url"}
	imagePart.ImageURL.URL = "data:image/jpeg;base64," + imageBase64
	imagePart.ImageURL.Detail = "high"

	textPart := TextPart{
		Type: "text",
		Text: fmt.Sprintf("Estimate the PFC and calories from this meal photo. %s", additionalInfo),
	}

	messages := []ChatMessage{
		{Role: "system", Content: systemPromptPFC},
		{Role: "user", Content: []any{imagePart, textPart}},
	}

	content, err := s.ai.ChatCompletion(ctx, "gpt-4o", messages, true, 500)
	if err != nil {
		slog.Info(err.Error())
		return nil, &EstimationError{Reason: "vision request failed", Err: err}
	}

	return parsePFC(content)
}

// parsePFC coerces the model's JSON answer into a PFCData. The model output
// is untyped, so it is first decoded into a map and then validated field by
// field. Numeric sanity is deliberately not checked; absurd values pass
// through to the caller unchanged.
func parsePFC(content string) (*transfer.PFCData, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &EstimationError{Reason: "model did not return a JSON object", Err: err}
	}

	pfc := &transfer.PFCData{}

	for key, dst := range map[string]*float64{
		"protein":  &pfc.Protein,
		"fat":      &pfc.Fat,
		"carbs":    &pfc.Carbs,
		"calories": &pfc.Calories,
	} {
		value, ok := raw[key]
		if !ok {
			return nil, &EstimationError{Reason: fmt.Sprintf("missing field %q in model output", key)}
		}
		number, ok := value.(float64)
		if !ok {
			return nil, &EstimationError{Reason: fmt.Sprintf("field %q is not a number in model output", key)}
		}
		*dst = number
		delete(raw, key)
	}

	if value, ok := raw["comment"]; ok {
		comment, ok := value.(string)
		if !ok {
			return nil, &EstimationError{Reason: `field "comment" is not a string in model output`}
		}
		pfc.Comment = comment
		delete(raw, "comment")
	}

	for key := range raw {
		return nil, &EstimationError{Reason: fmt.Sprintf("unexpected field %q in model output", key)}
	}

	return pfc, nil
}
