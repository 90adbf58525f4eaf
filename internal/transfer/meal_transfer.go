package transfer

import "time"

type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// PFCData is the nutrition estimate returned by the AI model: macronutrient
// grams, calories in kcal, and a short advisory comment.
type PFCData struct {
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Calories float64 `json:"calories"`
	Comment  string  `json:"comment"`
}

// MealInput is one meal occurrence, described by text, a photo, or both.
type MealInput struct {
	MealType    MealType `json:"meal_type"`
	Description string   `json:"description"`
	ImageBase64 string   `json:"image_base64"`
}

func (m *MealInput) HasImage() bool {
	return len(m.ImageBase64) > 0
}

// DailyMealInput carries a full day of meals. When TotalDescription is set it
// replaces per-meal estimation, though meal photos are still used for posting.
type DailyMealInput struct {
	Date             time.Time   `json:"date"`
	Meals            []MealInput `json:"meals"`
	TotalDescription string      `json:"total_description"`
}

// PostResult is the terminal response of one pipeline run. PostID and Error
// always serialize, as null when absent, so clients can key on them.
type PostResult struct {
	Success     bool     `json:"success"`
	PostID      *string  `json:"post_id"`
	ImageURL    string   `json:"image_url,omitempty"`
	ImageBase64 string   `json:"image_base64,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	PFC         *PFCData `json:"pfc,omitempty"`
	Error       *string  `json:"error"`
}

type QuickPost struct {
	Description string `json:"description"`
	AutoPost    *bool  `json:"auto_post"`
}
