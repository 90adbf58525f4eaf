package models

import (
	"database/sql"
	"time"
)

type MealLog struct {
	ID              int64          `db:"id" json:"id"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	Date            time.Time      `db:"date" json:"date"`
	Protein         float64        `db:"protein" json:"protein"`
	Fat             float64        `db:"fat" json:"fat"`
	Carbs           float64        `db:"carbs" json:"carbs"`
	Calories        float64        `db:"calories" json:"calories"`
	MealDescription string         `db:"meal_description" json:"meal_description"`
	AIComment       string         `db:"ai_comment" json:"ai_comment"`
	InstagramPostID sql.NullString `db:"instagram_post_id" json:"instagram_post_id"`
	Caption         string         `db:"caption" json:"caption"`
	ImagePath       string         `db:"image_path" json:"image_path"`
	Mode            string         `db:"mode" json:"mode"` // photo, text_only
}

const (
	ModePhoto    = "photo"
	ModeTextOnly = "text_only"
)
