package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maseda27/mealflow/internal/models"
)

type MealLogRepository interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, tx *sql.Tx, log *models.MealLog) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.MealLog, error)
	List(ctx context.Context, limit int) ([]*models.MealLog, error)
}

type mealLogRepository struct {
	db *sql.DB
}

func NewMealLogRepository(db *sql.DB) MealLogRepository {
	return &mealLogRepository{db: db}
}

func (r *mealLogRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS meal_logs (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			date TIMESTAMPTZ NOT NULL,
			protein DOUBLE PRECISION NOT NULL,
			fat DOUBLE PRECISION NOT NULL,
			carbs DOUBLE PRECISION NOT NULL,
			calories DOUBLE PRECISION NOT NULL,
			meal_description TEXT,
			ai_comment TEXT,
			instagram_post_id VARCHAR(100),
			caption TEXT,
			image_path VARCHAR(500),
			mode VARCHAR(20) NOT NULL DEFAULT 'text_only'
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (r *mealLogRepository) Create(ctx context.Context, tx *sql.Tx, log *models.MealLog) (int64, error) {
	query := `
		INSERT INTO meal_logs (created_at, date, protein, fat, carbs, calories, meal_description, ai_comment, instagram_post_id, caption, image_path, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, createdAt, log.Date, log.Protein, log.Fat, log.Carbs, log.Calories, log.MealDescription, log.AIComment, log.InstagramPostID, log.Caption, log.ImagePath, log.Mode).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, createdAt, log.Date, log.Protein, log.Fat, log.Carbs, log.Calories, log.MealDescription, log.AIComment, log.InstagramPostID, log.Caption, log.ImagePath, log.Mode).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *mealLogRepository) GetByID(ctx context.Context, id int64) (*models.MealLog, error) {
	query := `SELECT id, created_at, date, protein, fat, carbs, calories, meal_description, ai_comment, instagram_post_id, caption, image_path, mode FROM meal_logs WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var log models.MealLog
	err := row.Scan(&log.ID, &log.CreatedAt, &log.Date, &log.Protein, &log.Fat, &log.Carbs, &log.Calories, &log.MealDescription, &log.AIComment, &log.InstagramPostID, &log.Caption, &log.ImagePath, &log.Mode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &log, nil
}

func (r *mealLogRepository) List(ctx context.Context, limit int) ([]*models.MealLog, error) {
	query := `SELECT id, created_at, date, protein, fat, carbs, calories, meal_description, ai_comment, instagram_post_id, caption, image_path, mode FROM meal_logs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var logs []*models.MealLog
	for rows.Next() {
		var log models.MealLog
		err := rows.Scan(&log.ID, &log.CreatedAt, &log.Date, &log.Protein, &log.Fat, &log.Carbs, &log.Calories, &log.MealDescription, &log.AIComment, &log.InstagramPostID, &log.Caption, &log.ImagePath, &log.Mode)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
