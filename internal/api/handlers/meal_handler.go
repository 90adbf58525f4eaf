package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maseda27/mealflow/internal/service"
	"github.com/maseda27/mealflow/internal/transfer"
)

type MealHandler struct {
	s service.MealService
}

func NewMealHandler(s service.MealService) *MealHandler {
	return &MealHandler{s: s}
}

// AnalyzeMeal runs only the nutrition estimator for one meal. No posting, no
// persistence.
func (h *MealHandler) AnalyzeMeal(c *fiber.Ctx) error {
	var meal transfer.MealInput
	if err := c.BodyParser(&meal); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse meal input",
		})
	}

	pfc, err := h.s.AnalyzeSingleMeal(c.Context(), &meal)
	if err != nil {
		if errors.Is(err, service.ErrNoMealData) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		var estErr *service.EstimationError
		if errors.As(err, &estErr) {
			msg := err.Error()
			return c.Status(fiber.StatusOK).JSON(transfer.PostResult{
				Success: false,
				Error:   &msg,
			})
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(transfer.PostResult{
		Success: true,
		PFC:     pfc,
	})
}

// PostMeal runs the full pipeline for a day's meals.
func (h *MealHandler) PostMeal(c *fiber.Ctx) error {
	var daily transfer.DailyMealInput
	if err := c.BodyParser(&daily); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse daily meal input",
		})
	}
	if daily.Date.IsZero() {
		daily.Date = time.Now()
	}

	autoPost := c.QueryBool("auto_post", true)

	result, err := h.s.CreateAndPost(c.Context(), &daily, autoPost)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// QuickPost wraps a free-text description of the whole day into a
// DailyMealInput dated today and runs the pipeline.
func (h *MealHandler) QuickPost(c *fiber.Ctx) error {
	var body transfer.QuickPost
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			slog.Info(err.Error())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse request",
			})
		}
	}

	description := body.Description
	if description == "" {
		description = c.Query("description")
	}
	if description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "description is required",
		})
	}

	autoPost := c.QueryBool("auto_post", true)
	if body.AutoPost != nil {
		autoPost = *body.AutoPost
	}

	daily := transfer.DailyMealInput{
		Date:             time.Now(),
		TotalDescription: description,
	}

	result, err := h.s.CreateAndPost(c.Context(), &daily, autoPost)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// ShortcutMeal accepts everything as query parameters so an iPhone shortcut
// can call it without building a JSON body.
func (h *MealHandler) ShortcutMeal(c *fiber.Ctx) error {
	mealType := transfer.MealType(c.Query("meal_type", string(transfer.MealTypeLunch)))
	switch mealType {
	case transfer.MealTypeBreakfast, transfer.MealTypeLunch, transfer.MealTypeDinner, transfer.MealTypeSnack:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid meal_type",
		})
	}

	meal := transfer.MealInput{
		MealType:    mealType,
		Description: c.Query("description"),
		ImageBase64: c.Query("image_base64"),
	}

	daily := transfer.DailyMealInput{
		Date:  time.Now(),
		Meals: []transfer.MealInput{meal},
	}

	result, err := h.s.CreateAndPost(c.Context(), &daily, c.QueryBool("auto_post", true))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// ListLogs returns the most recent persisted meal log rows.
func (h *MealHandler) ListLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 30)

	logs, err := h.s.ListLogs(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list meal logs",
		})
	}

	return c.Status(fiber.StatusOK).JSON(logs)
}
