package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	config "github.com/maseda27/mealflow/configs"
	"github.com/maseda27/mealflow/internal/api/middleware"
	"github.com/maseda27/mealflow/internal/models"
	"github.com/maseda27/mealflow/internal/service"
	"github.com/maseda27/mealflow/internal/transfer"
)

const testSecret = "test-secret"

type mockMealService struct {
	analyzeFn func(meal *transfer.MealInput) (*transfer.PFCData, error)
	createFn  func(daily *transfer.DailyMealInput, autoPost bool) (*transfer.PostResult, error)
	logs      []*models.MealLog

	gotAutoPost *bool
	gotDaily    *transfer.DailyMealInput
}

func (m *mockMealService) AnalyzeSingleMeal(ctx context.Context, meal *transfer.MealInput) (*transfer.PFCData, error) {
	return m.analyzeFn(meal)
}

func (m *mockMealService) ProcessDailyMeals(ctx context.Context, daily *transfer.DailyMealInput) (*transfer.PFCData, error) {
	return nil, nil
}

func (m *mockMealService) CreateAndPost(ctx context.Context, daily *transfer.DailyMealInput, autoPost bool) (*transfer.PostResult, error) {
	m.gotAutoPost = &autoPost
	m.gotDaily = daily
	if m.createFn != nil {
		return m.createFn(daily, autoPost)
	}
	return &transfer.PostResult{Success: true}, nil
}

func (m *mockMealService) ListLogs(ctx context.Context, limit int) ([]*models.MealLog, error) {
	return m.logs, nil
}

func newTestApp(svc service.MealService) *fiber.App {
	app := fiber.New()

	cfg := config.Config{SecretKey: testSecret}
	authMiddleware := middleware.NewAuthMiddleware(cfg)

	app.Get("/health", HealthCheck)

	api := app.Group("/")
	api.Use(authMiddleware.AuthMiddleware())

	meal := NewMealHandler(svc)
	api.Post("/meal/analyze", meal.AnalyzeMeal)
	api.Post("/meal/post", meal.PostMeal)
	api.Post("/meal/quick", meal.QuickPost)
	api.Post("/shortcut/meal", meal.ShortcutMeal)
	api.Get("/meal/logs", meal.ListLogs)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any, apiKey string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, respBody
}

func TestHealthCheckIsPublic(t *testing.T) {
	app := newTestApp(&mockMealService{})

	resp, body := doJSON(t, app, "GET", "/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["status"] != "ok" {
		t.Errorf("status field = %q, want ok", payload["status"])
	}
}

func TestAuthRejectsBadSecret(t *testing.T) {
	app := newTestApp(&mockMealService{})

	tests := []struct {
		name string
		key  string
	}{
		{"missing key", ""},
		{"wrong key", "not-the-secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, "POST", "/meal/analyze", transfer.MealInput{Description: "toast"}, tt.key)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
			var payload map[string]string
			json.Unmarshal(body, &payload)
			if payload["error"] != "Invalid API key" {
				t.Errorf("error = %q, want the fixed unauthorized message", payload["error"])
			}
		})
	}
}

func TestAnalyzeMeal(t *testing.T) {
	svc := &mockMealService{
		analyzeFn: func(meal *transfer.MealInput) (*transfer.PFCData, error) {
			if meal.Description == "" && !meal.HasImage() {
				return nil, service.ErrNoMealData
			}
			return &transfer.PFCData{Protein: 30, Fat: 10, Carbs: 40, Calories: 380, Comment: "solid"}, nil
		},
	}
	app := newTestApp(svc)

	resp, body := doJSON(t, app, "POST", "/meal/analyze", transfer.MealInput{Description: "chicken salad"}, testSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", resp.StatusCode, body)
	}

	var result transfer.PostResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.PFC == nil {
		t.Fatalf("result = %+v", result)
	}
	if result.PFC.Calories != 380 || result.PFC.Comment != "solid" {
		t.Errorf("pfc = %+v", result.PFC)
	}
	if result.PostID != nil {
		t.Error("analyze must not produce a post id")
	}
}

func TestAnalyzeMealMissingData(t *testing.T) {
	svc := &mockMealService{
		analyzeFn: func(meal *transfer.MealInput) (*transfer.PFCData, error) {
			return nil, service.ErrNoMealData
		},
	}
	app := newTestApp(svc)

	resp, _ := doJSON(t, app, "POST", "/meal/analyze", transfer.MealInput{}, testSecret)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeMealEstimationFailure(t *testing.T) {
	svc := &mockMealService{
		analyzeFn: func(meal *transfer.MealInput) (*transfer.PFCData, error) {
			return nil, &service.EstimationError{Reason: "model did not return a JSON object"}
		},
	}
	app := newTestApp(svc)

	resp, body := doJSON(t, app, "POST", "/meal/analyze", transfer.MealInput{Description: "soup"}, testSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with a structured failure", resp.StatusCode)
	}
	var result transfer.PostResult
	json.Unmarshal(body, &result)
	if result.Success || result.Error == nil || *result.Error == "" {
		t.Errorf("result = %+v, want success=false with error text", result)
	}
}

// post_id and error stay in the response as explicit nulls when a run skips
// posting, so clients can key on them without probing for the fields.
func TestPostMealSerializesNullPostID(t *testing.T) {
	svc := &mockMealService{
		createFn: func(daily *transfer.DailyMealInput, autoPost bool) (*transfer.PostResult, error) {
			return &transfer.PostResult{Success: true}, nil
		},
	}
	app := newTestApp(svc)

	resp, body := doJSON(t, app, "POST", "/meal/post?auto_post=false", transfer.DailyMealInput{TotalDescription: "ramen"}, testSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"post_id", "error"} {
		raw, ok := payload[key]
		if !ok {
			t.Errorf("%s key missing from response", key)
			continue
		}
		if string(raw) != "null" {
			t.Errorf("%s = %s, want null", key, raw)
		}
	}
}

func TestPostMealAutoPostFlag(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"default true", "/meal/post", true},
		{"explicit false", "/meal/post?auto_post=false", false},
		{"explicit true", "/meal/post?auto_post=true", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockMealService{}
			app := newTestApp(svc)

			daily := transfer.DailyMealInput{TotalDescription: "ramen"}
			resp, _ := doJSON(t, app, "POST", tt.target, daily, testSecret)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if svc.gotAutoPost == nil || *svc.gotAutoPost != tt.want {
				t.Errorf("auto_post = %v, want %v", svc.gotAutoPost, tt.want)
			}
			if svc.gotDaily.Date.IsZero() {
				t.Error("missing date should default to now")
			}
		})
	}
}

func TestQuickPostWrapsDescription(t *testing.T) {
	svc := &mockMealService{}
	app := newTestApp(svc)

	resp, _ := doJSON(t, app, "POST", "/meal/quick", transfer.QuickPost{Description: "lunch: salad chicken"}, testSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if svc.gotDaily.TotalDescription != "lunch: salad chicken" {
		t.Errorf("total description = %q", svc.gotDaily.TotalDescription)
	}
	if len(svc.gotDaily.Meals) != 0 {
		t.Error("quick post should not carry individual meals")
	}
	if svc.gotDaily.Date.IsZero() {
		t.Error("quick post should be dated today")
	}
}

func TestQuickPostRequiresDescription(t *testing.T) {
	app := newTestApp(&mockMealService{})

	resp, _ := doJSON(t, app, "POST", "/meal/quick", transfer.QuickPost{}, testSecret)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestShortcutMeal(t *testing.T) {
	svc := &mockMealService{}
	app := newTestApp(svc)

	resp, _ := doJSON(t, app, "POST", "/shortcut/meal?meal_type=breakfast&description=toast&auto_post=false", nil, testSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(svc.gotDaily.Meals) != 1 {
		t.Fatalf("meals = %d, want 1", len(svc.gotDaily.Meals))
	}
	meal := svc.gotDaily.Meals[0]
	if meal.MealType != transfer.MealTypeBreakfast || meal.Description != "toast" {
		t.Errorf("meal = %+v", meal)
	}
	if *svc.gotAutoPost {
		t.Error("auto_post=false should be honored")
	}
}

func TestShortcutMealDefaultsToLunch(t *testing.T) {
	svc := &mockMealService{}
	app := newTestApp(svc)

	resp, _ := doJSON(t, app, "POST", "/shortcut/meal?description=soup", nil, testSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if svc.gotDaily.Meals[0].MealType != transfer.MealTypeLunch {
		t.Errorf("meal type = %q, want lunch", svc.gotDaily.Meals[0].MealType)
	}
}

func TestShortcutMealRejectsUnknownType(t *testing.T) {
	app := newTestApp(&mockMealService{})

	resp, _ := doJSON(t, app, "POST", "/shortcut/meal?meal_type=brunch", nil, testSecret)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListLogs(t *testing.T) {
	svc := &mockMealService{
		logs: []*models.MealLog{{ID: 1, Mode: models.ModePhoto}},
	}
	app := newTestApp(svc)

	resp, body := doJSON(t, app, "GET", "/meal/logs", nil, testSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var logs []models.MealLog
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].ID != 1 {
		t.Errorf("logs = %+v", logs)
	}
}
