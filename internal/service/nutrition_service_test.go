package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newChatStub returns an OpenAI client pointed at a stub that answers every
// chat completion with the given content string.
func newChatStub(t *testing.T, content string, status int) (*OpenAIClient, *int) {
	t.Helper()

	calls := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client := NewOpenAIClient("test-key")
	client.SetBaseURL(srv.URL)
	return client, calls
}

func TestAnalyzeTextParsesEstimate(t *testing.T) {
	client, _ := newChatStub(t, `{"protein": 30.5, "fat": 10, "carbs": 45.2, "calories": 400, "comment": "nice balance"}`, http.StatusOK)
	s := NewNutritionService(client)

	pfc, err := s.AnalyzeText(context.Background(), "grilled chicken salad")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if pfc.Protein != 30.5 || pfc.Fat != 10 || pfc.Carbs != 45.2 || pfc.Calories != 400 {
		t.Errorf("unexpected values: %+v", pfc)
	}
	if pfc.Comment != "nice balance" {
		t.Errorf("comment = %q, want %q", pfc.Comment, "nice balance")
	}
}

func TestAnalyzeTextEmptyDescription(t *testing.T) {
	client, calls := newChatStub(t, `{}`, http.StatusOK)
	s := NewNutritionService(client)

	_, err := s.AnalyzeText(context.Background(), "")
	var estErr *EstimationError
	if !errors.As(err, &estErr) {
		t.Fatalf("want EstimationError, got %v", err)
	}
	if *calls != 0 {
		t.Errorf("expected no API call for empty description, got %d", *calls)
	}
}

func TestAnalyzeImageSendsVisionRequest(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"protein":1,"fat":2,"carbs":3,"calories":4,"comment":"ok"}`}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key")
	client.SetBaseURL(srv.URL)
	s := NewNutritionService(client)

	pfc, err := s.AnalyzeImage(context.Background(), "aGVsbG8=", "lunch")
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if pfc.Calories != 4 {
		t.Errorf("calories = %v, want 4", pfc.Calories)
	}

	if gotBody["model"] != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o", gotBody["model"])
	}
	messages := gotBody["messages"].([]any)
	user := messages[1].(map[string]any)
	parts, ok := user["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected two content parts, got %v", user["content"])
	}
}

func TestParsePFC(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid", `{"protein":10,"fat":5,"carbs":20,"calories":160,"comment":"good"}`, false},
		{"no comment", `{"protein":10,"fat":5,"carbs":20,"calories":160}`, false},
		{"negative values pass through", `{"protein":-10,"fat":-5,"carbs":-20,"calories":-160,"comment":""}`, false},
		{"absurd values pass through", `{"protein":99999,"fat":0,"carbs":0,"calories":1e9,"comment":""}`, false},
		{"missing field", `{"protein":10,"fat":5,"carbs":20,"comment":"good"}`, true},
		{"mistyped field", `{"protein":"10","fat":5,"carbs":20,"calories":160}`, true},
		{"mistyped comment", `{"protein":10,"fat":5,"carbs":20,"calories":160,"comment":42}`, true},
		{"extra field", `{"protein":10,"fat":5,"carbs":20,"calories":160,"comment":"","fiber":3}`, true},
		{"not json", `the meal looks great!`, true},
		{"json array", `[1,2,3]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pfc, err := parsePFC(tt.content)
			if tt.wantErr {
				var estErr *EstimationError
				if !errors.As(err, &estErr) {
					t.Fatalf("want EstimationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePFC: %v", err)
			}
			if pfc == nil {
				t.Fatal("nil estimate without error")
			}
		})
	}
}

func TestParsePFCNoClamping(t *testing.T) {
	pfc, err := parsePFC(`{"protein":-10,"fat":5,"carbs":20,"calories":160,"comment":""}`)
	if err != nil {
		t.Fatalf("parsePFC: %v", err)
	}
	if pfc.Protein != -10 {
		t.Errorf("protein = %v, want -10 (values must pass through unvalidated)", pfc.Protein)
	}
}

func TestAnalyzeTextAPIError(t *testing.T) {
	client, _ := newChatStub(t, "", http.StatusInternalServerError)
	s := NewNutritionService(client)

	_, err := s.AnalyzeText(context.Background(), "ramen")
	var estErr *EstimationError
	if !errors.As(err, &estErr) {
		t.Fatalf("want EstimationError, got %v", err)
	}
}
