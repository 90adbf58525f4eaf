package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIClient is a minimal client for the OpenAI chat and image endpoints.
// The base URL is overridable so tests can point it at a local stub.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *OpenAIClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Content parts for vision requests.
type ImageURLPart struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL    string `json:"url"`
		Detail string `json:"detail,omitempty"`
	} `json:"image_url"`
}

type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatCompletion submits a chat request and returns the first choice's
// message content. jsonMode asks the model for a strict JSON object.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, model string, messages []ChatMessage, jsonMode bool, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	respBody, err := c.post(ctx, "/v1/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return result.Choices[0].Message.Content, nil
}

// GenerateImage renders one image with the image model and returns the raw
// decoded bytes.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt, size string) ([]byte, error) {
	reqBody := map[string]any{
		"model":           "dall-e-3",
		"prompt":          prompt,
		"size":            size,
		"quality":         "standard",
		"n":               1,
		"response_format": "b64_json",
	}

	respBody, err := c.post(ctx, "/v1/images/generations", reqBody)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("error parsing image response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no image data returned from OpenAI")
	}

	imageData, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("error decoding generated image: %w", err)
	}
	return imageData, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error response from OpenAI: %s (status code: %d)", respBody, resp.StatusCode)
	}

	return respBody, nil
}
