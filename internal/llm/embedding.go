package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// geminiEmbedRequest is the batchEmbedContents body.
type geminiEmbedRequest struct {
	Requests []geminiEmbedEntry `json:"requests"`
}

type geminiEmbedEntry struct {
	Model   string `json:"model"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

type geminiEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiEmbedder implements Embedder against the Gemini batchEmbedContents
// endpoint.
type GeminiEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	auditor *Auditor
	logger  *slog.Logger
}

// NewGeminiEmbedder creates an embedding client
func NewGeminiEmbedder(baseURL, apiKey, model string, auditor *Auditor, logger *slog.Logger) *GeminiEmbedder {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		auditor: auditor,
		logger:  logger,
	}
}

// EmbedBatch embeds texts in order; the result slice is index-aligned with
// the input.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload := geminiEmbedRequest{Requests: make([]geminiEmbedEntry, len(texts))}
	for i, text := range texts {
		entry := geminiEmbedEntry{Model: "models/" + e.model}
		entry.Content.Parts = []struct {
			Text string `json:"text"`
		}{{Text: text}}
		payload.Requests[i] = entry
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	rec := CallRecord{
		Operation:      OperationEmbed,
		Provider:       ProviderGemini,
		Model:          e.model,
		StartTime:      time.Now().UTC(),
		Prompt:         texts[0],
		RawRequestJSON: string(body),
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents?key=%s", e.baseURL, e.model, e.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		rec.EndTime = time.Now().UTC()
		e.auditor.Record(rec)
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	rec.EndTime = time.Now().UTC()
	rec.StatusCode = resp.StatusCode
	rec.RawResponseJSON = string(respBody)
	if err != nil {
		e.auditor.Record(rec)
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	var parsed geminiEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		e.auditor.Record(rec)
		return nil, fmt.Errorf("parse embed response: %w", err)
	}

	if parsed.Error != nil {
		e.auditor.Record(rec)
		return nil, fmt.Errorf("embed error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		e.auditor.Record(rec)
		return nil, fmt.Errorf("embed http %d: %s", resp.StatusCode, string(respBody))
	}
	if len(parsed.Embeddings) != len(texts) {
		e.auditor.Record(rec)
		return nil, fmt.Errorf("embed returned %d vectors for %d texts", len(parsed.Embeddings), len(texts))
	}

	rec.Success = true
	e.auditor.Record(rec)

	vectors := make([][]float32, len(parsed.Embeddings))
	for i, embedding := range parsed.Embeddings {
		vectors[i] = embedding.Values
	}

	return vectors, nil
}
