package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Ensure OllamaLLM implements LLMService
var _ driven.LLMService = (*OllamaLLM)(nil)

// OllamaLLM implements LLMService against a local Ollama server
type OllamaLLM struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// OllamaLLMConfig tunes generation parameters
type OllamaLLMConfig struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewOllamaLLM creates a new Ollama generation service
func NewOllamaLLM(baseURL, model string, cfg OllamaLLMConfig) (driven.LLMService, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "mistral"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}

	return &OllamaLLM{
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// ollamaGenerateRequest is the request body for /api/generate
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaGenerateResponse is one NDJSON line of /api/generate output
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate produces a complete response in one call
func (l *OllamaLLM) Generate(ctx context.Context, prompt, system string) (string, error) {
	resp, err := l.doRequest(ctx, prompt, system, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", genResp.Error)
	}
	return genResp.Response, nil
}

// GenerateStream produces tokens incrementally. The channel closes after
// a Done delta or an Err delta; cancelling ctx stops consumption and
// aborts the upstream request.
func (l *OllamaLLM) GenerateStream(ctx context.Context, prompt, system string) (<-chan driven.Delta, error) {
	resp, err := l.doRequest(ctx, prompt, system, true)
	if err != nil {
		return nil, err
	}

	deltas := make(chan driven.Delta)
	go func() {
		defer close(deltas)
		defer resp.Body.Close()

		emit := func(d driven.Delta) bool {
			select {
			case deltas <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaGenerateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				emit(driven.Delta{Err: fmt.Errorf("failed to parse stream line: %w", err)})
				return
			}
			if chunk.Error != "" {
				emit(driven.Delta{Err: fmt.Errorf("ollama error: %s", chunk.Error)})
				return
			}
			if chunk.Response != "" {
				if !emit(driven.Delta{Content: chunk.Response}) {
					return
				}
			}
			if chunk.Done {
				emit(driven.Delta{Done: true})
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			emit(driven.Delta{Err: err})
			return
		}
		// Stream ended without a done marker
		emit(driven.Delta{Err: fmt.Errorf("stream closed before completion")})
	}()
	return deltas, nil
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping verifies the Ollama server is reachable
func (l *OllamaLLM) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", l.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources held by the generation service
func (l *OllamaLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

func (l *OllamaLLM) doRequest(ctx context.Context, prompt, system string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  l.model,
		Prompt: prompt,
		System: system,
		Stream: stream,
		Options: map[string]any{
			"temperature": l.temperature,
			"num_predict": l.maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		var genResp ollamaGenerateResponse
		if json.Unmarshal(respBody, &genResp) == nil && genResp.Error != "" {
			return nil, fmt.Errorf("ollama error: %s", genResp.Error)
		}
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return resp, nil
}
