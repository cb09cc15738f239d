// Package embedder provides implementations of the rag.Embedder interface
// used by the local Qdrant backend. Ollama and OpenAI/Azure are reached over
// plain HTTP; Gemini goes through the genai SDK so it can share Vertex AI
// credentials with the rest of the service.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// postJSON sends body as JSON to url and decodes the response into out. The
// decoded response is returned even for non-2xx statuses so callers can pull
// the backend's own error message out of it.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// ok reports whether code is a 2xx status.
func ok(code int) bool { return code >= 200 && code < 300 }
