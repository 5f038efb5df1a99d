// Package publisher holds the boundary adapter that hands a post body to the
// X API. It is deliberately thin; everything interesting about publishing
// happens in the lifecycle that consumes its outcome.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	config "github.com/postpilothq/postpilot/configs"
)

type XPublisher struct {
	cfg    config.Config
	client *http.Client
}

func NewXPublisher(cfg config.Config) *XPublisher {
	return &XPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *XPublisher) Publish(ctx context.Context, accessToken, content string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.XAPIBaseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("tweet creation returned status %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode tweet response: %w", err)
	}

	return result.Data.ID, nil
}
