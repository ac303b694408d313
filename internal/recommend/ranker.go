package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LJTian/NewsHub/internal/storage"
)

// Ranker 外部个性化排序服务，返回按推荐度排序的文章 ID
type Ranker interface {
	Rank(ctx context.Context, userID string, prefs storage.Preferences, limit int) ([]string, error)
}

// HTTPRanker 通过 JSON over HTTP 调用排序服务
type HTTPRanker struct {
	endpoint string
	client   *http.Client
}

func NewHTTPRanker(endpoint string, timeout time.Duration) *HTTPRanker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRanker{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type rankRequest struct {
	UserID      string              `json:"user_id"`
	Preferences storage.Preferences `json:"preferences"`
	Limit       int                 `json:"limit"`
}

type rankResponse struct {
	Recommendations []string `json:"recommendations"`
}

func (r *HTTPRanker) Rank(ctx context.Context, userID string, prefs storage.Preferences, limit int) ([]string, error) {
	body, err := json.Marshal(rankRequest{UserID: userID, Preferences: prefs, Limit: limit})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("ranker: unexpected status %d", resp.StatusCode)
	}
	var out rankResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("ranker: decode response: %w", err)
	}
	return out.Recommendations, nil
}
