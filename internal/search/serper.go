package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const serperURL = "https://google.serper.dev/search"

// Serper 基于 serper.dev 的 Google 搜索
type Serper struct {
	APIKey     string
	MaxResults int
	BaseURL    string
	Client     Doer
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	k := ClampMaxResults(s.MaxResults)

	body, err := json.Marshal(map[string]any{"q": query, "num": k})
	if err != nil {
		return nil, fmt.Errorf("marshal serper request: %w", err)
	}

	endpoint := s.BaseURL
	if endpoint == "" {
		endpoint = serperURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(ProviderSerper, resp); err != nil {
		return nil, err
	}

	var raw serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode serper response: %w", err)
	}

	out := make([]Result, 0, min(k, len(raw.Organic)))
	for i, it := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, Result{Title: it.Title, Snippet: it.Snippet, URL: it.Link})
	}
	return out, nil
}

func (s *Serper) client() Doer {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}
