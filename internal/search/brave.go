package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const braveURL = "https://api.search.brave.com/res/v1/web/search"

// Brave 基于 Brave Search API 的网页搜索
type Brave struct {
	APIKey     string
	MaxResults int
	BaseURL    string
	Client     Doer
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *Brave) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	k := ClampMaxResults(b.MaxResults)

	endpoint := b.BaseURL
	if endpoint == "" {
		endpoint = braveURL
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(k))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(ProviderBrave, resp); err != nil {
		return nil, err
	}

	var raw braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	out := make([]Result, 0, min(k, len(raw.Web.Results)))
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, Result{Title: r.Title, Snippet: r.Description, URL: r.URL})
	}
	return out, nil
}

func (b *Brave) client() Doer {
	if b.Client == nil {
		return http.DefaultClient
	}
	return b.Client
}
