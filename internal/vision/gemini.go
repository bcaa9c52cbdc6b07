package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	extractPrompt = `Ekstrak seluruh teks yang terlihat pada gambar ini apa adanya, tanpa menambahkan komentar atau penjelasan.
Jika gambar berisi tangkapan layar berita atau pesan berantai, tuliskan klaim utamanya.`
	maxAttempts = 3
)

// generator 抽象 genai.GenerativeModel，便于测试
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini 使用 Gemini 多模态模型识别图片文字
type Gemini struct {
	client *genai.Client
	model  generator
}

// NewGemini 创建 Gemini 识别器，调用方负责 Close
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("vision.api_key is required (or set GEMINI_API_KEY env var)")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = DefaultConfig().Model
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	m := cl.GenerativeModel(modelName)
	if m == nil {
		_ = cl.Close()
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.Temperature = genai.Ptr[float32](0)

	return &Gemini{client: cl, model: m}, nil
}

func (g *Gemini) ExtractText(ctx context.Context, image []byte) (string, error) {
	if g == nil || g.model == nil {
		return "", errors.New("gemini extractor not initialized")
	}
	if len(image) == 0 {
		return "", ErrInvalidImage
	}

	parts := []genai.Part{
		genai.Text(extractPrompt),
		&genai.Blob{MIMEType: SniffMIME(image), Data: image},
	}

	// 重试应对 5xx/瞬时故障
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := g.model.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		text := strings.TrimSpace(firstText(resp))
		if text == "" {
			return "", ErrEmptyExtraction
		}
		return text, nil
	}
	return "", fmt.Errorf("gemini generate content: %w", lastErr)
}

func (g *Gemini) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
