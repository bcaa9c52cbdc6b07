package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// ErrEmptyExtraction 图片中没有识别出任何文字
var ErrEmptyExtraction = errors.New("no text extracted from image")

// ErrInvalidImage 图片数据无法解码
var ErrInvalidImage = errors.New("invalid image encoding")

// Extractor 从图片中提取文字
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Model:   "gemini-1.5-flash",
	}
}

// DecodeImage 解码 base64 图片，支持 data URL（data:<mime>;base64,<payload>）
// 返回图片字节和 data URL 中声明的 MIME（可能为空）
func DecodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", ErrInvalidImage
	}

	var hint string
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, "", ErrInvalidImage
		}
		meta := s[len("data:"):idx]
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			hint = meta[:semi]
		} else {
			hint = meta
		}
		s = s[idx+1:]
	}

	// 先尝试标准 base64，再尝试 URL-safe 与无填充的变体
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil && len(b) > 0 {
			return b, hint, nil
		}
	}
	return nil, "", ErrInvalidImage
}

// SniffMIME 根据内容判断图片 MIME，无法识别时返回 image/jpeg
func SniffMIME(data []byte) string {
	if len(data) == 0 {
		return "image/jpeg"
	}
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/jpeg"
}

// IsImage 判断数据是否为可识别的图片
func IsImage(data []byte) bool {
	return len(data) > 0 && strings.HasPrefix(http.DetectContentType(data), "image/")
}
