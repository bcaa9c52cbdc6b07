package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDecodeImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngHeader)

	data, hint, err := DecodeImage(raw)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Empty(t, hint)

	data, hint, err = DecodeImage("data:image/png;base64," + raw)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", hint)

	_, _, err = DecodeImage("not base64 at all!!")
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, _, err = DecodeImage("")
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestSniffMIME(t *testing.T) {
	assert.Equal(t, "image/png", SniffMIME(pngHeader))
	assert.Equal(t, "image/jpeg", SniffMIME([]byte("plain text")))
	assert.Equal(t, "image/jpeg", SniffMIME(nil))
	assert.True(t, IsImage(pngHeader))
	assert.False(t, IsImage([]byte("hello")))
}

type fakeGenerator struct {
	calls int
	errs  []error
	text  string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(f.text)}},
		}},
	}, nil
}

func TestGemini_ExtractText(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("503")}, text: "  Minum air garam menyembuhkan flu  "}
	g := &Gemini{model: gen}

	text, err := g.ExtractText(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "Minum air garam menyembuhkan flu", text)
	assert.Equal(t, 2, gen.calls)
}

func TestGemini_EmptyExtractionIsError(t *testing.T) {
	g := &Gemini{model: &fakeGenerator{text: "   "}}
	_, err := g.ExtractText(context.Background(), pngHeader)
	assert.ErrorIs(t, err, ErrEmptyExtraction)
}
