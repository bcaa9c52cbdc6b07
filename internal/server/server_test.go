package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwwzy/HoaxBuster/internal/agent"
	"github.com/wwwzy/HoaxBuster/internal/checker"
	"github.com/wwwzy/HoaxBuster/internal/config"
	"github.com/wwwzy/HoaxBuster/internal/logging"
	"github.com/wwwzy/HoaxBuster/internal/metrics"
	"github.com/wwwzy/HoaxBuster/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubRunner struct {
	vision bool
	err    error
	last   agent.PipelineState
}

func (r *stubRunner) Run(_ context.Context, initial agent.PipelineState) (agent.PipelineState, error) {
	r.last = initial
	if r.err != nil {
		return agent.PipelineState{}, r.err
	}
	return agent.PipelineState{
		Messages: append(initial.Messages,
			schema.ToolMessage(`{"query":"q","results":[{"title":"Sumber","snippet":"-","url":"https://example.com/a"}]}`, "c1"),
		),
		Analysis:    "Verdict: FACT\nConfidence: 75%",
		FinalAnswer: "<b>Status</b>: FAKTA",
		StepsLog:    []string{agent.StepResearcher, agent.StepTools, agent.StepAnalyst, agent.StepWriter},
	}, nil
}

func (r *stubRunner) HasVision() bool { return r.vision }

func newTestServer(t *testing.T, runner *stubRunner) *Server {
	t.Helper()
	svc, err := checker.NewService(checker.Options{Pipeline: runner, Logger: logging.Discard()})
	require.NoError(t, err)
	cfg := config.DefaultConfig().Server
	cfg.StaticDir = ""
	return New(cfg, svc, metrics.New().Handler(), logging.Discard())
}

func doJSON(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAnalyze_TextClaim(t *testing.T) {
	runner := &stubRunner{}
	s := newTestServer(t, runner)

	rec := doJSON(t, s, `{"question":"Indonesia merdeka tahun 1945"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp checker.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "<b>Status</b>: FAKTA", resp.FinalAnswer)
	assert.Equal(t, "FACT", resp.Verdict)
	assert.Equal(t, 75, resp.Confidence)
	assert.Len(t, resp.Logs, 4)
	assert.Equal(t, []agent.Source{{Title: "Sumber", URL: "https://example.com/a"}}, resp.Sources)
	assert.NotEmpty(t, resp.TraceID)

	require.Len(t, runner.last.Messages, 1)
	assert.Equal(t, "Indonesia merdeka tahun 1945", runner.last.Messages[0].Content)
}

func TestAnalyze_EmptyRequest(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	for _, body := range []string{`{}`, `{"question":"   "}`, ``} {
		rec := doJSON(t, s, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, checker.ErrEmptyRequest.Error(), decodeBody(t, rec)["error"])
	}
}

func TestAnalyze_BothInputs(t *testing.T) {
	s := newTestServer(t, &stubRunner{vision: true})
	img := base64.StdEncoding.EncodeToString(pngHeader)

	rec := doJSON(t, s, `{"question":"klaim","image":"`+img+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, checker.ErrBothInputs.Error(), decodeBody(t, rec)["error"])
}

func TestAnalyze_ImageJSON(t *testing.T) {
	runner := &stubRunner{vision: true}
	s := newTestServer(t, runner)
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	rec := doJSON(t, s, `{"image":"`+img+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngHeader, runner.last.ImageData)
	assert.Empty(t, runner.last.Messages)
}

func TestAnalyze_ImageWithoutVision(t *testing.T) {
	s := newTestServer(t, &stubRunner{})
	img := base64.StdEncoding.EncodeToString(pngHeader)

	rec := doJSON(t, s, `{"image":"`+img+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_InvalidImage(t *testing.T) {
	s := newTestServer(t, &stubRunner{vision: true})

	rec := doJSON(t, s, `{"image":"%%%not-base64%%%"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_Multipart(t *testing.T) {
	runner := &stubRunner{vision: true}
	s := newTestServer(t, runner)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "screenshot.png")
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngHeader, runner.last.ImageData)
}

func TestAnalyze_MultipartQuestion(t *testing.T) {
	runner := &stubRunner{}
	s := newTestServer(t, runner)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("question", "Harga BBM naik besok"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.last.Messages, 1)
	assert.Equal(t, "Harga BBM naik besok", runner.last.Messages[0].Content)
}

func TestAnalyze_PipelineFailure(t *testing.T) {
	s := newTestServer(t, &stubRunner{err: errors.New("node researcher: upstream timeout")})

	rec := doJSON(t, s, `{"question":"klaim"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "upstream timeout")
	assert.NotContains(t, body, "final_answer")
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set(echo.HeaderOrigin, "https://hoaxbuster.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}


func TestListChecks(t *testing.T) {
	s := newTestServer(t, &stubRunner{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checks?limit=5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"checks":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checks?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCheck(t *testing.T) {
	store, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "server.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := checker.NewService(checker.Options{Pipeline: &stubRunner{}, Store: store, Logger: logging.Discard()})
	require.NoError(t, err)
	s := New(config.ServerConfig{}, svc, nil, logging.Discard())

	rec := doJSON(t, s, `{"question":"Indonesia merdeka tahun 1945"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	traceID := decodeBody(t, rec)["trace_id"].(string)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checks/"+traceID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Indonesia merdeka tahun 1945", body["claim"])
	assert.Equal(t, "FACT", body["verdict"])
	assert.Equal(t, "<b>Status</b>: FAKTA", body["final_answer"])
	assert.Len(t, body["steps"], 4)
	assert.Len(t, body["sources"], 1)
	assert.Empty(t, body["tools"])

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checks/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"check not found"}`, rec.Body.String())
}

func TestStart_GracefulShutdown(t *testing.T) {
	svc, err := checker.NewService(checker.Options{Pipeline: &stubRunner{}, Logger: logging.Discard()})
	require.NoError(t, err)
	s := New(config.ServerConfig{Addr: "127.0.0.1:0"}, svc, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
