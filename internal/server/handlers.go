package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/wwwzy/HoaxBuster/internal/checker"
	"github.com/wwwzy/HoaxBuster/internal/storage"
	"github.com/wwwzy/HoaxBuster/internal/vision"
)

const defaultHistoryLimit = 20

// analyzeRequest 是 JSON 形式的 /analyze 请求体
type analyzeRequest struct {
	Question string `json:"question"`
	// Image 为 base64 或 data URL
	Image string `json:"image"`
}

type checkSummary struct {
	TraceID    string    `json:"trace_id"`
	InputKind  string    `json:"input_kind"`
	Claim      string    `json:"claim"`
	Verdict    string    `json:"verdict"`
	Confidence int       `json:"confidence"`
	Status     string    `json:"status"`
	Cached     bool      `json:"cached"`
	CreatedAt  time.Time `json:"created_at"`
}

type toolCall struct {
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	Params     string `json:"params"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type checkDetail struct {
	checkSummary
	FinalAnswer string          `json:"final_answer"`
	Analysis    string          `json:"analysis"`
	Steps       json.RawMessage `json:"steps"`
	Sources     json.RawMessage `json:"sources"`
	Error       string          `json:"error,omitempty"`
	Tools       []toolCall      `json:"tools"`
}

func (s *Server) analyze(c echo.Context) error {
	req, err := s.readRequest(c)
	if err != nil {
		return err
	}

	resp, err := s.checker.Check(c.Request().Context(), req)
	if err != nil {
		if checker.IsClientError(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// readRequest 支持 JSON 与 multipart 两种请求格式
func (s *Server) readRequest(c echo.Context) (checker.Request, error) {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		return s.readMultipart(c)
	}

	var body analyzeRequest
	if err := c.Bind(&body); err != nil {
		return checker.Request{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req := checker.Request{Text: body.Question}
	if strings.TrimSpace(body.Image) != "" {
		img, _, err := vision.DecodeImage(body.Image)
		if err != nil {
			return checker.Request{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		req.Image = img
	}
	return req, nil
}

func (s *Server) readMultipart(c echo.Context) (checker.Request, error) {
	req := checker.Request{Text: c.FormValue("question")}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return checker.Request{}, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	if fh.Size > s.maxBody {
		return checker.Request{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", s.maxBody))
	}

	f, err := fh.Open()
	if err != nil {
		return checker.Request{}, echo.NewHTTPError(http.StatusBadRequest, "cannot read image")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxBody+1))
	if err != nil {
		return checker.Request{}, echo.NewHTTPError(http.StatusBadRequest, "cannot read image")
	}
	if int64(len(data)) > s.maxBody {
		return checker.Request{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", s.maxBody))
	}
	if len(data) > 0 && !vision.IsImage(data) {
		return checker.Request{}, echo.NewHTTPError(http.StatusBadRequest, vision.ErrInvalidImage.Error())
	}
	req.Image = data
	return req, nil
}

func (s *Server) listChecks(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	records, err := s.checker.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	out := make([]checkSummary, 0, len(records))
	for _, r := range records {
		out = append(out, summarize(r))
	}
	return c.JSON(http.StatusOK, map[string]any{"checks": out})
}

func (s *Server) getCheck(c echo.Context) error {
	d, err := s.checker.Lookup(c.Request().Context(), c.Param("trace_id"))
	switch {
	case storage.IsNotFound(err), errors.Is(err, checker.ErrHistoryDisabled):
		return echo.NewHTTPError(http.StatusNotFound, "check not found")
	case err != nil:
		return err
	}

	out := checkDetail{
		checkSummary: summarize(d.Check),
		FinalAnswer:  d.Check.FinalAnswer,
		Analysis:     d.Check.Analysis,
		Steps:        rawJSON(d.Check.StepsJSON),
		Sources:      rawJSON(d.Check.SourcesJSON),
		Error:        d.Check.ErrorMessage,
		Tools:        make([]toolCall, 0, len(d.Tools)),
	}
	for _, a := range d.Tools {
		call := toolCall{Tool: a.Action, Status: a.Status, Params: a.ParamsJSON, Error: a.ErrorMessage}
		if !a.FinishedAt.IsZero() {
			call.DurationMS = a.FinishedAt.Sub(a.StartedAt).Milliseconds()
		}
		out.Tools = append(out.Tools, call)
	}
	return c.JSON(http.StatusOK, out)
}

func summarize(r storage.CheckRecord) checkSummary {
	return checkSummary{
		TraceID:    r.TraceID,
		InputKind:  r.InputKind,
		Claim:      r.Claim,
		Verdict:    r.Verdict,
		Confidence: r.Confidence,
		Status:     r.Status,
		Cached:     r.Cached,
		CreatedAt:  r.CreatedAt,
	}
}

// rawJSON 存储里的 JSON 列原样输出，空值输出 []
func rawJSON(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("[]")
	}
	return json.RawMessage(s)
}
