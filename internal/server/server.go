package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/wwwzy/HoaxBuster/internal/checker"
	"github.com/wwwzy/HoaxBuster/internal/config"
	"github.com/wwwzy/HoaxBuster/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Checker 是 HTTP 层依赖的核查服务，*checker.Service 实现了该接口
type Checker interface {
	Check(ctx context.Context, req checker.Request) (*checker.Response, error)
	Recent(ctx context.Context, limit int) ([]storage.CheckRecord, error)
	Lookup(ctx context.Context, traceID string) (*checker.Detail, error)
}

// Server 是 HoaxBuster 的 HTTP 前端
type Server struct {
	e       *echo.Echo
	addr    string
	checker Checker
	maxBody int64
	logger  *slog.Logger
}

// New 创建 HTTP 服务并注册路由；metrics 为空时不暴露 /metrics
func New(cfg config.ServerConfig, svc Checker, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxUploadBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{e: e, addr: cfg.Addr, checker: svc, maxBody: maxBody, logger: logger}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	}))
	// 多留 1MB 给 multipart 边界和 base64 膨胀
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", maxBody*4/3+(1<<20))))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
	e.POST("/analyze", s.analyze)
	e.GET("/api/checks", s.listChecks)
	e.GET("/api/checks/:trace_id", s.getCheck)

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			e.Static("/", cfg.StaticDir)
		} else {
			logger.Warn("static dir not found, skip serving static files", slog.String("dir", cfg.StaticDir))
		}
	}
	return s
}

// Handler 返回底层 http.Handler，便于测试
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start 启动监听，ctx 取消后优雅关闭
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.addr))
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

// handleError 统一输出 {"error": "..."}
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}
