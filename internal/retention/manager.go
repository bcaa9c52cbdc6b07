package retention

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status 最近一次清理的结果
type Status struct {
	At     time.Time
	Result Result
	Err    error
}

// Manager 在后台按周期调用 Pruner，也可通过 PruneNow 立即触发。
type Manager struct {
	cfg    Config
	pruner *Pruner

	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	started bool
	last    Status
	runErr  error
}

func NewManager(cfg Config, pruner *Pruner) *Manager {
	return &Manager{
		cfg:     cfg.withDefaults(),
		pruner:  pruner,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start 启动后立即清理一次，之后每 Interval 清理一次。
// 未启用时 Start 不启动任何 goroutine。
func (m *Manager) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("manager already started")
	}
	m.started = true

	if !m.cfg.Enabled {
		close(m.done)
		return nil
	}
	if m.pruner == nil {
		close(m.done)
		return errors.New("retention pruner is required when retention enabled")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.loop(runCtx)
	return nil
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		now := time.Now().UTC()
		res, err := m.pruner.Prune(ctx, now)
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		m.last = Status{At: now, Result: res, Err: err}
		if err != nil && m.runErr == nil {
			m.runErr = err
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.trigger:
		}
	}
}

// PruneNow 请求后台立即清理一次；已有待处理的请求时忽略。
func (m *Manager) PruneNow() {
	if m == nil {
		return
	}
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Last 返回最近一次清理的状态，尚未运行时 At 为零值。
func (m *Manager) Last() Status {
	if m == nil {
		return Status{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Manager) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait 等待后台任务退出，返回运行期间的第一个清理错误。
func (m *Manager) Wait() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil
	}
	<-m.done
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runErr
}
