// Package writequeue serializes write operations per user.
// Package writequeue 按用户串行化写操作
// Used to keep SQLite writers for the same user from tripping over "database is locked"
// 用于避免同一用户的 SQLite 并发写入触发 "database is locked"
package writequeue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWriteQueueClosed 当写队列管理器已关闭时返回
	ErrWriteQueueClosed = errors.New("write queue is closed")
	// ErrWriteTimeout 等待写入槽位超时
	ErrWriteTimeout = errors.New("write operation timeout")
)

// Config 写队列配置
type Config struct {
	// WaitTimeout 等待获取写入槽位的最长时间
	WaitTimeout time.Duration
}

// slot is a one-token semaphore shared by every writer of one user.
type slot struct {
	sem  chan struct{}
	refs int
}

// Manager 管理所有用户的写队列
type Manager struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	slots  map[int64]*slot
	closed bool

	inflight sync.WaitGroup
	waiting  atomic.Int64
}

// New 创建写队列管理器
func New(cfg Config, logger *zap.Logger) *Manager {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config: cfg,
		logger: logger,
		slots:  make(map[int64]*slot),
	}
}

// Execute runs fn once no other write for uid is running. The wait is bounded by ctx
// and WaitTimeout; once fn starts it always runs to completion.
// Execute 在同一用户没有其他写操作时执行 fn；等待受 ctx 与 WaitTimeout 约束，fn 一旦开始必定执行完毕
func (m *Manager) Execute(ctx context.Context, uid int64, fn func() error) error {
	s, err := m.acquire(uid)
	if err != nil {
		return err
	}
	defer m.release(uid, s)

	m.waiting.Add(1)
	timer := time.NewTimer(m.config.WaitTimeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		m.waiting.Add(-1)
	case <-ctx.Done():
		m.waiting.Add(-1)
		return ctx.Err()
	case <-timer.C:
		m.waiting.Add(-1)
		m.logger.Warn("write queue wait timeout",
			zap.Int64("uid", uid),
			zap.Duration("waitTimeout", m.config.WaitTimeout))
		return ErrWriteTimeout
	}
	defer func() { <-s.sem }()

	return fn()
}

func (m *Manager) acquire(uid int64) (*slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrWriteQueueClosed
	}
	s, ok := m.slots[uid]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		m.slots[uid] = s
	}
	s.refs++
	m.inflight.Add(1)
	return s, nil
}

func (m *Manager) release(uid int64, s *slot) {
	m.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, uid)
	}
	m.mu.Unlock()
	m.inflight.Done()
}

// QueueCount 返回当前有写入者的用户数量
func (m *Manager) QueueCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Waiting 返回正在等待写入槽位的操作数
func (m *Manager) Waiting() int64 {
	return m.waiting.Load()
}

// Shutdown rejects new writes and waits for in-flight ones.
// Shutdown 拒绝新的写操作并等待进行中的写操作完成
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("write queue manager shutdown completed")
		return nil
	case <-ctx.Done():
		m.logger.Warn("write queue manager shutdown timeout")
		return ctx.Err()
	}
}
