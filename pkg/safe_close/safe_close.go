// Package safe_close coordinates graceful shutdown of long-running goroutines.
// Package safe_close 协调长期运行 goroutine 的优雅退出
package safe_close

import (
	"sync"
)

// SafeClose broadcasts one close signal to every attached goroutine and waits for them.
// SafeClose 向所有挂载的 goroutine 广播关闭信号并等待其退出
type SafeClose struct {
	closeSignal chan struct{}
	once        sync.Once
	wg          sync.WaitGroup

	mu  sync.Mutex
	err error
}

func NewSafeClose() *SafeClose {
	return &SafeClose{closeSignal: make(chan struct{})}
}

// Attach starts fn in a goroutine. fn must call done once it has fully stopped.
// Attach 在 goroutine 中启动 fn，fn 退出后必须调用 done
func (s *SafeClose) Attach(fn func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	var once sync.Once
	go fn(func() { once.Do(s.wg.Done) }, s.closeSignal)
}

// SendCloseSignal closes the signal channel; the first non-nil err is kept.
// SendCloseSignal 发送关闭信号，保留第一个非空错误
func (s *SafeClose) SendCloseSignal(err error) {
	if err != nil {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
	s.once.Do(func() { close(s.closeSignal) })
}

// Done exposes the close signal.
// Done 返回关闭信号通道
func (s *SafeClose) Done() <-chan struct{} {
	return s.closeSignal
}

// WaitClosed blocks until every attached goroutine called done.
// WaitClosed 等待所有挂载的 goroutine 退出
func (s *SafeClose) WaitClosed() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
