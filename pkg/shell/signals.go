package shell

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Foreground records whether the shell is blocked waiting for a child. It is
// read from the interrupt path and written by the executor.
type Foreground struct {
	waiting atomic.Bool
	pid     atomic.Int64

	mu sync.Mutex
	// hold is called with true once a child exists and with false when the
	// wait for it ends.
	hold    func(on bool)
	holding bool
}

func (f *Foreground) Waiting() bool {
	return f.waiting.Load()
}

// Pid is the child being waited on, or 0 while it is still being created.
func (f *Foreground) Pid() int {
	return int(f.pid.Load())
}

func (f *Foreground) begin(pid int) {
	f.pid.Store(int64(pid))
	f.waiting.Store(true)
	if pid > 0 {
		f.setHolding(true)
	}
}

func (f *Foreground) end() {
	f.setHolding(false)
	f.waiting.Store(false)
	f.pid.Store(0)
}

func (f *Foreground) setHolding(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holding == on || f.hold == nil {
		return
	}
	f.holding = on
	f.hold(on)
}

// setHold installs fn, releasing any hold taken by the previous one.
func (f *Foreground) setHold(fn func(on bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holding && f.hold != nil {
		f.hold(false)
	}
	f.holding = false
	f.hold = fn
}

// Interrupt handles a Ctrl-C. While a foreground child runs the terminal
// delivers the signal to it and the shell does nothing; otherwise the shell
// asks to exit.
func (s *Shell) Interrupt() {
	if s.fg.Waiting() {
		s.logger.Debug("interrupt left to foreground child", zap.Int("pid", s.fg.Pid()))
		return
	}
	if err := s.RequestExit(); err != nil {
		s.logger.Warn("interrupt after exit was requested", zap.Error(err))
	}
}

// HandleSignals routes SIGINT to Interrupt until ctx is done or the returned
// stop function is called. SIGTSTP is caught so that Ctrl-Z stops only the
// foreground child; children start with default dispositions.
//
// While a started child is waited on, SIGINT is ignored at the process level.
// The child's own disposition is unaffected because it is set after exec, and
// an interrupt that arrives during the wait can never be handled after it.
func (s *Shell) HandleSignals(ctx context.Context) (stop func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTSTP)

	s.fg.setHold(func(on bool) {
		if on {
			signal.Ignore(os.Interrupt)
			return
		}
		signal.Notify(sigs, os.Interrupt)
	})

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				if sig == syscall.SIGTSTP {
					s.logger.Debug("ignoring terminal stop", zap.Bool("waiting", s.fg.Waiting()))
					continue
				}
				s.Interrupt()
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.fg.setHold(nil)
			signal.Stop(sigs)
			close(done)
		})
	}
}
