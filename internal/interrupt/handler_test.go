package interrupt_test

// Notes:
// - Black-box tests; signals are injected through Options.SigCh.
// - ctx.Done() confirms the first signal was processed before sending the next.

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/polar9527/tag-audio/internal/interrupt"
)

// syncBuffer is a thread-safe bytes.Buffer; the handler writes from its own goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// exitRecorder captures exit codes.
type exitRecorder struct {
	codes chan int
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{codes: make(chan int, 1)}
}

func (e *exitRecorder) exit(code int) { e.codes <- code }

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not canceled")
	}
}

func TestHandler_FirstSignalCancels(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	stderr := &syncBuffer{}
	exits := newExitRecorder()
	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh: sigCh, ExitFunc: exits.exit, Stderr: stderr,
	})
	defer h.Stop()

	if h.WasInterrupted() {
		t.Fatal("WasInterrupted() = true before any signal")
	}

	sigCh <- syscall.SIGINT
	waitDone(t, ctx)

	if !h.WasInterrupted() {
		t.Error("WasInterrupted() = false after signal")
	}
	if !strings.Contains(stderr.String(), "saving progress") {
		t.Errorf("stderr = %q, want stop notice", stderr.String())
	}
	select {
	case code := <-exits.codes:
		t.Errorf("exit(%d) called after a single signal", code)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandler_SecondSignalAborts(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 2)
	stderr := &syncBuffer{}
	exits := newExitRecorder()
	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh: sigCh, ExitFunc: exits.exit, Stderr: stderr,
	})
	defer h.Stop()

	sigCh <- syscall.SIGINT
	waitDone(t, ctx)
	sigCh <- syscall.SIGTERM

	select {
	case code := <-exits.codes:
		if code != interrupt.ExitInterrupt {
			t.Errorf("exit code = %d, want %d", code, interrupt.ExitInterrupt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not exit")
	}
	if !strings.Contains(stderr.String(), "Aborted.") {
		t.Errorf("stderr = %q, want abort message", stderr.String())
	}
}

func TestHandler_ParentCancellation(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	h, ctx := interrupt.NewHandlerWithOptions(parent, interrupt.Options{})
	defer h.Stop()

	cancel()
	waitDone(t, ctx)
	if h.WasInterrupted() {
		t.Error("parent cancellation is not an interrupt")
	}
}

func TestHandler_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal, 1)
	h, ctx := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh: sigCh, ExitFunc: func(int) { t.Error("exit after Stop") }, Stderr: &syncBuffer{},
	})

	h.Stop()
	h.Stop()
	waitDone(t, ctx)
}

func TestHandler_ClosedChannel(t *testing.T) {
	t.Parallel()

	sigCh := make(chan os.Signal)
	h, _ := interrupt.NewHandlerWithOptions(context.Background(), interrupt.Options{
		SigCh: sigCh, ExitFunc: func(int) { t.Error("exit on closed channel") }, Stderr: &syncBuffer{},
	})
	defer h.Stop()

	close(sigCh)
	time.Sleep(20 * time.Millisecond)
	if h.WasInterrupted() {
		t.Error("closed channel counted as interrupt")
	}
}
