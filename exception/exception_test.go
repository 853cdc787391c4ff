package exception

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/monitoring"
)

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

func TestSafeGoRecovers(t *testing.T) {
	monitoring.InitMetrics()
	out := new(syncBuffer)
	logx.SetOutput(out)

	done := make(chan struct{})
	SafeGo("audit-log", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(out.String(), "Panic in audit-log") {
		if time.Now().After(deadline) {
			t.Fatalf("panic was not logged, got %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
