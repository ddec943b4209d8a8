package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu        sync.Mutex
	published map[string][]byte
	err       error
	drained   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.published == nil {
		f.published = map[string][]byte{}
	}
	f.published[subject] = data
	return nil
}

func (f *fakeConn) Drain() error      { f.drained = true; return nil }
func (f *fakeConn) IsConnected() bool { return !f.drained }

func TestSubject(t *testing.T) {
	assert.Equal(t, "citymind.audit.rfp", Subject("audit", "rfp"))
	assert.Equal(t, "citymind.audit.a_b_c", Subject("audit", "a.b*c"))
	assert.Equal(t, "citymind.audit._", Subject("audit", ""))
	assert.Equal(t, "citymind.audit.__", Subject("audit", "> "))
}

func TestNATSPublisher(t *testing.T) {
	fc := &fakeConn{}
	p := newNATSPublisher(fc, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), "citymind.audit.project", map[string]string{"action": "project.created"}))
	assert.JSONEq(t, `{"action":"project.created"}`, string(fc.published["citymind.audit.project"]))
	assert.True(t, p.Connected())

	assert.Error(t, p.Publish(context.Background(), "x", make(chan int)))

	fc.err = errors.New("connection closed")
	assert.ErrorContains(t, p.Publish(context.Background(), "x", 1), "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "x", 1), context.Canceled)

	require.NoError(t, p.Close())
	assert.False(t, p.Connected())
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), "x", nil))
	assert.NoError(t, p.Close())
}
