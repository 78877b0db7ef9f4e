package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/config"
	coremon "github.com/kilianp07/fleetroute/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitorRejectsBadDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "not a dsn"})
	assert.Error(t, err)
}

type recordTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *recordTransport) Flush(time.Duration) bool       { return true }
func (t *recordTransport) Configure(sentry.ClientOptions) {}
func (t *recordTransport) Close()                         {}

func (t *recordTransport) SendEvent(ev *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func TestCaptureExceptionTagsCallerComponent(t *testing.T) {
	tr := &recordTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: tr})
	require.NoError(t, err)
	m := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}

	m.CaptureException(errors.New("publish failed"), map[string]string{"component": "mqtt", "topic": "fleet/routes"})
	m.CaptureException(errors.New("untagged"), nil)
	m.CaptureException(nil, map[string]string{"component": "planner"})

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.events, 2)
	assert.Equal(t, "mqtt", tr.events[0].Tags["component"])
	assert.Equal(t, "fleet/routes", tr.events[0].Tags["topic"])
	assert.Equal(t, defaultComponent, tr.events[1].Tags["component"])
}
