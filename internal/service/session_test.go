package service

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/poller"
	"ppe-dashboard/internal/poller/pollertest"
)

type fakeBackend struct {
	logs   atomic.Int64
	active atomic.Bool
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/logs":
		f.logs.Add(1)
		_, _ = io.WriteString(w, `{"logs":[{"id":1,"status":"VIOLATION","missing":["mask"],"detected":[],"timestamp":"2024-01-01T00:00:00Z","source":"Camera 1"}]}`)
	case "/api/stats":
		_, _ = io.WriteString(w, `{"total_violations":1,"compliance_rate":50}`)
	case "/api/cameras":
		_, _ = io.WriteString(w, `[{"id":"cam1","name":"Gate","source":"0","type":"webcam"}]`)
	case "/api/monitor/status":
		if f.active.Load() {
			_, _ = io.WriteString(w, `{"active":true}`)
		} else {
			_, _ = io.WriteString(w, `{"active":false}`)
		}
	case "/api/monitor/toggle":
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		f.active.Store(!f.active.Load())
		if f.active.Load() {
			_, _ = io.WriteString(w, `{"status":"started","active":true}`)
		} else {
			_, _ = io.WriteString(w, `{"status":"stopped","active":false}`)
		}
	case "/api/settings/threshold":
		_, _ = io.WriteString(w, `{"conf":0.5}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestSession(t *testing.T, fb *fakeBackend) (*Session, *pollertest.Clock) {
	t.Helper()
	clock := pollertest.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	api := newTestAPI(t, fb, getOnly)
	s := NewSession(api, SessionConfig{
		LogsInterval:   2 * time.Second,
		FeedInterval:   3 * time.Second,
		StatusInterval: 30 * time.Second,
		Clock:          clock,
	}, zerolog.Nop())
	t.Cleanup(s.Close)
	return s, clock
}

func TestSessionStopsLogPollingWhenInactive(t *testing.T) {
	fb := &fakeBackend{}
	fb.active.Store(true)
	s, clock := newTestSession(t, fb)

	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Active())
	require.True(t, clock.WaitActive(2*time.Second, 1, time.Second))

	clock.Advance(2 * time.Second)
	assert.Eventually(t, func() bool { return fb.logs.Load() >= 2 }, time.Second, time.Millisecond)

	s.SetActive(false)
	after := fb.logs.Load()
	assert.Equal(t, 0, clock.Active(2*time.Second))

	for i := 0; i < 5; i++ {
		clock.Advance(2 * time.Second)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, fb.logs.Load())
	assert.Equal(t, 1, clock.Active(30*time.Second), "status keeps polling")
}

func TestSessionInactiveStartFetchesOnce(t *testing.T) {
	fb := &fakeBackend{}
	s, clock := newTestSession(t, fb)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.Active())
	assert.Equal(t, int64(1), fb.logs.Load())
	assert.Equal(t, 0, clock.Active(2*time.Second))

	snap := s.Activity.Snapshot()
	assert.Equal(t, poller.StateSuccess, snap.State)
	assert.Equal(t, backend.OriginLive, snap.Origin)
	require.Len(t, snap.Data.Logs.Logs, 1)
	assert.Equal(t, 1, s.Feed.Snapshot().Data.Stats.TotalViolations)

	assert.Error(t, s.Start(context.Background()))
}

func TestSessionToggle(t *testing.T) {
	fb := &fakeBackend{}
	s, clock := newTestSession(t, fb)
	require.NoError(t, s.Start(context.Background()))

	res, err := s.Toggle(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.True(t, s.Active())
	assert.True(t, clock.WaitActive(2*time.Second, 1, time.Second))

	res, err = s.Toggle(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.False(t, s.Active())
}

func TestSessionToggleFailureKeepsState(t *testing.T) {
	api := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}), getOnly)
	s := NewSession(api, SessionConfig{LogsInterval: time.Second, FeedInterval: time.Second, StatusInterval: time.Second, Clock: pollertest.NewClock(time.Now())}, zerolog.Nop())
	defer s.Close()

	_, err := s.Toggle(context.Background(), true)
	require.Error(t, err)
	assert.False(t, s.Active())
}

func TestMergeOrigin(t *testing.T) {
	assert.Equal(t, backend.OriginLive, mergeOrigin(backend.OriginLive, backend.OriginLive))
	assert.Equal(t, backend.OriginCache, mergeOrigin(backend.OriginLive, backend.OriginCache))
	assert.Equal(t, backend.OriginMock, mergeOrigin(backend.OriginCache, backend.OriginMock))
}

func TestSessionStartFeedSurvivesActivityFailure(t *testing.T) {
	fb := &fakeBackend{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/logs":
			_, _ = io.WriteString(w, `{"logs":[{"id":1,"status":"UNKNOWN","timestamp":"2024-01-01T00:00:00Z"}]}`)
		case "/api/cameras":
			time.Sleep(100 * time.Millisecond)
			fb.ServeHTTP(w, r)
		default:
			fb.ServeHTTP(w, r)
		}
	})
	s := NewSession(newTestAPI(t, h, getOnly), SessionConfig{
		LogsInterval:   2 * time.Second,
		FeedInterval:   3 * time.Second,
		StatusInterval: 30 * time.Second,
		Clock:          pollertest.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}, zerolog.Nop())
	defer s.Close()

	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, poller.StateError, s.Activity.Snapshot().State)
	feed := s.Feed.Snapshot()
	assert.Equal(t, poller.StateSuccess, feed.State)
	require.Len(t, feed.Data.Cameras, 1)
	assert.Equal(t, "cam1", feed.Data.Cameras[0].ID)
}
