package backend

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.data[key]
	return body, ok, nil
}

func (s *memStore) Save(_ context.Context, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = body
	return nil
}

func failing(err error) TransportFunc {
	return func(context.Context, *Request) (*Response, error) {
		return nil, err
	}
}

func TestFallbackServesMockPayload(t *testing.T) {
	paths := []string{"/api/stats", "/api/logs", "/api/cameras", "/api/dashboard/violations?limit=2"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			f := NewFallbackTransport(failing(errors.New("connection refused")),
				Policy{Mode: FallbackMock, Methods: []string{http.MethodGet}}, nil, zerolog.Nop())
			f.now = func() time.Time { return fixedNow }

			resp, err := f.Do(context.Background(), &Request{Method: http.MethodGet, Path: path})
			require.NoError(t, err)
			assert.Equal(t, OriginMock, resp.Origin)
			assert.JSONEq(t, string(MockPayload(path, fixedNow)), string(resp.Body))
		})
	}
}

func TestFallbackIneligibleMethodPropagates(t *testing.T) {
	boom := errors.New("boom")
	f := NewFallbackTransport(failing(boom), Policy{Mode: FallbackMock, Methods: []string{http.MethodGet}}, nil, zerolog.Nop())

	_, err := f.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/api/settings/threshold"})
	assert.ErrorIs(t, err, boom)
}

func TestFallbackOffPropagates(t *testing.T) {
	boom := errors.New("boom")
	f := NewFallbackTransport(failing(boom), Policy{Mode: FallbackOff, Methods: []string{http.MethodGet}}, nil, zerolog.Nop())

	_, err := f.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/api/stats"})
	assert.ErrorIs(t, err, boom)
}

func TestFallbackCancelledContextPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFallbackTransport(TransportFunc(func(ctx context.Context, _ *Request) (*Response, error) {
		return nil, ctx.Err()
	}), Policy{Mode: FallbackMock, Methods: []string{http.MethodGet}}, nil, zerolog.Nop())

	_, err := f.Do(ctx, &Request{Path: "/api/stats"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackCacheServesLastGoodBody(t *testing.T) {
	store := &memStore{}
	up := true
	next := TransportFunc(func(context.Context, *Request) (*Response, error) {
		if up {
			return &Response{StatusCode: http.StatusOK, Body: []byte(`{"total_violations":9}`), Origin: OriginLive}, nil
		}
		return nil, errors.New("down")
	})
	f := NewFallbackTransport(next, Policy{Mode: FallbackCache, Methods: []string{http.MethodGet}}, store, zerolog.Nop())
	f.now = func() time.Time { return fixedNow }

	resp, err := f.Do(context.Background(), &Request{Path: "/api/stats"})
	require.NoError(t, err)
	assert.Equal(t, OriginLive, resp.Origin)

	up = false
	resp, err = f.Do(context.Background(), &Request{Path: "/api/stats"})
	require.NoError(t, err)
	assert.Equal(t, OriginCache, resp.Origin)
	assert.JSONEq(t, `{"total_violations":9}`, string(resp.Body))

	resp, err = f.Do(context.Background(), &Request{Path: "/api/cameras"})
	require.NoError(t, err)
	assert.Equal(t, OriginMock, resp.Origin)
}

func TestPolicyEligible(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		method string
		want   bool
	}{
		{"get default", Policy{Mode: FallbackMock, Methods: []string{"GET"}}, "", true},
		{"case insensitive", Policy{Mode: FallbackMock, Methods: []string{"get"}}, "GET", true},
		{"post excluded", Policy{Mode: FallbackMock, Methods: []string{"GET"}}, "POST", false},
		{"off", Policy{Mode: FallbackOff, Methods: []string{"GET"}}, "GET", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.eligible(tt.method))
		})
	}
}
