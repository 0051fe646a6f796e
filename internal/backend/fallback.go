package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type FallbackMode string

const (
	FallbackMock  FallbackMode = "mock"
	FallbackCache FallbackMode = "cache"
	FallbackOff   FallbackMode = "off"
)

// Policy decides which failed calls get a substitute body.
type Policy struct {
	Mode    FallbackMode
	Methods []string
}

func (p Policy) eligible(method string) bool {
	if p.Mode == FallbackOff {
		return false
	}
	if method == "" {
		method = http.MethodGet
	}
	for _, m := range p.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Store keeps the last good body per endpoint for FallbackCache.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, body []byte) error
}

// FallbackTransport serves a cached or canned body when the wrapped
// transport fails and the policy allows it.
type FallbackTransport struct {
	next   Transport
	policy Policy
	store  Store
	log    zerolog.Logger
	now    func() time.Time
}

func NewFallbackTransport(next Transport, policy Policy, store Store, log zerolog.Logger) *FallbackTransport {
	return &FallbackTransport{
		next:   next,
		policy: policy,
		store:  store,
		log:    log,
		now:    time.Now,
	}
}

func (f *FallbackTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := f.next.Do(ctx, req)
	eligible := f.policy.eligible(req.Method)

	if err == nil {
		if eligible && f.policy.Mode == FallbackCache && f.store != nil {
			if serr := f.store.Save(ctx, cacheKey(req), resp.Body); serr != nil {
				f.log.Warn().Err(serr).Str("path", req.Path).Msg("failed to store response for fallback")
			}
		}
		return resp, nil
	}

	if !eligible {
		return nil, err
	}
	// The caller is gone; nobody is waiting for demo data. An attempt that
	// only hit its own timeout still falls back.
	if ctx.Err() != nil {
		return nil, err
	}

	if f.policy.Mode == FallbackCache && f.store != nil {
		body, ok, lerr := f.store.Load(ctx, cacheKey(req))
		if lerr != nil {
			f.log.Warn().Err(lerr).Str("path", req.Path).Msg("failed to load cached response")
		}
		if ok {
			f.log.Warn().Err(err).Str("path", req.Path).Msg("api request failed, serving cached response")
			return &Response{StatusCode: http.StatusOK, Body: body, Origin: OriginCache}, nil
		}
	}

	f.log.Warn().Err(err).Str("path", req.Path).Msg("api request failed, serving mock data")
	return &Response{
		StatusCode: http.StatusOK,
		Body:       MockPayload(req.Path, f.now()),
		Origin:     OriginMock,
	}, nil
}

func cacheKey(req *Request) string {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + req.Path
}
