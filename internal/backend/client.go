package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"ppe-dashboard/internal/domain/safety"
)

// Result carries decoded data together with where it came from, so callers
// can tell a real empty answer from demo data.
type Result[T any] struct {
	Data   T
	Origin Origin
}

func (r Result[T]) Live() bool {
	return r.Origin == OriginLive
}

// ValidationError reports a response body that does not match the expected
// shape.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid response from %s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	Policy        Policy
	Store         Store
}

type Client struct {
	transport     Transport
	direct        Transport
	baseURL       string
	timeout       time.Duration
	uploadTimeout time.Duration
	validate      *validator.Validate
	log           zerolog.Logger
}

// NewClient wraps next with the fallback policy. Calls that must surface
// failures go to next directly.
func NewClient(opts Options, next Transport, log zerolog.Logger) *Client {
	return &Client{
		transport:     NewFallbackTransport(next, opts.Policy, opts.Store, log),
		direct:        next,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		timeout:       opts.Timeout,
		uploadTimeout: opts.UploadTimeout,
		validate:      newValidator(),
		log:           log,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		entry := sl.Current().Interface().(safety.DetectionLog)
		if entry.Status == safety.StatusSafe && len(entry.Missing) > 0 {
			sl.ReportError(entry.Missing, "Missing", "missing", "empty_when_safe", "")
		}
	}, safety.DetectionLog{})
	return v
}

func getJSON[T any](ctx context.Context, c *Client, path string) (Result[T], error) {
	return do[T](ctx, c, c.transport, &Request{Method: http.MethodGet, Path: path}, c.timeout)
}

func sendJSON[T any](ctx context.Context, c *Client, method, path string, payload any) (Result[T], error) {
	req := &Request{Method: method, Path: path}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return Result[T]{}, fmt.Errorf("marshal %s payload: %w", path, err)
		}
		req.Body = bytes.NewReader(body)
	}
	return do[T](ctx, c, c.transport, req, c.timeout)
}

func do[T any](ctx context.Context, c *Client, t Transport, req *Request, timeout time.Duration) (Result[T], error) {
	req.Timeout = timeout
	resp, err := t.Do(ctx, req)
	if err != nil {
		return Result[T]{}, err
	}

	var out T
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return Result[T]{Origin: resp.Origin}, &ValidationError{Path: req.Path, Err: err}
		}
	}
	if err := c.check(out); err != nil {
		return Result[T]{Origin: resp.Origin}, &ValidationError{Path: req.Path, Err: err}
	}

	return Result[T]{Data: out, Origin: resp.Origin}, nil
}

func (c *Client) check(v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Struct:
		return c.validate.Struct(v)
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			if rv.Index(i).Kind() != reflect.Struct {
				continue
			}
			if err := c.validate.Struct(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}
