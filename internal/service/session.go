package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/poller"
)

// Activity is refreshed together so the log table and the stat cards never
// disagree.
type Activity struct {
	Logs  safety.LogList      `json:"logs"`
	Stats safety.StatsSummary `json:"stats"`
}

type Feed struct {
	Cameras []safety.CameraConfig `json:"cameras"`
	Stats   safety.StatsSummary   `json:"stats"`
}

// SystemStatus doubles as the backend reachability probe.
type SystemStatus struct {
	Monitor   safety.MonitorStatus     `json:"monitor"`
	Threshold safety.ThresholdSettings `json:"threshold"`
}

type SessionConfig struct {
	LogsInterval   time.Duration
	FeedInterval   time.Duration
	StatusInterval time.Duration
	Clock          poller.Clock
}

// Session owns the dashboard pollers. Logs and feed refresh only while
// monitoring is active; system status refreshes for the whole lifetime.
type Session struct {
	api *backend.API
	log zerolog.Logger

	Activity *poller.Poller[Activity]
	Feed     *poller.Poller[Feed]
	Status   *poller.Poller[SystemStatus]

	mu         sync.Mutex
	ctx        context.Context
	active     bool
	logsTask   *poller.Task
	feedTask   *poller.Task
	statusTask *poller.Task
}

func NewSession(api *backend.API, cfg SessionConfig, log zerolog.Logger) *Session {
	s := &Session{
		api: api,
		log: log.With().Str("component", "session").Logger(),
	}
	opts := poller.Options{Clock: cfg.Clock, Log: log}
	s.Activity = poller.New("activity", cfg.LogsInterval, s.fetchActivity, opts)
	s.Feed = poller.New("feed", cfg.FeedInterval, s.fetchFeed, opts)
	s.Status = poller.New("status", cfg.StatusInterval, s.fetchStatus, opts)
	return s
}

// Start mounts the session: the status loop begins, the monitor flag is read
// from the backend, and logs and feed get one immediate fetch.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: session already started", ErrInvalidInput)
	}
	s.ctx = ctx
	s.statusTask = s.Status.Start(ctx)
	s.mu.Unlock()

	status, err := s.api.Monitor.Status(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read monitor status")
	}

	if status.Data.Active {
		s.SetActive(true)
		return nil
	}

	if err := s.fetchOnce(ctx); err != nil {
		s.log.Warn().Err(err).Msg("initial fetch failed")
	}
	return nil
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive starts or stops the active-only pollers. When it returns false
// the log loop has already exited.
func (s *Session) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == active {
		return
	}
	s.active = active

	if !active {
		s.logsTask.Stop()
		s.feedTask.Stop()
		s.logsTask, s.feedTask = nil, nil
		s.log.Info().Msg("monitoring paused, log polling stopped")
		return
	}
	if s.ctx == nil || s.ctx.Err() != nil {
		return
	}
	s.logsTask = s.Activity.Start(s.ctx)
	s.feedTask = s.Feed.Start(s.ctx)
	s.log.Info().
		Dur("logs_interval", s.Activity.Interval()).
		Dur("feed_interval", s.Feed.Interval()).
		Msg("monitoring active, polling started")
}

// Toggle asks the backend to start or stop inference and mirrors the answer
// locally. Failures are returned and leave the local flag untouched.
func (s *Session) Toggle(ctx context.Context, active bool) (safety.ToggleResult, error) {
	res, err := s.api.Monitor.Toggle(ctx, active)
	if err != nil {
		s.log.Error().
			Err(err).
			Bool("active", active).
			Msg("failed to toggle monitoring")
		return safety.ToggleResult{}, fmt.Errorf("failed to toggle monitoring: %w", err)
	}
	s.SetActive(res.Data.Active)
	return res.Data, nil
}

// Refresh fetches logs and feed once, outside the tick schedule.
func (s *Session) Refresh(ctx context.Context) error {
	return s.fetchOnce(ctx)
}

// fetchOnce runs the activity and feed fetches side by side. Neither cancels
// the other, so one failing poller never leaves its sibling unfetched.
func (s *Session) fetchOnce(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.Activity.Fetch(ctx)
		return err
	})
	g.Go(func() error {
		_, err := s.Feed.Fetch(ctx)
		return err
	})
	return g.Wait()
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logsTask.Stop()
	s.feedTask.Stop()
	s.statusTask.Stop()
	s.logsTask, s.feedTask, s.statusTask = nil, nil, nil
	s.active = false
}

func (s *Session) fetchActivity(ctx context.Context) (backend.Result[Activity], error) {
	var (
		logs  backend.Result[safety.LogList]
		stats backend.Result[safety.StatsSummary]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		logs, err = s.api.Logs.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats, err = s.api.Stats.Get(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return backend.Result[Activity]{}, err
	}
	return backend.Result[Activity]{
		Data:   Activity{Logs: logs.Data, Stats: stats.Data},
		Origin: mergeOrigin(logs.Origin, stats.Origin),
	}, nil
}

func (s *Session) fetchFeed(ctx context.Context) (backend.Result[Feed], error) {
	var (
		cams  backend.Result[[]safety.CameraConfig]
		stats backend.Result[safety.StatsSummary]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cams, err = s.api.Cameras.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats, err = s.api.Stats.Get(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return backend.Result[Feed]{}, err
	}
	return backend.Result[Feed]{
		Data:   Feed{Cameras: cams.Data, Stats: stats.Data},
		Origin: mergeOrigin(cams.Origin, stats.Origin),
	}, nil
}

func (s *Session) fetchStatus(ctx context.Context) (backend.Result[SystemStatus], error) {
	var (
		monitor   backend.Result[safety.MonitorStatus]
		threshold backend.Result[safety.ThresholdSettings]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		monitor, err = s.api.Monitor.Status(gctx)
		return err
	})
	g.Go(func() (err error) {
		threshold, err = s.api.Settings.Threshold(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return backend.Result[SystemStatus]{}, err
	}
	return backend.Result[SystemStatus]{
		Data:   SystemStatus{Monitor: monitor.Data, Threshold: threshold.Data},
		Origin: mergeOrigin(monitor.Origin, threshold.Origin),
	}, nil
}

// mergeOrigin reports the least trustworthy origin among parts.
func mergeOrigin(origins ...backend.Origin) backend.Origin {
	merged := backend.OriginLive
	for _, o := range origins {
		switch o {
		case backend.OriginMock:
			return backend.OriginMock
		case backend.OriginCache:
			merged = backend.OriginCache
		}
	}
	return merged
}
