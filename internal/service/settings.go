package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"ppe-dashboard/internal/backend"
)

const (
	MinThreshold = 0.1
	MaxThreshold = 1.0

	saveStatusTTL = 2 * time.Second
)

type SaveStatus string

const (
	SaveIdle    SaveStatus = "idle"
	SaveSuccess SaveStatus = "success"
	SaveError   SaveStatus = "error"
)

type SettingsSnapshot struct {
	Threshold  float64    `json:"threshold"`
	Gear       []string   `json:"gear"`
	SaveStatus SaveStatus `json:"save_status"`
}

// SettingsService keeps the detector settings the dashboard edits.
type SettingsService struct {
	api *backend.API
	log zerolog.Logger
	now func() time.Time

	// save serializes writes so a revert never clobbers a later toggle.
	save sync.Mutex

	mu        sync.RWMutex
	threshold float64
	gear      []string
	status    SaveStatus
	statusAt  time.Time
}

func NewSettingsService(api *backend.API, log zerolog.Logger) *SettingsService {
	return &SettingsService{
		api:    api,
		log:    log.With().Str("component", "settings").Logger(),
		now:    time.Now,
		status: SaveIdle,
	}
}

func (s *SettingsService) Load(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.api.Settings.Threshold(gctx)
		if err != nil {
			return fmt.Errorf("failed to load threshold: %w", err)
		}
		s.mu.Lock()
		s.threshold = res.Data.Conf
		s.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		res, err := s.api.Settings.Gear(gctx)
		if err != nil {
			return fmt.Errorf("failed to load gear requirements: %w", err)
		}
		s.mu.Lock()
		s.gear = lo.Uniq(res.Data.Requirements)
		s.mu.Unlock()
		return nil
	})
	return g.Wait()
}

func (s *SettingsService) Snapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsSnapshot{
		Threshold:  s.threshold,
		Gear:       append([]string{}, s.gear...),
		SaveStatus: s.saveStatusLocked(),
	}
}

func (s *SettingsService) SaveStatus() SaveStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveStatusLocked()
}

// saveStatusLocked expires success and error back to idle after a short while.
func (s *SettingsService) saveStatusLocked() SaveStatus {
	if s.status != SaveIdle && s.now().Sub(s.statusAt) >= saveStatusTTL {
		return SaveIdle
	}
	return s.status
}

func (s *SettingsService) setStatus(status SaveStatus) {
	s.mu.Lock()
	s.status = status
	s.statusAt = s.now()
	s.mu.Unlock()
}

// SetThreshold posts a confidence threshold rounded to two decimals.
func (s *SettingsService) SetThreshold(ctx context.Context, v float64) (float64, error) {
	if math.IsNaN(v) || v < MinThreshold || v > MaxThreshold {
		return 0, fmt.Errorf("%w: threshold must be between %.1f and %.1f", ErrInvalidInput, MinThreshold, MaxThreshold)
	}
	conf := math.Round(v*100) / 100

	s.save.Lock()
	defer s.save.Unlock()

	res, err := s.api.Settings.SetThreshold(ctx, conf)
	if err != nil {
		s.setStatus(SaveError)
		s.log.Error().
			Err(err).
			Float64("conf", conf).
			Msg("failed to update threshold")
		return 0, fmt.Errorf("failed to update threshold: %w", err)
	}

	applied := res.Data.NewConf
	if applied == 0 {
		applied = conf
	}
	s.mu.Lock()
	s.threshold = applied
	s.mu.Unlock()
	s.setStatus(SaveSuccess)

	s.log.Info().Float64("conf", applied).Msg("threshold updated")
	return applied, nil
}

// ToggleGear removes item when it is required and adds it otherwise. The new
// set is applied locally first and reverted if the backend rejects it.
func (s *SettingsService) ToggleGear(ctx context.Context, item string) ([]string, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return nil, fmt.Errorf("%w: gear item is required", ErrInvalidInput)
	}

	s.save.Lock()
	defer s.save.Unlock()

	s.mu.Lock()
	prev := s.gear
	next := toggled(prev, item)
	s.gear = next
	s.mu.Unlock()

	if _, err := s.api.Settings.SetGear(ctx, next); err != nil {
		s.mu.Lock()
		s.gear = prev
		s.mu.Unlock()
		s.setStatus(SaveError)
		s.log.Error().
			Err(err).
			Str("item", item).
			Strs("requirements", next).
			Msg("failed to update gear requirements, reverted")
		return append([]string{}, prev...), fmt.Errorf("failed to update gear requirements: %w", err)
	}

	s.setStatus(SaveSuccess)
	s.log.Info().Strs("requirements", next).Msg("gear requirements updated")
	return append([]string{}, next...), nil
}

func toggled(set []string, item string) []string {
	if lo.Contains(set, item) {
		return lo.Without(set, item)
	}
	return lo.Uniq(append(append([]string{}, set...), item))
}
