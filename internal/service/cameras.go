package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/domain/safety"
)

const pendingPrefix = "pending-"

type CameraService struct {
	api *backend.API
	log zerolog.Logger

	mu      sync.RWMutex
	cameras []safety.CameraConfig
}

func NewCameraService(api *backend.API, log zerolog.Logger) *CameraService {
	return &CameraService{
		api: api,
		log: log.With().Str("component", "cameras").Logger(),
	}
}

func IsPending(cam safety.CameraConfig) bool {
	return strings.HasPrefix(cam.ID, pendingPrefix)
}

// Cameras returns the local list, placeholders included.
func (s *CameraService) Cameras() []safety.CameraConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]safety.CameraConfig{}, s.cameras...)
}

// List refreshes the local list from the backend. Placeholders for creates
// still in flight are kept.
func (s *CameraService) List(ctx context.Context) (backend.Result[[]safety.CameraConfig], error) {
	res, err := s.api.Cameras.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list cameras: %w", err)
	}

	s.mu.Lock()
	pending := lo.Filter(s.cameras, func(c safety.CameraConfig, _ int) bool { return IsPending(c) })
	s.cameras = append(append([]safety.CameraConfig{}, res.Data...), pending...)
	s.mu.Unlock()

	return res, nil
}

// Create shows a placeholder right away and swaps in the backend's record
// once it answers. The placeholder is dropped on failure.
func (s *CameraService) Create(ctx context.Context, cfg safety.CameraConfig) (safety.CameraConfig, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Name == "" {
		return safety.CameraConfig{}, fmt.Errorf("%w: camera name is required", ErrInvalidInput)
	}
	if cfg.Source == "" {
		return safety.CameraConfig{}, fmt.Errorf("%w: camera source is required", ErrInvalidInput)
	}
	if cfg.Type == "" {
		cfg.Type = safety.CameraWebcam
	}
	if cfg.Type != safety.CameraWebcam && cfg.Type != safety.CameraIP {
		return safety.CameraConfig{}, fmt.Errorf("%w: camera type must be webcam or ip", ErrInvalidInput)
	}

	placeholder := cfg
	placeholder.ID = pendingPrefix + uuid.NewString()

	s.mu.Lock()
	s.cameras = append(s.cameras, placeholder)
	s.mu.Unlock()

	res, err := s.api.Cameras.Create(ctx, cfg)
	if err != nil {
		s.remove(placeholder.ID)
		s.log.Error().
			Err(err).
			Str("name", cfg.Name).
			Str("source", cfg.Source).
			Msg("failed to create camera")
		return safety.CameraConfig{}, fmt.Errorf("failed to create camera: %w", err)
	}

	created := res.Data.Camera
	s.mu.Lock()
	for i := range s.cameras {
		if s.cameras[i].ID == placeholder.ID {
			s.cameras[i] = created
			break
		}
	}
	s.mu.Unlock()

	s.log.Info().
		Str("camera_id", created.ID).
		Str("name", created.Name).
		Msg("camera created")
	return created, nil
}

func (s *CameraService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: camera id is required", ErrInvalidInput)
	}
	if strings.HasPrefix(id, pendingPrefix) {
		return fmt.Errorf("%w: camera %s is still being created", ErrInvalidInput, id)
	}

	if _, err := s.api.Cameras.Delete(ctx, id); err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			s.remove(id)
			return fmt.Errorf("%w: camera %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	s.remove(id)
	s.log.Info().Str("camera_id", id).Msg("camera deleted")
	return nil
}

func (s *CameraService) remove(id string) {
	s.mu.Lock()
	s.cameras = lo.Reject(s.cameras, func(c safety.CameraConfig, _ int) bool { return c.ID == id })
	s.mu.Unlock()
}
