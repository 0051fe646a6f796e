package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/poller"
	"ppe-dashboard/internal/storage"
)

type UploadState string

const (
	UploadEmpty        UploadState = "empty"
	UploadFileSelected UploadState = "file-selected"
	UploadTrimming     UploadState = "trimming"
	UploadUploading    UploadState = "uploading"
	UploadResult       UploadState = "result"
	UploadError        UploadState = "error"
)

const (
	progressStep     = 10
	progressCap      = 90
	progressInterval = 500 * time.Millisecond
	sniffLen         = 3072
	maxJobs          = 50
	// pendingTTL is how long a selected or trimmed clip waits for Start.
	pendingTTL = 30 * time.Minute
)

// Job is one clip going through analysis. Progress is an estimate: it moves
// on a timer while the backend works and jumps to 100 when it answers.
type Job struct {
	ID         string                      `json:"id"`
	State      UploadState                 `json:"state"`
	Filename   string                      `json:"filename"`
	MediaType  string                      `json:"media_type"`
	Size       int64                       `json:"size"`
	StartTime  float64                     `json:"start_time"`
	EndTime    *float64                    `json:"end_time,omitempty"`
	Progress   int                         `json:"progress"`
	Estimated  bool                        `json:"estimated"`
	Result     *safety.VideoAnalysisResult `json:"result,omitempty"`
	VideoURL   string                      `json:"video_url,omitempty"`
	ArchiveURL string                      `json:"archive_url,omitempty"`
	Error      string                      `json:"error,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`

	spool string
}

func (j Job) Done() bool {
	return j.State == UploadResult || j.State == UploadError
}

func (j Job) pending() bool {
	return j.State == UploadFileSelected || j.State == UploadTrimming
}

type UploadRequest struct {
	Filename     string
	ContentType  string
	Body         io.Reader
	StartTime    float64
	EndTime      *float64
	RequiredGear []string
}

// Archiver keeps a copy of each uploaded clip. *storage.Archive implements it.
type Archiver interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type UploadOptions struct {
	MaxBytes int64
	Dir      string
	Archiver Archiver
	Clock    poller.Clock
}

type UploadService struct {
	api      *backend.API
	log      zerolog.Logger
	maxBytes int64
	dir      string
	archiver Archiver
	clock    poller.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewUploadService(api *backend.API, opts UploadOptions, log zerolog.Logger) *UploadService {
	clock := opts.Clock
	if clock == nil {
		clock = poller.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &UploadService{
		api:      api,
		log:      log.With().Str("component", "upload").Logger(),
		maxBytes: opts.MaxBytes,
		dir:      opts.Dir,
		archiver: opts.Archiver,
		clock:    clock,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*Job),
	}
}

// CheckMedia rejects anything that is not a video, judged by the declared
// content type and by the leading bytes.
func CheckMedia(contentType string, head []byte) (string, error) {
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return "", fmt.Errorf("%w: %s is not a video", ErrUnsupportedMedia, contentType)
	}
	detected := mimetype.Detect(head)
	if !strings.HasPrefix(detected.String(), "video/") {
		return "", fmt.Errorf("%w: file content is %s", ErrUnsupportedMedia, detected.String())
	}
	return detected.String(), nil
}

// CheckTrim validates a trim window in seconds. A nil end means "to the end
// of the clip".
func CheckTrim(start float64, end *float64) error {
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return fmt.Errorf("%w: start time must be zero or positive", ErrInvalidInput)
	}
	if end != nil && (math.IsNaN(*end) || math.IsInf(*end, 0) || *end <= start) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	return nil
}

// Select validates and spools a clip, creating a job in the file-selected
// state. Nothing reaches the backend until Start.
func (s *UploadService) Select(ctx context.Context, filename, contentType string, body io.Reader) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if body == nil || strings.TrimSpace(filename) == "" {
		return Job{}, fmt.Errorf("%w: a video file is required", ErrInvalidInput)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Job{}, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return Job{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	mediaType, err := CheckMedia(contentType, head)
	if err != nil {
		return Job{}, err
	}

	spool, size, err := s.spool(io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		return Job{}, err
	}

	now := s.clock.Now()
	job := &Job{
		ID:        uuid.NewString(),
		State:     UploadFileSelected,
		Filename:  filename,
		MediaType: mediaType,
		Size:      size,
		Estimated: true,
		CreatedAt: now,
		UpdatedAt: now,
		spool:     spool,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.pruneLocked(job.ID, now)
	snapshot := *job
	s.mu.Unlock()

	s.log.Info().
		Str("job_id", job.ID).
		Str("filename", filename).
		Str("media_type", mediaType).
		Int64("size", size).
		Msg("video selected")
	return snapshot, nil
}

// Trim sets the analysis window of a selected clip.
func (s *UploadService) Trim(id string, start float64, end *float64) (Job, error) {
	if err := CheckTrim(start, end); err != nil {
		return Job{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: upload job %s", ErrNotFound, id)
	}
	if j.State != UploadFileSelected && j.State != UploadTrimming {
		return Job{}, fmt.Errorf("%w: job %s is %s", ErrInvalidInput, id, j.State)
	}
	j.State = UploadTrimming
	j.StartTime = start
	j.EndTime = end
	j.UpdatedAt = s.clock.Now()
	return *j, nil
}

// Start sends a selected or trimmed clip to the backend in the background.
func (s *UploadService) Start(id string, requiredGear []string) (Job, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: upload job %s", ErrNotFound, id)
	}
	if j.State != UploadFileSelected && j.State != UploadTrimming {
		s.mu.Unlock()
		return Job{}, fmt.Errorf("%w: job %s is %s", ErrInvalidInput, id, j.State)
	}
	j.State = UploadUploading
	j.Progress = 0
	j.UpdatedAt = s.clock.Now()
	snapshot := *j
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer os.Remove(snapshot.spool)
		s.process(snapshot, requiredGear)
	}()
	return snapshot, nil
}

// Discard drops a job that has not been started and removes its spool file.
func (s *UploadService) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: upload job %s", ErrNotFound, id)
	}
	if j.State == UploadUploading {
		return fmt.Errorf("%w: job %s is already uploading", ErrInvalidInput, id)
	}
	if j.spool != "" && !j.Done() {
		os.Remove(j.spool)
	}
	delete(s.jobs, id)
	return nil
}

// Submit runs select, trim and start in one go.
func (s *UploadService) Submit(ctx context.Context, req UploadRequest) (Job, error) {
	if err := CheckTrim(req.StartTime, req.EndTime); err != nil {
		return Job{}, err
	}
	job, err := s.Select(ctx, req.Filename, req.ContentType, req.Body)
	if err != nil {
		return Job{}, err
	}
	if req.StartTime != 0 || req.EndTime != nil {
		if _, err := s.Trim(job.ID, req.StartTime, req.EndTime); err != nil {
			_ = s.Discard(job.ID)
			return Job{}, err
		}
	}
	return s.Start(job.ID, req.RequiredGear)
}

func (s *UploadService) spool(r io.Reader) (string, int64, error) {
	f, err := os.CreateTemp(s.dir, "ppe-upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to spool upload: %w", err)
	}
	defer f.Close()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	size, err := io.Copy(f, src)
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("failed to spool upload: %w", err)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxBytes)
	}
	return f.Name(), size, nil
}

func (s *UploadService) process(job Job, requiredGear []string) {
	ctx := s.ctx
	id := job.ID
	progress := poller.Go(ctx, func(ctx context.Context) { s.estimate(ctx, id) })

	f, err := os.Open(job.spool)
	if err != nil {
		progress.Stop()
		s.fail(id, fmt.Errorf("failed to reopen upload: %w", err))
		return
	}
	res, err := s.api.Videos.Analyze(ctx, backend.VideoUpload{
		Filename:     job.Filename,
		ContentType:  job.MediaType,
		Body:         f,
		StartTime:    job.StartTime,
		EndTime:      job.EndTime,
		RequiredGear: requiredGear,
	})
	f.Close()
	progress.Stop()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job_id", id).
			Msg("video analysis failed")
		s.fail(id, err)
		return
	}

	archiveURL := s.archive(ctx, id, job.spool, job.MediaType, job.Filename)

	s.update(id, func(j *Job) {
		j.State = UploadResult
		j.Progress = 100
		j.Result = &res.Data
		j.VideoURL = s.api.Videos.StaticURL(res.Data.VideoURL)
		j.ArchiveURL = archiveURL
	})
	s.log.Info().
		Str("job_id", id).
		Int("total_frames", res.Data.TotalFrames).
		Int("detections", len(res.Data.Logs)).
		Msg("video analysis complete")
}

func (s *UploadService) archive(ctx context.Context, id, spool, mediaType, filename string) string {
	if s.archiver == nil {
		return ""
	}
	f, err := os.Open(spool)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", id).Msg("failed to reopen upload for archive")
		return ""
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", id).Msg("failed to stat upload for archive")
		return ""
	}

	url, err := s.archiver.Put(ctx, storage.Key(id, filename, s.clock.Now()), f, info.Size(), mediaType)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", id).Msg("failed to archive upload")
		return ""
	}
	return url
}

func (s *UploadService) estimate(ctx context.Context, id string) {
	ticker := s.clock.Ticker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.update(id, func(j *Job) {
				if j.State == UploadUploading {
					j.Progress = min(j.Progress+progressStep, progressCap)
				}
			})
		}
	}
}

func (s *UploadService) fail(id string, err error) {
	s.update(id, func(j *Job) {
		j.State = UploadError
		j.Error = err.Error()
	})
}

func (s *UploadService) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
		j.UpdatedAt = s.clock.Now()
	}
}

func (s *UploadService) Job(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: upload job %s", ErrNotFound, id)
	}
	return *j, nil
}

// State reports where a job is; unknown ids are empty.
func (s *UploadService) State(id string) UploadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.jobs[id]; ok {
		return j.State
	}
	return UploadEmpty
}

// Jobs lists tracked jobs, newest first.
func (s *UploadService) Jobs() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// pruneLocked expires pending jobs idle past pendingTTL, then drops the
// oldest finished or pending jobs until at most maxJobs are held. Uploading
// jobs and keep are never dropped. Dropped pending jobs lose their spool file.
func (s *UploadService) pruneLocked(keep string, now time.Time) {
	for id, j := range s.jobs {
		if id != keep && j.pending() && now.Sub(j.UpdatedAt) > pendingTTL {
			s.dropLocked(j)
		}
	}
	if len(s.jobs) <= maxJobs {
		return
	}

	victims := make([]*Job, 0, len(s.jobs))
	for id, j := range s.jobs {
		if id != keep && (j.Done() || j.pending()) {
			victims = append(victims, j)
		}
	}
	// Finished jobs go first, oldest first within each group.
	sort.Slice(victims, func(i, k int) bool {
		if victims[i].Done() != victims[k].Done() {
			return victims[i].Done()
		}
		return victims[i].UpdatedAt.Before(victims[k].UpdatedAt)
	})
	for _, j := range victims {
		if len(s.jobs) <= maxJobs {
			return
		}
		s.dropLocked(j)
	}
}

func (s *UploadService) dropLocked(j *Job) {
	if j.pending() && j.spool != "" {
		os.Remove(j.spool)
		s.log.Debug().Str("job_id", j.ID).Msg("expired pending upload")
	}
	delete(s.jobs, j.ID)
}

// Close cancels running analyses and waits for them to finish.
func (s *UploadService) Close() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.pending() {
			os.Remove(j.spool)
		}
	}
}
