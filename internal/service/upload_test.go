package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppe-dashboard/internal/poller/pollertest"
)

// mp4Header is the start of an ISO base media file with an isom brand.
var mp4Header = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isommp42"), bytes.Repeat([]byte{0}, 64)...)

type fakeArchiver struct {
	mu   sync.Mutex
	keys []string
	body []byte
}

func (a *fakeArchiver) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	a.body = data
	return "https://archive.example.com/" + key, nil
}

func newUploadService(t *testing.T, h http.Handler, opts UploadOptions) *UploadService {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	s := NewUploadService(newTestAPI(t, h, getOnly), opts, zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func waitDone(t *testing.T, s *UploadService, id string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = s.Job(id)
		return err == nil && job.Done()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestUploadRejectsNonVideoBeforeNetwork(t *testing.T) {
	var hits atomic.Int64
	s := newUploadService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), UploadOptions{})

	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{"declared text", "text/plain", []byte("hello")},
		{"declared image", "image/png", mp4Header},
		{"video type but text content", "video/mp4", []byte("just some notes, not a video")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Submit(context.Background(), UploadRequest{
				Filename:    "notes.txt",
				ContentType: tt.contentType,
				Body:        bytes.NewReader(tt.body),
			})
			assert.ErrorIs(t, err, ErrUnsupportedMedia)
		})
	}
	assert.Zero(t, hits.Load())
	assert.Empty(t, s.Jobs())
}

func TestUploadRejectsBadTrim(t *testing.T) {
	end := 2.0
	zero := 0.0
	tests := []struct {
		name  string
		start float64
		end   *float64
	}{
		{"negative start", -1, nil},
		{"end before start", 3, &end},
		{"end equals start", 0, &zero},
	}
	s := newUploadService(t, http.NotFoundHandler(), UploadOptions{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Submit(context.Background(), UploadRequest{
				Filename:    "clip.mp4",
				ContentType: "video/mp4",
				Body:        bytes.NewReader(mp4Header),
				StartTime:   tt.start,
				EndTime:     tt.end,
			})
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestUploadFlow(t *testing.T) {
	archive := &fakeArchiver{}
	var startTime string
	s := newUploadService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		startTime = r.FormValue("start_time")
		_, _ = io.WriteString(w, `{"status":"success","video_url":"/static/out.mp4","total_frames":42,"logs":[{"id":1,"status":"VIOLATION","missing":["mask"],"detected":[],"timestamp":"00:01","source":"upload"}]}`)
	}), UploadOptions{Archiver: archive})

	job, err := s.Select(context.Background(), "clip.mp4", "video/mp4", bytes.NewReader(mp4Header))
	require.NoError(t, err)
	assert.Equal(t, UploadFileSelected, job.State)
	assert.Equal(t, "video/mp4", job.MediaType)
	assert.True(t, job.Estimated)

	end := 12.5
	job, err = s.Trim(job.ID, 2, &end)
	require.NoError(t, err)
	assert.Equal(t, UploadTrimming, job.State)

	job, err = s.Start(job.ID, []string{"mask"})
	require.NoError(t, err)
	assert.Equal(t, UploadUploading, job.State)

	_, err = s.Start(job.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	done := waitDone(t, s, job.ID)
	assert.Equal(t, UploadResult, done.State)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.Result)
	assert.Equal(t, 42, done.Result.TotalFrames)
	assert.True(t, strings.HasSuffix(done.VideoURL, "/static/out.mp4"))
	assert.Contains(t, done.ArchiveURL, job.ID)
	assert.Equal(t, "2", startTime)
	assert.Equal(t, mp4Header, archive.body)

	_, statErr := os.Stat(job.spool)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUploadFailureIsSurfaced(t *testing.T) {
	s := newUploadService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}), UploadOptions{})

	job, err := s.Submit(context.Background(), UploadRequest{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Body:        bytes.NewReader(mp4Header),
	})
	require.NoError(t, err)

	done := waitDone(t, s, job.ID)
	assert.Equal(t, UploadError, done.State)
	assert.Contains(t, done.Error, "500")
	assert.Nil(t, done.Result)
}

func TestUploadEstimatedProgress(t *testing.T) {
	clock := pollertest.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	release := make(chan struct{})
	s := newUploadService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-release
		_, _ = io.WriteString(w, `{"status":"success","video_url":"/static/out.mp4","total_frames":1,"logs":[]}`)
	}), UploadOptions{Clock: clock})

	job, err := s.Submit(context.Background(), UploadRequest{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Body:        bytes.NewReader(mp4Header),
	})
	require.NoError(t, err)
	require.True(t, clock.WaitActive(500*time.Millisecond, 1, time.Second))

	for want := 10; want <= 90; want += 10 {
		clock.Advance(500 * time.Millisecond)
		require.Eventually(t, func() bool {
			j, _ := s.Job(job.ID)
			return j.Progress == want
		}, time.Second, time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		clock.Advance(500 * time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	j, _ := s.Job(job.ID)
	assert.Equal(t, 90, j.Progress)

	close(release)
	done := waitDone(t, s, job.ID)
	assert.Equal(t, 100, done.Progress)
}

func TestUploadTooLarge(t *testing.T) {
	s := newUploadService(t, http.NotFoundHandler(), UploadOptions{MaxBytes: 32})
	_, err := s.Select(context.Background(), "clip.mp4", "video/mp4", bytes.NewReader(mp4Header))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadDiscardAndState(t *testing.T) {
	s := newUploadService(t, http.NotFoundHandler(), UploadOptions{})
	job, err := s.Select(context.Background(), "clip.mp4", "", bytes.NewReader(mp4Header))
	require.NoError(t, err)
	assert.Equal(t, UploadFileSelected, s.State(job.ID))

	require.NoError(t, s.Discard(job.ID))
	assert.Equal(t, UploadEmpty, s.State(job.ID))
	_, err = s.Job(job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(job.spool)
	assert.True(t, os.IsNotExist(statErr))
}

func spoolFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestUploadPendingJobsAreBounded(t *testing.T) {
	dir := t.TempDir()
	s := newUploadService(t, http.NotFoundHandler(), UploadOptions{Dir: dir})

	var last Job
	for i := 0; i < maxJobs+20; i++ {
		job, err := s.Select(context.Background(), "clip.mp4", "video/mp4", bytes.NewReader(mp4Header))
		require.NoError(t, err)
		last = job
	}

	assert.Len(t, s.Jobs(), maxJobs)
	assert.Equal(t, maxJobs, spoolFiles(t, dir))
	_, err := s.Job(last.ID)
	assert.NoError(t, err)
}

func TestUploadIdlePendingJobExpires(t *testing.T) {
	dir := t.TempDir()
	clock := pollertest.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := newUploadService(t, http.NotFoundHandler(), UploadOptions{Dir: dir, Clock: clock})

	stale, err := s.Select(context.Background(), "old.mp4", "video/mp4", bytes.NewReader(mp4Header))
	require.NoError(t, err)
	clock.Advance(pendingTTL + time.Minute)

	fresh, err := s.Select(context.Background(), "new.mp4", "video/mp4", bytes.NewReader(mp4Header))
	require.NoError(t, err)

	_, err = s.Job(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Job(fresh.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, spoolFiles(t, dir))
}
