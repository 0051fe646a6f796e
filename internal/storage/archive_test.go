package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppe-dashboard/internal/config"
)

func TestNewArchiveNotConfigured(t *testing.T) {
	_, err := NewArchive(config.StorageConfig{Endpoint: "http://localhost:9000"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	var a *Archive
	_, err = a.Put(context.Background(), "k", strings.NewReader("x"), 1, "video/mp4")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "clip.mp4", "uploads/2024/03/09/job1/clip.mp4"},
		{"nested", "../../etc/clip.mp4", "uploads/2024/03/09/job1/clip.mp4"},
		{"windows", `C:\videos\shift.webm`, "uploads/2024/03/09/job1/shift.webm"},
		{"empty", "", "uploads/2024/03/09/job1/video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key("job1", tt.filename, at))
		})
	}
}

func TestPutSendsObject(t *testing.T) {
	var gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := NewArchive(config.StorageConfig{
		Endpoint:      srv.URL,
		AccessKey:     "key",
		SecretKey:     "secret",
		Bucket:        "clips",
		PublicBaseURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)

	url, err := a.Put(context.Background(), "uploads/job1/clip.mp4", strings.NewReader("frames"), 6, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/clips/uploads/job1/clip.mp4", url)
	assert.Equal(t, "/clips/uploads/job1/clip.mp4", gotPath)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, "frames", gotBody)
}
