package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppe-dashboard/internal/domain/safety"
)

func newTestAPI(t *testing.T, baseURL string, policy Policy) (*API, *Client) {
	t.Helper()
	c := NewClient(Options{
		BaseURL:       baseURL,
		Timeout:       2 * time.Second,
		UploadTimeout: 5 * time.Second,
		Policy:        policy,
	}, NewHTTPTransport(baseURL, nil), zerolog.Nop())
	c.transport.(*FallbackTransport).now = func() time.Time { return fixedNow }
	return NewAPI(c), c
}

// deadBackend returns a base URL nothing listens on.
func deadBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

var mockPolicy = Policy{Mode: FallbackMock, Methods: []string{http.MethodGet}}

func TestClientFallsBackToMockData(t *testing.T) {
	api, _ := newTestAPI(t, deadBackend(t), mockPolicy)
	ctx := context.Background()

	stats, err := api.Stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, OriginMock, stats.Origin)
	assert.False(t, stats.Live())
	assert.Equal(t, 4, stats.Data.TotalViolations)
	require.NotNil(t, stats.Data.ComplianceRate)
	assert.InDelta(t, 87.5, *stats.Data.ComplianceRate, 0.001)

	logs, err := api.Logs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, mockLogs(fixedNow), logs.Data)

	cams, err := api.Cameras.List(ctx)
	require.NoError(t, err)
	require.Len(t, cams.Data, 3)
	assert.Equal(t, "cam1", cams.Data[0].ID)
}

func TestClientStatusErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	th, err := api.Settings.Threshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginMock, th.Origin)
	assert.InDelta(t, 0.5, th.Data.Conf, 0.001)
}

func TestClientActionsSurfaceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	_, err := api.Monitor.Toggle(context.Background(), true)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, "/api/monitor/toggle", statusErr.Path)
}

func TestClientRejectsMalformedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/logs":
			_, _ = io.WriteString(w, `{"logs":[{"id":1,"status":"SAFE","missing":["mask"],"timestamp":"2024-01-01T00:00:00Z"}]}`)
		case "/api/stats":
			_, _ = io.WriteString(w, `{"total_violations":"four"}`)
		}
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)

	_, err := api.Logs.List(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "/api/logs", verr.Path)

	_, err = api.Stats.Get(context.Background())
	require.ErrorAs(t, err, &verr)
}

func TestClientStatsWithoutComplianceRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total_violations":0}`)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	stats, err := api.Stats.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Live())
	assert.Nil(t, stats.Data.ComplianceRate)
}

func TestThresholdRoundTrip(t *testing.T) {
	var mu sync.Mutex
	conf := 0.5
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodPost {
			var body safety.ThresholdSettings
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			conf = body.Conf
			_ = json.NewEncoder(w).Encode(safety.ThresholdUpdate{Status: "updated", NewConf: conf})
			return
		}
		_ = json.NewEncoder(w).Encode(safety.ThresholdSettings{Conf: conf})
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	ctx := context.Background()
	for _, v := range []float64{0.1, 0.35, 0.72, 1.0} {
		upd, err := api.Settings.SetThreshold(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, v, upd.Data.NewConf)

		got, err := api.Settings.Threshold(ctx)
		require.NoError(t, err)
		assert.Equal(t, v, got.Data.Conf)
	}
}

func TestLogsSearchQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RequestURI()
		_, _ = io.WriteString(w, `{"logs":[]}`)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	_, err := api.Logs.Search(context.Background(), LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, "/api/logs/search", got)

	_, err = api.Logs.Search(context.Background(), LogFilter{Severity: "critical", StartDate: "2024-01-01", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, "/api/logs/search?page=2&severity=critical&start=2024-01-01", got)
}

func TestAnalyticsRejectsUnknownRange(t *testing.T) {
	api, _ := newTestAPI(t, deadBackend(t), mockPolicy)
	_, err := api.Analytics.ViolationsTrend(context.Background(), "1year")
	assert.ErrorIs(t, err, ErrInvalidRange)

	trend, err := api.Analytics.ViolationsTrend(context.Background(), "7days")
	require.NoError(t, err)
	assert.Len(t, trend.Data, 7)
}

func TestDashboardViolationsAcceptsBothShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"id":"v1","severity":"critical","description":"Missing hard hat"}]`},
		{"wrapped", `{"violations":[{"id":"v1","severity":"critical","description":"Missing hard hat"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "3", r.URL.Query().Get("limit"))
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			api, _ := newTestAPI(t, srv.URL, mockPolicy)
			got, err := api.Dashboard.Violations(context.Background(), 3)
			require.NoError(t, err)
			require.Len(t, got.Data, 1)
			assert.Equal(t, safety.SeverityCritical, got.Data[0].Severity)
		})
	}
}

func TestCameraCreateDropsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasID := body["id"]
		assert.False(t, hasID)
		_, _ = io.WriteString(w, `{"status":"added","camera":{"id":"cam9","name":"Dock","source":"rtsp://dock","type":"ip"}}`)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	res, err := api.Cameras.Create(context.Background(), safety.CameraConfig{ID: "pending-1", Name: "Dock", Source: "rtsp://dock", Type: safety.CameraIP})
	require.NoError(t, err)
	assert.Equal(t, "cam9", res.Data.Camera.ID)
}

func TestAnalyzeVideoSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze_video", r.URL.Path)
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)

		fields := map[string]string{}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(part)
			if part.FormName() == "file" {
				assert.Equal(t, "clip.mp4", part.FileName())
			}
			fields[part.FormName()] = string(data)
		}
		assert.Equal(t, "frames", fields["file"])
		assert.Equal(t, "1.5", fields["start_time"])
		assert.Equal(t, "9", fields["end_time"])
		assert.JSONEq(t, `["mask","gloves"]`, fields["required_gear"])

		_, _ = io.WriteString(w, `{"status":"success","video_url":"/static/out.mp4","total_frames":120,"logs":[]}`)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	end := 9.0
	res, err := api.Videos.Analyze(context.Background(), VideoUpload{
		Filename:     "clip.mp4",
		ContentType:  "video/mp4",
		Body:         strings.NewReader("frames"),
		StartTime:    1.5,
		EndTime:      &end,
		RequiredGear: []string{"mask", "gloves"},
	})
	require.NoError(t, err)
	assert.Equal(t, 120, res.Data.TotalFrames)
	assert.Equal(t, srv.URL+"/static/out.mp4", api.Videos.StaticURL(res.Data.VideoURL))
}

func TestAnalyzeVideoPropagatesFailure(t *testing.T) {
	api, _ := newTestAPI(t, deadBackend(t), mockPolicy)
	_, err := api.Videos.Analyze(context.Background(), VideoUpload{
		Filename: "clip.mp4",
		Body:     strings.NewReader("frames"),
	})
	require.Error(t, err)
}

func TestHTTPTransportRejectsAbsolutePath(t *testing.T) {
	tr := NewHTTPTransport("http://localhost:1", nil)
	_, err := tr.Do(context.Background(), &Request{Path: "//evil.example/api"})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestClientSlowBackendFallsBackAfterTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Options{
		BaseURL: srv.URL,
		Timeout: 100 * time.Millisecond,
		Policy:  mockPolicy,
	}, NewHTTPTransport(srv.URL, nil), zerolog.Nop())
	api := NewAPI(c)

	start := time.Now()
	stats, err := api.Stats.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginMock, stats.Origin)
	assert.Equal(t, 4, stats.Data.TotalViolations)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientCallerCancelSkipsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := api.Stats.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogsSearchDerivesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"logs":[
			{"id":7,"person_id":1,"timestamp":"2024-01-01T00:00:00","detected":["mask"],"missing":["gloves"],"source":"Camera 1","confidence":0.8},
			{"id":8,"person_id":2,"timestamp":"2024-01-01T00:00:05","detected":["mask","gloves"],"missing":[],"source":"Camera 2","confidence":0.9}
		]}`)
	}))
	defer srv.Close()

	api, _ := newTestAPI(t, srv.URL, mockPolicy)
	res, err := api.Logs.Search(context.Background(), LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, OriginLive, res.Origin)
	require.Len(t, res.Data.Logs, 2)
	assert.Equal(t, safety.StatusViolation, res.Data.Logs[0].Status)
	assert.Equal(t, safety.StatusSafe, res.Data.Logs[1].Status)
	require.NotNil(t, res.Data.Logs[0].PersonID)
	assert.Equal(t, 1, *res.Data.Logs[0].PersonID)
}
