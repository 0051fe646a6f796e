package view

import (
	"fmt"
	"math"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/poller"
)

const (
	StatusOperational = "operational"
	StatusWarning     = "warning"
	StatusError       = "error"
	StatusLoading     = "loading"
)

type StatusInput struct {
	Monitor    safety.MonitorStatus
	Threshold  safety.ThresholdSettings
	Origin     backend.Origin
	State      poller.State
	BackendURL string
}

// SystemItems builds the four-line health panel. Anything not served live
// by the backend is shown as a warning.
func SystemItems(in StatusInput) []safety.SystemItem {
	switch {
	case in.Origin == "" && in.State != poller.StateError:
		return []safety.SystemItem{
			{Name: "Backend Server", Status: StatusLoading, Detail: "Checking connection..."},
			{Name: "AI Model", Status: StatusLoading, Detail: "Checking status..."},
			{Name: "Video Stream", Status: StatusLoading, Detail: "Checking feed..."},
			{Name: "Monitoring", Status: StatusLoading, Detail: "Checking status..."},
		}
	case in.State == poller.StateError:
		return []safety.SystemItem{
			{Name: "Backend Server", Status: StatusError, Detail: "Unreachable"},
			{Name: "AI Model", Status: StatusWarning, Detail: "Unknown"},
			{Name: "Video Stream", Status: StatusWarning, Detail: "Backend required"},
			{Name: "Monitoring", Status: StatusWarning, Detail: "Start backend to enable"},
		}
	case in.Origin == backend.OriginMock:
		return []safety.SystemItem{
			{Name: "Backend Server", Status: StatusWarning, Detail: "Using mock data"},
			{Name: "AI Model", Status: StatusOperational, Detail: "Ready (offline mode)"},
			{Name: "Video Stream", Status: StatusWarning, Detail: "Backend required"},
			{Name: "Monitoring", Status: StatusWarning, Detail: "Start backend to enable"},
		}
	}

	backendItem := safety.SystemItem{Name: "Backend Server", Status: StatusOperational, Detail: "Connected to " + in.BackendURL}
	streamItem := safety.SystemItem{Name: "Video Stream", Status: StatusOperational, Detail: "MJPEG feed available"}
	if in.Origin == backend.OriginCache {
		backendItem = safety.SystemItem{Name: "Backend Server", Status: StatusWarning, Detail: "Serving cached data"}
		streamItem = safety.SystemItem{Name: "Video Stream", Status: StatusWarning, Detail: "Backend required"}
	}

	monitorItem := safety.SystemItem{Name: "Monitoring", Status: StatusWarning, Detail: "Paused"}
	if in.Monitor.Active {
		monitorItem = safety.SystemItem{Name: "Monitoring", Status: StatusOperational, Detail: "Detection active"}
	}

	return []safety.SystemItem{
		backendItem,
		{Name: "AI Model", Status: StatusOperational, Detail: fmt.Sprintf("Confidence: %d%%", int(math.Round(in.Threshold.Conf*100)))},
		streamItem,
		monitorItem,
	}
}
