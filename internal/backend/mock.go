package backend

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ppe-dashboard/internal/domain/safety"
)

// MockPayload returns the canned body served for path when the backend is
// unreachable. Unknown paths get an empty object.
func MockPayload(path string, now time.Time) []byte {
	body, err := json.Marshal(mockValue(path, now))
	if err != nil {
		return []byte("{}")
	}
	return body
}

func mockValue(path string, now time.Time) any {
	endpoint, query := splitPath(path)
	ago := func(minutes int) string {
		return now.Add(-time.Duration(minutes) * time.Minute).UTC().Format(time.RFC3339)
	}

	switch endpoint {
	case "/api/dashboard/summary", "/api/stats":
		return map[string]any{
			"activeViolations":    4,
			"camerasOnline":       8,
			"complianceScore":     87.5,
			"averageResponseTime": 2.3,
			"total_violations":    4,
			"compliance_rate":     87.5,
		}
	case "/api/dashboard/violations":
		return mockViolations(now, query)
	case "/api/dashboard/system-status":
		return []safety.SystemItem{
			{Name: "Backend Server", Status: "warning", Detail: "Using mock data"},
			{Name: "AI Model", Status: "operational", Detail: "Ready (offline mode)"},
			{Name: "Video Stream", Status: "warning", Detail: "Backend required"},
			{Name: "Monitoring", Status: "warning", Detail: "Start backend to enable"},
		}
	case "/api/dashboard/activity":
		return []safety.ActivityItem{
			{ID: "a1", Type: "violation", Message: "Missing mask detected on Camera 1", Timestamp: ago(2)},
			{ID: "a2", Type: "resolution", Message: "Camera 3 violation resolved", Timestamp: ago(10)},
			{ID: "a3", Type: "system", Message: "Detection model reloaded", Timestamp: ago(30)},
		}
	case "/api/cameras", "/api/monitor/cameras":
		online := true
		return []safety.CameraConfig{
			{ID: "cam1", Name: "Warehouse Entrance", Location: "Main Gate", Online: &online, Zone: "General", Source: "0", Type: safety.CameraWebcam},
			{ID: "cam2", Name: "Assembly Line A", Location: "Floor 1", Online: &online, Violations: 2, Zone: "General", Source: "1", Type: safety.CameraWebcam},
			{ID: "cam3", Name: "Assembly Line B", Location: "Floor 1", Online: &online, Violations: 1, Zone: "Production", Source: "2", Type: safety.CameraWebcam},
		}
	case "/api/logs", "/api/logs/search":
		return mockLogs(now)
	case "/api/monitor/status":
		return safety.MonitorStatus{Active: false}
	case "/api/settings/threshold":
		return safety.ThresholdSettings{Conf: 0.50}
	case "/api/settings/gear":
		return safety.GearSettings{Requirements: []string{"mask", "gloves", "coverall", "goggles", "face_shield"}}
	case "/api/analytics/summary":
		return safety.AnalyticsSummary{
			TotalViolations:     342,
			AverageResponseTime: 2.3,
			SystemUptime:        99.8,
			ComplianceScore:     87.5,
			Detected:            map[string]int{"Mask": 124, "Gloves": 98, "Goggles": 76, "Coverall": 45, "Face Shield": 30},
			Missing:             map[string]int{"Mask": 42, "Gloves": 35, "Goggles": 56, "Coverall": 88, "Face Shield": 62},
		}
	case "/api/analytics/violations-trend":
		return []safety.TrendPoint{
			{Date: "Mon", Violations: 12}, {Date: "Tue", Violations: 15}, {Date: "Wed", Violations: 8},
			{Date: "Thu", Violations: 18}, {Date: "Fri", Violations: 14}, {Date: "Sat", Violations: 5},
			{Date: "Sun", Violations: 3},
		}
	case "/api/analytics/compliance-score":
		return []safety.ScorePoint{
			{Date: "Mon", Score: 85}, {Date: "Tue", Score: 84}, {Date: "Wed", Score: 88},
			{Date: "Thu", Score: 86}, {Date: "Fri", Score: 87}, {Date: "Sat", Score: 90},
			{Date: "Sun", Score: 92},
		}
	case "/api/analytics/violations-by-type":
		return []safety.TypeCount{
			{Type: "PPE Violations", Count: 185},
			{Type: "Posture Issues", Count: 98},
			{Type: "Hazard Access", Count: 59},
		}
	case "/api/analytics/camera-performance":
		return []safety.CameraPerformance{
			{Camera: "Cam 1", Violations: 25, Uptime: 99.8, Efficiency: 92},
			{Camera: "Cam 2", Violations: 45, Uptime: 99.5, Efficiency: 88},
			{Camera: "Cam 3", Violations: 38, Uptime: 99.9, Efficiency: 90},
			{Camera: "Cam 5", Violations: 52, Uptime: 99.2, Efficiency: 85},
			{Camera: "Cam 6", Violations: 18, Uptime: 99.9, Efficiency: 94},
		}
	case "/api/videos/history":
		return safety.VideoHistory{History: []safety.VideoHistoryItem{}}
	}

	switch {
	case strings.Contains(endpoint, "history"), strings.Contains(endpoint, "logs"):
		return map[string]any{"logs": []any{}, "history": []any{}}
	case strings.Contains(endpoint, "activity"), strings.Contains(endpoint, "trend"), strings.Contains(endpoint, "cameras"):
		return []any{}
	}
	return map[string]any{}
}

func mockLogs(now time.Time) safety.LogList {
	ago := func(minutes int) string {
		return now.Add(-time.Duration(minutes) * time.Minute).UTC().Format(time.RFC3339)
	}
	return safety.LogList{
		Logs: []safety.DetectionLog{
			{ID: 1, Status: safety.StatusViolation, Missing: []string{"mask", "gloves"}, Detected: []string{"coverall"}, Timestamp: ago(2), Source: "Camera 1"},
			{ID: 2, Status: safety.StatusViolation, Missing: []string{"goggles"}, Detected: []string{"mask", "gloves"}, Timestamp: ago(8), Source: "Camera 3"},
			{ID: 3, Status: safety.StatusSafe, Missing: []string{}, Detected: []string{"mask", "gloves", "coverall", "goggles"}, Timestamp: ago(18), Source: "Camera 5"},
		},
		Total: 127,
		Page:  1,
	}
}

func mockViolations(now time.Time, query url.Values) []safety.Violation {
	ago := func(minutes int) string {
		return now.Add(-time.Duration(minutes) * time.Minute).UTC().Format(time.RFC3339)
	}
	all := []safety.Violation{
		{ID: "v1", Timestamp: ago(5), Type: "ppe", Severity: safety.SeverityCritical, Camera: "Camera 1", Person: "Worker ID: 001", Description: "Missing hard hat", Confidence: 0.98},
		{ID: "v2", Timestamp: ago(15), Type: "ppe", Severity: safety.SeverityWarning, Camera: "Camera 3", Person: "Worker ID: 045", Description: "Missing safety goggles", Confidence: 0.92},
		{ID: "v3", Timestamp: ago(25), Type: "posture", Severity: safety.SeverityWarning, Camera: "Camera 5", Person: "Worker ID: 028", Description: "Improper lifting posture", Confidence: 0.85},
		{ID: "v4", Timestamp: ago(45), Type: "hazard", Severity: safety.SeverityInfo, Camera: "Camera 2", Person: "Worker ID: 012", Description: "Hazardous area access", Confidence: 0.88},
	}

	limit := 5
	if raw := query.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			limit = n
		}
	}
	if limit < len(all) {
		return all[:limit]
	}
	return all
}

func splitPath(path string) (string, url.Values) {
	endpoint, rawQuery, _ := strings.Cut(path, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	return endpoint, query
}
