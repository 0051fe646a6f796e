package safety

import "encoding/json"

type Status string

const (
	StatusSafe      Status = "SAFE"
	StatusViolation Status = "VIOLATION"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

type CameraType string

const (
	CameraWebcam CameraType = "webcam"
	CameraIP     CameraType = "ip"
)

// DetectionLog is one inference result for a monitored subject.
// Missing must be empty when Status is SAFE.
type DetectionLog struct {
	ID         int      `json:"id"`
	Status     Status   `json:"status" validate:"required,oneof=SAFE VIOLATION"`
	Missing    []string `json:"missing" validate:"dive,required"`
	Detected   []string `json:"detected" validate:"dive,required"`
	Timestamp  string   `json:"timestamp" validate:"required"`
	Source     string   `json:"source"`
	PersonID   *int     `json:"person_id,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// UnmarshalJSON fills in Status from Missing when the row omits it, as the
// search endpoint does.
func (l *DetectionLog) UnmarshalJSON(data []byte) error {
	type plain DetectionLog
	var row plain
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if row.Status == "" {
		row.Status = StatusSafe
		if len(row.Missing) > 0 {
			row.Status = StatusViolation
		}
	}
	*l = DetectionLog(row)
	return nil
}

type LogList struct {
	Logs  []DetectionLog `json:"logs" validate:"dive"`
	Total int            `json:"total,omitempty"`
	Page  int            `json:"page,omitempty"`
}

// StatsSummary is a point-in-time snapshot computed by the backend.
// ComplianceRate is optional on the wire.
type StatsSummary struct {
	TotalViolations int      `json:"total_violations" validate:"gte=0"`
	ComplianceRate  *float64 `json:"compliance_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type CameraConfig struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name" validate:"required"`
	Source     string     `json:"source" validate:"required"`
	Type       CameraType `json:"type" validate:"required,oneof=webcam ip"`
	Zone       string     `json:"zone,omitempty"`
	Location   string     `json:"location,omitempty"`
	Online     *bool      `json:"online,omitempty"`
	Violations int        `json:"violations,omitempty"`
}

type CameraCreated struct {
	Status string       `json:"status"`
	Camera CameraConfig `json:"camera"`
}

type MonitorStatus struct {
	Active bool `json:"active"`
}

type ToggleResult struct {
	Status string `json:"status"`
	Active bool   `json:"active"`
}

type ThresholdSettings struct {
	Conf float64 `json:"conf" validate:"gte=0.1,lte=1"`
}

type ThresholdUpdate struct {
	Status  string  `json:"status"`
	NewConf float64 `json:"new_conf"`
}

type GearSettings struct {
	Requirements []string `json:"requirements" validate:"dive,required"`
}

type GearUpdate struct {
	Status string   `json:"status"`
	Active []string `json:"active"`
}

type StatusReply struct {
	Status string `json:"status"`
}

type VideoAnalysisResult struct {
	Status      string         `json:"status" validate:"required"`
	VideoURL    string         `json:"video_url"`
	TotalFrames int            `json:"total_frames" validate:"gte=0"`
	Logs        []DetectionLog `json:"logs" validate:"dive"`
}

type VideoHistoryItem struct {
	Filename        string `json:"filename" validate:"required"`
	URL             string `json:"url" validate:"required"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	Timestamp       int64  `json:"timestamp"`
	Violations      int    `json:"violations" validate:"gte=0"`
	TotalDetections int    `json:"total_detections" validate:"gte=0"`
}

type VideoHistory struct {
	History []VideoHistoryItem `json:"history" validate:"dive"`
}

type AnalyticsSummary struct {
	TotalViolations     int            `json:"totalViolations"`
	AverageResponseTime float64        `json:"averageResponseTime"`
	SystemUptime        float64        `json:"systemUptime"`
	ComplianceScore     float64        `json:"complianceScore"`
	Detected            map[string]int `json:"detected"`
	Missing             map[string]int `json:"missing"`
}

type TrendPoint struct {
	Date       string `json:"date" validate:"required"`
	Violations int    `json:"violations" validate:"gte=0"`
}

type ScorePoint struct {
	Date  string  `json:"date" validate:"required"`
	Score float64 `json:"score" validate:"gte=0,lte=100"`
}

type TypeCount struct {
	Type  string `json:"type" validate:"required"`
	Count int    `json:"count" validate:"gte=0"`
}

type CameraPerformance struct {
	Camera     string  `json:"camera" validate:"required"`
	Violations int     `json:"violations" validate:"gte=0"`
	Uptime     float64 `json:"uptime"`
	Efficiency float64 `json:"efficiency"`
}

type DashboardSummary struct {
	ActiveViolations    int     `json:"activeViolations"`
	CamerasOnline       int     `json:"camerasOnline"`
	ComplianceScore     float64 `json:"complianceScore"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}

type Violation struct {
	ID          string   `json:"id"`
	Timestamp   string   `json:"timestamp"`
	Type        string   `json:"type"`
	Severity    Severity `json:"severity" validate:"omitempty,oneof=critical warning info"`
	Camera      string   `json:"camera"`
	Person      string   `json:"person,omitempty"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
}

type SystemItem struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

type ActivityItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
