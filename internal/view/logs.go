// Package view turns backend data into what the dashboard pages display.
package view

import (
	"fmt"
	"strings"
	"time"

	"ppe-dashboard/internal/domain/safety"
)

// Severity is the single rule used by every page: a safe log is info, one
// missing item is a warning, two or more are critical.
func Severity(log safety.DetectionLog) safety.Severity {
	if log.Status == safety.StatusSafe {
		return safety.SeverityInfo
	}
	switch n := len(log.Missing); {
	case n >= 2:
		return safety.SeverityCritical
	case n == 1:
		return safety.SeverityWarning
	default:
		return safety.SeverityInfo
	}
}

func Description(log safety.DetectionLog) string {
	if len(log.Missing) == 0 {
		return "All PPE present"
	}
	return "Missing " + strings.Join(log.Missing, ", ")
}

type LogRow struct {
	ID          int             `json:"id"`
	Timestamp   string          `json:"timestamp"`
	When        string          `json:"when"`
	Status      safety.Status   `json:"status"`
	Severity    safety.Severity `json:"severity"`
	Camera      string          `json:"camera"`
	Confidence  string          `json:"confidence"`
	Description string          `json:"description"`
	Missing     []string        `json:"missing"`
	Detected    []string        `json:"detected"`
}

func NewLogRow(log safety.DetectionLog, now time.Time) LogRow {
	confidence := "-"
	if log.Confidence != nil {
		confidence = fmt.Sprintf("%.1f%%", *log.Confidence*100)
	}
	source := log.Source
	if source == "" {
		source = "Unknown"
	}
	return LogRow{
		ID:          log.ID,
		Timestamp:   log.Timestamp,
		When:        RelativeTime(log.Timestamp, now),
		Status:      log.Status,
		Severity:    Severity(log),
		Camera:      source,
		Confidence:  confidence,
		Description: Description(log),
		Missing:     nonNil(log.Missing),
		Detected:    nonNil(log.Detected),
	}
}

func LogRows(logs []safety.DetectionLog, now time.Time) []LogRow {
	rows := make([]LogRow, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, NewLogRow(l, now))
	}
	return rows
}

// ViolationRows keeps only logs with a VIOLATION status.
func ViolationRows(logs []safety.DetectionLog, now time.Time) []LogRow {
	rows := make([]LogRow, 0, len(logs))
	for _, l := range logs {
		if l.Status == safety.StatusViolation {
			rows = append(rows, NewLogRow(l, now))
		}
	}
	return rows
}

// FilterRows applies the logs page filters locally. Empty or "all" values
// match everything.
func FilterRows(rows []LogRow, severity, camera string) []LogRow {
	match := func(want, got string) bool {
		return want == "" || want == "all" || strings.Contains(strings.ToLower(got), strings.ToLower(want))
	}
	out := make([]LogRow, 0, len(rows))
	for _, r := range rows {
		if severity != "" && severity != "all" && string(r.Severity) != severity {
			continue
		}
		if !match(camera, r.Camera) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
