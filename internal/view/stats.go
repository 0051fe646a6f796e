package view

import (
	"fmt"
	"math"
	"strconv"

	"ppe-dashboard/internal/domain/safety"
)

const defaultCompliance = 100.0

type StatCard struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Change string `json:"change,omitempty"`
	Tone   string `json:"tone"`
}

// ComplianceRate is the backend rate or 100 when the backend left it out.
func ComplianceRate(stats safety.StatsSummary) float64 {
	if stats.ComplianceRate == nil {
		return defaultCompliance
	}
	return *stats.ComplianceRate
}

func FormatPercent(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64) + "%"
}

func StatCards(stats safety.StatsSummary, cameras []safety.CameraConfig, logs []safety.DetectionLog) []StatCard {
	online := 0
	for _, c := range cameras {
		if c.Online == nil || *c.Online {
			online++
		}
	}
	camTone, camChange := "positive", "All operational"
	if online < len(cameras) {
		camTone, camChange = "negative", fmt.Sprintf("%d offline", len(cameras)-online)
	}

	return []StatCard{
		{
			Key:   "active_violations",
			Label: "Active Violations",
			Value: strconv.Itoa(stats.TotalViolations),
			Tone:  toneFor(stats.TotalViolations == 0),
		},
		{
			Key:    "cameras_online",
			Label:  "Cameras Online",
			Value:  fmt.Sprintf("%d/%d", online, len(cameras)),
			Change: camChange,
			Tone:   camTone,
		},
		{
			Key:   "compliance",
			Label: "Compliance Score",
			Value: FormatPercent(ComplianceRate(stats)),
			Tone:  toneFor(ComplianceRate(stats) >= 90),
		},
		{
			Key:    "recent_detections",
			Label:  "Recent Detections",
			Value:  strconv.Itoa(len(logs)),
			Change: "Across all cameras",
			Tone:   "neutral",
		},
	}
}

func toneFor(good bool) string {
	if good {
		return "positive"
	}
	return "negative"
}
