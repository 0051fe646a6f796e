package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/service"
	"ppe-dashboard/internal/view"
)

const (
	colorGreen   = "#50FA7B"
	colorYellow  = "#F1FA8C"
	colorRed     = "#FF5555"
	colorComment = "#6272A4"
	colorCyan    = "#8BE9FD"
)

type checkStyles struct {
	title, name, detail, ok, warn, fail lipgloss.Style
}

func newCheckStyles() checkStyles {
	return checkStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorCyan)),
		name: lipgloss.NewStyle().
			Width(16).
			Bold(true),
		detail: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorComment)),
		ok:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		warn: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		fail: lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
	}
}

// check runs one status probe against the backend without any fallback, so
// the result reflects the live backend only.
func check(ctx context.Context, cmd *cli.Command) error {
	cfg, appLogger, err := setup(cmd)
	if err != nil {
		return err
	}

	api := newAPI(cfg, backend.Policy{Mode: backend.FallbackOff}, nil, appLogger)
	session := service.NewSession(api, service.SessionConfig{}, appLogger)
	snap, fetchErr := session.Status.Fetch(ctx)

	items := view.SystemItems(view.StatusInput{
		Monitor:    snap.Data.Monitor,
		Threshold:  snap.Data.Threshold,
		Origin:     snap.Origin,
		State:      snap.State,
		BackendURL: cfg.Backend.BaseURL,
	})

	fmt.Println(renderStatus(newCheckStyles(), cfg.Backend.BaseURL, items))

	if fetchErr != nil || hasError(items) {
		if fetchErr != nil {
			appLogger.Debug().Err(fetchErr).Msg("status probe failed")
		}
		return cli.Exit("backend unreachable", 1)
	}
	return nil
}

func renderStatus(styles checkStyles, baseURL string, items []safety.SystemItem) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("System status  " + baseURL))
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString(styles.name.Render(item.Name))
		b.WriteString(statusStyle(styles, item.Status).Render(fmt.Sprintf("%-12s", item.Status)))
		b.WriteString(styles.detail.Render(item.Detail))
		b.WriteString("\n")
	}
	return b.String()
}

func statusStyle(styles checkStyles, status string) lipgloss.Style {
	switch status {
	case view.StatusOperational:
		return styles.ok
	case view.StatusError:
		return styles.fail
	default:
		return styles.warn
	}
}

func hasError(items []safety.SystemItem) bool {
	for _, item := range items {
		if item.Status == view.StatusError {
			return true
		}
	}
	return false
}
