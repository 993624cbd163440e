package command

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/waypoint-go/internal/cli/output"
)

// ServerCommand returns the server subcommand group, which talks to a
// running waypoint-server.
func ServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Query a running server's admin API",
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: serverHealth,
			},
			{
				Name:   "stats",
				Usage:  "Show continuity metrics",
				Action: serverStats,
			},
			{
				Name:  "reset-metrics",
				Usage: "Reset continuity metrics",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Skip confirmation",
					},
				},
				Action: serverResetMetrics,
			},
		},
	}
}

type healthStatus struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Time           string `json:"time"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ActiveSessions int    `json:"active_sessions"`
}

func (h healthStatus) Table(wide bool) *output.Table {
	if !wide {
		t := output.NewTable("STATUS", "VERSION", "ACTIVE SESSIONS")
		t.AddRow(h.Status, h.Version, strconv.Itoa(h.ActiveSessions))
		return t
	}
	t := output.NewTable("STATUS", "VERSION", "ACTIVE SESSIONS", "UPTIME", "TIME")
	uptime := (time.Duration(h.UptimeSeconds) * time.Second).String()
	t.AddRow(h.Status, h.Version, strconv.Itoa(h.ActiveSessions), uptime, h.Time)
	return t
}

func serverHealth(c *cli.Context) error {
	client, ctx, cancel, err := apiClient(c)
	if err != nil {
		return err
	}
	defer cancel()

	var h healthStatus
	if err := client.Get(ctx, "/health", &h); err != nil {
		return fmt.Errorf("health check against %s: %w", client.BaseURL(), err)
	}
	return render(c, h)
}

func serverStats(c *cli.Context) error {
	client, ctx, cancel, err := apiClient(c)
	if err != nil {
		return err
	}
	defer cancel()

	var stats map[string]any
	if err := client.Get(ctx, "/admin/v1/metrics", &stats); err != nil {
		return err
	}
	return render(c, stats)
}

func serverResetMetrics(c *cli.Context) error {
	if !c.Bool("force") {
		return fmt.Errorf("resetting continuity metrics discards their history; pass --force to confirm")
	}

	client, ctx, cancel, err := apiClient(c)
	if err != nil {
		return err
	}
	defer cancel()

	var result struct {
		ResetAt string `json:"reset_at"`
	}
	if err := client.Post(ctx, "/admin/v1/metrics/reset", nil, &result); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Continuity metrics reset at %s\n", result.ResetAt)
	return nil
}
