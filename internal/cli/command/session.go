package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/waypoint-go/internal/cli/output"
	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// SessionCommand returns the sessions subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "sessions",
		Aliases: []string{"sess"},
		Usage:   "Inspect persisted session records",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List session records, oldest first",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "state",
						Usage: "Filter by state: active, paused, ended, crashed, restored (repeatable)",
					},
				},
				Action: sessionList,
			},
			{
				Name:      "get",
				Usage:     "Show one session record",
				ArgsUsage: "SESSION_ID",
				Action:    sessionGet,
			},
		},
	}
}

var sessionStates = []domain.SessionState{
	domain.SessionActive,
	domain.SessionPaused,
	domain.SessionEnded,
	domain.SessionCrashed,
	domain.SessionRestored,
}

func parseStates(values []string) ([]domain.SessionState, error) {
	states := make([]domain.SessionState, 0, len(values))
next:
	for _, v := range values {
		for _, s := range sessionStates {
			if string(s) == v {
				states = append(states, s)
				continue next
			}
		}
		return nil, fmt.Errorf("unknown session state %q", v)
	}
	return states, nil
}

type sessionTable []*domain.GameSession

func (l sessionTable) Table(wide bool) *output.Table {
	headers := []string{"SESSION ID", "PLAYER", "CHARACTER", "STATE", "STARTED", "LAST ACTIVE"}
	if wide {
		headers = append(headers, "AREA", "SAVES", "LAST SAVE", "END REASON")
	}
	t := output.NewTable(headers...)
	for _, s := range l {
		row := []string{
			s.ID,
			s.PlayerID,
			s.CharacterID,
			string(s.State),
			output.Millis(s.StartTime),
			output.Millis(s.LastActive),
		}
		if wide {
			row = append(row,
				output.Dash(s.CurrentArea),
				strconv.Itoa(len(s.SavePoints)),
				output.Millis(s.LastSaveAt),
				output.Dash(s.EndReason),
			)
		}
		t.AddRow(row...)
	}
	return t
}

func sessionList(c *cli.Context) error {
	states, err := parseStates(c.StringSlice("state"))
	if err != nil {
		return err
	}

	repo, _, err := openRepository(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	sessions, err := repo.ListSessions(c.Context, states...)
	if err != nil {
		return err
	}
	return render(c, sessionTable(sessions))
}

func sessionGet(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("session ID required")
	}

	repo, _, err := openRepository(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	sess, err := repo.GetSession(c.Context, id)
	if err != nil {
		return err
	}
	return render(c, sess)
}
