package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/waypoint-go/internal/cli/output"
	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/internal/core/service"
)

// SavePointCommand returns the savepoints subcommand group.
func SavePointCommand() *cli.Command {
	characterFlag := &cli.StringFlag{
		Name:     "character",
		Aliases:  []string{"c"},
		Usage:    "Character ID",
		Required: true,
	}
	return &cli.Command{
		Name:    "savepoints",
		Aliases: []string{"sp"},
		Usage:   "Inspect save points",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List a character's save points, oldest first",
				Flags:  []cli.Flag{characterFlag},
				Action: savePointList,
			},
			{
				Name:  "verify",
				Usage: "Recompute checksums and integrity scores",
				Flags: []cli.Flag{
					characterFlag,
					&cli.StringFlag{
						Name:  "id",
						Usage: "Verify a single save point",
					},
				},
				Action: savePointVerify,
			},
		},
	}
}

type savePointRow struct {
	*domain.SavePoint
	Integrity float64 `json:"integrity"`
}

type savePointTable []savePointRow

func (l savePointTable) Table(wide bool) *output.Table {
	headers := []string{"SAVE POINT ID", "TYPE", "CREATED", "AREA", "LEVEL", "VERIFIED", "INTEGRITY"}
	if wide {
		headers = append(headers, "SESSION", "SIZE", "CHECKSUM")
	}
	t := output.NewTable(headers...)
	for _, r := range l {
		row := []string{
			r.ID,
			string(r.Type),
			output.Millis(r.CreatedAt),
			output.Dash(r.Area),
			strconv.Itoa(r.Level),
			strconv.FormatBool(r.Verified),
			fmt.Sprintf("%.2f", r.Integrity),
		}
		if wide {
			row = append(row, r.SessionID, output.FormatBytes(r.Size), output.Dash(r.Metadata.Checksum))
		}
		t.AddRow(row...)
	}
	return t
}

func savePointList(c *cli.Context) error {
	repo, _, err := openRepository(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	points, err := repo.ListSavePoints(c.Context, c.String("character"))
	if err != nil {
		return err
	}
	v := service.NewVerifier()
	rows := make(savePointTable, 0, len(points))
	for _, sp := range points {
		rows = append(rows, savePointRow{SavePoint: sp, Integrity: v.Score(sp)})
	}
	return render(c, rows)
}

type verifyRow struct {
	ID         string  `json:"id"`
	ChecksumOK bool    `json:"checksum_ok"`
	Integrity  float64 `json:"integrity"`
	Trusted    bool    `json:"trusted"`
}

type verifyReport []verifyRow

func (r verifyReport) Table(bool) *output.Table {
	t := output.NewTable("SAVE POINT ID", "CHECKSUM", "INTEGRITY", "TRUSTED")
	for _, row := range r {
		checksum := "ok"
		if !row.ChecksumOK {
			checksum = "MISMATCH"
		}
		t.AddRow(row.ID, checksum, fmt.Sprintf("%.2f", row.Integrity), strconv.FormatBool(row.Trusted))
	}
	return t
}

func savePointVerify(c *cli.Context) error {
	repo, cfg, err := openRepository(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	points, err := repo.ListSavePoints(c.Context, c.String("character"))
	if err != nil {
		return err
	}

	id := c.String("id")
	v := service.NewVerifier()
	var report verifyReport
	failed := 0
	for _, sp := range points {
		if id != "" && sp.ID != id {
			continue
		}
		row := verifyRow{ID: sp.ID, ChecksumOK: v.Verify(sp), Integrity: v.Score(sp)}
		row.Trusted = row.Integrity >= cfg.Engine.TrustThreshold
		if !row.ChecksumOK {
			failed++
		}
		report = append(report, row)
	}
	if id != "" && len(report) == 0 {
		return domain.ErrSavePointNotFound.WithDetails(id)
	}

	if err := render(c, report); err != nil {
		return err
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d save points failed verification", failed, len(report)), 1)
	}
	return nil
}
