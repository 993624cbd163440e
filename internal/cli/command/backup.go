package command

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/waypoint-go/internal/cli/output"
	"github.com/yndnr/waypoint-go/internal/storage"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Back up and restore a badger data directory",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Write a full backup",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"f"},
						Usage:    "Backup file to write",
						Required: true,
					},
				},
				Action: backupCreate,
			},
			{
				Name:  "restore",
				Usage: "Replace the data directory's content with a backup",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Backup file to load",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Skip confirmation",
					},
				},
				Action: backupRestore,
			},
		},
	}
}

// kvBackend opens the configured backend and returns its KV engine.
func kvBackend(c *cli.Context) (storage.Backend, storage.KVEngine, error) {
	repo, cfg, err := openRepository(c)
	if err != nil {
		return nil, nil, err
	}
	kvRepo, ok := repo.(*storage.KVRepository)
	if !ok {
		repo.Close()
		return nil, nil, fmt.Errorf("backup requires the badger backend, data directory uses %q", cfg.Storage.Backend)
	}
	return repo, kvRepo.KV(), nil
}

func backupCreate(c *cli.Context) error {
	repo, kv, err := kvBackend(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	path := c.String("output")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}

	pw := output.NewProgressWriter(f, stderr(c), "backup", 0)
	version, err := kv.Backup(c.Context, pw)
	pw.Finish()
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("write backup: %w", err)
	}

	fmt.Fprintf(stdout(c), "Backup written to %s (%s, version %d)\n", path, output.FormatBytes(pw.Written()), version)
	return nil
}

func backupRestore(c *cli.Context) error {
	path := c.String("input")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	if !c.Bool("force") {
		fmt.Fprintf(stdout(c), "This replaces every save point and session record in the data directory. Continue? [y/N]: ")
		answer, _ := bufio.NewReader(c.App.Reader).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(stdout(c), "Cancelled.")
			return nil
		}
	}

	repo, kv, err := kvBackend(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	pw := output.NewProgressWriter(io.Discard, stderr(c), "restore", info.Size())
	err = kv.Restore(c.Context, io.TeeReader(f, pw))
	pw.Finish()
	if err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	fmt.Fprintf(stdout(c), "Restored %s from %s\n", output.FormatBytes(info.Size()), path)
	return nil
}
