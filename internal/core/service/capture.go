package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// Capturer assembles a StateSnapshot from the collaborators and local state.
// Capture only reads; it never mutates collaborator state.
type Capturer struct {
	collabs Collaborators
	local   *LocalState
	logger  *slog.Logger
}

// NewCapturer creates a Capturer. A nil local state captures empty engine blocks.
func NewCapturer(collabs Collaborators, local *LocalState, logger *slog.Logger) *Capturer {
	if local == nil {
		local = NewLocalState()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{collabs: collabs, local: local, logger: logger}
}

// Capture collects every sub-state of the character. It never fails: a
// collaborator that errors or has no data contributes an empty payload.
func (c *Capturer) Capture(ctx context.Context, characterID string) domain.StateSnapshot {
	snap := domain.StateSnapshot{CapturedAt: time.Now().UnixMilli()}

	var g errgroup.Group
	if c.collabs.Characters != nil {
		g.Go(func() error {
			snap.Character = c.load(ctx, "character", characterID, c.collabs.Characters.LoadCharacter)
			return nil
		})
	}
	if c.collabs.Inventory != nil {
		g.Go(func() error {
			snap.Inventory = c.load(ctx, "inventory", characterID, c.collabs.Inventory.LoadInventory)
			return nil
		})
	}
	if c.collabs.Skills != nil {
		g.Go(func() error {
			snap.Skills = c.load(ctx, "skills", characterID, c.collabs.Skills.LoadSkills)
			return nil
		})
	}
	if c.collabs.Quests != nil {
		g.Go(func() error {
			snap.Quests = c.load(ctx, "quests", characterID, c.collabs.Quests.LoadQuests)
			return nil
		})
	}
	_ = g.Wait()

	b := c.local.Get(characterID)
	snap.World = b.World
	snap.UI = b.UI
	snap.Settings = b.Settings
	snap.Flags = b.Flags
	return snap
}

// Describe returns the character level and experience if the character store can tell.
func (c *Capturer) Describe(ctx context.Context, characterID string) (int, int64) {
	d, ok := c.collabs.Characters.(CharacterDescriber)
	if !ok {
		return 0, 0
	}
	level, xp, err := d.DescribeCharacter(ctx, characterID)
	if err != nil {
		c.logger.Debug("describe character failed", "character_id", characterID, "error", err)
		return 0, 0
	}
	return level, xp
}

type loadFunc func(ctx context.Context, characterID string) ([]byte, error)

func (c *Capturer) load(ctx context.Context, name, characterID string, fn loadFunc) (out json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("sub-state load panicked", "sub_state", name, "character_id", characterID, "panic", r)
			out = nil
		}
	}()

	data, err := fn(ctx, characterID)
	if err != nil {
		if !isNotFound(err) {
			c.logger.Warn("sub-state load failed, capturing empty value",
				"sub_state", name, "character_id", characterID, "error", err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	// Payloads are embedded as raw JSON documents.
	if !json.Valid(data) {
		c.logger.Warn("sub-state is not a JSON document, capturing empty value",
			"sub_state", name, "character_id", characterID, "size", len(data))
		return nil
	}
	return append(json.RawMessage(nil), data...)
}
