package service

import (
	"github.com/yndnr/waypoint-go/internal/core/domain"
	"github.com/yndnr/waypoint-go/pkg/cmap"
)

// LocalBlocks are the engine-owned parts of a snapshot.
type LocalBlocks struct {
	World    domain.WorldState
	UI       domain.UIState
	Settings map[string]string
	Flags    map[string]bool
}

func (b LocalBlocks) clone() LocalBlocks {
	s := domain.StateSnapshot{World: b.World, UI: b.UI, Settings: b.Settings, Flags: b.Flags}.Clone()
	return LocalBlocks{World: s.World, UI: s.UI, Settings: s.Settings, Flags: s.Flags}
}

// LocalState holds world, UI, settings and flags per character.
// Readers always receive copies.
type LocalState struct {
	blocks *cmap.Map[string, LocalBlocks]
}

// NewLocalState creates an empty LocalState.
func NewLocalState() *LocalState {
	return &LocalState{blocks: cmap.New[string, LocalBlocks]()}
}

// Get returns a copy of the character's blocks. Unknown characters get empty blocks.
func (l *LocalState) Get(characterID string) LocalBlocks {
	b, _ := l.blocks.Get(characterID)
	return b.clone()
}

// Update applies fn to a copy of the character's blocks and stores the result.
func (l *LocalState) Update(characterID string, fn func(b *LocalBlocks)) {
	l.blocks.Update(characterID, func(v LocalBlocks, _ bool) LocalBlocks {
		c := v.clone()
		fn(&c)
		return c
	})
}

// SetWorld replaces the world block.
func (l *LocalState) SetWorld(characterID string, w domain.WorldState) {
	l.Update(characterID, func(b *LocalBlocks) { b.World = w.Clone() })
}

// SetUI replaces the UI block.
func (l *LocalState) SetUI(characterID string, u domain.UIState) {
	l.Update(characterID, func(b *LocalBlocks) { b.UI = u.Clone() })
}

// SetSettings replaces settings and flags.
func (l *LocalState) SetSettings(characterID string, settings map[string]string, flags map[string]bool) {
	c := domain.StateSnapshot{Settings: settings, Flags: flags}.Clone()
	l.Update(characterID, func(b *LocalBlocks) {
		b.Settings = c.Settings
		b.Flags = c.Flags
	})
}

// Forget drops everything held for the character.
func (l *LocalState) Forget(characterID string) {
	l.blocks.Delete(characterID)
}
