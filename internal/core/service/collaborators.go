package service

import (
	"context"
	"errors"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// CharacterStore owns character sheets.
type CharacterStore interface {
	// LoadCharacter returns the serialized character sheet, or domain.ErrSubStateNotFound.
	LoadCharacter(ctx context.Context, characterID string) ([]byte, error)

	// ApplyCharacter replaces the character sheet with data.
	ApplyCharacter(ctx context.Context, characterID string, data []byte) error
}

// InventoryStore owns inventories and stashes.
type InventoryStore interface {
	LoadInventory(ctx context.Context, characterID string) ([]byte, error)
	ApplyInventory(ctx context.Context, characterID string, data []byte) error
}

// SkillStore owns skill trees.
type SkillStore interface {
	LoadSkills(ctx context.Context, characterID string) ([]byte, error)
	ApplySkills(ctx context.Context, characterID string, data []byte) error
}

// QuestStore owns quest progress.
type QuestStore interface {
	LoadQuests(ctx context.Context, characterID string) ([]byte, error)
	ApplyQuests(ctx context.Context, characterID string, data []byte) error
}

// CharacterDescriber is optionally implemented by a CharacterStore to give save
// points a level and experience figure without parsing the character sheet.
type CharacterDescriber interface {
	DescribeCharacter(ctx context.Context, characterID string) (level int, experience int64, err error)
}

// Collaborators groups the external systems the engine captures from and restores to.
// A nil store behaves as one that has no data and accepts every apply.
type Collaborators struct {
	Characters CharacterStore
	Inventory  InventoryStore
	Skills     SkillStore
	Quests     QuestStore
}

// isNotFound reports whether a collaborator load error means "no data".
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrSubStateNotFound)
}
