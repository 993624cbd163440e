package domain

import "time"

// RestoreCategory names a group of sub-state that can be restored independently.
type RestoreCategory string

const (
	CategoryCharacter RestoreCategory = "character"
	CategoryInventory RestoreCategory = "inventory"
	CategoryProgress  RestoreCategory = "progress"
	CategorySettings  RestoreCategory = "settings"
	CategoryWorld     RestoreCategory = "world"
	CategoryUI        RestoreCategory = "ui"
)

// RestoreOrder is the order categories are applied in.
var RestoreOrder = []RestoreCategory{
	CategoryCharacter,
	CategoryInventory,
	CategoryProgress,
	CategorySettings,
	CategoryWorld,
	CategoryUI,
}

// RestoreOptions toggles each category and the failure policy.
type RestoreOptions struct {
	RestoreCharacter bool `json:"restore_character"`
	RestoreInventory bool `json:"restore_inventory"`
	RestoreProgress  bool `json:"restore_progress"`
	RestoreSettings  bool `json:"restore_settings"`
	RestoreWorld     bool `json:"restore_world"`
	RestoreUI        bool `json:"restore_ui"`

	// SkipCorrupted tolerates a low integrity score and continues past failed categories.
	SkipCorrupted bool `json:"skip_corrupted"`

	// ValidateData checks each opaque payload is well-formed before it is applied.
	ValidateData bool `json:"validate_data"`
}

// FullRestoreOptions enables every category and tolerates failures.
func FullRestoreOptions() RestoreOptions {
	return RestoreOptions{
		RestoreCharacter: true,
		RestoreInventory: true,
		RestoreProgress:  true,
		RestoreSettings:  true,
		RestoreWorld:     true,
		RestoreUI:        true,
		SkipCorrupted:    true,
		ValidateData:     true,
	}
}

// Enabled reports whether the category is toggled on.
func (o RestoreOptions) Enabled(c RestoreCategory) bool {
	switch c {
	case CategoryCharacter:
		return o.RestoreCharacter
	case CategoryInventory:
		return o.RestoreInventory
	case CategoryProgress:
		return o.RestoreProgress
	case CategorySettings:
		return o.RestoreSettings
	case CategoryWorld:
		return o.RestoreWorld
	case CategoryUI:
		return o.RestoreUI
	}
	return false
}

// RestoreResult reports exactly which categories were applied.
type RestoreResult struct {
	Success       bool              `json:"success"`
	SavePointID   string            `json:"save_point_id,omitempty"`
	Restored      []RestoreCategory `json:"restored"`
	Skipped       []RestoreCategory `json:"skipped"`
	Errors        []string          `json:"errors"`
	Warnings      []string          `json:"warnings"`
	LoadTime      time.Duration     `json:"load_time"`
	DataIntegrity float64           `json:"data_integrity"`
}

// NewRestoreResult returns a result with empty, non-nil lists.
func NewRestoreResult(savePointID string) *RestoreResult {
	return &RestoreResult{
		SavePointID: savePointID,
		Restored:    []RestoreCategory{},
		Skipped:     []RestoreCategory{},
		Errors:      []string{},
		Warnings:    []string{},
	}
}
