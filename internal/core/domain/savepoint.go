package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// FormatVersion is the snapshot format written by this engine.
const FormatVersion = "1.0"

// SaveType classifies why a save point was created.
type SaveType string

const (
	SaveAuto       SaveType = "auto"
	SaveManual     SaveType = "manual"
	SaveCheckpoint SaveType = "checkpoint"
	SaveEmergency  SaveType = "emergency"
	SaveLogout     SaveType = "logout"
)

// AllSaveTypes lists every save type, in a stable order.
var AllSaveTypes = []SaveType{SaveAuto, SaveManual, SaveCheckpoint, SaveEmergency, SaveLogout}

// ValidSaveType reports whether t is a known save type.
func ValidSaveType(t SaveType) bool {
	for _, v := range AllSaveTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Prunable reports whether retention may remove a save point of this type.
func (t SaveType) Prunable() bool {
	return t != SaveManual
}

// Position is where the character stood when the save point was taken.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
	AreaID   string  `json:"area_id"`
	Instance string  `json:"instance,omitempty"`
}

// SaveMetadata describes how a snapshot was stored.
type SaveMetadata struct {
	FormatVersion string   `json:"format_version"`
	Compressed    bool     `json:"compressed"`
	Encrypted     bool     `json:"encrypted"`
	Checksum      string   `json:"checksum"`
	Dependencies  []string `json:"dependencies,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// SavePoint is an immutable capture of a character's state.
type SavePoint struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	CharacterID string        `json:"character_id"`
	CreatedAt   int64         `json:"created_at"`
	Type        SaveType      `json:"type"`
	Description string        `json:"description,omitempty"`
	Area        string        `json:"area,omitempty"`
	Level       int           `json:"level"`
	Experience  int64         `json:"experience"`
	Position    Position      `json:"position"`
	Snapshot    StateSnapshot `json:"snapshot"`
	Metadata    SaveMetadata  `json:"metadata"`
	Verified    bool          `json:"verified"`
	Size        int64         `json:"size"`
}

// CreatedAtTime returns CreatedAt as time.Time.
func (sp *SavePoint) CreatedAtTime() time.Time {
	return time.UnixMilli(sp.CreatedAt)
}

// Header returns a copy of the save point without its snapshot payloads.
func (sp *SavePoint) Header() *SavePoint {
	h := *sp
	h.Snapshot = StateSnapshot{}
	h.Metadata.Dependencies = append([]string(nil), sp.Metadata.Dependencies...)
	h.Metadata.Tags = append([]string(nil), sp.Metadata.Tags...)
	return &h
}

// Clone creates a deep copy of the save point.
func (sp *SavePoint) Clone() *SavePoint {
	c := sp.Header()
	c.Snapshot = sp.Snapshot.Clone()
	return c
}

// StateSnapshot bundles the captured sub-state of one character.
// Character, Inventory, Skills and Quests are opaque payloads owned by their
// collaborators; the engine stores and checksums them but never interprets them.
type StateSnapshot struct {
	Character json.RawMessage `json:"character,omitempty"`
	Inventory json.RawMessage `json:"inventory,omitempty"`
	Skills    json.RawMessage `json:"skills,omitempty"`
	Quests    json.RawMessage `json:"quests,omitempty"`

	World    WorldState        `json:"world"`
	UI       UIState           `json:"ui"`
	Settings map[string]string `json:"settings,omitempty"`
	Flags    map[string]bool   `json:"flags,omitempty"`

	CapturedAt int64 `json:"captured_at"`
}

// WorldState is the engine-owned world block.
//
// Numbers inside NPCStates and ObjectStates decode as json.Number so large
// integers survive a reload unchanged.
type WorldState struct {
	CurrentArea   string                    `json:"current_area,omitempty"`
	Weather       string                    `json:"weather,omitempty"`
	TimeOfDay     float64                   `json:"time_of_day"`
	ActiveEvents  []string                  `json:"active_events,omitempty"`
	NPCStates     map[string]map[string]any `json:"npc_states,omitempty"`
	ObjectStates  map[string]map[string]any `json:"object_states,omitempty"`
	Environmental []string                  `json:"environmental,omitempty"`
}

// UnmarshalJSON decodes the world block keeping numbers exact.
func (w *WorldState) UnmarshalJSON(data []byte) error {
	type plain WorldState
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var p plain
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*w = WorldState(p)
	return nil
}

// UIState is the engine-owned UI block.
type UIState struct {
	OpenWindows []string          `json:"open_windows,omitempty"`
	Layout      map[string]string `json:"layout,omitempty"`
	MapZoom     float64           `json:"map_zoom"`
	MapMarkers  []string          `json:"map_markers,omitempty"`
}

// IsEmptyPayload reports whether an opaque sub-state payload carries no data.
func IsEmptyPayload(b json.RawMessage) bool {
	switch string(b) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}

// Canonical returns the snapshot as it reads back from storage. Live values
// in the world block (structs, typed integers) are replaced by their decoded
// JSON form, so a checksum taken over the result still matches after a reload.
func (s StateSnapshot) Canonical() (StateSnapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return StateSnapshot{}, err
	}
	var c StateSnapshot
	if err := json.Unmarshal(data, &c); err != nil {
		return StateSnapshot{}, err
	}
	return c, nil
}

// Clone creates a deep copy of the snapshot.
func (s StateSnapshot) Clone() StateSnapshot {
	c := StateSnapshot{
		Character:  cloneRaw(s.Character),
		Inventory:  cloneRaw(s.Inventory),
		Skills:     cloneRaw(s.Skills),
		Quests:     cloneRaw(s.Quests),
		World:      s.World.Clone(),
		UI:         s.UI.Clone(),
		CapturedAt: s.CapturedAt,
	}
	if s.Settings != nil {
		c.Settings = make(map[string]string, len(s.Settings))
		for k, v := range s.Settings {
			c.Settings[k] = v
		}
	}
	if s.Flags != nil {
		c.Flags = make(map[string]bool, len(s.Flags))
		for k, v := range s.Flags {
			c.Flags[k] = v
		}
	}
	return c
}

// Clone creates a deep copy of the world block.
func (w WorldState) Clone() WorldState {
	c := w
	c.ActiveEvents = append([]string(nil), w.ActiveEvents...)
	c.Environmental = append([]string(nil), w.Environmental...)
	c.NPCStates = cloneNested(w.NPCStates)
	c.ObjectStates = cloneNested(w.ObjectStates)
	return c
}

// Clone creates a deep copy of the UI block.
func (u UIState) Clone() UIState {
	c := u
	c.OpenWindows = append([]string(nil), u.OpenWindows...)
	c.MapMarkers = append([]string(nil), u.MapMarkers...)
	if u.Layout != nil {
		c.Layout = make(map[string]string, len(u.Layout))
		for k, v := range u.Layout {
			c.Layout[k] = v
		}
	}
	return c
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

func cloneNested(m map[string]map[string]any) map[string]map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]map[string]any, len(m))
	for k, inner := range m {
		ic := make(map[string]any, len(inner))
		for ik, iv := range inner {
			ic[ik] = iv
		}
		c[k] = ic
	}
	return c
}
