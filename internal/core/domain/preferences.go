package domain

import "time"

// Default session preferences.
const (
	DefaultAutoSave         = true
	DefaultSaveInterval     = 60 * time.Second
	DefaultCompressionLevel = 6
	DefaultMaxSavePoints    = 10
	DefaultCloudSync        = false
	DefaultOfflineMode      = false
	DefaultSessionTimeout   = 30 * time.Minute
	DefaultEmergencySave    = true

	MinSaveInterval     = time.Second
	MaxCompressionLevel = 9
)

// Preferences is the per-session configuration supplied at session start.
type Preferences struct {
	AutoSave         bool          `json:"auto_save" koanf:"auto_save"`
	SaveInterval     time.Duration `json:"save_interval" koanf:"save_interval"`
	CompressionLevel int           `json:"compression_level" koanf:"compression_level"`
	MaxSavePoints    int           `json:"max_save_points" koanf:"max_save_points"`
	CloudSync        bool          `json:"cloud_sync" koanf:"cloud_sync"`
	OfflineMode      bool          `json:"offline_mode" koanf:"offline_mode"`
	SessionTimeout   time.Duration `json:"session_timeout" koanf:"session_timeout"`
	EmergencySave    bool          `json:"emergency_save" koanf:"emergency_save"`
}

// DefaultPreferences returns the documented defaults.
func DefaultPreferences() Preferences {
	return Preferences{
		AutoSave:         DefaultAutoSave,
		SaveInterval:     DefaultSaveInterval,
		CompressionLevel: DefaultCompressionLevel,
		MaxSavePoints:    DefaultMaxSavePoints,
		CloudSync:        DefaultCloudSync,
		OfflineMode:      DefaultOfflineMode,
		SessionTimeout:   DefaultSessionTimeout,
		EmergencySave:    DefaultEmergencySave,
	}
}

// PreferencesOverride is a partial preferences record. Nil fields keep the base value.
type PreferencesOverride struct {
	AutoSave         *bool          `json:"auto_save,omitempty"`
	SaveInterval     *time.Duration `json:"save_interval,omitempty"`
	CompressionLevel *int           `json:"compression_level,omitempty"`
	MaxSavePoints    *int           `json:"max_save_points,omitempty"`
	CloudSync        *bool          `json:"cloud_sync,omitempty"`
	OfflineMode      *bool          `json:"offline_mode,omitempty"`
	SessionTimeout   *time.Duration `json:"session_timeout,omitempty"`
	EmergencySave    *bool          `json:"emergency_save,omitempty"`
}

// Merge applies the override on top of base and clamps out-of-range values.
// A nil override returns base unchanged.
func (o *PreferencesOverride) Merge(base Preferences) Preferences {
	p := base
	if o != nil {
		if o.AutoSave != nil {
			p.AutoSave = *o.AutoSave
		}
		if o.SaveInterval != nil {
			p.SaveInterval = *o.SaveInterval
		}
		if o.CompressionLevel != nil {
			p.CompressionLevel = *o.CompressionLevel
		}
		if o.MaxSavePoints != nil {
			p.MaxSavePoints = *o.MaxSavePoints
		}
		if o.CloudSync != nil {
			p.CloudSync = *o.CloudSync
		}
		if o.OfflineMode != nil {
			p.OfflineMode = *o.OfflineMode
		}
		if o.SessionTimeout != nil {
			p.SessionTimeout = *o.SessionTimeout
		}
		if o.EmergencySave != nil {
			p.EmergencySave = *o.EmergencySave
		}
	}
	return p.normalize(base)
}

func (p Preferences) normalize(base Preferences) Preferences {
	if p.SaveInterval < MinSaveInterval {
		p.SaveInterval = base.SaveInterval
		if p.SaveInterval < MinSaveInterval {
			p.SaveInterval = DefaultSaveInterval
		}
	}
	if p.MaxSavePoints < 1 {
		p.MaxSavePoints = base.MaxSavePoints
		if p.MaxSavePoints < 1 {
			p.MaxSavePoints = DefaultMaxSavePoints
		}
	}
	if p.CompressionLevel < 0 {
		p.CompressionLevel = 0
	}
	if p.CompressionLevel > MaxCompressionLevel {
		p.CompressionLevel = MaxCompressionLevel
	}
	if p.SessionTimeout < 0 {
		p.SessionTimeout = 0
	}
	return p
}
