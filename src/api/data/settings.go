package data

import (
	"sync"

	"github.com/satyashodhak/factcheck-api/src/api/types"
	"gorm.io/gorm"
)

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// Defaults used when the settings table has no override row.
var settingsDefaults = map[string]string{
	"factcheck_api":       "https://factchecktools.googleapis.com/v1alpha1",
	"gemini_api":          "https://generativelanguage.googleapis.com/v1beta",
	"gemini_model":        "gemini-pro",
	"fallback_source_url": "https://satyashodhak.com",
	"frontend_url":        "http://localhost:3000",
}

// LoadSettings loads all settings from database into cache
func LoadSettings(db *gorm.DB) error {
	var settings []types.Setting
	if err := db.Find(&settings).Error; err != nil {
		return err
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsCache = make(map[string]string)
	for _, s := range settings {
		settingsCache[s.Name] = s.Value
	}

	return nil
}

// GetSetting retrieves a setting value by name, falling back to the
// compiled-in default.
func GetSetting(name string) string {
	settingsMu.RLock()
	v, ok := settingsCache[name]
	settingsMu.RUnlock()
	if ok && v != "" {
		return v
	}
	return settingsDefaults[name]
}

// RefreshSettings reloads settings from database
func RefreshSettings(db *gorm.DB) error {
	return LoadSettings(db)
}
