// Package localization holds the texts of system messages posted into chat rooms.
// Templates are JSON files named after their language code (e.g. "en.json") and
// are embedded into the binary.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

// Keys of the built-in templates.
const (
	KeyChatWelcome      = "chat.welcome"
	KeyBatchDefaultName = "batch.default_name"
)

const fallbackLang = "en"

//go:embed locales/*.json
var embedded embed.FS

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	defaultLang  string
	mu           sync.RWMutex
}

// NewLocalizer loads every "<lang>.json" file found in dir of fsys.
func NewLocalizer(fsys fs.FS, dir, defaultLang string) (*Localizer, error) {
	if defaultLang == "" {
		defaultLang = fallbackLang
	}
	l := &Localizer{
		translations: make(map[string]map[string]string),
		defaultLang:  defaultLang,
	}

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// Default returns a Localizer over the embedded templates.
func Default(defaultLang string) *Localizer {
	l, err := NewLocalizer(embedded, "locales", defaultLang)
	if err != nil {
		// the embedded files are part of the build
		panic(err)
	}
	return l
}

// GetString returns the localized string for a given key and language.
// Missing keys fall back to the default language, then to English, then to the
// key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, candidate := range []string{lang, l.defaultLang, fallbackLang} {
		if value, ok := l.translations[candidate][key]; ok {
			return value
		}
	}
	return key
}

// Format renders the template under key with args.
func (l *Localizer) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}

// ChatWelcome is the system message posted into a freshly created batch room.
func (l *Localizer) ChatWelcome(batchName string) string {
	return l.Format(l.defaultLang, KeyChatWelcome, batchName)
}
