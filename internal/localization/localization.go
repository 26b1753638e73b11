// Package localization provides the notification texts carried by queued records.
// Translations are JSON files named by language code (e.g. "en.json"); the
// built-in set is embedded and a directory can override it.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed locales/*.json
var builtin embed.FS

// DefaultLang is used when a key is missing in the requested language.
const DefaultLang = "en"

// Keys used by the event sinks.
const (
	KeyComplaintCreatedSubject = "complaint_created_subject"
	KeyComplaintCreatedBody    = "complaint_created_body"
	KeyStatusChangedSubject    = "status_changed_subject"
	KeyStatusChangedBody       = "status_changed_body"
	KeyUserRegisteredSubject   = "user_registered_subject"
	KeyUserRegisteredBody      = "user_registered_body"
	KeyOTPSubject              = "otp_subject"
	KeyOTPBody                 = "otp_body"
	KeyAdminNewComplaint       = "admin_new_complaint"
	KeyAdminStatusChanged      = "admin_status_changed"
)

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewDefault loads the embedded translations.
func NewDefault() (*Localizer, error) {
	sub, err := fs.Sub(builtin, "locales")
	if err != nil {
		return nil, err
	}
	return NewLocalizer(sub)
}

// NewLocalizer loads every *.json file at the root of fsys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[strings.TrimSuffix(file.Name(), ".json")] = translations
	}

	return l, nil
}

// GetString returns the localized string for a given key and language.
// Falls back to DefaultLang, then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if value, ok := l.translations[lang][key]; ok {
		return value
	}
	if lang != DefaultLang {
		if value, ok := l.translations[DefaultLang][key]; ok {
			return value
		}
	}
	return key
}

// Format looks up key and replaces {name} placeholders from args.
func (l *Localizer) Format(lang, key string, args map[string]string) string {
	text := l.GetString(lang, key)
	if len(args) == 0 {
		return text
	}
	pairs := make([]string, 0, len(args)*2)
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
