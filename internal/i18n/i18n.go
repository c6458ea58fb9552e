// Package i18n localizes the human-readable result report. The language is
// taken from the exam document's metadata, not from any request context.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	initOnce sync.Once
	initErr  error
	bundle   *i18n.Bundle
)

// Init loads the embedded translation bundle. English is the fallback
// language. Safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		bundle = i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			initErr = fmt.Errorf("read locales dir: %w", err)
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := localeFS.ReadFile("locales/" + e.Name())
			if err != nil {
				initErr = fmt.Errorf("read locale file %s: %w", e.Name(), err)
				return
			}
			bundle.MustParseMessageFileBytes(data, e.Name())
			slog.Debug("loaded locale file", "file", e.Name())
		}
	})
	return initErr
}

// NewLocalizer creates a localizer for the given language tag, falling back
// to English for unknown languages.
func NewLocalizer(lang string) *i18n.Localizer {
	if lang == "" {
		lang = "en"
	}
	return i18n.NewLocalizer(bundle, lang, "en")
}

// T translates a message by ID.
func T(loc *i18n.Localizer, msgID string) string {
	s, err := loc.Localize(&i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func Td(loc *i18n.Localizer, msgID string, data map[string]any) string {
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
