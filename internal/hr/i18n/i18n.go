// Package i18n renders notification text from the embedded locale files.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator resolves message ids against the loaded bundle.
type Translator struct {
	bundle        *i18n.Bundle
	defaultLocale string
}

// New loads every locale file. defLocale is used when a caller passes an
// empty locale; it falls back to "en".
func New(defLocale string) (*Translator, error) {
	if defLocale == "" {
		defLocale = "en"
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", e.Name(), err)
		}
	}

	return &Translator{bundle: bundle, defaultLocale: defLocale}, nil
}

// DefaultLocale returns the configured fallback locale.
func (t *Translator) DefaultLocale() string {
	return t.defaultLocale
}

// T translates messageID into locale. Unknown ids come back unchanged.
func (t *Translator) T(locale, messageID string, templateData map[string]any) string {
	if locale == "" {
		locale = t.defaultLocale
	}
	l := i18n.NewLocalizer(t.bundle, locale, t.defaultLocale)

	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: templateData,
	})
	if err != nil {
		return messageID
	}
	return msg
}
