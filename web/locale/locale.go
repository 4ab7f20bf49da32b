// Package locale translates the portal's user-facing messages.
package locale

import (
	"io/fs"
	"strings"

	"github.com/hivedesk/portal/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

const localizerKey = "localizer"

var (
	i18nBundle       *i18n.Bundle
	defaultLocalizer *i18n.Localizer
)

// InitLocalizer loads every file under translation/ in fsys.
func InitLocalizer(fsys fs.FS) error {
	bundle := i18n.NewBundle(language.MustParse("en-US"))
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	if err := parseTranslationFiles(fsys, bundle); err != nil {
		return err
	}
	i18nBundle = bundle
	defaultLocalizer = i18n.NewLocalizer(bundle, "en-US")
	return nil
}

// I18n translates key in the default language. Templates call it.
func I18n(key string, params ...string) string {
	return Localize(defaultLocalizer, key, params...)
}

func parseTranslationFiles(fsys fs.FS, bundle *i18n.Bundle) error {
	return fs.WalkDir(fsys, "translation", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		_, err = bundle.ParseMessageFileBytes(data, path)
		return err
	})
}

func createTemplateData(params []string, separator ...string) map[string]any {
	sep := "=="
	if len(separator) > 0 {
		sep = separator[0]
	}

	templateData := make(map[string]any)
	for _, param := range params {
		parts := strings.SplitN(param, sep, 2)
		if len(parts) == 2 {
			templateData[parts[0]] = parts[1]
		}
	}
	return templateData
}

// Localize resolves key with l. Params are "name==value" pairs. The key
// itself is returned when no bundle is loaded or the message is missing.
func Localize(l *i18n.Localizer, key string, params ...string) string {
	if l == nil {
		return key
	}
	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: createTemplateData(params),
	})
	if err != nil {
		logger.Warningf("Failed to localize message %q: %v", key, err)
		return key
	}
	return msg
}

// NewLocalizer returns a localizer for the given language preferences, or
// nil before InitLocalizer.
func NewLocalizer(langs ...string) *i18n.Localizer {
	if i18nBundle == nil {
		return nil
	}
	return i18n.NewLocalizer(i18nBundle, langs...)
}

// T translates key for the language negotiated on c.
func T(c *gin.Context, key string, params ...string) string {
	var l *i18n.Localizer
	if v, ok := c.Get(localizerKey); ok {
		l, _ = v.(*i18n.Localizer)
	}
	return Localize(l, key, params...)
}

// LocalizerMiddleware picks the language from the "lang" cookie, falling
// back to Accept-Language, and exposes the translate function to templates
// via the "I18n" context key.
func LocalizerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var lang string
		if cookie, err := c.Request.Cookie("lang"); err == nil {
			lang = cookie.Value
		} else {
			lang = c.GetHeader("Accept-Language")
		}

		l := NewLocalizer(lang)
		c.Set(localizerKey, l)
		c.Set("I18n", func(key string, params ...string) string {
			return Localize(l, key, params...)
		})
		c.Next()
	}
}
