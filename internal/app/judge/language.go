package judge

import (
	"strings"
	"tle_zone_judge/internal/domain/model"
)

var languages = map[string]model.Language{
	"c++":        {Name: model.LanguageCPP, ID: 54},
	"cpp":        {Name: model.LanguageCPP, ID: 54},
	"java":       {Name: model.LanguageJava, ID: 62},
	"javascript": {Name: model.LanguageJavaScript, ID: 63},
	"js":         {Name: model.LanguageJavaScript, ID: 63},
}

// ResolveLanguage maps a case-insensitive language name or alias to the
// engine's language id. Unknown names are an InputError.
func ResolveLanguage(name string) (model.Language, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return model.Language{}, inputErrorf("resolve language", "language is required")
	}
	lang, ok := languages[normalized]
	if !ok {
		return model.Language{}, inputErrorf("resolve language", "unsupported language %q", name)
	}
	return lang, nil
}

// SupportedLanguages lists the canonical names.
func SupportedLanguages() []string {
	return []string{model.LanguageCPP, model.LanguageJava, model.LanguageJavaScript}
}
