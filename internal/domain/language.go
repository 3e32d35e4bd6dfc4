package domain

// Language of generated question text.
type Language string

// Supported languages.
const (
	LanguageBangla  Language = "bn"
	LanguageEnglish Language = "en"
)

// ParseLanguage returns the Language for s when it is supported.
func ParseLanguage(s string) (Language, bool) {
	switch Language(s) {
	case LanguageBangla, LanguageEnglish:
		return Language(s), true
	default:
		return "", false
	}
}

// ResolveLanguage picks the language recorded after a successful attempt:
// the reported language when supported, else the page's current language,
// else English.
func ResolveLanguage(reported string, current *Language) Language {
	if l, ok := ParseLanguage(reported); ok {
		return l
	}
	if current != nil {
		if l, ok := ParseLanguage(string(*current)); ok {
			return l
		}
	}
	return LanguageEnglish
}
