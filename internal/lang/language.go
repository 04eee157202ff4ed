// Package lang validates recognition language hints.
package lang

import (
	"fmt"
	"strings"
)

// whisperLanguages contains ISO 639-1 codes accepted by Whisper models,
// both the hosted API and whisper.cpp. Not exhaustive; common languages only.
var whisperLanguages = map[string]bool{
	"af": true, // Afrikaans
	"ar": true, // Arabic
	"bg": true, // Bulgarian
	"bn": true, // Bengali
	"ca": true, // Catalan
	"cs": true, // Czech
	"da": true, // Danish
	"de": true, // German
	"el": true, // Greek
	"en": true, // English
	"es": true, // Spanish
	"et": true, // Estonian
	"fa": true, // Persian
	"fi": true, // Finnish
	"fr": true, // French
	"gu": true, // Gujarati
	"he": true, // Hebrew
	"hi": true, // Hindi
	"hr": true, // Croatian
	"hu": true, // Hungarian
	"id": true, // Indonesian
	"it": true, // Italian
	"ja": true, // Japanese
	"kn": true, // Kannada
	"ko": true, // Korean
	"lt": true, // Lithuanian
	"lv": true, // Latvian
	"mk": true, // Macedonian
	"ml": true, // Malayalam
	"mr": true, // Marathi
	"ms": true, // Malay
	"nl": true, // Dutch
	"no": true, // Norwegian
	"pa": true, // Punjabi
	"pl": true, // Polish
	"pt": true, // Portuguese
	"ro": true, // Romanian
	"ru": true, // Russian
	"sk": true, // Slovak
	"sl": true, // Slovenian
	"sr": true, // Serbian
	"sv": true, // Swedish
	"sw": true, // Swahili
	"ta": true, // Tamil
	"te": true, // Telugu
	"th": true, // Thai
	"tl": true, // Tagalog
	"tr": true, // Turkish
	"uk": true, // Ukrainian
	"ur": true, // Urdu
	"vi": true, // Vietnamese
	"zh": true, // Chinese
}

// Normalize lowercases a code and uses a hyphen separator.
// "pt_BR", "PT-BR" and "pt-br" all become "pt-br".
func Normalize(lang string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
}

// BaseCode returns the ISO 639-1 part of a locale: "pt-BR" -> "pt".
// Whisper backends only take base codes.
func BaseCode(lang string) string {
	base, _, _ := strings.Cut(Normalize(lang), "-")
	return base
}

// Validate checks a language hint. Empty means auto-detect and is valid;
// otherwise the base code must be known.
func Validate(lang string) error {
	if strings.TrimSpace(lang) == "" {
		return nil
	}
	if !whisperLanguages[BaseCode(lang)] {
		return fmt.Errorf("%q (use ISO 639-1 codes like 'en', 'fr', 'pt-BR'): %w", lang, ErrInvalid)
	}
	return nil
}
