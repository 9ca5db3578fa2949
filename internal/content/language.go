package content

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// minDetectRunes is the shortest text worth running detection on.
const minDetectRunes = 40

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// detectableLanguages is the model set loaded on first use.
var detectableLanguages = []lingua.Language{
	lingua.English,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Swedish,
	lingua.Polish,
	lingua.Russian,
	lingua.Japanese,
	lingua.Chinese,
}

// DetectLanguage returns the ISO 639-1 code of the language text is
// written in, or "" when text is too short or the language is unclear.
func DetectLanguage(text string) string {
	if len([]rune(text)) < minDetectRunes {
		return ""
	}
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectableLanguages...).
			WithLowAccuracyMode().
			Build()
	})
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
