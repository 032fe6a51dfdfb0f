// Package language provides a cheap script-ratio language guess used to
// pick a prompt catalog section. It is deliberately coarse.
package language

import "unicode"

const (
	Korean   = "ko"
	Japanese = "ja"
	Chinese  = "zh"
	English  = "en"
)

// Detect returns the dominant script of the text as a language code.
// Hangul wins over other scripts at any share above 20%, since Korean
// text commonly mixes Latin loanwords. Defaults to English.
func Detect(text string) string {
	var hangul, kana, han, latin, total int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case r < 128:
			latin++
		}
	}
	if total == 0 {
		return English
	}

	ratio := func(n int) float64 { return float64(n) / float64(total) }
	switch {
	case ratio(hangul) > 0.2:
		return Korean
	case ratio(kana) > 0.1:
		return Japanese
	case ratio(han) > 0.3:
		return Chinese
	case ratio(latin) > 0.3:
		return English
	default:
		return English
	}
}
