package scraper

import "github.com/abadojack/whatlanggo"

// IsEnglish reports whether text is detected as English. Empty text is not.
func IsEnglish(text string) bool {
	if text == "" {
		return false
	}
	return whatlanggo.Detect(text).Lang == whatlanggo.Eng
}
