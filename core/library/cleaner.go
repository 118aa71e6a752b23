package library

import (
	"regexp"
	"strings"
)

// Title cleanup strips the noise that rips and downloads leave in file
// names: leading track numbers, a redundant audio extension, and bracketed
// version tags.
var (
	leadingTrackNumber = regexp.MustCompile(`^\d{1,3}[\s.\-_]+`)
	redundantExtension = regexp.MustCompile(`(?i)\.(mp3|flac|wav|ogg|wma|m4a|aac)$`)
	bracketedTag       = regexp.MustCompile(`(?i)[(\[（【]\s*(live|demo|remaster(ed)?|explicit|clean|version|edit|mix|cover|instrumental|bonus track|\d{2,4}k(bps)?|现场|伴奏|翻唱|纯音乐)[^)\]）】]*[)\]）】]`)
	extraWhitespace    = regexp.MustCompile(`\s{2,}`)
)

// CleanTitle applies the title-cleanup transform. It is pure and
// idempotent: cleaning an already-clean title returns it unchanged.
func CleanTitle(title string) string {
	cleaned := strings.TrimSpace(title)
	cleaned = leadingTrackNumber.ReplaceAllString(cleaned, "")
	cleaned = redundantExtension.ReplaceAllString(cleaned, "")
	cleaned = bracketedTag.ReplaceAllString(cleaned, "")
	cleaned = extraWhitespace.ReplaceAllString(cleaned, " ")
	cleaned = strings.Trim(cleaned, " -_")

	// Never clean a title into nothing.
	if cleaned == "" {
		return strings.TrimSpace(title)
	}
	return cleaned
}
