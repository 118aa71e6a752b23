// Package pinyin derives phonetic readings and A-Z index letters from
// track and artist names. All functions are pure: the output depends only
// on the input string, which is what makes the derived letters usable as
// persisted sort keys.
package pinyin

import (
	"sort"
	"strings"

	gopinyin "github.com/mozillazg/go-pinyin"
)

// UnknownLetter groups names whose reading does not start with an ASCII
// letter (digits, symbols, unmappable characters).
const UnknownLetter = "#"

var args = newArgs()

func newArgs() gopinyin.Args {
	a := gopinyin.NewArgs()
	// 非汉字字符原样保留，而不是被丢弃
	a.Fallback = func(r rune, a gopinyin.Args) []string {
		return []string{string(r)}
	}
	return a
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isASCIIAlnum(b byte) bool {
	return isASCIILetter(b) || (b >= '0' && b <= '9')
}

// Convert returns the full phonetic reading of text. CJK ideographs map to
// their pinyin syllables, ASCII letters and digits pass through lower-cased,
// everything else acts as a delimiter and is dropped.
func Convert(text string) string {
	var sb strings.Builder
	for _, syllable := range gopinyin.LazyPinyin(text, args) {
		for i := 0; i < len(syllable); i++ {
			if isASCIIAlnum(syllable[i]) {
				sb.WriteByte(syllable[i])
			}
		}
	}
	return strings.ToLower(sb.String())
}

// FirstLetter returns the single uppercase index letter for text: the first
// letter of its reading, or UnknownLetter when the reading starts with a
// digit or is empty. Total over all strings, never fails.
func FirstLetter(text string) string {
	reading := Convert(text)
	if reading == "" {
		return UnknownLetter
	}
	c := reading[0]
	if isASCIILetter(c) {
		return strings.ToUpper(string(c))
	}
	return UnknownLetter
}

// Normalize returns both derived fields in one call.
func Normalize(text string) (reading string, firstLetter string) {
	reading = Convert(text)
	if reading == "" {
		return reading, UnknownLetter
	}
	if c := reading[0]; isASCIILetter(c) {
		return reading, strings.ToUpper(string(c))
	}
	return reading, UnknownLetter
}

// SortByPinyin returns a copy of items ordered by the phonetic reading of
// their label. Ties fall back to the raw label so the order is stable
// across runs.
func SortByPinyin[T any](items []T, label func(T) string) []T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := Convert(label(sorted[i])), Convert(label(sorted[j]))
		if pi != pj {
			return pi < pj
		}
		return label(sorted[i]) < label(sorted[j])
	})
	return sorted
}

// LetterGroup is one bucket of the A-Z index.
type LetterGroup[T any] struct {
	Letter string
	Items  []T
}

// GroupByFirstLetter buckets items by the index letter of their label,
// ordered A-Z with UnknownLetter last. Items inside a bucket keep pinyin
// order. Letters with no items are omitted.
func GroupByFirstLetter[T any](items []T, label func(T) string) []LetterGroup[T] {
	buckets := make(map[string][]T)
	for _, item := range SortByPinyin(items, label) {
		letter := FirstLetter(label(item))
		buckets[letter] = append(buckets[letter], item)
	}

	var groups []LetterGroup[T]
	for c := byte('A'); c <= 'Z'; c++ {
		letter := string(c)
		if bucket, ok := buckets[letter]; ok {
			groups = append(groups, LetterGroup[T]{Letter: letter, Items: bucket})
		}
	}
	if bucket, ok := buckets[UnknownLetter]; ok {
		groups = append(groups, LetterGroup[T]{Letter: UnknownLetter, Items: bucket})
	}
	return groups
}
