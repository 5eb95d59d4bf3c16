// Package chunker splits reply text into segments short enough for speech synthesis.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMaxSize = 400

// Options configures segmenting. Sizes are in runes.
type Options struct {
	MaxSize int
}

// DefaultOptions returns default segmenting options.
func DefaultOptions() Options {
	return Options{MaxSize: DefaultMaxSize}
}

// Segments splits text on sentence boundaries and packs consecutive sentences into segments of at
// most MaxSize runes. A sentence longer than MaxSize is split on whitespace. Short text returns a
// single segment.
func Segments(text string, opts Options) []string {
	if opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Short content, no splitting needed
	if utf8.RuneCountInString(text) <= opts.MaxSize {
		return []string{text}
	}

	return merge(sentences(text), opts)
}

// sentences splits after '.', '!', '?' or a newline.
func sentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)

	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if isTerminator(r) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()

	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '।'
}

// merge combines sentences up to MaxSize and splits oversized ones.
func merge(parts []string, opts Options) []string {
	var results []string
	var accum string

	flushAccum := func() {
		if accum != "" {
			results = append(results, accum)
		}
		accum = ""
	}

	for _, p := range parts {
		if utf8.RuneCountInString(p) > opts.MaxSize {
			flushAccum()
			results = append(results, hardSplit(p, opts.MaxSize)...)
			continue
		}
		if accum == "" {
			accum = p
			continue
		}

		combined := accum + " " + p
		if utf8.RuneCountInString(combined) <= opts.MaxSize {
			accum = combined
		} else {
			flushAccum()
			accum = p
		}
	}
	flushAccum()

	return results
}

// hardSplit breaks text on whitespace, cutting words that alone exceed limit.
func hardSplit(text string, limit int) []string {
	var results []string
	var current []rune

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > limit {
			if len(current) > 0 {
				results = append(results, string(current))
				current = nil
			}
			results = append(results, string(w[:limit]))
			w = w[limit:]
		}
		if len(w) == 0 {
			continue
		}
		if len(current) > 0 && len(current)+1+len(w) > limit {
			results = append(results, string(current))
			current = nil
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	if len(current) > 0 {
		results = append(results, string(current))
	}

	return results
}
