package payload

import (
	"strings"
	"unicode/utf8"
)

// StripHTML removes tags from rendered comment bodies so the text can be
// shown in notification feeds and push alerts. Entities common in platform
// output are unescaped; anything inside angle brackets is dropped.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}

	out := b.String()
	for old, new := range map[string]string{
		"&amp;":  "&",
		"&lt;":   "<",
		"&gt;":   ">",
		"&quot;": `"`,
		"&#39;":  "'",
		"&nbsp;": " ",
	} {
		out = strings.ReplaceAll(out, old, new)
	}

	return strings.Join(strings.Fields(out), " ")
}

// Truncate cuts s to at most n runes, appending an ellipsis when shortened.
// Cuts happen on rune boundaries so multibyte text is never split.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " ") + "…"
}
