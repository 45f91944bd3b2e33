// Package markdown holds the text transforms applied to chapter bodies before
// they leave the workspace: HTML rendering, asset link rewriting and excerpts.
//
// Each transform is a small pure function so the rules can be tested one at a
// time instead of as a chain of substitutions.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ExcerptLimit is the default excerpt length in characters.
const ExcerptLimit = 500

var (
	imageRe    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	ruleRe     = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
	headingRe  = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	quoteRe    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	emphasisRe = regexp.MustCompile("\\*{1,3}|_{2,3}|~~|`")
	underRe    = regexp.MustCompile(`(^|\W)_([^_\s](?:[^_]*[^_\s])?)_(\W|$)`)
	htmlTagRe  = regexp.MustCompile(`<[^>]+>`)

	mdAssetRe   = regexp.MustCompile(`\]\((?:\.{1,2}/)*_assets/([^)\s]+)\)`)
	htmlAssetRe = regexp.MustCompile(`src="(?:\.{1,2}/)*_assets/([^"]+)"`)
)

var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// ToHTML renders a Markdown body to HTML.
func ToHTML(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := engine.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("markdown: render: %w", err)
	}
	return buf.Bytes(), nil
}

// RewriteAssetLinks turns body references to the project's relative _assets
// directory into absolute URLs under <siteURL>/assets/<novelSlug>/.
func RewriteAssetLinks(body, siteURL, novelSlug string) string {
	base := strings.TrimRight(siteURL, "/") + "/assets/" + novelSlug + "/"
	body = mdAssetRe.ReplaceAllString(body, "]("+base+"$1)")
	return htmlAssetRe.ReplaceAllString(body, `src="`+base+`$1"`)
}

// Excerpt returns plain text derived from body, at most limit characters
// plus a trailing "..." when truncated.
func Excerpt(body string, limit int) string {
	text := StripImages(body)
	text = StripLinks(text)
	text = StripRules(text)
	text = StripHeadings(text)
	text = StripEmphasis(text)
	text = htmlTagRe.ReplaceAllString(text, "")
	return Truncate(CollapseWhitespace(text), limit)
}

// StripImages removes ![alt](src) image markup.
func StripImages(s string) string {
	return imageRe.ReplaceAllString(s, "")
}

// StripLinks replaces [text](href) with text.
func StripLinks(s string) string {
	return linkRe.ReplaceAllString(s, "$1")
}

// StripRules removes horizontal rule lines.
func StripRules(s string) string {
	return ruleRe.ReplaceAllString(s, "")
}

// StripHeadings removes leading heading and blockquote markers.
func StripHeadings(s string) string {
	return quoteRe.ReplaceAllString(headingRe.ReplaceAllString(s, ""), "")
}

// StripEmphasis removes bold, italic, strike-through and code markers.
// Single underscores are stripped only around a span, so snake_case names
// survive.
func StripEmphasis(s string) string {
	s = emphasisRe.ReplaceAllString(s, "")
	// Adjacent spans share a boundary character, so repeat until stable.
	for {
		next := underRe.ReplaceAllString(s, "$1$2$3")
		if next == s {
			return s
		}
		s = next
	}
}

// CollapseWhitespace joins all whitespace runs into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most limit characters, cutting at the last
// whitespace at or before limit, and appends "..." when it cut anything.
// Text with no whitespace in range is cut hard at limit.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := limit
	if !unicode.IsSpace(runes[limit]) {
		for i := limit - 1; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + "..."
}
