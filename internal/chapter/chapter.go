// Package chapter derives ordering, titles and slugs from chapter filenames.
//
// The naming convention is Chap_<digits>[-<Letter>]_<authorcode>_<Title_With_Underscores>.md.
// Files that do not follow it are still processed: they sort last and are
// titled by their filename stem.
package chapter

import (
	"cmp"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// UnorderedKey is the order assigned to filenames outside the convention.
const UnorderedKey = 999

var (
	orderRe = regexp.MustCompile(`^Chap_(\d+)(?:-([A-Z]))?_`)
	titleRe = regexp.MustCompile(`^Chap_\d+(?:-[A-Z])?_[^_]+_(.+)$`)
)

// Stem returns the base name of p without its extension.
func Stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OrderKey returns mainIndex*10 + subIndex, where subIndex is the alphabet
// position of the optional letter (A=1). Letters past I overlap the next
// chapter's range.
func OrderKey(name string) int {
	m := orderRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return UnorderedKey
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return UnorderedKey
	}
	sub := 0
	if m[2] != "" {
		sub = int(m[2][0]-'A') + 1
	}
	return n*10 + sub
}

// DefaultTitle returns the descriptive tail of the filename with underscores
// turned into spaces, or the stem when the name is not conventional.
func DefaultTitle(name string) string {
	stem := Stem(name)
	m := titleRe.FindStringSubmatch(stem)
	if m == nil {
		return stem
	}
	return strings.ReplaceAll(m[1], "_", " ")
}

// Slug returns the URL slug of a chapter: lower-cased stem, underscores to hyphens.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(Stem(name)), "_", "-")
}

// ProjectFromPath returns the novel identifier encoded in a chapter path,
// either projects/<novel>/... or .../content/novels/<novel>/.... The
// innermost match wins.
func ProjectFromPath(p string) (string, bool) {
	parts := strings.Split(path.Clean(filepath.ToSlash(p)), "/")
	for i := len(parts) - 3; i >= 0; i-- {
		switch {
		case parts[i] == "projects":
			return parts[i+1], parts[i+1] != ""
		case parts[i] == "novels" && i > 0 && parts[i-1] == "content":
			return parts[i+1], parts[i+1] != ""
		}
	}
	return "", false
}

// Sort orders names by OrderKey, then by name.
func Sort(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		if c := cmp.Compare(OrderKey(a), OrderKey(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}
