// Package cleaner strips authoring metadata from chapter files in place.
package cleaner

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/novelpress/internal/storage"
)

// DefaultLabels are the bullet labels removed when no labels are configured.
var DefaultLabels = []string{"POV", "Timeline", "Status", "Word Count", "Notes"}

var (
	// <!-- meta ... --> and <!-- metadata ... --> comments.
	metaCommentRe = regexp.MustCompile(`(?is)<!--\s*meta(?:data)?\b.*?-->[ \t]*(?:\n|\z)`)
	// ```meta / ```metadata fenced blocks.
	metaFenceRe = regexp.MustCompile("(?ims)^```[ \\t]*meta(?:data)?[ \\t]*\\n.*?^```[ \\t]*(?:\\n|\\z)")
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	fmBlankRe   = regexp.MustCompile(`\A(---\n(?:[\s\S]*?\n)?---\n)\n+`)
)

// Report summarizes a CleanDir run.
type Report struct {
	Files   int
	Changed int
}

// Cleaner removes metadata artifacts from chapter text.
type Cleaner struct {
	labelRe *regexp.Regexp
	out     io.Writer
	logger  *slog.Logger
}

// New creates a Cleaner removing bullet lines for the given labels.
// A nil or empty labels slice selects DefaultLabels.
func New(labels []string, out io.Writer, logger *slog.Logger) *Cleaner {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Cleaner{labelRe: labelPattern(labels), out: out, logger: logger}
}

// labelPattern matches "- **Label:** value" and "- **Label**: value" lines.
func labelPattern(labels []string) *regexp.Regexp {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	alt := strings.Join(quoted, "|")
	return regexp.MustCompile(`(?mi)^[ \t]*[-*+][ \t]+\*\*(?:` + alt + `)(?:[ \t]*[:：][ \t]*\*\*|\*\*[ \t]*[:：]).*(?:\n|\z)`)
}

// Clean returns content with metadata blocks and labeled bullets removed,
// blank-line runs collapsed and blank lines after the front matter dropped.
func (c *Cleaner) Clean(content string) string {
	s := strings.ReplaceAll(content, "\r\n", "\n")
	s = metaCommentRe.ReplaceAllString(s, "")
	s = metaFenceRe.ReplaceAllString(s, "")
	s = c.labelRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return fmBlankRe.ReplaceAllString(s, "$1")
}

// CleanDir cleans every .md file directly under the store root and rewrites
// the ones whose bytes changed. The first read or write error aborts the run.
func (c *Cleaner) CleanDir(store storage.Provider) (Report, error) {
	var rep Report
	files, err := store.List("")
	if err != nil {
		return rep, fmt.Errorf("cleaner: %w", err)
	}
	for _, f := range files {
		data, err := store.Read(f.Path)
		if err != nil {
			return rep, fmt.Errorf("cleaner: %w", err)
		}
		rep.Files++
		cleaned := c.Clean(string(data))
		if cleaned == string(data) {
			fmt.Fprintf(c.out, "· unchanged %s\n", f.Name)
			continue
		}
		if err := store.Write(f.Path, []byte(cleaned)); err != nil {
			return rep, fmt.Errorf("cleaner: %w", err)
		}
		rep.Changed++
		c.logger.Debug("cleaner: rewrote", slog.String("path", f.Path),
			slog.Int("before", len(data)), slog.Int("after", len(cleaned)))
		fmt.Fprintf(c.out, "✓ cleaned %s\n", f.Name)
	}
	fmt.Fprintf(c.out, "\nCleaned %d of %d files\n", rep.Changed, rep.Files)
	return rep, nil
}
