// Package parser extracts inline links and frontmatter tags/title from
// document text. It performs no I/O.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/resolver"
)

// contextRadius is the number of lines kept on each side of a link.
const contextRadius = 2

var linkRe = regexp.MustCompile(`\[([^\[\]]*)\]\(([^()\s]+)\)`)

// Occurrence is one inline link occurrence in a text, with byte offsets
// into the whole text.
type Occurrence struct {
	Line        int // 1-based
	Start, End  int // the full "[text](target)" span
	TextStart   int
	TextEnd     int
	TargetStart int
	TargetEnd   int
	Text        string
	RawTarget   string
}

// EachLink calls fn for every inline link outside frontmatter and fenced
// code blocks, in text order. Image links are skipped. Iteration stops when
// fn returns false.
func EachLink(text string, fn func(Occurrence) bool) {
	lines := strings.Split(text, "\n")
	first := 0
	if end := frontmatterEnd(lines); end > 0 {
		first = end + 1
	}

	offset := 0
	for i := 0; i < first; i++ {
		offset += len(lines[i]) + 1
	}

	inFence := false
	for i := first; i < len(lines); i++ {
		line := lines[i]
		lineStart := offset
		offset += len(line) + 1

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		for _, m := range linkRe.FindAllStringSubmatchIndex(line, -1) {
			if m[0] > 0 && line[m[0]-1] == '!' {
				continue
			}
			occ := Occurrence{
				Line:        i + 1,
				Start:       lineStart + m[0],
				End:         lineStart + m[1],
				TextStart:   lineStart + m[2],
				TextEnd:     lineStart + m[3],
				TargetStart: lineStart + m[4],
				TargetEnd:   lineStart + m[5],
				Text:        line[m[2]:m[3]],
				RawTarget:   line[m[4]:m[5]],
			}
			if !fn(occ) {
				return
			}
		}
	}
}

// Result holds the output of scanning one document.
type Result struct {
	Links       []models.Link
	Tags        []string // nil when the document declares no tags
	Title       string
	Frontmatter map[string]any
}

// Scanner extracts links that resolve to documents with a recognised extension.
type Scanner struct {
	Resolvers  *resolver.Set
	BaseDir    string
	Extensions []string
}

// NewScanner creates a scanner for a corpus rooted at baseDir.
func NewScanner(resolvers *resolver.Set, baseDir string, extensions []string) *Scanner {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, NormalizeExtension(e))
	}
	return &Scanner{Resolvers: resolvers, BaseDir: baseDir, Extensions: exts}
}

// NormalizeExtension lowercases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// HasExtension reports whether path ends in one of the scanner's extensions.
func (s *Scanner) HasExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range s.Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ResolveTarget resolves a raw link target written in source. ok is false for
// web URLs, unknown schemes and targets without a document extension.
func (s *Scanner) ResolveTarget(source, raw string) (resolver.Target, string, bool) {
	target, ok := s.Resolvers.Parse(raw)
	if !ok {
		return resolver.Target{}, "", false
	}
	abs := target.Resolve(source, s.BaseDir)
	if !s.HasExtension(abs) {
		return resolver.Target{}, "", false
	}
	return target, abs, true
}

// Scan parses text belonging to the document at source.
func (s *Scanner) Scan(source, text string) Result {
	var res Result

	lines := strings.Split(text, "\n")
	if end := frontmatterEnd(lines); end > 0 {
		fm := parseFrontmatter(lines[1:end])
		res.Frontmatter = fm
		res.Tags = tagsFrom(fm)
		res.Title = titleFrom(fm)
	}

	EachLink(text, func(o Occurrence) bool {
		_, abs, ok := s.ResolveTarget(source, o.RawTarget)
		if !ok {
			return true
		}
		res.Links = append(res.Links, models.Link{
			SourceDocument: source,
			SourceLine:     o.Line,
			LinkText:       o.Text,
			RawTarget:      o.RawTarget,
			Target:         abs,
			Context:        surrounding(lines, o.Line-1),
		})
		return true
	})
	return res
}

// surrounding returns the lines within contextRadius of idx.
func surrounding(lines []string, idx int) string {
	lo := max(idx-contextRadius, 0)
	hi := min(idx+contextRadius+1, len(lines))
	return strings.Join(lines[lo:hi], "\n")
}
