// Package resolver turns raw link targets into absolute document paths and
// back. Two encodings exist: plain relative paths and a custom-scheme URI
// rooted at the corpus base directory.
package resolver

import (
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultScheme is the URI scheme used when none is configured.
const DefaultScheme = "memo"

// Resolver is one link-target encoding.
type Resolver interface {
	// Resolve maps a raw target path (fragment already removed), written in
	// sourceDocument, to an absolute path.
	Resolve(raw, sourceDocument, baseDir string) string
	// Encode produces the raw target that points from fromDocument to target
	// in this encoding. like is the previous raw target, used to keep its style.
	Encode(fromDocument, target, baseDir, like string) string
}

// Target is a parsed raw link target.
type Target struct {
	Resolver Resolver
	Path     string // raw path without fragment
	Fragment string // includes leading '#', may be empty
}

// Resolve returns the absolute path the target refers to.
func (t Target) Resolve(sourceDocument, baseDir string) string {
	return t.Resolver.Resolve(t.Path, sourceDocument, baseDir)
}

// Relative resolves targets against the source document's directory.
type Relative struct{}

// Resolve implements Resolver.
func (Relative) Resolve(raw, sourceDocument, _ string) string {
	p := filepath.FromSlash(raw)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(filepath.Dir(sourceDocument), p)
}

// Encode implements Resolver. A previous target written with "./" keeps the
// prefix; one written bare stays bare unless it has to climb with "../".
func (Relative) Encode(fromDocument, target, _ string, like string) string {
	rel, err := filepath.Rel(filepath.Dir(fromDocument), target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return rel
	}
	if like == "" || strings.HasPrefix(like, "./") {
		return "./" + rel
	}
	return rel
}

// Scheme resolves "<name>://a/b.md" against the corpus base directory.
// Each segment is percent-decoded on its own so encoded separators survive.
type Scheme struct {
	Name string
}

func (s Scheme) prefix() string {
	return s.Name + ":"
}

// Matches reports whether raw uses this scheme.
func (s Scheme) Matches(raw string) bool {
	return len(raw) > len(s.prefix()) && strings.EqualFold(raw[:len(s.prefix())], s.prefix())
}

// Resolve implements Resolver.
func (s Scheme) Resolve(raw, _ string, baseDir string) string {
	rest := strings.TrimLeft(raw[len(s.prefix()):], "/")
	segments := strings.Split(rest, "/")
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, baseDir)
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if dec, err := url.PathUnescape(seg); err == nil {
			seg = dec
		}
		parts = append(parts, seg)
	}
	return filepath.Join(parts...)
}

// Encode implements Resolver. The number of slashes after the scheme is
// taken from like.
func (s Scheme) Encode(_ string, target, baseDir string, like string) string {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		rel = target
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	slashes := "//"
	if s.Matches(like) {
		rest := like[len(s.prefix()):]
		slashes = rest[:len(rest)-len(strings.TrimLeft(rest, "/"))]
	}
	return s.Name + ":" + slashes + strings.Join(segments, "/")
}

// Set selects the resolver variant for a raw target.
type Set struct {
	scheme Scheme
}

// NewSet returns a resolver set using the given custom scheme name.
func NewSet(scheme string) *Set {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &Set{scheme: Scheme{Name: scheme}}
}

// Parse classifies raw. ok is false for web URLs, other URI schemes,
// pure fragments and empty targets.
func (s *Set) Parse(raw string) (Target, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || IsWebURL(raw) {
		return Target{}, false
	}
	path, frag := raw, ""
	if i := strings.Index(raw, "#"); i >= 0 {
		path, frag = raw[:i], raw[i:]
	}
	if path == "" {
		return Target{}, false
	}
	if s.scheme.Matches(path) {
		return Target{Resolver: s.scheme, Path: path, Fragment: frag}, true
	}
	if hasScheme(path) {
		return Target{}, false
	}
	return Target{Resolver: Relative{}, Path: path, Fragment: frag}, true
}

// IsWebURL reports whether raw is an http(s) URL.
func IsWebURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// hasScheme reports whether raw starts with "scheme:" (mailto:, ftp:, ...).
// A single letter followed by ':' is a Windows drive, not a scheme.
func hasScheme(raw string) bool {
	i := strings.Index(raw, ":")
	if i <= 1 {
		return false
	}
	for j, r := range raw[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
