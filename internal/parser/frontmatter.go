package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const fmDelim = "---"

var (
	intRe     = regexp.MustCompile(`^[-+]?\d+$`)
	decimalRe = regexp.MustCompile(`^[-+]?(\d+\.\d*|\.\d+)$`)
)

// frontmatterEnd returns the index of the closing delimiter line, or -1 when
// lines do not open with a complete frontmatter block.
func frontmatterEnd(lines []string) int {
	if len(lines) == 0 || strings.TrimRight(strings.TrimPrefix(lines[0], "\ufeff"), " \t\r") != fmDelim {
		return -1
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == fmDelim {
			return i
		}
	}
	return -1
}

// parseFrontmatter reads the simple "key: value" format. Lines it cannot
// understand are skipped. A key with an empty value followed by "- item"
// lines collects those items as a string list.
func parseFrontmatter(lines []string) map[string]any {
	fm := make(map[string]any)
	var listKey string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if listKey != "" && strings.HasPrefix(trimmed, "- ") {
			item := unquote(strings.TrimSpace(trimmed[2:]))
			if item != "" {
				list, _ := fm[listKey].([]string)
				fm[listKey] = append(list, item)
			}
			continue
		}
		listKey = ""

		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			listKey = key
			fm[key] = []string(nil)
			continue
		}
		fm[key] = parseValue(value)
	}
	return fm
}

// parseValue types a scalar: [a, b] lists, booleans, integers, decimals,
// and strings for everything else.
func parseValue(v string) any {
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		inner := strings.TrimSpace(v[1 : len(v)-1])
		if inner == "" {
			return []string{}
		}
		parts := strings.Split(inner, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := unquote(strings.TrimSpace(p)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if intRe.MatchString(v) {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if decimalRe.MatchString(v) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return unquote(v)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// tagsFrom returns the tags declared in fm, or nil when there is no usable
// tags key. A scalar string is read as a comma-separated list.
func tagsFrom(fm map[string]any) []string {
	raw, ok := fm["tags"]
	if !ok {
		return nil
	}
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case string:
		items = strings.Split(v, ",")
	case nil:
		return nil
	default:
		items = []string{fmt.Sprint(v)}
	}

	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, t := range items {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// titleFrom returns the frontmatter title, or "" if absent.
func titleFrom(fm map[string]any) string {
	switch v := fm["title"].(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	default:
		return fmt.Sprint(v)
	}
}
