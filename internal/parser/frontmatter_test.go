package parser

import (
	"reflect"
	"testing"
)

func TestParseValue_Types(t *testing.T) {
	cases := map[string]any{
		"[a, b]":     []string{"a", "b"},
		"[]":         []string{},
		"true":       true,
		"false":      false,
		"42":         42,
		"-3":         -3,
		"1.5":        1.5,
		`"quoted"`:   "quoted",
		"plain: x":   "plain: x",
		"2024-01-01": "2024-01-01",
	}
	for in, want := range cases {
		if got := parseValue(in); !reflect.DeepEqual(got, want) {
			t.Errorf("parseValue(%q) = %#v, want %#v", in, got, want)
		}
	}
}

func TestParseFrontmatter_BlockList(t *testing.T) {
	fm := parseFrontmatter([]string{"title: Hi", "tags:", "  - alpha", "  - beta", "n: 3"})
	if got := tagsFrom(fm); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Errorf("tags = %v", got)
	}
	if fm["n"] != 3 {
		t.Errorf("n = %v", fm["n"])
	}
}

func TestParseFrontmatter_MalformedLinesSkipped(t *testing.T) {
	fm := parseFrontmatter([]string{"not a pair", "bad key: 1", "title: ok"})
	if len(fm) != 1 || fm["title"] != "ok" {
		t.Errorf("fm = %v", fm)
	}
}

func TestTagsFrom_ScalarAndDedupe(t *testing.T) {
	if got := tagsFrom(map[string]any{"tags": "x, y, x"}); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("tags = %v", got)
	}
	if got := tagsFrom(map[string]any{"tags": 7}); !reflect.DeepEqual(got, []string{"7"}) {
		t.Errorf("tags = %v", got)
	}
	if got := tagsFrom(map[string]any{"title": "t"}); got != nil {
		t.Errorf("tags = %v, want nil", got)
	}
}

func TestTitleFrom_NonString(t *testing.T) {
	if got := titleFrom(map[string]any{"title": 2024}); got != "2024" {
		t.Errorf("title = %q", got)
	}
}
