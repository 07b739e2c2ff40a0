package markdown

import (
	"slices"
	"strings"
	"testing"

	"github.com/jcdickinson/docloc/internal/dri"
)

func TestRewriteLinks_InlineLinks(t *testing.T) {
	t.Parallel()
	src := "See [Foo](old/path) for details."
	got := RewriteLinks(src, map[string]string{"old/path": "../p/-foo/index.html"})
	want := "See [Foo](../p/-foo/index.html) for details."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewriteLinks_ReferenceStyleLinks(t *testing.T) {
	t.Parallel()
	src := "See [Foo][ref] for details.\n\n[ref]: old/path"
	got := RewriteLinks(src, map[string]string{"old/path": "p/foo.html"})
	if !strings.Contains(got, "[ref]: p/foo.html") {
		t.Errorf("reference link not rewritten: %q", got)
	}
}

func TestRewriteLinks_EmptyMap(t *testing.T) {
	t.Parallel()
	src := "Hello [world](url)."
	got := RewriteLinks(src, nil)
	if got != src {
		t.Errorf("expected unchanged, got %q", got)
	}
	got = RewriteLinks(src, map[string]string{})
	if got != src {
		t.Errorf("expected unchanged for empty map, got %q", got)
	}
}

func TestRewriteLinks_NoMatchingLinks(t *testing.T) {
	t.Parallel()
	src := "Check [this](keep-me) out."
	got := RewriteLinks(src, map[string]string{"other": "x.html"})
	if got != src {
		t.Errorf("expected unchanged, got %q", got)
	}
}

func TestRewriteLinks_MultipleLinks(t *testing.T) {
	t.Parallel()
	src := "[A](a-dest) and [B](b-dest) together."
	got := RewriteLinks(src, map[string]string{
		"a-dest": "a.html",
		"b-dest": "b.html",
	})
	if !strings.Contains(got, "(a.html)") {
		t.Error("link A not rewritten")
	}
	if !strings.Contains(got, "(b.html)") {
		t.Error("link B not rewritten")
	}
}

func fixedResolver(known map[string]string) func(dri.DRI) (string, bool) {
	return func(d dri.DRI) (string, bool) {
		loc, ok := known[d.String()]
		return loc, ok
	}
}

func TestResolveDRILinks(t *testing.T) {
	t.Parallel()
	resolve := fixedResolver(map[string]string{
		"kotlin.text/StringBuilder/~/decl/": "https://kotlinlang.org/api/core/kotlin-stdlib/kotlin.text/-string-builder/index.html",
		"p/A/~/decl/":                       "../p/-a/index.html",
	})

	tests := []struct {
		name           string
		src            string
		want           string
		wantUnresolved []string
	}{
		{
			name: "resolved",
			src:  "Use [StringBuilder](dri:kotlin.text/StringBuilder/~/decl/) and [A](dri:p/A/~/decl/).",
			want: "Use [StringBuilder](https://kotlinlang.org/api/core/kotlin-stdlib/kotlin.text/-string-builder/index.html) and [A](../p/-a/index.html).",
		},
		{
			name:           "unresolved degrades to text",
			src:            "See [Missing `Thing`](dri:q/Thing/~/decl/) here.",
			want:           "See Missing `Thing` here.",
			wantUnresolved: []string{"dri:q/Thing/~/decl/"},
		},
		{
			name:           "malformed degrades to text",
			src:            "A [broken](dri:nope) link.",
			want:           "A broken link.",
			wantUnresolved: []string{"dri:nope"},
		},
		{
			name: "other links untouched",
			src:  "[site](https://example.test) and [A](dri:p/A/~/decl/)",
			want: "[site](https://example.test) and [A](../p/-a/index.html)",
		},
		{
			name:           "nested brackets",
			src:            "x [a [b] c](dri:q/Z/~/decl/) y",
			want:           "x a [b] c y",
			wantUnresolved: []string{"dri:q/Z/~/decl/"},
		},
		{
			name:           "reference style",
			src:            "See [Thing][t] and [A][a].\n\n[t]: dri:q/Thing/~/decl/\n[a]: dri:p/A/~/decl/",
			want:           "See Thing and [A][a].\n\n[a]: ../p/-a/index.html",
			wantUnresolved: []string{"dri:q/Thing/~/decl/"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, unresolved := ResolveDRILinks(tt.src, resolve)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !slices.Equal(unresolved, tt.wantUnresolved) {
				t.Errorf("unresolved = %v, want %v", unresolved, tt.wantUnresolved)
			}
		})
	}
}
