package locator

import (
	"testing"

	"github.com/resourcex/resourcex"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want resourcex.Identifier
	}{
		{"hello", resourcex.Identifier{Name: "hello", Tag: "latest"}},
		{"hello:1.0.0", resourcex.Identifier{Name: "hello", Tag: "1.0.0"}},
		{"foo/bar", resourcex.Identifier{Path: "foo", Name: "bar", Tag: "latest"}},
		{
			"localhost:3098/prompts/hello:stable",
			resourcex.Identifier{Registry: "localhost:3098", Path: "prompts", Name: "hello", Tag: "stable"},
		},
		{
			"example.com/prompts/hello",
			resourcex.Identifier{Registry: "example.com", Path: "prompts", Name: "hello", Tag: "latest"},
		},
		{"localhost/hello", resourcex.Identifier{Registry: "localhost", Name: "hello", Tag: "latest"}},
	}

	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "a@b", "foo:", "foo/"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", in)
		} else if resourcex.KindOf(err) != resourcex.KindInvalidLocator {
			t.Errorf("Parse(%q): kind = %v, want InvalidLocator", in, resourcex.KindOf(err))
		}
	}
}

func TestFormat(t *testing.T) {
	id := resourcex.Identifier{Registry: "example.com", Path: "prompts", Name: "hello", Tag: "latest"}
	if got := Format(id, false); got != "example.com/prompts/hello:latest" {
		t.Errorf("Format(canonical=false) = %q", got)
	}
	if got := Format(id, true); got != "example.com/prompts/hello" {
		t.Errorf("Format(canonical=true) = %q", got)
	}

	id.Tag = "stable"
	if got := Format(id, true); got != "example.com/prompts/hello:stable" {
		t.Errorf("Format(canonical=true, non-latest tag) = %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"hello:1.0.0", "foo/bar:latest", "localhost:3098/prompts/hello:stable"} {
		id, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := Format(id, false); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}
