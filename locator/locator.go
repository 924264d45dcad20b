// Package locator parses and formats ResourceX's Docker-style identifiers:
// [registry/][path/]name[:tag].
package locator

import (
	"strings"

	"github.com/resourcex/resourcex"
)

const defaultTag = "latest"

// Parse parses s into a Locator, or returns a *resourcex.Error with
// Kind resourcex.KindInvalidLocator.
func Parse(s string) (resourcex.Identifier, error) {
	if s == "" {
		return resourcex.Identifier{}, resourcex.NewError(resourcex.KindInvalidLocator, "empty locator")
	}
	if strings.Contains(s, "@") {
		return resourcex.Identifier{}, resourcex.NewError(resourcex.KindInvalidLocator, "locator must not contain '@'")
	}

	prefix, tail := s, ""
	if i := strings.LastIndex(s, "/"); i >= 0 {
		prefix, tail = s[:i], s[i+1:]
	} else {
		tail = s
	}

	name, tag := tail, defaultTag
	if i := strings.LastIndex(tail, ":"); i >= 0 {
		name, tag = tail[:i], tail[i+1:]
		if tag == "" {
			return resourcex.Identifier{}, resourcex.NewError(resourcex.KindInvalidLocator, "empty tag")
		}
	}
	if name == "" {
		return resourcex.Identifier{}, resourcex.NewError(resourcex.KindInvalidLocator, "empty name")
	}

	id := resourcex.Identifier{Name: name, Tag: tag}
	if prefix == s {
		// No "/" at all: prefix was never split off.
		return id, nil
	}

	segments := strings.Split(prefix, "/")
	if looksLikeRegistry(segments[0]) {
		id.Registry = segments[0]
		id.Path = strings.Join(segments[1:], "/")
	} else {
		id.Path = prefix
	}
	return id, nil
}

// looksLikeRegistry reports whether seg should be treated as a registry
// host rather than the first component of a path, per spec: a token is a
// registry iff it contains '.', contains ':' with no '/', or equals
// "localhost".
func looksLikeRegistry(seg string) bool {
	if seg == "localhost" {
		return true
	}
	if strings.Contains(seg, ".") {
		return true
	}
	if strings.Contains(seg, ":") && !strings.Contains(seg, "/") {
		return true
	}
	return false
}

// Format renders id back to its string form. When canonical is true, the
// tag is omitted if it is "latest".
func Format(id resourcex.Identifier, canonical bool) string {
	var b strings.Builder
	if id.Registry != "" {
		b.WriteString(id.Registry)
		b.WriteByte('/')
	}
	if id.Path != "" {
		b.WriteString(id.Path)
		b.WriteByte('/')
	}
	b.WriteString(id.Name)
	if !canonical || id.Tag != defaultTag {
		b.WriteByte(':')
		b.WriteString(id.Tag)
	}
	return b.String()
}
