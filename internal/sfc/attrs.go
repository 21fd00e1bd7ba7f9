package sfc

import (
	"strings"

	"golang.org/x/net/html"
)

// parseAttrs reads the attributes of a raw opening tag. Attribute names
// keep their original case. Bare attributes become true; values are
// entity-decoded.
func parseAttrs(raw string) Attrs {
	attrs := Attrs{}

	s := strings.TrimPrefix(raw, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.TrimSuffix(s, "/")

	// skip the tag name
	i := 0
	for i < len(s) && !isSpace(s[i]) {
		i++
	}

	for i < len(s) {
		for i < len(s) && (isSpace(s[i]) || s[i] == '/') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && !isSpace(s[i]) && s[i] != '=' && s[i] != '/' {
			i++
		}
		name := s[start:i]

		j := i
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j >= len(s) || s[j] != '=' {
			if name != "" {
				attrs[name] = true
			}
			continue
		}

		i = j + 1
		for i < len(s) && isSpace(s[i]) {
			i++
		}

		var value string
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			quote := s[i]
			i++
			vstart := i
			for i < len(s) && s[i] != quote {
				i++
			}
			value = s[vstart:i]
			if i < len(s) {
				i++
			}
		} else {
			vstart := i
			for i < len(s) && !isSpace(s[i]) {
				i++
			}
			value = s[vstart:i]
		}

		if name != "" {
			attrs[name] = html.UnescapeString(value)
		}
	}

	return attrs
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
