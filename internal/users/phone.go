package users

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone converts user input into the identity key: a leading "+", no
// whitespace, and an international "00" prefix rewritten to "+".
func NormalizePhone(raw string) (string, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	switch {
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case !strings.HasPrefix(s, "+"):
		s = "+" + s
	}
	if len(s) < 2 {
		return "", fmt.Errorf("%w: phone is required", ErrInvalidArgument)
	}
	return s, nil
}

func normalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		n, err := NormalizePhone(p)
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
