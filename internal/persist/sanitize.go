package persist

import (
	"strings"

	"github.com/shashiranjanraj/cartsync/internal/cart"
)

// Sanitizer strips image references that only resolve inside the session
// that created them (for example "blob:" URIs). Such a reference is
// meaningless once stored and loaded elsewhere.
type Sanitizer struct {
	schemes []string
}

func NewSanitizer(schemes ...string) Sanitizer {
	out := make([]string, 0, len(schemes))
	for _, s := range schemes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return Sanitizer{schemes: out}
}

// SessionLocal reports whether ref uses one of the session-local schemes.
func (s Sanitizer) SessionLocal(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	for _, scheme := range s.schemes {
		if strings.HasPrefix(ref, scheme) {
			return true
		}
	}
	return false
}

// Lines returns lines with session-local images cleared and how many were
// cleared. lines itself is not modified.
func (s Sanitizer) Lines(lines []cart.Line) ([]cart.Line, int) {
	out := make([]cart.Line, len(lines))
	stripped := 0
	for i, l := range lines {
		if l.Image != "" && s.SessionLocal(l.Image) {
			l.Image = ""
			stripped++
		}
		out[i] = l
	}
	return out, stripped
}
