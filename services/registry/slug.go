package registry

import "strings"

// NormalizeSlug derives the stable identifier for a component name:
// lowercase, with every run of non-alphanumeric characters collapsed to a
// single "-" and leading/trailing separators trimmed. The result matches
// [a-z0-9-]* and the function is idempotent.
func NormalizeSlug(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}

	return b.String()
}
