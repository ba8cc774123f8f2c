package session

import "fmt"

const maxNameLen = 64

// ValidateName checks a session name before it becomes a directory
// under ~/.chirp/sessions. Allowed: lowercase letters, digits,
// underscore, hyphen, 1 to 64 characters.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("invalid session name %q: must be 1-64 characters of [a-z0-9_-]", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("invalid session name %q: must be 1-64 characters of [a-z0-9_-]", name)
		}
	}
	return nil
}
