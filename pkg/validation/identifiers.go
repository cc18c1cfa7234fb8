package validation

// MaxNameLength bounds remote and profile names.
const MaxNameLength = 64

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
//
// Remote names and profile names share this alphabet so they can be used as
// YAML keys and keyring account names without escaping.
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// IsValidName reports whether name is a usable remote or profile name:
// non-empty, at most MaxNameLength characters, identifier characters only.
func IsValidName(name string) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	for _, ch := range name {
		if !IsValidIdentifierChar(ch) {
			return false
		}
	}
	return true
}
