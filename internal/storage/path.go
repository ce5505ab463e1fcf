package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// BuildUploadPath returns the archive key of one uploaded file:
// sessions/<session>/<role>/<file>. The file name is sanitized; session and
// role must already be valid path components.
func BuildUploadPath(sessionID, role, fileName string) (string, error) {
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(role, "upload role"); err != nil {
		return "", err
	}
	name := SanitizeFileName(fileName)
	if err := validatePathComponent(name, "file name"); err != nil {
		return "", err
	}
	return path.Join("sessions", sessionID, role, name), nil
}

// SanitizeFileName keeps the base name and replaces characters outside
// [a-zA-Z0-9._-] with underscores.
func SanitizeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	cleaned := unsafeFileChars.ReplaceAllString(base, "_")
	cleaned = strings.TrimLeft(cleaned, "._-")
	if len(cleaned) > 128 {
		cleaned = cleaned[len(cleaned)-128:]
	}
	return cleaned
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
