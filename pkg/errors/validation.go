package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateID validates a module or connection id read from a pipeline file
// or request body.
//
// The rules are intentionally conservative:
//   - No empty ids
//   - No control characters or null bytes
//   - No whitespace at either end
//   - Maximum length of 256 characters
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPipeline, "id cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidPipeline, "id too long (max 256 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPipeline, "id contains invalid control characters")
		}
	}

	if strings.TrimSpace(id) != id {
		return New(ErrCodeInvalidPipeline, "id %q has leading or trailing whitespace", id)
	}

	return nil
}

// classNameRegex matches class names, optionally qualified by a dotted
// package identifier: "Integer", "basic:Integer", "org.example.viz:Plot".
var classNameRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z_][A-Za-z0-9_-]*)*:)?[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateClassName validates a module class name.
func ValidateClassName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "class name cannot be empty")
	}

	if !classNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid class name: %q", name)
	}

	return nil
}

// portNameRegex matches port names.
var portNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidatePortName validates a port name.
func ValidatePortName(name string) error {
	if !portNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid port name: %q", name)
	}
	return nil
}

// ValidatePath validates a relative file path, such as a registry include.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	// Must not be absolute path
	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	// Check for path traversal
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	// No backslashes (potential Windows path injection)
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
