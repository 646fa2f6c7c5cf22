package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Size limits (in bytes)
const (
	MaxJSONSize    = 1 * 1024 * 1024 // 1MB - maximum JSON payload size
	MaxCommandSize = 16 * 1024       // 16KB - single command line
	MaxMessageSize = 4 * 1024        // 4KB - discovery intent
)

// String length limits
const (
	MaxIDLength       = 128
	MaxPathLength     = 4096
	MaxCategoryLength = 64
	MaxTerminalDim    = 1000
)

// Regular expressions for validation
var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// ToolIDPattern allows alphanumeric, hyphens, underscores, and dots (for service.tool format)
	ToolIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	categoryPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidateJSONSize checks that a JSON-serializable value stays within limit
func ValidateJSONSize(v interface{}, limit int) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if len(data) > limit {
		return fmt.Errorf("JSON size %d bytes exceeds maximum %d bytes", len(data), limit)
	}
	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateToolID validates a tool ID field (allows dots for service.tool format)
func ValidateToolID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !ToolIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateCategory validates a category field
func ValidateCategory(category string, required bool) error {
	if err := ValidateString(category, "category", 0, MaxCategoryLength, required); err != nil {
		return err
	}

	if category != "" && !categoryPattern.MatchString(category) {
		return fmt.Errorf("category must contain only lowercase letters, numbers, and hyphens")
	}

	return nil
}

// ValidateCommand validates a single shell command line. Embedded newlines
// would let one request run several commands past the exit marker.
func ValidateCommand(command string) error {
	if err := ValidateString(command, "command", 1, MaxCommandSize, true); err != nil {
		return err
	}
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command is required")
	}
	if strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("command must be a single line")
	}
	return nil
}

// ValidatePath validates an optional filesystem path
func ValidatePath(path, fieldName string) error {
	return ValidateString(path, fieldName, 0, MaxPathLength, false)
}

// ValidateTerminalSize validates terminal dimensions. Zero means unset
// unless required.
func ValidateTerminalSize(cols, rows uint16, required bool) error {
	if cols == 0 && rows == 0 && !required {
		return nil
	}
	if cols == 0 || rows == 0 {
		return fmt.Errorf("cols and rows must both be positive")
	}
	if cols > MaxTerminalDim || rows > MaxTerminalDim {
		return fmt.Errorf("terminal size must not exceed %dx%d", MaxTerminalDim, MaxTerminalDim)
	}
	return nil
}

// ValidateMessage validates a free-text discovery intent
func ValidateMessage(message string) error {
	if err := ValidateString(message, "message", 1, MaxMessageSize, true); err != nil {
		return err
	}

	// Check for excessive whitespace (potential DoS)
	whitespaceCount := 0
	for _, r := range message {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			whitespaceCount++
		}
	}

	if whitespaceCount > len(message)/2 {
		return fmt.Errorf("message contains excessive whitespace")
	}

	return nil
}
