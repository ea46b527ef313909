package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/id"
)

// String length limits
const (
	MaxIDLength      = 128
	MaxCommandLength = 4096
	MaxArgLength     = 32 * 1024
	MaxArgCount      = 256
	MaxTextLength    = 64 * 1024
	MaxEnvEntries    = 128
)

var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// ToolIDPattern allows alphanumeric, hyphens, underscores, and dots (for service.tool format)
	ToolIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	// EnvNamePattern matches portable environment variable names
	EnvNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// NUL cannot cross a shell command line
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

// ValidateTerminalID checks that value is a well-formed term_<ulid> session ID
func ValidateTerminalID(value, fieldName string) error {
	if err := ValidateID(value, fieldName, true); err != nil {
		return err
	}
	if _, err := id.ParseTerminalID(value); err != nil {
		return fmt.Errorf("%s: %w", fieldName, err)
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

// ValidateCommand validates a command and its arguments
func ValidateCommand(command string, args []string) error {
	if err := ValidateString(command, "command", 1, MaxCommandLength, true); err != nil {
		return err
	}
	if len(args) > MaxArgCount {
		return fmt.Errorf("args must not exceed %d entries", MaxArgCount)
	}
	for i, arg := range args {
		if err := ValidateString(arg, fmt.Sprintf("args[%d]", i), 0, MaxArgLength, false); err != nil {
			return err
		}
	}
	return nil
}

// ValidateText validates text typed into a terminal
func ValidateText(text string) error {
	return ValidateString(text, "text", 1, MaxTextLength, true)
}

// ValidateEnv validates extra environment variables for a new session
func ValidateEnv(env map[string]string) error {
	if len(env) > MaxEnvEntries {
		return fmt.Errorf("env must not exceed %d entries", MaxEnvEntries)
	}
	for name, value := range env {
		if !EnvNamePattern.MatchString(name) {
			return fmt.Errorf("env name %q is invalid", name)
		}
		if strings.Contains(value, "\x00") {
			return fmt.Errorf("env %s contains invalid characters", name)
		}
	}
	return nil
}
