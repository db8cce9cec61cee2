package cli

import (
	"errors"
	"fmt"
)

// Exit codes of the courier binary. Anything that is not a configuration
// problem exits with ExitFailure.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// ExitCode returns the process exit code for err as returned by a command.
func ExitCode(err error) int {
	var ce *ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ce):
		return ExitConfig
	default:
		return ExitFailure
	}
}

// ConfigError is a configuration that could not be loaded, failed
// validation, or was made invalid by a command line override.
type ConfigError struct {
	// Field is the config file, or the field or flag at fault.
	Field   string
	Message string
	Err     error
}

// NewConfigError reports message against field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// WrapConfigError reports a failure to load or validate the config at path.
func WrapConfigError(path string, err error) *ConfigError {
	return &ConfigError{Field: path, Message: "invalid configuration", Err: err}
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CommandError is a runtime failure of the named subcommand.
type CommandError struct {
	Command string
	Err     error
}

// NewCommandError attributes err to command.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
