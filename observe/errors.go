package observe

import "errors"

// Runtime errors.
var (
	// ErrMissingComponentName indicates ComponentMeta.Name is empty.
	ErrMissingComponentName = errors.New("observe: component name is required")
)

// ValidLogLevels lists valid log level names.
var ValidLogLevels = []string{"debug", "info", "warn", "error", ""}

// RedactedFields lists field keys that are automatically redacted in logs.
// These fields may contain sensitive information like credentials or secrets.
var RedactedFields = []string{
	"input",
	"inputs",
	"password",
	"secret",
	"token",
	"api_key",
	"apiKey",
	"credential",
}
