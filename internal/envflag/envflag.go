package envflag

import (
	"os"
	"strings"
)

// Enabled reports whether the named environment variable is set to a truthy
// value.
func Enabled(name string) bool {
	value, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	return IsTruthy(value)
}

// IsTruthy returns true when the provided value matches an accepted truthy
// form (TRUE, True, true or t).
func IsTruthy(value string) bool {
	switch strings.TrimSpace(value) {
	case "TRUE", "True", "true", "t":
		return true
	default:
		return false
	}
}
