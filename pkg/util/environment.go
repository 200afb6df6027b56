package util

import (
	"os"
	"strings"
)

// GetEnvironmentVariables snapshots the process environment. Entries without
// a separator are skipped and a value may itself contain '='.
func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		name, value, found := strings.Cut(variable, "=")
		if !found || name == "" {
			continue
		}

		environmentVariables[name] = value
	}

	return environmentVariables
}
