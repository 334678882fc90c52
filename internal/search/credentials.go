package search

import (
	"os"
	"strings"
)

// Password sources are tried in order: explicit configuration, then the
// profiler's own environment variable, then the conventional OpenSearch
// one.
var passwordEnvVars = []string{
	"QUERYPROFILER_CLUSTER_PASSWORD",
	"OPENSEARCH_PASSWORD",
}

// MissingCredentialsError reports that no password could be resolved from
// any source. Sources lists what was tried, for the user-facing prompt.
type MissingCredentialsError struct {
	Sources []string
}

func (e *MissingCredentialsError) Error() string {
	return "no cluster password found (tried: " + strings.Join(e.Sources, ", ") + ")"
}

// ResolvePassword returns the first non-empty password among the
// configured value and the known environment variables.
func ResolvePassword(configured string) (string, error) {
	if password := strings.TrimSpace(configured); password != "" {
		return password, nil
	}
	for _, name := range passwordEnvVars {
		if password := strings.TrimSpace(os.Getenv(name)); password != "" {
			return password, nil
		}
	}

	sources := append([]string{"config cluster.password"}, passwordEnvVars...)
	return "", &MissingCredentialsError{Sources: sources}
}
