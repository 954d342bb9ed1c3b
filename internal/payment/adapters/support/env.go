package support

import "strings"

type Environment string

const (
	EnvSandbox Environment = "sandbox"
	EnvLive    Environment = "live"
)

// ParseEnvironment defaults to sandbox so a missing value never hits a live API.
func ParseEnvironment(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "live", "production", "prod":
		return EnvLive
	default:
		return EnvSandbox
	}
}

// BaseURL picks the host for an environment unless an override is set.
func BaseURL(override string, env Environment, sandbox, live string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	if env == EnvLive {
		return live
	}
	return sandbox
}
