package api

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ResolveToken returns the API token from flag, config, or environment
// Priority: flag > config > env
func ResolveToken(flagValue string) string {
	return resolve(flagValue, "token", "NOW_TOKEN")
}

// ResolveURL returns the API URL, falling back to DefaultURL
func ResolveURL(flagValue string) string {
	if u := resolve(flagValue, "api_url", "NOW_API_URL"); u != "" {
		return u
	}
	return DefaultURL
}

// ResolveTeamID returns the team to scope calls to, or "" for the user
func ResolveTeamID(flagValue string) string {
	return resolve(flagValue, "team.id", "NOW_TEAM")
}

func resolve(flagValue, key, envName string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(viper.GetString(key)); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(envName))
}
