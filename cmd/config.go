package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage now configuration",
	Long:  `Create and inspect the now configuration file (token, API URL, team, user).`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a default configuration file in your home directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}
		return writeDefaultConfig(cmd.OutOrStdout(), filepath.Join(home, ".now.yaml"))
	},
}

const defaultConfig = `# now configuration

# API token; NOW_TOKEN and --token take precedence
token: ""

# api_url: https://api.zeit.co

# Deploy under a team instead of your personal account
# team:
#   id: team_xxxxxxxx
#   slug: my-team

# Shown in the "Deploying ... under" banner
# user:
#   username: ""
#   email: ""

# Forward npm login information to install private modules
forward_npm: false
`

func writeDefaultConfig(w io.Writer, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(w, "Configuration file already exists at %s\n", configPath)
		return nil
	}

	// the token makes the file a credential
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o600); err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}

	fmt.Fprintf(w, "Configuration file created at %s\n", configPath)
	fmt.Fprintln(w, "Please edit the file to add your API token.")
	return nil
}

// shownConfig is the effective configuration as printed by config show
type shownConfig struct {
	File       string `yaml:"file,omitempty"`
	Token      string `yaml:"token"`
	APIURL     string `yaml:"api_url"`
	TeamID     string `yaml:"team_id,omitempty"`
	TeamSlug   string `yaml:"team_slug,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Email      string `yaml:"email,omitempty"`
	ForwardNpm bool   `yaml:"forward_npm"`
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, with the token masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenFlag, _ := cmd.Flags().GetString("token")
		urlFlag, _ := cmd.Flags().GetString("api-url")
		teamFlag, _ := cmd.Flags().GetString("team")
		return showConfig(cmd.OutOrStdout(), effectiveConfig(tokenFlag, urlFlag, teamFlag))
	},
}

func effectiveConfig(tokenFlag, urlFlag, teamFlag string) shownConfig {
	return shownConfig{
		File:       viper.ConfigFileUsed(),
		Token:      maskToken(api.ResolveToken(tokenFlag)),
		APIURL:     api.ResolveURL(urlFlag),
		TeamID:     api.ResolveTeamID(teamFlag),
		TeamSlug:   viper.GetString("team.slug"),
		Username:   viper.GetString("user.username"),
		Email:      viper.GetString("user.email"),
		ForwardNpm: viper.GetBool("forward_npm"),
	}
}

func showConfig(w io.Writer, cfg shownConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
