package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/deploy"
	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd deploys when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "now [path...]",
	Short: "Realtime global deployments",
	Long: `now deploys a directory, a set of files, or a remote repository
(owner/repo, gitlab.com/owner/repo#ref, ...) and prints the deployment URL.

Running now without a subcommand is the same as running now deploy.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDeploy,
}

// Execute runs the root command and returns the process exit status
func Execute() int {
	err := rootCmd.Execute()
	return exitCode(output.Default(viper.GetBool("debug")), err)
}

// exitCode reports err to the user and maps it to an exit status
func exitCode(out *output.Output, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, deploy.ErrAborted) {
		out.Log("Aborted")
		return 0
	}

	var reported *model.ReportedError
	if errors.As(err, &reported) {
		out.Debugf("%v", err)
		return 1
	}

	out.Error("%s", firstLine(err))
	if out.IsDebug() {
		for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
			out.Debugf("caused by: %v", cause)
		}
	}
	return 1
}

// firstLine keeps fatal errors to a single line. Input errors carry their own
// message, everything else is shown as wrapped.
func firstLine(err error) string {
	msg := err.Error()
	var ie *model.InputError
	if errors.As(err, &ie) {
		msg = ie.Message
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.now.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug output (shows internal diagnostics)")
	rootCmd.PersistentFlags().StringP("token", "t", "", "API token (or set NOW_TOKEN)")
	rootCmd.PersistentFlags().String("api-url", "", "API URL (or set NOW_API_URL)")
	rootCmd.PersistentFlags().StringP("team", "T", "", "team id to deploy under (or set NOW_TEAM)")

	// TODO: add error return here
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	addDeployFlags(rootCmd)
	rootCmd.AddCommand(deployCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".now")
	}

	viper.SetEnvPrefix("NOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("debug") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
