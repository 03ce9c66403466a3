// Command culverin is the CLI entry point: attack, encode, report, plot,
// history, dummy, and live subcommands, wired with cobra/viper as the
// teacher wires its own root command (persistent --config flag, a custom
// banner in help output). initConfig loads the config file and enables
// viper's AutomaticEnv, but no value is read back out of viper: every
// subcommand takes its options from its own command-line flags only.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"culverin/internal/banner"
	"culverin/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	otelAddr  string
	historyDB string

	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "culverin",
	Short: "culverin - a pipeline-composable HTTP load generator",
	Long: `
culverin issues requests to one or more target URLs at a user-specified
rate for a user-specified duration, records per-request outcomes as a
binary stream, and post-processes that stream into metrics, histograms,
CSV/JSON exports, and plots.`,
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "internal error:", r)
			os.Exit(int(exitInternal))
		}
	}()

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		_ = cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.culverin.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&otelAddr, "otel-addr", "", "OTLP/HTTP collector endpoint (empty disables tracing)")
	rootCmd.PersistentFlags().StringVar(&historyDB, "history", "", "path to the run-history database (empty disables history)")

	rootCmd.AddCommand(attackCmd, encodeCmd, reportCmd, plotCmd, historyCmd, dummyCmd, liveCmd)
}

func initConfig() {
	logger = logging.New(logLevel)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".culverin")
		}
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// exitCode is the taxonomy from §6: 0 success, 1 argument/I/O errors,
// 2 tolerance-check failure, 3 internal errors.
type exitCode int

const (
	exitOK exitCode = iota
	exitArgsOrIO
	exitTolerance
	exitInternal
)

// exitCodeErr lets subcommands attach a specific exit code to an error
// without every caller re-deriving it from the error's type.
type exitCodeErr struct {
	code exitCode
	err  error
}

func (e *exitCodeErr) Error() string { return e.err.Error() }
func (e *exitCodeErr) Unwrap() error { return e.err }

func withExitCode(code exitCode, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeErr{code: code, err: err}
}

func exitCodeFor(err error) int {
	var ec *exitCodeErr
	if e, ok := err.(*exitCodeErr); ok {
		ec = e
	}
	if ec != nil {
		return int(ec.code)
	}
	return int(exitArgsOrIO)
}
