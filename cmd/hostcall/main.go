// Command hostcall inspects how guest calls resolve against Go host types:
// which overload a call selects, what members a class exposes, how protobuf
// messages look through the bridge and what call sites recorded.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/funvibe/hostinterop/internal/config"
	hostinterop "github.com/funvibe/hostinterop/pkg/embed"
)

var rootCmd = &cobra.Command{
	Use:   "hostcall",
	Short: "Inspect host interop dispatch",
	Long: `hostcall resolves guest calls against Go host types the way an embedded
guest runtime would, and prints the selected overloads, cached argument shapes
and recorded call-site profiles.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(protoCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(classesCmd)

	rootCmd.PersistentFlags().String("config", "", "path to hostinterop.yaml (default: search from the working directory)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("debug", false, "log call-site transitions")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		mode, err := cmd.Flags().GetString("color")
		if err != nil {
			return fmt.Errorf("failed to get color flag: %w", err)
		}
		return setupColor(mode)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupColor(mode string) error {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		_, noColor := os.LookupEnv("NO_COLOR")
		color.NoColor = noColor || !(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	default:
		return fmt.Errorf("unknown color mode %q (auto|on|off)", mode)
	}
	return nil
}

// newEngine builds an engine from the --config flag, or the config found
// from the working directory, with the demo catalog registered.
func newEngine(cmd *cobra.Command, extra ...hostinterop.Option) (*hostinterop.Engine, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("failed to get debug flag: %w", err)
	}
	if path == "" {
		if path, err = config.FindConfig("."); err != nil {
			return nil, err
		}
	}
	cfg := config.Default()
	if path != "" {
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	opts := append([]hostinterop.Option{hostinterop.WithConfig(cfg), hostinterop.WithLogger(logger)}, extra...)
	e, err := hostinterop.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := registerCatalog(e); err != nil {
		e.Close()
		return nil, err
	}
	if path != "" {
		logger.Debug("loaded config", zap.String("path", path))
	}
	return e, nil
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	nameColor   = color.New(color.FgGreen)
	typeColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.Faint)
)
