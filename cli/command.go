package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/extcore/config"
	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/logging"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds common options for extcore commands
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a new command with the standard flags
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to extcore.yml config file")

	SetStyledHelp(cmd)

	return cmd
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// GetLogger returns the component logger, at debug level under --verbose.
func GetLogger(cmd *cobra.Command, component string) *logrus.Entry {
	entry := logging.NewLogger(component)
	if GetOptions(cmd).Verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	return entry
}

// LoadConfig loads the configuration named by --config, or the layered
// configuration found from the working directory. Without any config file
// the defaults are used. Logging is configured from the result.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := GetOptions(cmd)
	configureOutput(opts)

	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		if _, statErr := os.Stat(opts.ConfigFile); statErr != nil {
			return nil, errors.ConfigNotFound(opts.ConfigFile)
		}
		cfg, err = config.LoadLayered(opts.ConfigFile, logging.NewLogger("config"))
	} else {
		cfg, err = config.LoadDefault()
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			cfg, err = config.LoadFromBytes(nil, config.FormatYAML)
		}
	}
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logging.Configure(logCfg)
	return cfg, nil
}

// configureOutput drops colors for machine-readable output.
func configureOutput(opts CommandOptions) {
	if opts.JSONOutput || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
