package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igrepost/pkg/config"
	"igrepost/pkg/logger"
	"igrepost/pkg/ui"
)

var validateBot bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igrepost configuration files.

Settings are applied in this order, later ones winning:
  - built-in defaults
  - the configuration file
  - a .env file and the environment (IG_*, KV_REST_API_*, REDIS_URL, ...)
  - command line flags`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write the default settings to the --config path, or igrepost.yaml in the
current directory. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for invalid values",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)

	configValidateCmd.Flags().BoolVar(&validateBot, "bot", false, "also require the settings 'igrepost run' needs")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "igrepost.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, remove it first to start over", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration written to " + path)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set bot.allowed_sender to the account whose reels should be reposted")
	fmt.Fprintln(out, "  2. Store the bot's session with 'igrepost auth login'")
	fmt.Fprintf(out, "  3. Check the result with 'igrepost config validate --bot -c %s'\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(redactConfig(*cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// redactConfig masks every secret in a copy of cfg.
func redactConfig(cfg config.Config) config.Config {
	cfg.Instagram.SessionID = redact(cfg.Instagram.SessionID)
	cfg.Instagram.CSRFToken = redact(cfg.Instagram.CSRFToken)
	cfg.Server.KVRestToken = redact(cfg.Server.KVRestToken)
	cfg.Server.RedisURL = redact(cfg.Server.RedisURL)
	cfg.Notifications.TelegramToken = redact(cfg.Notifications.TelegramToken)
	return cfg
}

func redact(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if validateBot {
		if err := resolveSession(cfg, logger.NewNopLogger()); err != nil {
			ui.PrintWarning("Session", err)
		}
		err = cfg.ValidateBot()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return fmt.Errorf("configuration is invalid:\n%w", err)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Allowed sender", orNone(cfg.Bot.AllowedSender))
	ui.PrintInfo("Poll interval", cfg.Bot.PollInterval.String())
	ui.PrintInfo("Status endpoint", orNone(cfg.Status.WebhookURL))
	ui.PrintInfo("Listen address", cfg.Server.Addr())
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
