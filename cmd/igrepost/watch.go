package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"igrepost/pkg/config"
	"igrepost/pkg/progress"
	"igrepost/pkg/ui/tui"
)

var (
	watchURL     string
	watchRefresh time.Duration
	watchInline  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the bot's status in the terminal",
	Long: `Open a terminal dashboard that polls the status endpoint.

Keys: q quits, r refreshes immediately, ? toggles help.`,
	Example: `  igrepost watch --url https://dash.example.com
  igrepost watch --refresh 1s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchURL, "url", "u", "", "status endpoint base URL (default: webhook URL or the local server)")
	watchCmd.Flags().DurationVar(&watchRefresh, "refresh", 0, "refresh interval (default 3s)")
	watchCmd.Flags().BoolVar(&watchInline, "inline", false, "render inline instead of the alternate screen")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	refresh := watchRefresh
	if refresh <= 0 {
		refresh = cfg.Status.RefreshEvery
	}
	client := progress.NewClient(endpointURL(cfg, watchURL), refresh)

	return tui.Run(cmd.Context(), client, tui.Options{
		Endpoint:  client.Endpoint(),
		Refresh:   refresh,
		AltScreen: !watchInline,
	})
}

// endpointURL picks the status endpoint: explicit flag, then the configured
// webhook URL, then the local server address.
func endpointURL(cfg *config.Config, flagURL string) string {
	if flagURL != "" {
		return flagURL
	}
	if cfg.Status.WebhookURL != "" {
		return cfg.Status.WebhookURL
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}
