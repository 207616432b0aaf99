package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"igrepost/pkg/progress"
	"igrepost/pkg/ui"
)

var (
	statusURL    string
	statusJSON   bool
	statusReelID string
	statusSender string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read or write the status record",
}

var statusGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current status record",
	Args:  cobra.NoArgs,
	RunE:  runStatusGet,
}

var statusSetCmd = &cobra.Command{
	Use:   "set <status> [message...]",
	Short: "Replace the status record",
	Long: `Replace the status record. Status is one of: idle, downloading, uploading,
completed, error. Fields that are not given are cleared, not kept.`,
	Example: `  igrepost status set idle "Monitoring DMs for reel shares..."
  igrepost status set downloading "Fetching reel info..." --reel-id 3312345 --sender alice`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatusSet,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(statusGetCmd)
	statusCmd.AddCommand(statusSetCmd)

	statusCmd.PersistentFlags().StringVarP(&statusURL, "url", "u", "", "status endpoint base URL (default: webhook URL or the local server)")
	statusCmd.PersistentFlags().BoolVar(&statusJSON, "json", false, "print the record as JSON")
	statusSetCmd.Flags().StringVar(&statusReelID, "reel-id", "", "reel the status refers to")
	statusSetCmd.Flags().StringVar(&statusSender, "sender", "", "user who shared the reel")
}

func statusClient() (*progress.Client, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return progress.NewClient(endpointURL(cfg, statusURL), cfg.Status.Timeout), nil
}

func runStatusGet(cmd *cobra.Command, args []string) error {
	client, err := statusClient()
	if err != nil {
		return err
	}
	r, err := client.Get(cmd.Context())
	if err != nil {
		return err
	}
	return printRecord(r)
}

func runStatusSet(cmd *cobra.Command, args []string) error {
	u, err := parseStatusArgs(args, statusReelID, statusSender)
	if err != nil {
		return err
	}
	client, err := statusClient()
	if err != nil {
		return err
	}
	r, err := client.Post(cmd.Context(), u)
	if err != nil {
		return err
	}
	return printRecord(r)
}

// parseStatusArgs builds an update from "set" arguments; extra words form the message.
func parseStatusArgs(args []string, reelID, sender string) (progress.Update, error) {
	if len(args) == 0 {
		return progress.Update{}, fmt.Errorf("status is required")
	}
	status := progress.Status(strings.ToLower(strings.TrimSpace(args[0])))
	if !status.Valid() {
		names := make([]string, len(progress.Statuses))
		for i, s := range progress.Statuses {
			names[i] = string(s)
		}
		return progress.Update{}, fmt.Errorf("unknown status %q, want one of %s", args[0], strings.Join(names, ", "))
	}
	message := strings.Join(args[1:], " ")
	return progress.NewUpdate(status, message, reelID, strings.TrimPrefix(sender, "@")), nil
}

func printRecord(r progress.Record) error {
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	ui.PrintRecord(r)
	return nil
}

