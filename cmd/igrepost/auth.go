package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igrepost/pkg/auth"
	"igrepost/pkg/config"
	"igrepost/pkg/instagram"
	"igrepost/pkg/logger"
	"igrepost/pkg/ui"
)

var (
	loginCookie string
	loginVerify bool
	logoutAll   bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the bot's Instagram session",
	Long: `Manage the Instagram session the bot logs in with.

Sessions are stored in the system keychain when one is available and in an
encrypted file under the user config directory otherwise. IG_SESSION_ID and
IG_CSRF_TOKEN in the environment are read as a last resort.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store the session cookies of the bot account",
	Example: `  # Paste each cookie value at a hidden prompt
  igrepost auth login reposter

  # Paste the whole Cookie header copied from the browser
  igrepost auth login reposter --cookie "sessionid=...; csrftoken=...; ds_user_id=..."

  # Check the session against Instagram before saving it
  igrepost auth login reposter --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove a stored session",
	Example: `  igrepost auth logout reposter
  igrepost auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions with masked cookies",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to copy the session cookies from a browser",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCookieGuide(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd, guideCmd)

	loginCmd.Flags().StringVar(&loginCookie, "cookie", "", "full Cookie header copied from the browser")
	loginCmd.Flags().BoolVar(&loginVerify, "verify", false, "check the session with Instagram before storing it")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored session")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	var account *auth.Account
	if loginCookie != "" {
		account, err = auth.ParseCookieHeader(loginCookie)
		if err != nil {
			return err
		}
	} else {
		auth.WriteCookieGuide(out)
		account, err = promptCookies(in, out)
		if err != nil {
			return err
		}
	}

	if len(args) > 0 {
		account.Username = args[0]
	}
	if account.Username == "" {
		account.Username, err = prompt(in, out, "Instagram username of the bot account: ")
		if err != nil {
			return err
		}
	}

	if loginVerify {
		user, err := verifySession(cmd.Context(), account)
		if err != nil {
			return err
		}
		if !strings.EqualFold(user.Username, instagram.NormalizeUsername(account.Username)) {
			ui.PrintWarning("Session belongs to another account, storing it under that name", "@"+user.Username)
			account.Username = user.Username
		}
		if account.DSUserID == "" {
			account.DSUserID = string(user.PK)
		}
	}

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	ui.PrintSuccess("Session stored for @" + instagram.NormalizeUsername(account.Username))
	fmt.Fprintln(out, "Start the bot with: igrepost run --allowed-sender <username>")
	return nil
}

// promptCookies reads the cookie values without echoing them when stdin is a terminal.
func promptCookies(in *bufio.Reader, out io.Writer) (*auth.Account, error) {
	fields := []struct {
		label    string
		required bool
		dst      *string
	}{
		{"sessionid", true, new(string)},
		{"csrftoken", true, new(string)},
		{"ds_user_id (optional)", false, new(string)},
	}

	for _, f := range fields {
		v, err := promptSecret(in, out, f.label+": ")
		if err != nil {
			return nil, err
		}
		if v == "" && f.required {
			return nil, fmt.Errorf("%s is required", f.label)
		}
		*f.dst = v
	}

	return &auth.Account{
		SessionID: *fields[0].dst,
		CSRFToken: *fields[1].dst,
		DSUserID:  *fields[2].dst,
	}, nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, out, label)
	}
	fmt.Fprint(out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func verifySession(ctx context.Context, account *auth.Account) (*instagram.MediaUser, error) {
	cfg := config.DefaultConfig()
	client := instagram.NewClient(account.Session(cfg.Instagram.AppID), 30*time.Second, logger.GetLogger())

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("session check failed: %w", err)
	}
	return user, nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var names []string
	switch {
	case logoutAll:
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		for _, a := range accounts {
			names = append(names, a.Username)
		}
	case len(args) == 1:
		names = args
	default:
		return fmt.Errorf("give a username or --all")
	}

	if len(names) == 0 {
		ui.PrintInfo("Stored sessions", "none")
		return nil
	}
	for _, name := range names {
		if err := manager.Delete(name); err != nil {
			return fmt.Errorf("failed to remove @%s: %w", name, err)
		}
		ui.PrintSuccess("Removed session for @" + name)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("Stored sessions", "none, run 'igrepost auth login' to add one")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, account := range accounts {
		a := auth.SanitizeAccount(account)
		fmt.Fprintf(out, "%s\n", ui.Cyan("@"+a.Username))
		fmt.Fprintf(out, "  sessionid   %s\n", a.SessionID)
		fmt.Fprintf(out, "  csrftoken   %s\n", a.CSRFToken)
		if a.DSUserID != "" {
			fmt.Fprintf(out, "  ds_user_id  %s\n", a.DSUserID)
		}
		fmt.Fprintf(out, "  updated     %s\n", a.LastModified.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
