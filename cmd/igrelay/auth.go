package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"igrelay/pkg/auth"
	"igrelay/pkg/config"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
)

var (
	loginVerify bool
	logoutAll   bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram session credentials",
	Long: `Manage the Instagram session cookies the bot uses.

Credentials are stored in:
  - the system keychain (when available)
  - an encrypted file with PBKDF2 key derivation
and can also be supplied through environment variables.

Never share your cookies or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store Instagram session cookies",
	Long: `Store the cookies of a logged-in Instagram web session.

You will be prompted for sessionid and csrftoken (hidden as you type) and,
optionally, ds_user_id, rur and mid.`,
	Example: `  igrelay auth login
  igrelay auth login mysecondary --verify=false`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked cookies",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)

	loginCmd.Flags().BoolVar(&loginVerify, "verify", true, "check the cookies against Instagram before saving")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	auth.WriteCookieGuide(console.Out())
	if !console.Confirm("Ready to enter your cookies?", true) {
		console.Println("Run 'igrelay auth login' when you're ready.")
		return nil
	}

	var username string
	if len(args) > 0 {
		username = instagram.SanitizeUsername(args[0])
	}
	if username == "" {
		if username, err = console.Prompt("📱 Instagram username: "); err != nil {
			return err
		}
		username = instagram.SanitizeUsername(username)
	}
	if !instagram.IsValidUsername(username) {
		return fmt.Errorf("invalid username %q", username)
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		if !console.Confirm(fmt.Sprintf("⚠️  Account '%s' already exists. Update credentials?", username), false) {
			return nil
		}
	}

	account := &auth.Account{Username: username}
	if account.SessionID, err = promptValid("sessionid: ", auth.ValidateSessionID); err != nil {
		return err
	}
	if account.CSRFToken, err = promptValid("csrftoken: ", auth.ValidateCSRFToken); err != nil {
		return err
	}
	if account.DSUserID, err = console.Prompt("ds_user_id (optional): "); err != nil {
		return err
	}
	if account.RUR, err = console.Prompt("rur (optional): "); err != nil {
		return err
	}
	if account.MID, err = console.Prompt("mid (optional): "); err != nil {
		return err
	}
	if account.UserAgent, err = console.Prompt("🌐 User agent (Enter for default): "); err != nil {
		return err
	}

	if loginVerify {
		name, err := verifyAccount(cmd.Context(), account)
		if err != nil {
			return fmt.Errorf("session check failed: %w (use --verify=false to store anyway)", err)
		}
		console.Success("Session is logged in as @" + name)
	}

	if err := manager.Store(account); err != nil {
		return err
	}

	masked := auth.SanitizeAccount(account)
	console.Success("Account saved: " + username)
	console.Info("sessionid", masked.SessionID)
	console.Info("csrftoken", masked.CSRFToken)
	console.Println()
	console.Println("Start the bot with:")
	console.Printf("  igrelay run --account %s\n", username)
	return nil
}

// promptValid asks for a secret until validate accepts it, three attempts at most
func promptValid(label string, validate func(string) error) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		value, err := console.Secret(label)
		if err != nil {
			return "", err
		}
		if lastErr = validate(value); lastErr == nil {
			return value, nil
		}
		console.Warning("❌ " + lastErr.Error())
	}
	return "", lastErr
}

// verifyAccount checks the cookies with the current-user endpoint
func verifyAccount(ctx context.Context, account *auth.Account) (string, error) {
	cfg := config.DefaultConfig()
	account.ApplyTo(&cfg.Instagram)

	client, err := instagram.NewClientFromConfig(cfg, logger.NewNopLogger())
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return client.VerifySession(ctx)
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if !console.Confirm("Remove ALL stored accounts?", false) {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		console.Success("All accounts removed")
		return nil
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		switch len(accounts) {
		case 0:
			console.Warning("No stored accounts found")
			return nil
		case 1:
			username = accounts[0].Username
		default:
			for i, a := range accounts {
				console.Printf("  %d. %s\n", i+1, a.Username)
			}
			choice, err := console.Prompt("Account to remove: ")
			if err != nil {
				return err
			}
			var n int
			if _, err := fmt.Sscanf(choice, "%d", &n); err != nil || n < 1 || n > len(accounts) {
				return fmt.Errorf("invalid choice %q", choice)
			}
			username = accounts[n-1].Username
		}
		if !console.Confirm(fmt.Sprintf("Remove account '%s'?", username), false) {
			return nil
		}
	}

	if err := manager.Delete(username); err != nil {
		return err
	}
	console.Success("Account removed: " + username)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		console.Info("No stored accounts", "use 'igrelay auth login' to add one")
		return nil
	}

	console.Highlight("Stored accounts")
	for i, account := range accounts {
		masked := auth.SanitizeAccount(account)
		console.Printf("%d. %s\n", i+1, masked.Username)
		console.Printf("   sessionid:  %s\n", masked.SessionID)
		console.Printf("   csrftoken:  %s\n", masked.CSRFToken)
		if masked.DSUserID != "" {
			console.Printf("   ds_user_id: %s\n", masked.DSUserID)
		}
		console.Printf("   modified:   %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
