package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"wkyt-go/internal/app"
	"wkyt-go/internal/config"
	"wkyt-go/internal/encryption"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a VaultApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "SyncAll", "BackupPush").
func newApp(operation string) (*app.VaultApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewVaultApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts for a passphrase without echoing it.
func readPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "wkyt",
	Short: "Personal data vault",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}

		passphrase, err := readPassphrase("Passphrase for new backup key: ")
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating encryption keys: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Backup:     %s\n", cfg.Backup.Type)
		fmt.Printf("Connectors:")
		for _, c := range cfg.Connectors {
			fmt.Printf(" %s(%s)", c.Type, c.ID)
		}
		fmt.Println()
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run all connectors and ingest their items",
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")

		a, err := newApp("SyncAll")
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.Sync(cmd.Context(), full)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		for _, r := range reports {
			if r.Err != nil {
				fmt.Printf("%-12s %s FAILED: %v\n", r.ConnectorID, r.Operation, r.Err)
				continue
			}
			fmt.Printf("%-12s %s: %d item(s)\n", r.ConnectorID, r.Operation, r.ItemCount)
		}
		return nil
	},
}

// items command
var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List stored items, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp("ListItems")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.ListItems()
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No items stored.")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		for _, item := range items {
			fmt.Printf("%s  %-14s %-12s %s\n",
				item.Timestamp.Format("2006-01-02 15:04:05"),
				item.Kind,
				item.ConnectorID,
				item.SourceID,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, run := range runs {
			finished := "-"
			if !run.FinishedAt.IsZero() {
				finished = run.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%4d  %-12s %-17s %-7s %5d  %s -> %s\n",
				run.ID,
				run.ConnectorID,
				run.Operation,
				run.Status,
				run.ItemCount,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				finished,
			)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database snapshots in the backup vault",
}

var backupPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Encrypt and upload a database snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupPush")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupPush(); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Println("Snapshot uploaded.")
		return nil
	},
}

var backupPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download and decrypt the database snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp("BackupPull")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		absOut, err := filepath.Abs(out)
		if err != nil {
			return fmt.Errorf("resolving output path: %w", err)
		}

		if err := a.BackupPull(passphrase, absOut); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Snapshot restored to %s\n", absOut)
		return nil
	},
}

// auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider authentication",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the data provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AuthLogin")
		if err != nil {
			return err
		}
		defer a.Close()

		authURL, _, err := a.Auth().StartLogin()
		if err != nil {
			return fmt.Errorf("starting login: %w", err)
		}

		fmt.Printf("Open this URL and authorize access:\n\n  %s\n\n", authURL)

		fmt.Print("Authorization code: ")
		code, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading authorization code: %w", err)
		}

		if _, err := a.Auth().ExchangeCode(string(code)); err != nil {
			return fmt.Errorf("exchanging code: %w", err)
		}

		fmt.Println("Logged in.")
		return nil
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AuthWhoami")
		if err != nil {
			return err
		}
		defer a.Close()

		token, ok, err := a.Auth().Token()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Not logged in.")
			return nil
		}

		user, err := a.Auth().UserInfo(token)
		if err != nil {
			return err
		}

		fmt.Printf("%s <%s>\n", user.Name, user.Email)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and discard the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AuthLogout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Auth().Logout(); err != nil {
			return err
		}

		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("full", false, "force a full sync for every connector")
	itemsCmd.Flags().Bool("json", false, "print items as JSON")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	backupPullCmd.Flags().String("out", "restored.db", "output path for the restored database")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	backupCmd.AddCommand(backupPushCmd)
	backupCmd.AddCommand(backupPullCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authWhoamiCmd)
	authCmd.AddCommand(authLogoutCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(authCmd)
}
