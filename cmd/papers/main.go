package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"papers-go/internal/app"
	"papers-go/internal/config"
	"papers-go/internal/model"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a PapersApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "grade", "session").
func newApp(cmd *cobra.Command, operation string, args []string) (*app.PapersApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewPapersApp(cmd.Context(), cfg, operation, app.Options{Args: args})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	owner, _ := cmd.Flags().GetString("owner")
	a.SetOwner(owner)
	return a, nil
}

// readConfig loads the config file without opening the database.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

const timeFormat = "2006-01-02 15:04"

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeFormat)
}

func formatCorrect(c *bool) string {
	switch {
	case c == nil:
		return "-"
	case *c:
		return "right"
	default:
		return "wrong"
	}
}

func printPapers(list []*model.Paper, now time.Time) {
	for _, p := range list {
		fmt.Printf("%s  %-10s  %-5s  due:%-16s  %s\n",
			p.ID,
			p.State(now),
			formatCorrect(p.IsCorrect),
			formatTime(p.NextPracticeDue),
			strings.Join(p.Tags, ","),
		)
	}
}

var rootCmd = &cobra.Command{
	Use:          "papers",
	Short:        "Spaced-repetition review of scanned worksheets",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		ownerID, _ := cmd.Flags().GetString("owner")
		if ownerID == "" {
			ownerID = uuid.New().String()
		}

		cfg := config.NewConfig(ownerID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		// A fresh installation gets its schema right away.
		if _, err := app.MigrateDatabase(cfg); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Owner ID: %s\n", ownerID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Owner ID:     %s\n", cfg.OwnerID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		switch cfg.Vault.Type {
		case "s3":
			fmt.Printf("Vault:        s3://%s/%s\n", cfg.Vault.S3Bucket, cfg.Vault.S3Prefix)
		case "filesystem":
			fmt.Printf("Vault:        %s\n", cfg.Vault.FSVaultRoot)
		default:
			fmt.Printf("Vault:        %s\n", cfg.Vault.Type)
		}
		encType := cfg.Encryption.Type
		if encType == "" {
			encType = "none"
		}
		fmt.Printf("Encryption:   %s\n", encType)
		fmt.Printf("Session Size: %d\n", cfg.Session.DefaultSize)
		fmt.Printf("Extensions:   %s\n", strings.Join(cfg.Scan.Extensions, " "))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the scan encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := app.SetupEncryption(cfg, pass); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Add scanned papers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		tags, _ := cmd.Flags().GetStringArray("tag")

		a, err := newApp(cmd, "add", args)
		if err != nil {
			return err
		}
		defer a.Close()

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		added, err := a.AddScans(cmd.Context(), absPath, recursive, tags)
		for _, p := range added {
			fmt.Printf("%s  %s\n", p.ID, strings.Join(p.Tags, ","))
		}
		if err != nil {
			return fmt.Errorf("adding scans: %w", err)
		}

		fmt.Printf("Added %d paper(s)\n", len(added))
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts app.ListOptions
		opts.Tag, _ = cmd.Flags().GetString("tag")
		opts.DueOnly, _ = cmd.Flags().GetBool("due")
		opts.Incorrect, _ = cmd.Flags().GetBool("incorrect")
		opts.Ungraded, _ = cmd.Flags().GetBool("ungraded")

		a, err := newApp(cmd, "list", args)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.ListPapers(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No papers.")
			return nil
		}
		printPapers(list, a.Now())
		return nil
	},
}

// tag commands
var tagCmd = &cobra.Command{
	Use:   "tag ID TAG...",
	Short: "Add tags to a paper",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "tag", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.TagPaper(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", p.ID, strings.Join(p.Tags, ","))
		return nil
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag ID TAG...",
	Short: "Remove tags from a paper",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "untag", args)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.UntagPaper(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", p.ID, strings.Join(p.Tags, ","))
		return nil
	},
}

// due command
var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List papers due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "due", args)
		if err != nil {
			return err
		}
		defer a.Close()

		due, err := a.DueSet(cmd.Context())
		if err != nil {
			return err
		}
		if len(due) == 0 {
			fmt.Println("Nothing due.")
			return nil
		}
		printPapers(due, a.Now())
		return nil
	},
}

// session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Compose a practice session",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts app.SessionOptions
		if cmd.Flags().Changed("size") {
			n, _ := cmd.Flags().GetInt("size")
			opts.Size = &n
		}
		opts.Quotas, _ = cmd.Flags().GetStringArray("quota")
		opts.Seed, _ = cmd.Flags().GetUint64("seed")
		opts.DueOnly, _ = cmd.Flags().GetBool("due")
		opts.Tag, _ = cmd.Flags().GetString("tag")

		a, err := newApp(cmd, "session", args)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.ComposeSession(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(s.Papers) == 0 {
			fmt.Println("No papers to practice.")
			return nil
		}
		for i, p := range s.Papers {
			fmt.Printf("%3d. %s  %s\n", i+1, p.ID, strings.Join(p.Tags, ","))
		}
		return nil
	},
}

// grade command
var gradeCmd = &cobra.Command{
	Use:   "grade ID=right|wrong...",
	Short: "Record grading outcomes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "grade", args)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.RecordGrades(cmd.Context(), args)
		if report != nil {
			for _, r := range report.Recorded {
				verdict := "wrong"
				if r.IsCorrect {
					verdict = "right"
				}
				fmt.Printf("%s  %s\n", r.ItemID, verdict)
			}
			for _, f := range report.Failed {
				fmt.Fprintf(os.Stderr, "%s  failed: %v\n", f.ItemID, f.Err)
			}
			fmt.Printf("Recorded %d grade(s)\n", len(report.Recorded))
		}
		if err != nil && report != nil && len(report.Failed) > 0 {
			return fmt.Errorf("%d grade(s) not recorded", len(report.Failed))
		}
		return err
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history [ID]",
	Short: "View grading history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history", args)
		if err != nil {
			return err
		}
		defer a.Close()

		itemID := ""
		if len(args) > 0 {
			itemID = args[0]
		}
		records, err := a.History(cmd.Context(), itemID, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No grading history.")
			return nil
		}
		for _, r := range records {
			verdict := "wrong"
			if r.IsCorrect {
				verdict = "right"
			}
			fmt.Printf("%s  %s  %s\n", r.GradedAt.Local().Format(timeFormat), r.ItemID, verdict)
		}
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize review progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "stats", args)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Total:      %d\n", st.Total)
		fmt.Printf("Due now:    %d (%d unreviewed)\n", st.DueNow(), st.Unreviewed)
		fmt.Printf("Due later:  %d\n", st.DueLater)
		fmt.Printf("Mastered:   %d\n", st.Mastered)
		fmt.Printf("Next due:   %s\n", formatTime(st.NextDue))
		if len(st.Tags) > 0 {
			fmt.Println()
			for _, ts := range st.Tags {
				fmt.Printf("  %-20s %4d total  %4d due\n", ts.Tag, ts.Total, ts.Due)
			}
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export ID OUTFILE",
	Short: "Write a paper's scan to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "export", args)
		if err != nil {
			return err
		}
		defer a.Close()

		needs, err := a.NeedsPassphrase(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var pass string
		if needs {
			if pass, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		if err := a.ExportScan(cmd.Context(), args[0], args[1], pass); err != nil {
			return fmt.Errorf("exporting scan: %w", err)
		}
		fmt.Printf("Wrote %s\n", args[1])
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm ID...",
	Short: "Delete papers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "rm", args)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.DeletePapers(cmd.Context(), args)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d paper(s)\n", n)
		return nil
	},
}

// db commands
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database schema",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		st, err := app.MigrateDatabase(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Database at version %d\n", st.Current)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		st, err := app.DatabaseStatus(cfg)
		if err != nil {
			return err
		}
		state := "up to date"
		switch {
		case st.Dirty:
			state = "dirty"
		case st.Current < st.Latest:
			state = "needs migration"
		case st.Current > st.Latest:
			state = "newer than this binary"
		}
		fmt.Printf("Version %d of %d (%s)\n", st.Current, st.Latest, state)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Copy the database to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "backup", args)
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		if err := a.Backup(cmd.Context(), dest); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Database copied to %s\n", dest)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("owner", "", "Act for this owner instead of the configured one")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	addCmd.Flags().StringArrayP("tag", "t", nil, "Tag to apply (repeatable)")
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("tag", "", "Only papers with this tag")
	listCmd.Flags().Bool("due", false, "Only papers due now")
	listCmd.Flags().Bool("incorrect", false, "Only papers last graded wrong")
	listCmd.Flags().Bool("ungraded", false, "Only papers never graded")
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(untagCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.Flags().IntP("size", "n", 0, "Session size (default from config)")
	sessionCmd.Flags().StringArrayP("quota", "q", nil, "tag=count quota (repeatable)")
	sessionCmd.Flags().Uint64("seed", 0, "Shuffle seed for a reproducible session")
	sessionCmd.Flags().Bool("due", false, "Draw only from papers due now")
	sessionCmd.Flags().String("tag", "", "Draw only from papers with this tag")
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of records to show")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(backupCmd)

}
