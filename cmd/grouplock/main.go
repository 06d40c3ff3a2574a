// Command grouplock drives a web messenger session from the terminal: it sends
// rotating messages into a conversation and keeps a group's name locked.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"grouplock/internal/app"
	"grouplock/internal/browser"
	"grouplock/internal/config"
	"grouplock/internal/heuristics"
	"grouplock/internal/logging"
	"grouplock/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	username   string
	password   string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "grouplock",
	Short: "Message automation and group name lock for a web messenger",
	Long: `grouplock drives a headless browser logged in with your session cookies.

It can post rotating messages into a conversation and watch a group
conversation's name, restoring it whenever someone changes it.

Settings are stored per account in a local SQLite database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logging.Initialize(logging.Config{
			Level:   cfg.Logging.Level,
			JSON:    cfg.Logging.JSON,
			File:    cfg.Logging.File,
			Quiet:   cmd == dashboardCmd,
			Verbose: verbose,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Account username (or set GROUPLOCK_USERNAME env)")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Account password (or set GROUPLOCK_PASSWORD env)")

	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// application bundles everything a command needs.
type application struct {
	svc      *app.Service
	store    *store.Store
	launcher browser.Launcher
	profile  *heuristics.Source
}

// openApp wires the store, the browser driver and the loops from cfg.
func openApp(ctx context.Context) (*application, error) {
	st, err := store.Open(cfg.Store.GetDriver(), cfg.Store.GetPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	launcher, err := app.Launcher(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	profile, err := heuristics.NewSource(cfg.Heuristics.Profile)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := profile.Start(ctx); err != nil {
		logging.BootWarn("profile watch unavailable", zap.Error(err))
	}

	sender, locker := app.Loops(cfg, launcher, profile)
	logging.Boot("application wired",
		zap.String("driver", cfg.Browser.GetDriver()),
		zap.String("store", cfg.Store.GetPath()))
	return &application{
		svc:      app.NewService(st, sender, locker),
		store:    st,
		launcher: launcher,
		profile:  profile,
	}, nil
}

// Close releases the profile watch, the shared driver and the store. Loops
// must already be shut down.
func (a *application) Close() error {
	a.profile.Stop()
	var errs []error
	if c, ok := a.launcher.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

func credentials() (string, string, error) {
	u, p := username, password
	if u == "" {
		u = os.Getenv("GROUPLOCK_USERNAME")
	}
	if p == "" {
		p = os.Getenv("GROUPLOCK_PASSWORD")
	}
	if strings.TrimSpace(u) == "" || p == "" {
		return "", "", fmt.Errorf("username and password are required (--username/--password or GROUPLOCK_USERNAME/GROUPLOCK_PASSWORD)")
	}
	return u, p, nil
}

// login verifies the global credentials.
func (a *application) login(ctx context.Context) (store.Account, error) {
	u, p, err := credentials()
	if err != nil {
		return store.Account{}, err
	}
	return a.svc.Login(ctx, u, p)
}

// withAccount opens the application, logs in and runs fn.
func withAccount(cmd *cobra.Command, fn func(ctx context.Context, a *application, acct store.Account) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.login(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, a, acct)
}
