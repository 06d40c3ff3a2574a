package main

import (
	"context"
	"fmt"

	"grouplock/cmd/grouplock/ui"
	"grouplock/internal/logging"
	"grouplock/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive dashboard for both loops",
	Long: `Opens the terminal dashboard. The group name lock is resumed automatically
when it was left enabled. Quitting stops both loops.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		log := logging.Get(logging.CategoryUI)
		resumed, err := a.svc.AutoStart(ctx, acct.ID)
		if err != nil {
			log.Warn("lock auto-start failed", zap.Error(err))
		} else if resumed {
			log.Info("lock resumed", zap.Int64("account", acct.ID))
		}

		p := tea.NewProgram(ui.New(a.svc, acct, ui.DefaultStyles()), tea.WithAltScreen())
		_, runErr := p.Run()

		fmt.Fprintln(cmd.OutOrStdout(), "Stopping loops...")
		if err := shutdown(a.svc); err != nil {
			return err
		}
		return runErr
	})
}
