package main

import (
	"context"
	"fmt"

	"grouplock/internal/store"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account from --username and --password",
	RunE:  accountCreate,
}

func init() {
	accountCmd.AddCommand(accountCreateCmd)
}

func accountCreate(cmd *cobra.Command, args []string) error {
	u, p, err := credentials()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.svc.Register(ctx, u, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Account %q created (id %d)\n", u, id)
	return nil
}

// printAccount is shared by the show commands.
func printAccount(cmd *cobra.Command, acct store.Account) {
	fmt.Fprintf(cmd.OutOrStdout(), "Account:   %s (id %d)\n", acct.Username, acct.ID)
}
