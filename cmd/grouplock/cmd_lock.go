package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"grouplock/internal/app"
	"grouplock/internal/browser"
	"grouplock/internal/store"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Show and edit the group name lock settings",
}

var lockShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the lock settings",
	RunE:  lockShow,
}

var lockSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set chat ID, locked name and cookies",
	RunE:  lockSet,
}

var lockNickCmd = &cobra.Command{
	Use:   "nick",
	Short: "Manage nickname locks (stored only, not enforced)",
}

var lockNickAddCmd = &cobra.Command{
	Use:   "add [member-id] [nickname]",
	Short: "Store a nickname lock",
	Args:  cobra.ExactArgs(2),
	RunE:  lockNickAdd,
}

var lockNickRmCmd = &cobra.Command{
	Use:   "rm [member-id]",
	Short: "Remove a nickname lock",
	Args:  cobra.ExactArgs(1),
	RunE:  lockNickRm,
}

var (
	lockChatID      string
	lockName        string
	lockCookies     string
	lockCookiesFile string
)

func init() {
	lockSetCmd.Flags().StringVar(&lockChatID, "chat-id", "", "Conversation ID (required)")
	lockSetCmd.Flags().StringVar(&lockName, "name", "", "Group name to lock (required)")
	lockSetCmd.Flags().StringVar(&lockCookies, "cookies", "", "Session cookies (name=value; ...); blank keeps stored")
	lockSetCmd.Flags().StringVar(&lockCookiesFile, "cookies-file", "", "Read session cookies from a file")
	lockSetCmd.MarkFlagRequired("chat-id")
	lockSetCmd.MarkFlagRequired("name")

	lockNickCmd.AddCommand(lockNickAddCmd)
	lockNickCmd.AddCommand(lockNickRmCmd)
	lockCmd.AddCommand(lockShowCmd)
	lockCmd.AddCommand(lockSetCmd)
	lockCmd.AddCommand(lockNickCmd)
}

func lockShow(cmd *cobra.Command, args []string) error {
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		lc, enabled, err := a.svc.LockConfig(ctx, acct.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printAccount(cmd, acct)
		fmt.Fprintf(out, "Enabled:   %v\n", enabled)
		fmt.Fprintf(out, "Chat ID:   %s\n", orDash(lc.ChatID))
		fmt.Fprintf(out, "Name:      %s\n", orDash(lc.LockedName))
		fmt.Fprintf(out, "Cookies:   %s\n", orDash(maskCookies(lc.Cookies)))
		fmt.Fprintf(out, "Nicknames: %d (not enforced)\n", len(lc.Nicknames))
		members := make([]string, 0, len(lc.Nicknames))
		for m := range lc.Nicknames {
			members = append(members, m)
		}
		sort.Strings(members)
		for _, m := range members {
			fmt.Fprintf(out, "  %s -> %s\n", m, lc.Nicknames[m])
		}
		return nil
	})
}

func lockSet(cmd *cobra.Command, args []string) error {
	cookies, err := readCookies(lockCookies, lockCookiesFile)
	if err != nil {
		return err
	}
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		err := a.svc.UpdateLock(ctx, acct.ID, app.LockUpdate{
			ChatID:     lockChatID,
			LockedName: lockName,
			Cookies:    cookies,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Lock settings saved")
		return nil
	})
}

func lockNickAdd(cmd *cobra.Command, args []string) error {
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		if err := a.svc.SetNickname(ctx, acct.ID, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Nickname for %s saved\n", args[0])
		return nil
	})
}

func lockNickRm(cmd *cobra.Command, args []string) error {
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		removed, err := a.svc.RemoveNickname(ctx, acct.ID, args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no nickname stored for %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Nickname for %s removed\n", args[0])
		return nil
	})
}

// readCookies returns the flag value, or the trimmed contents of file.
func readCookies(flag, file string) (string, error) {
	if file == "" {
		return strings.TrimSpace(flag), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read cookies file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// maskCookies hides cookie values.
func maskCookies(raw string) string {
	cookies := browser.ParseCookies(raw)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"=***")
	}
	return strings.Join(parts, "; ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
