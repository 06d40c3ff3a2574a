package main

import (
	"context"
	"fmt"
	"os"

	"grouplock/internal/app"
	"grouplock/internal/dispatch"
	"grouplock/internal/store"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Show and edit the message automation settings",
}

var sendShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the automation settings",
	RunE:  sendShow,
}

var sendSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set conversation, messages, prefix, delay and cookies",
	RunE:  sendSet,
}

var (
	sendChatID       string
	sendMessagesFile string
	sendPrefix       string
	sendDelay        int
	sendCookies      string
	sendCookiesFile  string
)

func init() {
	sendSetCmd.Flags().StringVar(&sendChatID, "chat-id", "", "Conversation ID (blank opens the inbox)")
	sendSetCmd.Flags().StringVar(&sendMessagesFile, "messages-file", "", "File with one message per line")
	sendSetCmd.Flags().StringVar(&sendPrefix, "prefix", "", "Name prepended to each message")
	sendSetCmd.Flags().IntVar(&sendDelay, "delay", store.DefaultDelaySeconds, "Seconds between messages")
	sendSetCmd.Flags().StringVar(&sendCookies, "cookies", "", "Session cookies (name=value; ...); blank keeps stored")
	sendSetCmd.Flags().StringVar(&sendCookiesFile, "cookies-file", "", "Read session cookies from a file")

	sendCmd.AddCommand(sendShowCmd)
	sendCmd.AddCommand(sendSetCmd)
}

func sendShow(cmd *cobra.Command, args []string) error {
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		ac, err := a.svc.AutomationConfig(ctx, acct.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printAccount(cmd, acct)
		fmt.Fprintf(out, "Chat ID:   %s\n", orDash(ac.ChatID))
		fmt.Fprintf(out, "Prefix:    %s\n", orDash(ac.Prefix))
		fmt.Fprintf(out, "Delay:     %ds\n", ac.DelaySeconds)
		fmt.Fprintf(out, "Cookies:   %s\n", orDash(maskCookies(ac.Cookies)))
		fmt.Fprintf(out, "Messages:  %d\n", len(ac.Messages))
		for i, m := range ac.Messages {
			fmt.Fprintf(out, "  %d. %s\n", i+1, dispatch.Preview(m, 60))
		}
		return nil
	})
}

func sendSet(cmd *cobra.Command, args []string) error {
	cookies, err := readCookies(sendCookies, sendCookiesFile)
	if err != nil {
		return err
	}
	var messages []string
	if sendMessagesFile != "" {
		data, err := os.ReadFile(sendMessagesFile)
		if err != nil {
			return fmt.Errorf("read messages file: %w", err)
		}
		messages = dispatch.ParseMessages(string(data))
		if messages == nil {
			messages = []string{}
		}
	}
	return withAccount(cmd, func(ctx context.Context, a *application, acct store.Account) error {
		err := a.svc.UpdateAutomation(ctx, acct.ID, app.AutomationUpdate{
			ChatID:       sendChatID,
			Messages:     messages,
			Prefix:       sendPrefix,
			DelaySeconds: sendDelay,
			Cookies:      cookies,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Automation settings saved")
		return nil
	})
}
