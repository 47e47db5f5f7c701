package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var setWebhookCmd = &cobra.Command{
	Use:   "set-webhook",
	Short: "Register the webhook URL with Telegram",
	Long:  `Registers WEBHOOK_BASE_URL + /webhook as the bot's webhook, like GET /setWebhook on a running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Telegram.Token == "" {
			return errors.New("telegram.token is required (TELEGRAM_BOT_TOKEN)")
		}
		url := webhookURL(cfg)
		if url == "" {
			return errors.New("telegram.webhook_base_url is required (WEBHOOK_BASE_URL)")
		}

		desc, err := newTelegramClient(cfg, logger).SetWebhook(cmd.Context(), url, cfg.Telegram.WebhookSecret)
		if err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Webhook set to %s (%s)\n", url, desc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setWebhookCmd)
}
