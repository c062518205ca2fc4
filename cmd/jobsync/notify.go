package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/runlog"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test run report",
	Long:  "Posts a sample completed-run report to the configured Slack webhook.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Notify.Type != "slack" {
		logger.Info("notification type is not slack; run reports only go to the log", "type", cfg.Notify.Type)
		return nil
	}

	slack := runlog.NewSlackSink(cfg.Notify.WebhookURL, &http.Client{Timeout: 30 * time.Second}, logger)
	if err := slack.SendTest(); err != nil {
		logger.Error("test notification failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test notification sent successfully")
	return nil
}
