package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tgfetch/internal/config"
	"tgfetch/internal/downloader"
	"tgfetch/internal/history"
	"tgfetch/internal/source"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tgfetch",
		Short: "Download attachments from a Telegram channel",
		Long: `tgfetch scans a Telegram channel's recent posts and downloads
attachments matching the configured filters (file type, size, keywords),
skipping anything recorded in the download history from earlier runs.`,
		SilenceUsage: true,
		RunE:         run,
	}

	cmd.Flags().String("config", "", "config file (default: ./config.yaml)")
	cmd.Flags().String("channel", "", "channel @username or numeric ID")
	cmd.Flags().String("dest", "", "download destination directory")
	cmd.Flags().StringSlice("types", nil, "allowed file extensions, e.g. pdf,jpg,png")
	cmd.Flags().StringSlice("keywords", nil, "keywords matched against filename and message text")
	cmd.Flags().Float64("max-size", 0, "maximum file size in MB (0 = no limit)")
	cmd.Flags().Int("limit", 100, "maximum number of messages to check")
	cmd.Flags().String("history", "", "path to the download history ledger")
	cmd.Flags().String("history-backend", "", "history backend: json or sqlite")
	cmd.Flags().Bool("name-from-text", false, "derive filenames from message text")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DownloadPath, 0o750); err != nil {
		log.Error("create download directory", "path", cfg.DownloadPath, "error", err)
		return err
	}
	if dir := filepath.Dir(cfg.HistoryPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create history directory", "path", dir, "error", err)
			return err
		}
	}

	store, err := history.Open(cfg.HistoryBackend, cfg.HistoryPath)
	if err != nil {
		log.Error("open history", "path", cfg.HistoryPath, "error", err)
		return err
	}
	defer func() { _ = store.Close() }()

	src, err := source.NewTelegram(cfg.BotToken, cfg.Channel, http.DefaultClient)
	if err != nil {
		log.Error("connect to telegram", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting run",
		"channel", cfg.Channel,
		"dest", cfg.DownloadPath,
		"types", cfg.FileTypes,
		"keywords", cfg.Keywords,
		"max_size_mb", cfg.MaxFileSizeMB,
		"limit", cfg.Limit,
	)

	d := downloader.New(src, store, cfg, log)
	summary, runErr := d.Run(ctx)

	fmt.Fprintln(cmd.OutOrStdout(), downloader.FormatSummary(summary))

	if runErr != nil {
		log.Error("run aborted", "error", runErr)
		return runErr
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
