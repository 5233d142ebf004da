// Package downloader drives the download pipeline: pull messages,
// skip duplicates, apply filters, transfer attachments, record history.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"syscall"
	"time"

	"tgfetch/internal/config"
	"tgfetch/internal/filter"
	"tgfetch/internal/history"
	"tgfetch/internal/model"
	"tgfetch/internal/source"
)

// Downloader processes channel messages strictly sequentially. History
// is written after each successful transfer and before the next message
// starts, so an interrupted run always leaves a consistent ledger.
type Downloader struct {
	src          source.Source
	store        history.Store
	rules        filter.Rules
	dest         string
	limit        int
	nameFromText bool
	log          *slog.Logger
}

// New creates a Downloader for one run with the given collaborators.
func New(src source.Source, store history.Store, cfg *config.Config, log *slog.Logger) *Downloader {
	return &Downloader{
		src:          src,
		store:        store,
		rules:        cfg.Rules(),
		dest:         cfg.DownloadPath,
		limit:        cfg.Limit,
		nameFromText: cfg.NameFromText,
		log:          log,
	}
}

// Run executes one pipeline pass and returns the per-outcome summary.
// A non-nil error is fatal (unreachable channel, unwritable destination
// or ledger); per-message transfer failures are counted, logged, and do
// not stop the run.
func (d *Downloader) Run(ctx context.Context) (model.Summary, error) {
	var summary model.Summary

	messages, err := d.src.Messages(ctx, d.limit)
	if err != nil {
		return summary, fmt.Errorf("fetch messages: %w", err)
	}

	d.log.Info("processing messages", "count", len(messages), "limit", d.limit)

	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}

		outcome, err := d.process(ctx, msg)
		summary.Add(outcome)
		if err != nil {
			summary.Tracked = d.tracked(ctx)
			return summary, err
		}
	}

	summary.Tracked = d.tracked(ctx)
	return summary, nil
}

// tracked returns the ledger size for the summary, or 0 with a warning
// when the store cannot be counted.
func (d *Downloader) tracked(ctx context.Context) int {
	n, err := d.store.Len(ctx)
	if err != nil {
		d.log.Warn("count history entries", "error", err)
		return 0
	}
	return n
}

// process runs one message through the state machine. The returned
// error is non-nil only for run-wide conditions; ordinary transfer
// failures are reported through the outcome alone.
func (d *Downloader) process(ctx context.Context, msg model.Message) (model.Outcome, error) {
	seen, err := d.store.Contains(ctx, msg.ID)
	if err != nil {
		return model.OutcomeFailed, fmt.Errorf("check history: %w", err)
	}
	if seen {
		d.log.Debug("skipping duplicate", "message_id", msg.ID)
		return model.OutcomeDuplicate, nil
	}

	ok, reason := filter.Accept(msg, d.rules)
	if !ok {
		d.log.Debug("skipping filtered", "message_id", msg.ID, "reason", string(reason))
		return model.OutcomeFiltered, nil
	}

	name := d.filename(msg)
	destPath, err := uniquePath(d.dest, name)
	if err != nil {
		return model.OutcomeFailed, fmt.Errorf("resolve destination: %w", err)
	}

	d.log.Info("downloading", "message_id", msg.ID, "file", filepath.Base(destPath), "size", msg.Attachment.Size)

	written, err := d.src.Download(ctx, msg, destPath)
	if err != nil {
		d.log.Error("download failed", "message_id", msg.ID, "file", name, "error", err)
		if destinationFailure(err) {
			return model.OutcomeFailed, fmt.Errorf("destination unwritable: %w", err)
		}
		return model.OutcomeFailed, nil
	}

	entry := model.Entry{
		MessageID:    msg.ID,
		Filename:     filepath.Base(destPath),
		Size:         written,
		DownloadedAt: time.Now().UTC(),
	}
	if err := d.store.Record(ctx, entry); err != nil {
		// The file is on disk but not in the ledger; persisting the
		// ledger failing once will fail for every later message too.
		return model.OutcomeFailed, fmt.Errorf("record history: %w", err)
	}

	d.log.Info("downloaded", "message_id", msg.ID, "file", entry.Filename, "bytes", written)
	return model.OutcomeDownloaded, nil
}

// destinationFailure reports whether a transfer error was caused by the
// destination filesystem rather than the network. Such errors affect
// every remaining transfer identically and abort the run.
func destinationFailure(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EROFS)
}
