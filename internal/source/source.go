// Package source provides access to the channel message stream and
// attachment payloads.
package source

import (
	"context"
	"errors"

	"tgfetch/internal/model"
)

// ErrChannelAccess marks fatal channel-level failures: the channel does
// not exist, the bot is not a member, or access was revoked.
var ErrChannelAccess = errors.New("channel is not accessible")

// Source is the capability consumed by the download orchestrator.
// Messages returns up to limit recent messages in platform order; the
// caller must not assume any particular ordering beyond that.
type Source interface {
	Messages(ctx context.Context, limit int) ([]model.Message, error)
	Download(ctx context.Context, msg model.Message, destPath string) (int64, error)
}
