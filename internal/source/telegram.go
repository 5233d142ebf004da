package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgfetch/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type telegramAPI interface {
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Telegram implements Source on top of the Telegram Bot API. The bot
// must be a member of the target channel; recent channel posts are
// consumed from the pending update queue in the order the platform
// delivers them.
type Telegram struct {
	api     telegramAPI
	client  HTTPClient
	channel string
}

// NewTelegram creates a Telegram source for the given channel, which is
// either an @username or a numeric chat ID. An invalid or revoked token
// fails here, before any channel work starts.
func NewTelegram(token, channel string, client HTTPClient) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, client: client, channel: channel}, nil
}

// Messages returns up to limit recent posts from the channel.
func (t *Telegram) Messages(ctx context.Context, limit int) ([]model.Message, error) {
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: t.chatConfig()})
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrChannelAccess, t.channel, err)
	}

	var messages []model.Message
	offset := 0
	for len(messages) < limit {
		if err := ctx.Err(); err != nil {
			return messages, err
		}

		updates, err := t.api.GetUpdates(tgbotapi.UpdateConfig{
			Offset:         offset,
			Limit:          100,
			AllowedUpdates: []string{"channel_post"},
		})
		if err != nil {
			return nil, fmt.Errorf("get updates: %w", err)
		}
		if len(updates) == 0 {
			break
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			post := u.ChannelPost
			if post == nil || post.Chat == nil || post.Chat.ID != chat.ID {
				continue
			}
			messages = append(messages, mapMessage(post))
			if len(messages) == limit {
				break
			}
		}
	}
	return messages, nil
}

// Download fetches the attachment payload of msg into destPath and
// returns the number of bytes written.
func (t *Telegram) Download(ctx context.Context, msg model.Message, destPath string) (int64, error) {
	if msg.Attachment == nil {
		return 0, fmt.Errorf("message %d has no attachment", msg.ID)
	}

	url, err := t.api.GetFileDirectURL(msg.Attachment.FileID)
	if err != nil {
		return 0, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath) //nolint:gosec // path built from the configured destination
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(destPath)
		return 0, fmt.Errorf("close file: %w", err)
	}
	return written, nil
}

func (t *Telegram) chatConfig() tgbotapi.ChatConfig {
	if strings.HasPrefix(t.channel, "@") {
		return tgbotapi.ChatConfig{SuperGroupUsername: t.channel}
	}
	if id, err := strconv.ParseInt(t.channel, 10, 64); err == nil {
		return tgbotapi.ChatConfig{ChatID: id}
	}
	return tgbotapi.ChatConfig{SuperGroupUsername: "@" + t.channel}
}

func mapMessage(post *tgbotapi.Message) model.Message {
	text := post.Text
	if text == "" {
		text = post.Caption
	}
	return model.Message{
		ID:         int64(post.MessageID),
		Text:       text,
		Attachment: mapAttachment(post),
	}
}

func mapAttachment(post *tgbotapi.Message) *model.Attachment {
	switch {
	case post.Document != nil:
		return &model.Attachment{
			FileName: post.Document.FileName,
			MimeType: post.Document.MimeType,
			Size:     int64(post.Document.FileSize),
			FileID:   post.Document.FileID,
		}
	case len(post.Photo) > 0:
		// Telegram sends several sizes; the last one is the largest.
		best := post.Photo[len(post.Photo)-1]
		return &model.Attachment{
			MimeType: "image/jpeg",
			Size:     int64(best.FileSize),
			FileID:   best.FileID,
		}
	case post.Video != nil:
		return &model.Attachment{
			FileName: post.Video.FileName,
			MimeType: post.Video.MimeType,
			Size:     int64(post.Video.FileSize),
			FileID:   post.Video.FileID,
		}
	case post.Audio != nil:
		return &model.Attachment{
			FileName: post.Audio.FileName,
			MimeType: post.Audio.MimeType,
			Size:     int64(post.Audio.FileSize),
			FileID:   post.Audio.FileID,
		}
	}
	return nil
}
