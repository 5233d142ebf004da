package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"tgfetch/internal/model"
)

type mockAPI struct {
	chat    tgbotapi.Chat
	chatErr error

	pages   [][]tgbotapi.Update
	page    int
	offsets []int

	fileURL string
	fileErr error
}

func (m *mockAPI) GetChat(_ tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return m.chat, m.chatErr
}

func (m *mockAPI) GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	m.offsets = append(m.offsets, config.Offset)
	if m.page >= len(m.pages) {
		return nil, nil
	}
	page := m.pages[m.page]
	m.page++
	return page, nil
}

func (m *mockAPI) GetFileDirectURL(_ string) (string, error) {
	return m.fileURL, m.fileErr
}

type mockHTTP struct {
	status int
	body   io.Reader
	err    error
	gotURL string
}

func (m *mockHTTP) Do(req *http.Request) (*http.Response, error) {
	m.gotURL = req.URL.String()
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(m.body),
	}, nil
}

func channelPost(updateID, messageID int, chatID int64, text string, doc *tgbotapi.Document) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: updateID,
		ChannelPost: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Document:  doc,
		},
	}
}

func TestMessages(t *testing.T) {
	const chatID = int64(-100200)

	api := &mockAPI{
		chat: tgbotapi.Chat{ID: chatID},
		pages: [][]tgbotapi.Update{
			{
				channelPost(10, 1, chatID, "first", &tgbotapi.Document{FileID: "f1", FileName: "a.pdf", MimeType: "application/pdf", FileSize: 100}),
				channelPost(11, 2, 99, "other channel", nil),
			},
			{
				channelPost(12, 3, chatID, "second", nil),
			},
		},
	}
	src := &Telegram{api: api, channel: "@files"}

	got, err := src.Messages(context.Background(), 10)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}

	want := []model.Message{
		{
			ID:   1,
			Text: "first",
			Attachment: &model.Attachment{
				FileName: "a.pdf",
				MimeType: "application/pdf",
				Size:     100,
				FileID:   "f1",
			},
		},
		{ID: 3, Text: "second"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Messages mismatch (-want +got):\n%s", diff)
	}

	// Each page is acknowledged by advancing the offset past its last update.
	if diff := cmp.Diff([]int{0, 12, 13}, api.offsets); diff != "" {
		t.Errorf("offsets (-want +got):\n%s", diff)
	}
}

func TestMessagesRespectsLimit(t *testing.T) {
	const chatID = int64(-100200)

	api := &mockAPI{
		chat: tgbotapi.Chat{ID: chatID},
		pages: [][]tgbotapi.Update{
			{
				channelPost(1, 1, chatID, "a", nil),
				channelPost(2, 2, chatID, "b", nil),
				channelPost(3, 3, chatID, "c", nil),
			},
		},
	}
	src := &Telegram{api: api, channel: "@files"}

	got, err := src.Messages(context.Background(), 2)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if diff := cmp.Diff(2, len(got)); diff != "" {
		t.Errorf("message count (-want +got):\n%s", diff)
	}
}

func TestMessagesChannelAccessError(t *testing.T) {
	api := &mockAPI{chatErr: errors.New("chat not found")}
	src := &Telegram{api: api, channel: "@private"}

	_, err := src.Messages(context.Background(), 10)
	if !errors.Is(err, ErrChannelAccess) {
		t.Fatalf("expected ErrChannelAccess, got %v", err)
	}
}

func TestMessagesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := &mockAPI{chat: tgbotapi.Chat{ID: 1}}
	src := &Telegram{api: api, channel: "@files"}

	_, err := src.Messages(ctx, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDownload(t *testing.T) {
	payload := "file contents"
	client := &mockHTTP{status: http.StatusOK, body: bytes.NewBufferString(payload)}
	api := &mockAPI{fileURL: "https://api.telegram.org/file/bot/doc.pdf"}
	src := &Telegram{api: api, client: client, channel: "@files"}

	dest := filepath.Join(t.TempDir(), "doc.pdf")
	msg := model.Message{ID: 1, Attachment: &model.Attachment{FileID: "f1"}}

	written, err := src.Download(context.Background(), msg, dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if diff := cmp.Diff(int64(len(payload)), written); diff != "" {
		t.Errorf("bytes written (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(api.fileURL, client.gotURL); diff != "" {
		t.Errorf("request url (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if diff := cmp.Diff(payload, string(data)); diff != "" {
		t.Errorf("payload (-want +got):\n%s", diff)
	}
}

func TestDownloadNoAttachment(t *testing.T) {
	src := &Telegram{api: &mockAPI{}, channel: "@files"}

	_, err := src.Download(context.Background(), model.Message{ID: 1}, "x")
	if err == nil {
		t.Fatal("expected error for message without attachment")
	}
}

func TestDownloadBadStatus(t *testing.T) {
	client := &mockHTTP{status: http.StatusNotFound, body: bytes.NewBufferString("not found")}
	api := &mockAPI{fileURL: "https://api.telegram.org/file/bot/doc.pdf"}
	src := &Telegram{api: api, client: client, channel: "@files"}

	dest := filepath.Join(t.TempDir(), "doc.pdf")
	msg := model.Message{ID: 1, Attachment: &model.Attachment{FileID: "f1"}}

	if _, err := src.Download(context.Background(), msg, dest); err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no file should exist after a failed download, stat: %v", err)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("connection reset") }

func TestDownloadRemovesPartialFile(t *testing.T) {
	client := &mockHTTP{status: http.StatusOK, body: errReader{}}
	api := &mockAPI{fileURL: "https://api.telegram.org/file/bot/doc.pdf"}
	src := &Telegram{api: api, client: client, channel: "@files"}

	dest := filepath.Join(t.TempDir(), "doc.pdf")
	msg := model.Message{ID: 1, Attachment: &model.Attachment{FileID: "f1"}}

	if _, err := src.Download(context.Background(), msg, dest); err == nil {
		t.Fatal("expected error when the transfer breaks mid-stream")
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial file should have been removed, stat: %v", err)
	}
}

func TestChatConfig(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    tgbotapi.ChatConfig
	}{
		{
			name:    "username with at sign",
			channel: "@files",
			want:    tgbotapi.ChatConfig{SuperGroupUsername: "@files"},
		},
		{
			name:    "numeric chat id",
			channel: "-1001234567890",
			want:    tgbotapi.ChatConfig{ChatID: -1001234567890},
		},
		{
			name:    "bare username",
			channel: "files",
			want:    tgbotapi.ChatConfig{SuperGroupUsername: "@files"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &Telegram{channel: tt.channel}
			if diff := cmp.Diff(tt.want, src.chatConfig()); diff != "" {
				t.Errorf("chatConfig mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMapAttachment(t *testing.T) {
	tests := []struct {
		name string
		post *tgbotapi.Message
		want *model.Attachment
	}{
		{
			name: "document",
			post: &tgbotapi.Message{Document: &tgbotapi.Document{
				FileID: "d1", FileName: "report.pdf", MimeType: "application/pdf", FileSize: 5000,
			}},
			want: &model.Attachment{FileID: "d1", FileName: "report.pdf", MimeType: "application/pdf", Size: 5000},
		},
		{
			name: "photo picks largest size",
			post: &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
				{FileID: "p-small", FileSize: 1000},
				{FileID: "p-large", FileSize: 90000},
			}},
			want: &model.Attachment{FileID: "p-large", MimeType: "image/jpeg", Size: 90000},
		},
		{
			name: "video",
			post: &tgbotapi.Message{Video: &tgbotapi.Video{
				FileID: "v1", FileName: "clip.mp4", MimeType: "video/mp4", FileSize: 7000,
			}},
			want: &model.Attachment{FileID: "v1", FileName: "clip.mp4", MimeType: "video/mp4", Size: 7000},
		},
		{
			name: "audio",
			post: &tgbotapi.Message{Audio: &tgbotapi.Audio{
				FileID: "a1", FileName: "song.mp3", MimeType: "audio/mpeg", FileSize: 9000,
			}},
			want: &model.Attachment{FileID: "a1", FileName: "song.mp3", MimeType: "audio/mpeg", Size: 9000},
		},
		{
			name: "text only",
			post: &tgbotapi.Message{Text: "no files here"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, mapAttachment(tt.post)); diff != "" {
				t.Errorf("mapAttachment mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMapMessageCaptionFallback(t *testing.T) {
	post := &tgbotapi.Message{
		MessageID: 8,
		Caption:   "Invoice for March",
		Document:  &tgbotapi.Document{FileID: "d8", FileName: "invoice.pdf"},
	}
	got := mapMessage(post)
	if diff := cmp.Diff("Invoice for March", got.Text); diff != "" {
		t.Errorf("caption fallback (-want +got):\n%s", diff)
	}
}
