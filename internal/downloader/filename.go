package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"tgfetch/internal/filter"
	"tgfetch/internal/model"
)

const maxNameLength = 150

var invalidChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_",
	"?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// filename picks the on-disk name for a message's attachment: the
// message text when name_from_text is enabled, otherwise the suggested
// filename, with generated fallbacks for unnamed media.
func (d *Downloader) filename(msg model.Message) string {
	att := msg.Attachment

	if d.nameFromText {
		if name := NameFromText(msg.Text, extensionFor(att)); name != "" {
			return name
		}
	}

	if att.FileName != "" {
		return Sanitize(att.FileName)
	}

	if att.MimeType == "image/jpeg" {
		return fmt.Sprintf("photo_%d.jpg", msg.ID)
	}
	return fmt.Sprintf("file_%d%s", msg.ID, extensionFor(att))
}

// NameFromText converts message text into a safe filename with the
// given extension. It returns an empty string when the text is blank.
func NameFromText(text, ext string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.TrimSpace(invalidChars.Replace(text))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	maxText := maxNameLength - len(ext)
	if len(text) > maxText {
		// Cut on a rune boundary so multi-byte text never yields a
		// name with a split rune.
		cut := maxText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = strings.TrimSpace(text[:cut])
	}
	return text + ext
}

// Sanitize strips path separators and filesystem-invalid characters
// from a suggested filename.
func Sanitize(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSpace(invalidChars.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// extensionFor derives a dotted extension from the suggested filename,
// falling back to the mime subtype.
func extensionFor(att *model.Attachment) string {
	if ext := filter.Ext(att.FileName); ext != "" {
		return "." + ext
	}
	if _, sub, ok := strings.Cut(att.MimeType, "/"); ok && sub != "" {
		return "." + sub
	}
	return ".bin"
}

// uniquePath joins dir and name, appending " (1)", " (2)", ... before
// the extension while a file of that name already exists. Local
// collisions happen even for novel message IDs, so existing files are
// never overwritten.
func uniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 1; ; n++ {
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}
