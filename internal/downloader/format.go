package downloader

import (
	"fmt"
	"strings"

	"tgfetch/internal/model"
)

// FormatSummary renders the end-of-run summary block.
func FormatSummary(s model.Summary) string {
	var b strings.Builder
	b.WriteString("Download summary:\n")
	fmt.Fprintf(&b, "  downloaded:          %d\n", s.Downloaded)
	fmt.Fprintf(&b, "  skipped (duplicate): %d\n", s.Duplicates)
	fmt.Fprintf(&b, "  skipped (filtered):  %d\n", s.Filtered)
	fmt.Fprintf(&b, "  failed:              %d\n", s.Failed)
	fmt.Fprintf(&b, "  tracked total:       %d", s.Tracked)
	return b.String()
}
