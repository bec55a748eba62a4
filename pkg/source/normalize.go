package source

import (
	"strings"
	"time"

	"github.com/xhad/edurag/internal/models"
)

const DefaultFileName = "Document"

// NormalizeDocument cleans a document at the source boundary. Documents
// without an id cannot produce stable chunk ids and are rejected.
func NormalizeDocument(d models.Document) (models.Document, bool) {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return d, false
	}

	d.FileName = cleanText(d.FileName)
	if d.FileName == "" {
		d.FileName = DefaultFileName
	}
	d.ExtractedText = strings.TrimSpace(strings.ToValidUTF8(d.ExtractedText, ""))
	d.Summary = strings.TrimSpace(strings.ToValidUTF8(d.Summary, ""))

	return d, true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(s, "")), " ")
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
