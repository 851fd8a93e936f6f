package board

import (
	"fmt"
	"strings"
)

const (
	// DefaultBaseURL is the read-only JSON API root
	DefaultBaseURL = "https://a.4cdn.org"

	// DefaultImageHost serves attachment files
	DefaultImageHost = "https://i.4cdn.org"
)

// CatalogURL constructs the URL of a board's catalog
func CatalogURL(baseURL, board string) string {
	return fmt.Sprintf("%s/%s/catalog.json", strings.TrimRight(baseURL, "/"), board)
}

// ThreadURL constructs the URL of a single thread
func ThreadURL(baseURL, board, threadID string) string {
	return fmt.Sprintf("%s/%s/thread/%s.json", strings.TrimRight(baseURL, "/"), board, threadID)
}

// MediaURL constructs the direct URL of an attachment
func MediaURL(imageHost, board string, a Attachment) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(imageHost, "/"), board, a.FileName())
}
