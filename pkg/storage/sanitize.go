package storage

import (
	"regexp"
	"strings"
)

const (
	// NoSubjectPlaceholder names threads without a usable subject
	NoSubjectPlaceholder = "no_subject"

	// MaxNameLength caps a sanitized path segment, in runes
	MaxNameLength = 100
)

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeFilename replaces characters that are unsafe in a path segment
// with '_' and truncates the result to MaxNameLength runes.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")

	runes := []rune(name)
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	return string(runes)
}

// ThreadDirName returns the directory name for a thread: "<id>_<subject>"
func ThreadDirName(threadID, subject string) string {
	name := SanitizeFilename(strings.TrimSpace(subject))
	if name == "" {
		name = NoSubjectPlaceholder
	}
	return threadID + "_" + name
}
