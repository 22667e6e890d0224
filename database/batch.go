package database

import "strings"

const batchSeparator = "GO"

// SplitBatches splits a migration script into batches on lines that contain
// only the GO separator. Both \n and \r\n line endings are accepted.
// Batches are trimmed and empty ones are dropped, so a script without a
// separator yields a single batch.
func SplitBatches(content string) []string {
	var batches []string
	var current strings.Builder

	flush := func() {
		batch := strings.TrimSpace(current.String())
		if batch != "" {
			batches = append(batches, batch)
		}
		current.Reset()
	}

	for line := range strings.Lines(content) {
		if strings.TrimSpace(line) == batchSeparator {
			flush()
			continue
		}
		current.WriteString(line)
	}
	flush()

	return batches
}
