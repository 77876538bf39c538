package delivery

import "strings"

// SplitContent splits content into chunks of at most maxLen runes without
// breaking fragments. Content at or under the limit comes back as one chunk.
// Fragments are the separator-delimited pieces of the content; they are packed
// greedily, and joining the returned chunks with the separator reproduces the
// original content exactly.
//
// A single fragment longer than maxLen is emitted as its own oversized chunk.
// Truncating here would corrupt the payload, so the oversized chunk is passed
// through for the adapter (or its provider) to reject.
func SplitContent(content, separator string, maxLen int) []string {
	if maxLen <= 0 || len([]rune(content)) <= maxLen {
		return []string{content}
	}
	if separator == "" {
		return []string{content}
	}

	fragments := strings.Split(content, separator)
	sepLen := len([]rune(separator))

	var chunks []string
	var current strings.Builder
	currentLen := 0
	hasFragment := false

	flush := func() {
		chunks = append(chunks, current.String())
		current.Reset()
		currentLen = 0
		hasFragment = false
	}

	for _, fragment := range fragments {
		fragLen := len([]rune(fragment))

		if !hasFragment {
			current.WriteString(fragment)
			currentLen = fragLen
			hasFragment = true
			continue
		}

		if currentLen+sepLen+fragLen <= maxLen {
			current.WriteString(separator)
			current.WriteString(fragment)
			currentLen += sepLen + fragLen
			continue
		}

		flush()
		current.WriteString(fragment)
		currentLen = fragLen
		hasFragment = true
	}

	if hasFragment {
		flush()
	}

	return chunks
}
