package quizgen

// SplitWindows cuts text into windows of at most size characters where consecutive
// windows share overlap characters. The last window always ends at the end of text.
// Lengths are counted in runes so multi-byte text is never split mid-character.
func SplitWindows(text string, size, overlap int) []string {
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var windows []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			windows = append(windows, string(runes[start:]))
			break
		}
		windows = append(windows, string(runes[start:end]))
		start = end - overlap
	}
	return windows
}
