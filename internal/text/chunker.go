package text

import (
	"strings"
)

// Profile bundles the knobs of one splitting strategy. Separators are tried
// in order; the empty string separator means "split anywhere" and should be
// the last entry so the splitter always terminates. BreakAfter lists runes
// that get a line break inserted after them before splitting, which gives
// scripts without reliable paragraph breaks somewhere natural to cut.
type Profile struct {
	ChunkSize  int
	Overlap    int
	Separators []string
	BreakAfter []rune
}

// DefaultProfile splits on paragraph, line, then word boundaries.
func DefaultProfile() Profile {
	return Profile{
		ChunkSize:  1000,
		Overlap:    200,
		Separators: []string{"\n\n", "\n", " ", ""},
	}
}

// ArabicProfile uses smaller chunks and treats Arabic sentence-ending
// punctuation as a boundary. Arabic prose often arrives as one long run
// with few line breaks, so sentence enders are the only reliable seams.
func ArabicProfile() Profile {
	return Profile{
		ChunkSize:  700,
		Overlap:    150,
		Separators: []string{"\n\n", "\n", "۔", "؟", "!", ".", " ", ""},
		BreakAfter: []rune{'۔', '؟', '!', '.'},
	}
}

// ProfileFor picks a splitting profile by name. Unknown names fall back to
// the default profile.
func ProfileFor(name string) Profile {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "arabic", "ar":
		return ArabicProfile()
	default:
		return DefaultProfile()
	}
}

// Split cuts text into chunks of at most p.ChunkSize runes, preferring the
// earliest separator in p.Separators that appears in the text and recursing
// with the remaining separators when a piece is still too large. Adjacent
// chunks share up to p.Overlap runes of trailing context. Chunks are
// trimmed; whitespace-only pieces are dropped. Empty input yields nil, and
// input already within the size limit yields exactly one chunk.
func Split(text string, p Profile) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if p.ChunkSize <= 0 {
		p = DefaultProfile()
	}

	if len(p.BreakAfter) > 0 {
		text = insertBreaks(text, p.BreakAfter)
	}

	if runeLen(text) <= p.ChunkSize {
		return []string{strings.TrimSpace(text)}
	}

	seps := p.Separators
	if len(seps) == 0 {
		seps = DefaultProfile().Separators
	}

	var out []string
	for _, piece := range split(text, seps, p.ChunkSize, p.Overlap) {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// split is the recursive core. It cuts text on the first present separator,
// re-splits any oversize part with the remaining separators, then greedily
// merges parts back up to chunkSize with overlap carried between chunks.
func split(text string, seps []string, chunkSize, overlap int) []string {
	sep, rest := pickSeparator(text, seps)

	var parts []string
	if sep == "" {
		parts = splitRunes(text, chunkSize)
	} else {
		for _, part := range strings.Split(text, sep) {
			if part == "" {
				continue
			}
			if runeLen(part) > chunkSize && len(rest) > 0 {
				parts = append(parts, split(part, rest, chunkSize, overlap)...)
			} else {
				parts = append(parts, part)
			}
		}
	}

	return merge(parts, sep, chunkSize, overlap)
}

// pickSeparator returns the first separator present in text and the ones
// after it. The empty separator always matches.
func pickSeparator(text string, seps []string) (string, []string) {
	for i, s := range seps {
		if s == "" {
			return "", nil
		}
		if strings.Contains(text, s) {
			return s, seps[i+1:]
		}
	}
	return "", nil
}

// merge packs parts into chunks of at most chunkSize runes. When a chunk
// closes, its last overlap runes seed the next chunk so consecutive chunks
// share context.
func merge(parts []string, sep string, chunkSize, overlap int) []string {
	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)

	sepLen := runeLen(sep)

	flush := func() string {
		if curLen == 0 {
			return ""
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		curLen = 0
		return chunk
	}

	for _, part := range parts {
		partLen := runeLen(part)
		if curLen > 0 && curLen+sepLen+partLen > chunkSize {
			closed := flush()
			if overlap > 0 {
				tail := lastRunes(closed, overlap)
				if tail != "" && runeLen(tail)+sepLen+partLen <= chunkSize {
					current.WriteString(tail)
					curLen = runeLen(tail)
				}
			}
		}
		if curLen > 0 {
			current.WriteString(sep)
			curLen += sepLen
		}
		current.WriteString(part)
		curLen += partLen
	}
	flush()

	return chunks
}

// splitRunes hard-cuts text into chunkSize-rune windows. Last resort when no
// separator matched.
func splitRunes(text string, chunkSize int) []string {
	runes := []rune(text)
	var parts []string
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// insertBreaks appends a line break after each listed rune unless one is
// already there.
func insertBreaks(text string, after []rune) string {
	marks := make(map[rune]bool, len(after))
	for _, r := range after {
		marks[r] = true
	}

	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range runes {
		b.WriteRune(r)
		if marks[r] && (i+1 >= len(runes) || runes[i+1] != '\n') {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

func runeLen(s string) int {
	return len([]rune(s))
}

// lastRunes returns the trailing n runes of s, trimmed at a leading partial
// word when possible so the carried overlap starts on a word boundary.
func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	tail := string(runes[len(runes)-n:])
	if i := strings.IndexAny(tail, " \n"); i >= 0 && i+1 < len(tail) {
		tail = tail[i+1:]
	}
	return tail
}
