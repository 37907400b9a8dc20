package course

import (
	"fmt"
	"regexp"
	"strings"
)

// Chunker splits lesson body text into overlapping chunks on sentence
// boundaries. It never splits inside a sentence: a single sentence longer
// than Size becomes one oversized chunk.
type Chunker struct {
	// Size is the character budget per chunk.
	Size int

	// Overlap is the character budget for trailing sentences of the
	// previous chunk re-included at the start of the next one.
	Overlap int
}

// NewChunker creates a chunker, falling back to the package defaults for
// non-positive values.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 100
	}
	if overlap >= size {
		overlap = size / 8
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// sentenceRe matches one sentence: text up to the next terminator run
// (., !, ? possibly repeated) including trailing quotes/brackets, or the
// unterminated remainder at end of input.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+[)"'\x60\]]*|[^.!?]+$`)

// splitSentences splits text into trimmed sentences, dropping whitespace-only
// fragments. Newlines inside a sentence collapse to single spaces so chunk
// text stays on one visual line.
func splitSentences(text string) []string {
	raw := sentenceRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Split chunks a single body of text. Sentences are packed greedily: a
// sentence is added while the chunk stays within Size, and each new chunk
// starts with the trailing sentences of the previous chunk whose combined
// length fits the Overlap budget. Deterministic for fixed input and config.
func (c *Chunker) Split(text string) []string {
	return c.split(text, c.Size)
}

// split packs sentences into chunks. The first chunk is packed against
// firstBudget (reduced when a lesson prefix will be prepended), every later
// chunk against Size.
func (c *Chunker) split(text string, firstBudget int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	budget := firstBudget
	i := 0
	for i < len(sentences) {
		length := 0
		j := i
		for j < len(sentences) {
			add := len(sentences[j])
			if j > i {
				add++ // joining space
			}
			if length+add > budget && j > i {
				break
			}
			length += add
			j++
		}

		chunks = append(chunks, strings.Join(sentences[i:j], " "))
		budget = c.Size
		if j >= len(sentences) {
			break
		}

		// Re-include trailing sentences within the overlap budget.
		back := j
		overlapLen := 0
		for back > i {
			l := len(sentences[back-1])
			if overlapLen > 0 {
				l++
			}
			if overlapLen+l > c.Overlap {
				break
			}
			overlapLen += l
			back--
		}
		if back == j {
			// No sentence fits the overlap budget; continue without overlap
			// rather than looping forever.
			i = j
		} else {
			i = back
		}
	}
	return chunks
}

// BuildChunks produces the ordered chunk sequence for a parsed document.
// The first chunk of each numbered lesson is prefixed with a synthetic
// "Lesson N content:" marker to aid retrieval; the prefix counts toward the
// chunk budget. Front-matter chunks carry a nil lesson number and no prefix.
func (c *Chunker) BuildChunks(doc *Document) []Chunk {
	var chunks []Chunk
	for _, section := range doc.Sections {
		body := section.Body
		budget := c.Size

		var prefix string
		if section.LessonNumber != nil {
			prefix = fmt.Sprintf("Lesson %d content: ", *section.LessonNumber)
			budget -= len(prefix)
			if budget < 1 {
				budget = 1
			}
		}

		// One split per section; only the first chunk sees the reduced
		// budget, and the prefix is prepended afterwards.
		texts := c.split(body, budget)
		if len(texts) == 0 {
			continue
		}
		texts[0] = prefix + texts[0]

		for _, t := range texts {
			chunks = append(chunks, Chunk{
				Content:      t,
				CourseTitle:  doc.Course.Title,
				LessonNumber: section.LessonNumber,
			})
		}
	}
	return chunks
}
