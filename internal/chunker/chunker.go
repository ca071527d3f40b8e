package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"courserag/internal/domain"
)

// Processor splits course documents into sentence-based chunks with overlap.
// Chunks are sized by characters: sentences are packed greedily until the
// next one would exceed chunkSize, and trailing sentences whose combined
// length fits chunkOverlap are carried into the next chunk.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

var (
	spaceRun      = regexp.MustCompile(`[ \t]+`)
	blankLineRun  = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)
	sentenceEnd   = regexp.MustCompile(`([.!?]+)\s+`)
	lessonMarker  = regexp.MustCompile(`(?i)^Lesson\s+(\d+):\s*(.*)$`)
	lessonLinkKey = "Lesson Link:"
)

func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ReadFile reads a document as UTF-8 text.
func (p *Processor) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// ChunkText splits free text into chunks. Empty input yields no chunks; a
// single sentence shorter than the chunk size yields exactly one chunk equal
// to the normalized text. A sentence longer than the chunk size is kept
// whole as its own chunk.
func (p *Processor) ChunkText(text string) []string {
	text = normalizeWhitespace(text)
	if text == "" {
		return nil
	}
	sentences := splitSentences(text)
	var chunks []string
	var current []string
	currentLen := 0
	for _, sentence := range sentences {
		if len(current) > 0 && currentLen+1+len(sentence) > p.chunkSize {
			chunks = append(chunks, strings.Join(current, " "))
			current, currentLen = p.overlapTail(current)
		}
		if len(current) > 0 {
			currentLen++
		}
		current = append(current, sentence)
		currentLen += len(sentence)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapTail returns the trailing sentences of a closed chunk whose joined
// length fits within chunkOverlap, preserving their order.
func (p *Processor) overlapTail(closed []string) ([]string, int) {
	if p.chunkOverlap <= 0 {
		return nil, 0
	}
	total := 0
	i := len(closed)
	for i > 0 {
		add := len(closed[i-1])
		if total > 0 {
			add++
		}
		if total+add > p.chunkOverlap {
			break
		}
		total += add
		i--
	}
	if i == len(closed) {
		return nil, 0
	}
	tail := make([]string, len(closed)-i)
	copy(tail, closed[i:])
	return tail, total
}

// ProcessCourseDocument parses a course document and chunks its lesson
// bodies. The optional header lines ("Course Title:", "Course Link:",
// "Course Instructor:") are followed by lesson blocks starting with
// "Lesson <n>: <title>". Missing metadata falls back to the filename; a
// document without lesson markers is treated as one implicit lesson.
// Chunk indexes are sequential across the whole document.
func (p *Processor) ProcessCourseDocument(path string) (domain.Course, []domain.CourseChunk, error) {
	content, err := p.ReadFile(path)
	if err != nil {
		return domain.Course{}, nil, err
	}

	base := filepath.Base(path)
	course := domain.Course{Title: strings.TrimSuffix(base, filepath.Ext(base))}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	bodyStart := 0
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
		case strings.HasPrefix(line, "Course Title:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "Course Title:")); v != "" {
				course.Title = v
			}
		case strings.HasPrefix(line, "Course Link:"):
			course.CourseLink = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
		case strings.HasPrefix(line, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
		default:
			bodyStart = i
			goto body
		}
		bodyStart = i + 1
	}
body:

	var chunks []domain.CourseChunk
	chunkIndex := 0

	flushLesson := func(lessonNumber *int, body []string) {
		texts := p.ChunkText(strings.Join(body, "\n"))
		for j, text := range texts {
			if j == 0 {
				if lessonNumber != nil {
					text = fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, *lessonNumber, text)
				} else {
					text = fmt.Sprintf("Course %s content: %s", course.Title, text)
				}
			}
			chunks = append(chunks, domain.CourseChunk{
				Content:      text,
				CourseTitle:  course.Title,
				LessonNumber: lessonNumber,
				ChunkIndex:   chunkIndex,
			})
			chunkIndex++
		}
	}

	// Body lines seen before the first lesson marker are course preamble:
	// they belong to no lesson and are not indexed.
	var currentLesson *int
	var currentBody []string
	for i := bodyStart; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			if currentLesson != nil {
				flushLesson(currentLesson, currentBody)
			}
			n, convErr := strconv.Atoi(m[1])
			if convErr != nil {
				continue
			}
			lesson := domain.Lesson{LessonNumber: n, Title: strings.TrimSpace(m[2])}
			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if strings.HasPrefix(next, lessonLinkKey) {
					lesson.LessonLink = strings.TrimSpace(strings.TrimPrefix(next, lessonLinkKey))
					i++
				}
			}
			course.Lessons = append(course.Lessons, lesson)
			num := n
			currentLesson = &num
			currentBody = nil
			continue
		}
		currentBody = append(currentBody, lines[i])
	}
	if currentLesson != nil {
		flushLesson(currentLesson, currentBody)
	} else if len(course.Lessons) == 0 {
		// No lesson markers at all: the whole body is one implicit lesson.
		flushLesson(nil, lines[bodyStart:])
	}

	return course, chunks, nil
}

// normalizeWhitespace collapses runs of spaces and tabs to one space and
// runs of blank lines to a single line break.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRun.ReplaceAllString(text, " ")
	text = blankLineRun.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// splitSentences splits on terminal punctuation followed by whitespace.
// Sentences are never split internally; the trailing fragment is kept even
// without terminal punctuation.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, m := range sentenceEnd.FindAllStringSubmatchIndex(text, -1) {
		sentence := strings.TrimSpace(text[start:m[3]])
		if sentence != "" {
			out = append(out, sentence)
		}
		start = m[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
