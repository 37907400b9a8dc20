package course

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrMissingTitle indicates a document without the required course title
// header line. Such documents are skipped by ingestion.
var ErrMissingTitle = errors.New("missing course title")

// Document is a parsed course document: course metadata plus the raw body
// text of each lesson, in file order. Front-matter (text before the first
// lesson marker) is kept as a pseudo-section with a nil lesson number.
type Document struct {
	Course   Course
	Sections []Section
}

// Section is the body text belonging to one lesson, or to the front-matter
// when LessonNumber is nil.
type Section struct {
	LessonNumber *int
	Body         string
}

// Header and lesson marker line formats. The header is a fixed three-line
// protocol (title required, link and instructor optional); lesson markers
// introduce a number and title, optionally followed by a link line.
var (
	titleRe      = regexp.MustCompile(`(?i)^course title:\s*(.*)$`)
	courseLinkRe = regexp.MustCompile(`(?i)^course link:\s*(.*)$`)
	instructorRe = regexp.MustCompile(`(?i)^course instructor:\s*(.*)$`)
	lessonRe     = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.*)$`)
	lessonLinkRe = regexp.MustCompile(`(?i)^lesson link:\s*(.*)$`)
)

// ParseDocument parses one course document from r. The name is used in
// error messages only.
//
// Content-only anomalies (empty lessons, text before the first marker,
// duplicate lesson numbers) never fail the parse; the only hard error is a
// missing or empty course title.
func ParseDocument(name string, r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	doc := &Document{}
	i := 0

	// Header: title must appear before any lesson marker; link and
	// instructor lines may appear in either order after it.
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if lessonRe.MatchString(line) {
			break
		}
		switch {
		case titleRe.MatchString(line):
			doc.Course.Title = strings.TrimSpace(titleRe.FindStringSubmatch(line)[1])
		case courseLinkRe.MatchString(line):
			doc.Course.Link = strings.TrimSpace(courseLinkRe.FindStringSubmatch(line)[1])
		case instructorRe.MatchString(line):
			doc.Course.Instructor = strings.TrimSpace(instructorRe.FindStringSubmatch(line)[1])
		case line != "" && doc.Course.Title != "":
			// Header is over; remaining text is front-matter.
			goto body
		}
		i++
	}

body:
	if doc.Course.Title == "" {
		return nil, fmt.Errorf("%w in %s", ErrMissingTitle, name)
	}

	var current *Section
	var currentBody []string
	flushSection := func() {
		if current != nil {
			current.Body = strings.TrimSpace(strings.Join(currentBody, "\n"))
			doc.Sections = append(doc.Sections, *current)
		}
		currentBody = nil
	}

	// Front-matter section accumulates until the first lesson marker.
	current = &Section{}

	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if m := lessonRe.FindStringSubmatch(line); m != nil {
			flushSection()

			number, err := strconv.Atoi(m[1])
			if err != nil {
				// Regex guarantees digits; overflow is the only path here.
				return nil, fmt.Errorf("lesson number %q in %s: %w", m[1], name, err)
			}
			lesson := Lesson{Number: number, Title: strings.TrimSpace(m[2])}

			// Optional lesson link on the immediately following line.
			if i+1 < len(lines) {
				if lm := lessonLinkRe.FindStringSubmatch(strings.TrimSpace(lines[i+1])); lm != nil {
					lesson.Link = strings.TrimSpace(lm[1])
					i++
				}
			}

			doc.Course.Lessons = append(doc.Course.Lessons, lesson)
			n := number
			current = &Section{LessonNumber: &n}
			continue
		}

		currentBody = append(currentBody, lines[i])
	}
	flushSection()

	// Drop an empty front-matter section so callers see only real text.
	if len(doc.Sections) > 0 && doc.Sections[0].LessonNumber == nil && doc.Sections[0].Body == "" {
		doc.Sections = doc.Sections[1:]
	}

	return doc, nil
}
