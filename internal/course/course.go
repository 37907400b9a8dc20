// Package course provides the course document domain model, the fixed-format
// document parser, and the sentence-based text chunker that feeds the
// knowledge index.
package course

// Lesson is a single lesson within a course. Lessons are owned by their
// course and referenced outside it only by number.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is one ingested course document. The title is the primary key
// across both index collections; a course is immutable after ingestion.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson returns the lesson with the given number, or nil if the course has
// no such lesson.
func (c *Course) Lesson(number int) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].Number == number {
			return &c.Lessons[i]
		}
	}
	return nil
}

// Chunk is a contiguous span of chunk-sized lesson text with provenance.
// LessonNumber is nil for front-matter text that precedes the first lesson
// marker. The storage key is assigned by the index, not here.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
}
