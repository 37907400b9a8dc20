package knowledge

// Result is a single content search hit.
type Result struct {
	Content      string
	CourseTitle  string
	LessonNumber *int    // nil for front-matter chunks
	Similarity   float32 // cosine similarity (0-1)
}

// SearchOption configures a content search using the functional options
// pattern (as in context.WithTimeout, grpc.Dial).
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	limit  int
	course string
	lesson *int
}

// WithCourse restricts the search to one course. The value is a fuzzy hint
// resolved against the catalog, not necessarily an exact title.
func WithCourse(hint string) SearchOption {
	return func(c *searchConfig) {
		c.course = hint
	}
}

// WithLesson restricts the search to chunks of one lesson number. It composes
// with WithCourse (AND) and is also valid on its own.
func WithLesson(number int) SearchOption {
	return func(c *searchConfig) {
		n := number
		c.lesson = &n
	}
}

// WithLimit caps the number of results. Non-positive values fall back to the
// store's configured maximum.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		c.limit = n
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
