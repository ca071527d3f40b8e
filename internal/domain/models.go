package domain

// Lesson is a single lesson within a course.
type Lesson struct {
	LessonNumber int    `json:"lesson_number"`
	Title        string `json:"lesson_title"`
	LessonLink   string `json:"lesson_link,omitempty"`
}

// Course describes one course in the corpus. Title is the unique key.
type Course struct {
	Title      string   `json:"title"`
	CourseLink string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// CourseChunk is a retrieval-sized span of course text. ChunkIndex is
// sequential from 0 across the whole course, spanning lesson boundaries.
// LessonNumber is nil for documents without lesson markers.
type CourseChunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// ChunkMetadata is the per-hit metadata returned by a content search.
type ChunkMetadata struct {
	CourseTitle  string
	LessonNumber *int
}

// SearchResults holds parallel documents/metadata/distances arrays from a
// similarity search. Distances are ascending: smaller means more similar.
// Err carries a human-readable failure such as an unresolvable course name.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMetadata
	Distances []float64
	Err       string
}

// IsEmpty reports whether the result set contains no documents.
func (r SearchResults) IsEmpty() bool { return len(r.Documents) == 0 }

// ErrorResults returns an empty result set carrying an error message.
func ErrorResults(msg string) SearchResults { return SearchResults{Err: msg} }

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source records the provenance of retrieved content surfaced with an answer.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// CourseAnalytics summarizes the ingested corpus.
type CourseAnalytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}
