package tools

import (
	"context"
	"fmt"
	"strings"

	"courserag/internal/domain"
)

// Definition describes a tool to the language model.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"input_schema"`
}

// Schema is a JSON-schema object describing a tool's input.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Tool is a named capability the language model may invoke mid-generation.
// Execute returns the text to feed back to the model together with the
// provenance sources for the retrieved content.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (string, []domain.Source, error)
}

// SearchStore is the slice of the vector store the tools depend on.
type SearchStore interface {
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (domain.SearchResults, error)
	ResolveCourseName(ctx context.Context, name string) (string, error)
	GetCourseMetadata(ctx context.Context, title string) (*domain.Course, error)
	GetLessonLink(ctx context.Context, title string, lessonNumber int) (string, error)
}

// CourseSearchTool searches course content with optional course and lesson
// filters and renders each hit under a "[course - lesson]" header.
type CourseSearchTool struct {
	store SearchStore
}

func NewCourseSearchTool(store SearchStore) *CourseSearchTool {
	return &CourseSearchTool{store: store}
}

func (t *CourseSearchTool) Definition() Definition {
	return Definition{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query":         {Type: "string", Description: "What to search for in course content"},
				"course_name":   {Type: "string", Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')"},
				"lesson_number": {Type: "integer", Description: "Specific lesson number to search within (e.g. 1, 2, 3)"},
			},
			Required: []string{"query"},
		},
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, args map[string]any) (string, []domain.Source, error) {
	query, _ := args["query"].(string)
	courseName, _ := args["course_name"].(string)
	var lessonNumber *int
	if n, ok := numberArg(args["lesson_number"]); ok {
		lessonNumber = &n
	}

	results, err := t.store.Search(ctx, query, courseName, lessonNumber, 0)
	if err != nil {
		return "", nil, err
	}
	if results.Err != "" {
		return results.Err, nil, nil
	}
	if results.IsEmpty() {
		msg := "No relevant content found"
		if courseName != "" {
			msg += fmt.Sprintf(" in course '%s'", courseName)
		}
		if lessonNumber != nil {
			msg += fmt.Sprintf(" in lesson %d", *lessonNumber)
		}
		return msg + ".", nil, nil
	}
	return t.formatResults(ctx, results)
}

func (t *CourseSearchTool) formatResults(ctx context.Context, results domain.SearchResults) (string, []domain.Source, error) {
	var blocks []string
	var sources []domain.Source
	for i, doc := range results.Documents {
		meta := results.Metadata[i]
		header := meta.CourseTitle
		label := meta.CourseTitle
		link := ""
		if meta.LessonNumber != nil {
			header = fmt.Sprintf("%s - Lesson %d", meta.CourseTitle, *meta.LessonNumber)
			label = header
			lessonLink, err := t.store.GetLessonLink(ctx, meta.CourseTitle, *meta.LessonNumber)
			if err != nil {
				return "", nil, err
			}
			link = lessonLink
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", header, doc))
		sources = append(sources, domain.Source{Text: label, Link: link})
	}
	return strings.Join(blocks, "\n\n"), sources, nil
}

// CourseOutlineTool resolves a course name and renders its title, link,
// instructor, and ordered lesson list.
type CourseOutlineTool struct {
	store SearchStore
}

func NewCourseOutlineTool(store SearchStore) *CourseOutlineTool {
	return &CourseOutlineTool{store: store}
}

func (t *CourseOutlineTool) Definition() Definition {
	return Definition{
		Name:        "get_course_outline",
		Description: "Get the complete outline of a course including its title, link, and all lessons",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"course_name": {Type: "string", Description: "Course title (partial matches work)"},
			},
			Required: []string{"course_name"},
		},
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, args map[string]any) (string, []domain.Source, error) {
	courseName, _ := args["course_name"].(string)

	title, err := t.store.ResolveCourseName(ctx, courseName)
	if err != nil {
		return "", nil, err
	}
	if title == "" {
		return fmt.Sprintf("No course found matching '%s'", courseName), nil, nil
	}
	course, err := t.store.GetCourseMetadata(ctx, title)
	if err != nil {
		return "", nil, err
	}
	if course == nil {
		return fmt.Sprintf("Found course '%s' but was unable to retrieve outline", title), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.CourseLink != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.CourseLink)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&b, "\nLessons (%d):\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&b, "  Lesson %d: %s\n", lesson.LessonNumber, lesson.Title)
	}
	sources := []domain.Source{{Text: course.Title, Link: course.CourseLink}}
	return b.String(), sources, nil
}

// Manager is the tool registry and dispatcher. Definitions are reported in
// registration order.
type Manager struct {
	order []string
	tools map[string]Tool
}

func NewManager() *Manager {
	return &Manager{tools: make(map[string]Tool)}
}

// Register adds a tool; a definition without a name is a validation failure.
func (m *Manager) Register(tool Tool) error {
	def := tool.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool definition must have a name")
	}
	if _, exists := m.tools[def.Name]; !exists {
		m.order = append(m.order, def.Name)
	}
	m.tools[def.Name] = tool
	return nil
}

// Definitions returns all tool schemas in registration order.
func (m *Manager) Definitions() []Definition {
	defs := make([]Definition, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Execute dispatches by name. An unknown name yields explanatory text for
// the model, not an error; tool failures propagate.
func (m *Manager) Execute(ctx context.Context, name string, args map[string]any) (string, []domain.Source, error) {
	tool, ok := m.tools[name]
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name), nil, nil
	}
	return tool.Execute(ctx, args)
}

// numberArg accepts both int and float64 since tool inputs cross a JSON
// boundary.
func numberArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
