package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserag/internal/domain"
)

func intPtr(n int) *int { return &n }

// fakeSearchStore scripts the store behavior and records the filter a tool
// passed in.
type fakeSearchStore struct {
	results     domain.SearchResults
	searchErr   error
	resolved    map[string]string
	courses     map[string]*domain.Course
	lessonLinks map[int]string

	gotQuery  string
	gotCourse string
	gotLesson *int
}

func (f *fakeSearchStore) Search(_ context.Context, query, courseName string, lessonNumber *int, _ int) (domain.SearchResults, error) {
	f.gotQuery, f.gotCourse, f.gotLesson = query, courseName, lessonNumber
	return f.results, f.searchErr
}

func (f *fakeSearchStore) ResolveCourseName(_ context.Context, name string) (string, error) {
	return f.resolved[name], nil
}

func (f *fakeSearchStore) GetCourseMetadata(_ context.Context, title string) (*domain.Course, error) {
	return f.courses[title], nil
}

func (f *fakeSearchStore) GetLessonLink(_ context.Context, _ string, lessonNumber int) (string, error) {
	return f.lessonLinks[lessonNumber], nil
}

func TestSearchToolEmptyResultMessages(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no filters", map[string]any{"query": "x"}, "No relevant content found."},
		{"course filter", map[string]any{"query": "x", "course_name": "MCP"},
			"No relevant content found in course 'MCP'."},
		{"both filters", map[string]any{"query": "x", "course_name": "MCP", "lesson_number": float64(3)},
			"No relevant content found in course 'MCP' in lesson 3."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tool := NewCourseSearchTool(&fakeSearchStore{})
			text, sources, err := tool.Execute(context.Background(), tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, text)
			assert.Empty(t, sources)
		})
	}
}

func TestSearchToolErrorResultPassthrough(t *testing.T) {
	store := &fakeSearchStore{results: domain.ErrorResults("No course found matching 'Ghost'")}
	tool := NewCourseSearchTool(store)
	text, sources, err := tool.Execute(context.Background(), map[string]any{"query": "x", "course_name": "Ghost"})
	require.NoError(t, err)
	assert.Equal(t, "No course found matching 'Ghost'", text)
	assert.Empty(t, sources)
}

func TestSearchToolStoreError(t *testing.T) {
	store := &fakeSearchStore{searchErr: errors.New("engine down")}
	tool := NewCourseSearchTool(store)
	_, _, err := tool.Execute(context.Background(), map[string]any{"query": "x"})
	assert.Error(t, err)
}

func TestSearchToolFormatting(t *testing.T) {
	store := &fakeSearchStore{
		results: domain.SearchResults{
			Documents: []string{"Agents coordinate tools.", "A chunk without a lesson."},
			Metadata: []domain.ChunkMetadata{
				{CourseTitle: "Computer Use", LessonNumber: intPtr(2)},
				{CourseTitle: "Computer Use"},
			},
		},
		lessonLinks: map[int]string{2: "https://example.com/cu/2"},
	}
	tool := NewCourseSearchTool(store)
	text, sources, err := tool.Execute(context.Background(),
		map[string]any{"query": "agents", "course_name": "Computer Use", "lesson_number": 2})
	require.NoError(t, err)

	assert.Equal(t, "[Computer Use - Lesson 2]\nAgents coordinate tools.\n\n[Computer Use]\nA chunk without a lesson.", text)
	require.Len(t, sources, 2)
	assert.Equal(t, domain.Source{Text: "Computer Use - Lesson 2", Link: "https://example.com/cu/2"}, sources[0])
	assert.Equal(t, domain.Source{Text: "Computer Use"}, sources[1])

	assert.Equal(t, "agents", store.gotQuery)
	assert.Equal(t, "Computer Use", store.gotCourse)
	require.NotNil(t, store.gotLesson)
	assert.Equal(t, 2, *store.gotLesson)
}

func TestOutlineToolNoMatch(t *testing.T) {
	tool := NewCourseOutlineTool(&fakeSearchStore{resolved: map[string]string{}})
	text, sources, err := tool.Execute(context.Background(), map[string]any{"course_name": "Ghost"})
	require.NoError(t, err)
	assert.Equal(t, "No course found matching 'Ghost'", text)
	assert.Empty(t, sources)
}

func TestOutlineToolMissingMetadata(t *testing.T) {
	store := &fakeSearchStore{resolved: map[string]string{"mcp": "MCP Course"}}
	tool := NewCourseOutlineTool(store)
	text, _, err := tool.Execute(context.Background(), map[string]any{"course_name": "mcp"})
	require.NoError(t, err)
	assert.Equal(t, "Found course 'MCP Course' but was unable to retrieve outline", text)
}

func TestOutlineToolRendersOutline(t *testing.T) {
	store := &fakeSearchStore{
		resolved: map[string]string{"mcp": "MCP Course"},
		courses: map[string]*domain.Course{
			"MCP Course": {
				Title:      "MCP Course",
				CourseLink: "https://example.com/mcp",
				Instructor: "Elie Schoppik",
				Lessons: []domain.Lesson{
					{LessonNumber: 1, Title: "Why MCP"},
					{LessonNumber: 2, Title: "Servers"},
				},
			},
		},
	}
	tool := NewCourseOutlineTool(store)
	text, sources, err := tool.Execute(context.Background(), map[string]any{"course_name": "mcp"})
	require.NoError(t, err)

	assert.Contains(t, text, "Course: MCP Course")
	assert.Contains(t, text, "Course Link: https://example.com/mcp")
	assert.Contains(t, text, "Instructor: Elie Schoppik")
	assert.Contains(t, text, "Lessons (2):")
	assert.Contains(t, text, "Lesson 1: Why MCP")
	assert.Contains(t, text, "Lesson 2: Servers")
	require.Len(t, sources, 1)
	assert.Equal(t, domain.Source{Text: "MCP Course", Link: "https://example.com/mcp"}, sources[0])
}

func TestManagerRegisterAndDefinitions(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(NewCourseSearchTool(&fakeSearchStore{})))
	require.NoError(t, m.Register(NewCourseOutlineTool(&fakeSearchStore{})))

	defs := m.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "search_course_content", defs[0].Name)
	assert.Equal(t, "get_course_outline", defs[1].Name)
	assert.Equal(t, []string{"query"}, defs[0].InputSchema.Required)
}

type namelessTool struct{}

func (namelessTool) Definition() Definition { return Definition{} }
func (namelessTool) Execute(context.Context, map[string]any) (string, []domain.Source, error) {
	return "", nil, nil
}

func TestManagerRejectsNamelessTool(t *testing.T) {
	m := NewManager()
	assert.Error(t, m.Register(namelessTool{}))
}

func TestManagerUnknownTool(t *testing.T) {
	m := NewManager()
	text, sources, err := m.Execute(context.Background(), "nope", nil)
	require.NoError(t, err)
	assert.Equal(t, "Tool 'nope' not found", text)
	assert.Empty(t, sources)
}
