package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"courserag/internal/domain"
	"courserag/internal/embedding"
)

const (
	// CatalogCollection holds one row per course, embedded on the title.
	CatalogCollection = "course_catalog"
	// ContentCollection holds one row per chunk, embedded on the chunk text.
	ContentCollection = "course_content"
)

// VectorStore maintains the course catalog and content collections on top of
// an Engine, resolving fuzzy course names and building metadata filters for
// similarity search.
type VectorStore struct {
	engine     Engine
	embedder   embedding.Embedder
	maxResults int
}

// New creates both collections (idempotently) and returns the store.
func New(ctx context.Context, engine Engine, embedder embedding.Embedder, maxResults int) (*VectorStore, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	for _, name := range []string{CatalogCollection, ContentCollection} {
		if err := engine.CreateCollection(ctx, name); err != nil {
			return nil, fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return &VectorStore{engine: engine, embedder: embedder, maxResults: maxResults}, nil
}

// Search runs a similarity search over course content. When courseName is
// given it is fuzzily resolved first; an unresolvable name yields a result
// carrying a "course not found" message rather than an error. Engine and
// embedder failures propagate.
func (s *VectorStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (domain.SearchResults, error) {
	resolved := ""
	if courseName != "" {
		title, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			return domain.SearchResults{}, err
		}
		if title == "" {
			return domain.ErrorResults(fmt.Sprintf("No course found matching '%s'", courseName)), nil
		}
		resolved = title
	}

	if limit <= 0 {
		limit = s.maxResults
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return domain.SearchResults{}, fmt.Errorf("embed query: %w", err)
	}
	res, err := s.engine.Query(ctx, ContentCollection, vec, buildFilter(resolved, lessonNumber), limit)
	if err != nil {
		return domain.SearchResults{}, fmt.Errorf("query content: %w", err)
	}

	out := domain.SearchResults{
		Documents: res.Documents,
		Distances: res.Distances,
		Metadata:  make([]domain.ChunkMetadata, len(res.Metadatas)),
	}
	for i, meta := range res.Metadatas {
		out.Metadata[i] = chunkMetadataFrom(meta)
	}
	return out, nil
}

// ResolveCourseName resolves a possibly approximate course name to an exact
// catalog title. An exact match wins; otherwise a case-insensitive substring
// matching exactly one title; otherwise the single nearest catalog neighbor.
// Returns "" when the catalog is empty or nothing matches.
func (s *VectorStore) ResolveCourseName(ctx context.Context, name string) (string, error) {
	titles, err := s.GetExistingCourseTitles(ctx)
	if err != nil {
		return "", err
	}
	if len(titles) == 0 {
		return "", nil
	}
	for _, title := range titles {
		if title == name {
			return title, nil
		}
	}
	lower := strings.ToLower(name)
	substrMatch := ""
	substrCount := 0
	for _, title := range titles {
		if strings.Contains(strings.ToLower(title), lower) {
			substrMatch = title
			substrCount++
		}
	}
	if substrCount == 1 {
		return substrMatch, nil
	}

	vec, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}
	res, err := s.engine.Query(ctx, CatalogCollection, vec, nil, 1)
	if err != nil {
		return "", fmt.Errorf("query catalog: %w", err)
	}
	if len(res.IDs) == 0 {
		return "", nil
	}
	return res.IDs[0], nil
}

// buildFilter produces nil when both parts are absent, a single equality
// when exactly one is given, and an explicit $and of both otherwise.
func buildFilter(courseTitle string, lessonNumber *int) map[string]any {
	switch {
	case courseTitle == "" && lessonNumber == nil:
		return nil
	case lessonNumber == nil:
		return map[string]any{"course_title": courseTitle}
	case courseTitle == "":
		return map[string]any{"lesson_number": *lessonNumber}
	default:
		return map[string]any{"$and": []map[string]any{
			{"course_title": courseTitle},
			{"lesson_number": *lessonNumber},
		}}
	}
}

// AddCourseMetadata upserts one catalog row keyed by the course title. The
// lesson list is serialized into the row's metadata.
func (s *VectorStore) AddCourseMetadata(ctx context.Context, course domain.Course) error {
	lessons := course.Lessons
	if lessons == nil {
		lessons = []domain.Lesson{}
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("marshal lessons: %w", err)
	}
	vec, err := s.embedder.Embed(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("embed title: %w", err)
	}
	item := Item{
		ID:       course.Title,
		Document: course.Title,
		Metadata: map[string]any{
			"title":        course.Title,
			"instructor":   course.Instructor,
			"course_link":  course.CourseLink,
			"lessons_json": string(lessonsJSON),
		},
		Embedding: vec,
	}
	return s.engine.Upsert(ctx, CatalogCollection, []Item{item})
}

// AddCourseContent upserts all chunks in one batch; empty input is a no-op.
func (s *VectorStore) AddCourseContent(ctx context.Context, chunks []domain.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]Item, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", chunk.ChunkIndex, err)
		}
		meta := map[string]any{
			"course_title": chunk.CourseTitle,
			"chunk_index":  chunk.ChunkIndex,
		}
		if chunk.LessonNumber != nil {
			meta["lesson_number"] = *chunk.LessonNumber
		}
		items[i] = Item{
			ID:        fmt.Sprintf("%s_%d", strings.ReplaceAll(chunk.CourseTitle, " ", "_"), chunk.ChunkIndex),
			Document:  chunk.Content,
			Metadata:  meta,
			Embedding: vec,
		}
	}
	return s.engine.Upsert(ctx, ContentCollection, items)
}

// ClearAllData drops and recreates both collections.
func (s *VectorStore) ClearAllData(ctx context.Context) error {
	for _, name := range []string{CatalogCollection, ContentCollection} {
		if err := s.engine.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("delete collection %s: %w", name, err)
		}
		if err := s.engine.CreateCollection(ctx, name); err != nil {
			return fmt.Errorf("recreate collection %s: %w", name, err)
		}
	}
	return nil
}

// GetExistingCourseTitles lists catalog titles; empty when no courses exist.
func (s *VectorStore) GetExistingCourseTitles(ctx context.Context) ([]string, error) {
	items, err := s.engine.Get(ctx, CatalogCollection, nil)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.ID)
	}
	return titles, nil
}

// GetCourseCount returns the number of catalog rows.
func (s *VectorStore) GetCourseCount(ctx context.Context) (int, error) {
	return s.engine.Count(ctx, CatalogCollection)
}

// GetCourseMetadata fetches one catalog row and reconstructs the course,
// including its ordered lesson list. Returns nil when the course is absent.
func (s *VectorStore) GetCourseMetadata(ctx context.Context, title string) (*domain.Course, error) {
	items, err := s.engine.Get(ctx, CatalogCollection, []string{title})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	meta := items[0].Metadata
	course := &domain.Course{
		Title:      stringValue(meta["title"]),
		Instructor: stringValue(meta["instructor"]),
		CourseLink: stringValue(meta["course_link"]),
	}
	if raw := stringValue(meta["lessons_json"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &course.Lessons); err != nil {
			return nil, fmt.Errorf("parse lessons for %s: %w", title, err)
		}
	}
	return course, nil
}

// GetCourseLink returns the course link, or "" when the course is unknown.
func (s *VectorStore) GetCourseLink(ctx context.Context, title string) (string, error) {
	course, err := s.GetCourseMetadata(ctx, title)
	if err != nil || course == nil {
		return "", err
	}
	return course.CourseLink, nil
}

// GetLessonLink returns a lesson's link, or "" when the course or lesson is
// unknown.
func (s *VectorStore) GetLessonLink(ctx context.Context, title string, lessonNumber int) (string, error) {
	course, err := s.GetCourseMetadata(ctx, title)
	if err != nil || course == nil {
		return "", err
	}
	for _, lesson := range course.Lessons {
		if lesson.LessonNumber == lessonNumber {
			return lesson.LessonLink, nil
		}
	}
	return "", nil
}

func chunkMetadataFrom(meta map[string]any) domain.ChunkMetadata {
	out := domain.ChunkMetadata{CourseTitle: stringValue(meta["course_title"])}
	if n, ok := intValue(meta["lesson_number"]); ok {
		out.LessonNumber = &n
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// intValue tolerates float64 for values that crossed a JSON boundary.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
