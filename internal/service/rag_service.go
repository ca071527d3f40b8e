package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"courserag/internal/chunker"
	"courserag/internal/domain"
	"courserag/internal/generation"
	"courserag/internal/session"
	"courserag/internal/tools"
	"courserag/internal/vectorstore"
)

// courseFileExtensions lists the document types eligible for ingestion.
var courseFileExtensions = map[string]bool{".txt": true, ".pdf": true, ".docx": true}

// RAGService wires ingestion and query handling: documents flow through the
// chunker into the vector store, queries flow through the generator which
// reaches back into the store via tools.
type RAGService struct {
	processor *chunker.Processor
	store     *vectorstore.VectorStore
	generator *generation.Generator
	sessions  *session.Manager
	tools     *tools.Manager
	logger    *zap.Logger
}

func New(
	processor *chunker.Processor,
	store *vectorstore.VectorStore,
	generator *generation.Generator,
	sessions *session.Manager,
	toolManager *tools.Manager,
	logger *zap.Logger,
) *RAGService {
	return &RAGService{
		processor: processor,
		store:     store,
		generator: generator,
		sessions:  sessions,
		tools:     toolManager,
		logger:    logger,
	}
}

// AddCourseDocument ingests a single course document and returns the parsed
// course and the number of chunks indexed.
func (s *RAGService) AddCourseDocument(ctx context.Context, path string) (domain.Course, int, error) {
	course, chunks, err := s.processor.ProcessCourseDocument(path)
	if err != nil {
		return domain.Course{}, 0, fmt.Errorf("process %s: %w", path, err)
	}
	if err := s.store.AddCourseMetadata(ctx, course); err != nil {
		return domain.Course{}, 0, err
	}
	if err := s.store.AddCourseContent(ctx, chunks); err != nil {
		return domain.Course{}, 0, err
	}
	return course, len(chunks), nil
}

// AddCourseFolder ingests every eligible document in a folder sequentially.
// A failure on one file is logged and skipped without aborting the rest.
// Courses whose title already exists in the catalog are skipped; when
// clearExisting is set, both collections are wiped first.
func (s *RAGService) AddCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		s.logger.Warn("course folder does not exist", zap.String("path", path))
		return 0, 0, nil
	}

	if clearExisting {
		s.logger.Info("clearing existing data for full rebuild")
		if err := s.store.ClearAllData(ctx); err != nil {
			return 0, 0, err
		}
	}

	existing, err := s.store.GetExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, title := range existing {
		seen[title] = true
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read folder %s: %w", path, err)
	}

	totalCourses, totalChunks := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !courseFileExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		filePath := filepath.Join(path, entry.Name())
		course, chunks, err := s.processor.ProcessCourseDocument(filePath)
		if err != nil {
			s.logger.Warn("skipping document", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if seen[course.Title] {
			s.logger.Debug("course already exists, skipping", zap.String("title", course.Title))
			continue
		}
		if err := s.store.AddCourseMetadata(ctx, course); err != nil {
			return totalCourses, totalChunks, err
		}
		if err := s.store.AddCourseContent(ctx, chunks); err != nil {
			return totalCourses, totalChunks, err
		}
		seen[course.Title] = true
		totalCourses++
		totalChunks += len(chunks)
		s.logger.Info("ingested course",
			zap.String("title", course.Title),
			zap.Int("chunks", len(chunks)))
	}
	return totalCourses, totalChunks, nil
}

// Query answers one user question, optionally continuing a session. The
// returned sources are the provenance of the retrieval round, in execution
// order.
func (s *RAGService) Query(ctx context.Context, query, sessionID string) (string, []domain.Source, error) {
	prompt := fmt.Sprintf("Answer this question about course materials: %s", query)

	history := ""
	if sessionID != "" {
		history = s.sessions.GetConversationHistory(sessionID)
	}

	answer, sources, err := s.generator.GenerateResponse(ctx, prompt, history, s.tools.Definitions(), s.tools)
	if err != nil {
		return "", nil, err
	}

	if sessionID != "" {
		s.sessions.AddExchange(sessionID, query, answer)
	}
	return answer, sources, nil
}

// CreateSession allocates a fresh conversation session.
func (s *RAGService) CreateSession() string { return s.sessions.CreateSession() }

// ClearSession empties a session's history.
func (s *RAGService) ClearSession(sessionID string) { s.sessions.ClearSession(sessionID) }

// Analytics summarizes the ingested corpus.
func (s *RAGService) Analytics(ctx context.Context) (domain.CourseAnalytics, error) {
	count, err := s.store.GetCourseCount(ctx)
	if err != nil {
		return domain.CourseAnalytics{}, err
	}
	titles, err := s.store.GetExistingCourseTitles(ctx)
	if err != nil {
		return domain.CourseAnalytics{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return domain.CourseAnalytics{TotalCourses: count, CourseTitles: titles}, nil
}
