// Package notes provides the SQLite-backed note store used as the engine's
// NoteRetrieval collaborator. Retrieval here is deliberately simple substring
// and tag matching; ranking quality is not this package's concern.
package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yeehaa123/personal-brain-sub002/internal/relevance"
	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

const timeFormat = time.RFC3339Nano

// Store persists and retrieves notes.
type Store struct {
	db       *sql.DB
	embedder relevance.Embedder
}

// NewStore creates a note store. The embedder may be nil; notes are then
// stored without embeddings and related-note lookup falls back to tag
// overlap alone.
func NewStore(db *sql.DB, embedder relevance.Embedder) *Store {
	return &Store{db: db, embedder: embedder}
}

// Create inserts a new note, embedding its content when an embedder is
// available. Embedding failures are logged, not fatal.
func (s *Store) Create(ctx context.Context, note *types.Note) (string, error) {
	if note.Title == "" && note.Content == "" {
		return "", fmt.Errorf("note must have a title or content")
	}

	id := note.ID
	if id == "" {
		id = "note_" + uuid.New().String()
	}

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}

	embedding := note.Embedding
	if embedding == nil && s.embedder != nil {
		embedding, err = s.embedder.Embed(ctx, note.Title+"\n"+note.Content)
		if err != nil {
			log.Warn().Err(err).Str("note_id", id).Msg("note embedding failed, storing without")
			embedding = nil
		}
	}

	now := time.Now().UTC().Format(timeFormat)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, tags, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, note.Title, note.Content, string(tagsJSON), relevance.Float32SliceToBytes(embedding), now, now)

	if err != nil {
		return "", fmt.Errorf("insert note: %w", err)
	}

	return id, nil
}

// GetByID retrieves a single note, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*types.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, tags, embedding, created_at, updated_at
		FROM notes
		WHERE id = ?
	`, id)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query note: %w", err)
	}

	return note, nil
}

// Search returns candidate notes for a query, optionally requiring all of
// the given tags, newest first.
func (s *Store) Search(ctx context.Context, query string, tags []string, limit int) ([]*types.Note, error) {
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `
		SELECT id, title, content, tags, embedding, created_at, updated_at
		FROM notes
		WHERE 1 = 1
	`
	var args []interface{}

	for _, word := range searchTerms(query) {
		sqlQuery += " AND (title LIKE ? OR content LIKE ? OR tags LIKE ?)"
		pattern := "%" + word + "%"
		args = append(args, pattern, pattern, pattern)
	}

	// Tags are stored as a JSON array; match each tag within the JSON string.
	for _, tag := range tags {
		sqlQuery += " AND tags LIKE ?"
		args = append(args, "%\""+tag+"\"%")
	}

	sqlQuery += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// GetRelated returns notes related to an existing note, scored by tag
// overlap plus embedding similarity when both sides carry embeddings.
func (s *Store) GetRelated(ctx context.Context, noteID string, limit int) ([]*types.Note, error) {
	if limit <= 0 {
		limit = 5
	}

	source, err := s.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("note not found: %s", noteID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, tags, embedding, created_at, updated_at
		FROM notes
		WHERE id != ?
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	candidates, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		note  *types.Note
		score float64
	}
	var ranked []scored

	for _, candidate := range candidates {
		score := float64(tagOverlap(source.Tags, candidate.Tags))
		if len(source.Embedding) > 0 && len(candidate.Embedding) > 0 {
			score += relevance.CosineSimilarity(source.Embedding, candidate.Embedding)
		}
		if score > 0 {
			ranked = append(ranked, scored{note: candidate, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	result := make([]*types.Note, 0, limit)
	for i := 0; i < len(ranked) && i < limit; i++ {
		result = append(result, ranked[i].note)
	}

	return result, nil
}

// Delete removes a note.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("note not found: %s", id)
	}

	return nil
}

// searchTerms extracts lowercased significant words from a query for LIKE
// matching. Short filler words are skipped.
func searchTerms(query string) []string {
	var terms []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		word := strings.Trim(field, ".,;:!?\"'()")
		if len(word) > 3 {
			terms = append(terms, word)
		}
	}
	return terms
}

func tagOverlap(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, tag := range a {
		set[strings.ToLower(tag)] = true
	}
	overlap := 0
	for _, tag := range b {
		if set[strings.ToLower(tag)] {
			overlap++
		}
	}
	return overlap
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*types.Note, error) {
	var note types.Note
	var tagsJSON, createdAt, updatedAt string
	var embedding []byte

	if err := row.Scan(&note.ID, &note.Title, &note.Content, &tagsJSON, &embedding, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	note.Embedding = relevance.BytesToFloat32Slice(embedding)
	note.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	note.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return &note, nil
}

func scanNotes(rows *sql.Rows) ([]*types.Note, error) {
	var notes []*types.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}

	return notes, nil
}
