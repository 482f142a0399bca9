// Package profile stores long lived facts about the user and recalls
// the ones relevant to the task at hand.
package profile

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"strider/internal/storage"
)

// Memory source values.
const (
	SourceManual = "manual"
	SourceAgent  = "agent"
)

// ErrEmptyContent indicates an attempt to store an empty memory.
var ErrEmptyContent = errors.New("profile: empty content")

// Memory is one stored fact about the user.
type Memory struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists profile memories in the shared database.
type Store struct {
	db  *storage.DB
	log zerolog.Logger
}

// NewStore creates a profile store backed by db.
func NewStore(db *storage.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Add stores a new memory. Source defaults to manual.
func (s *Store) Add(content, source string) (*Memory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if source == "" {
		source = SourceManual
	}

	m := &Memory{
		ID:        uuid.New().String(),
		Content:   content,
		Source:    source,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(
		"INSERT INTO profile_memories (id, content, source, created_at) VALUES (?, ?, ?, ?)",
		m.ID, m.Content, m.Source, m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("id", m.ID).Str("source", m.Source).Msg("profile memory added")
	return m, nil
}

// Recent returns the newest memories, most recent first.
func (s *Store) Recent(limit int) ([]*Memory, error) {
	query := "SELECT id, content, source, created_at FROM profile_memories ORDER BY created_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMemories(rows)
}

// Search returns up to topK memories ranked by how many query terms
// they contain, newest first among equals. An empty query returns the
// most recent memories instead.
func (s *Store) Search(query string, topK int) ([]*Memory, error) {
	if topK <= 0 {
		topK = 5
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return s.Recent(topK)
	}

	all, err := s.Recent(0)
	if err != nil {
		return nil, err
	}

	type scored struct {
		memory *Memory
		hits   int
	}

	var results []scored
	for _, m := range all {
		content := strings.ToLower(m.Content)
		hits := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				hits++
			}
		}
		if hits > 0 {
			results = append(results, scored{memory: m, hits: hits})
		}
	}

	// Recent() already orders newest first, and the sort is stable.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].hits > results[j].hits
	})

	if len(results) > topK {
		results = results[:topK]
	}

	memories := make([]*Memory, len(results))
	for i, r := range results {
		memories[i] = r.memory
	}
	return memories, nil
}

// Delete removes a memory by ID.
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM profile_memories WHERE id = ?", id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Count returns the number of stored memories.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM profile_memories").Scan(&count)
	return count, err
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	var memories []*Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Content, &m.Source, &m.CreatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if len(word) > 1 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
