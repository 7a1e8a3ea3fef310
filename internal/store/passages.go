package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	"github.com/chat-food/server/pkg/libsql"
	logx "github.com/chat-food/server/pkg/logger"
)

// ErrVectorUnsupported is returned by Semantic when the database has no
// vector functions.
var ErrVectorUnsupported = errors.New("vector search is not supported by this database")

const passageColumns = `p.id, p.document_id, p.text, p.file_name, p.creation_date, p.page_number`

// PassageRecord is a passage with its embedding, as written by ingestion.
type PassageRecord struct {
	model.Passage
	Embedding []float32
}

// PassageStore keeps the document corpus. Keyword search uses FTS5 when
// the database has it and a term-count LIKE scan otherwise.
type PassageStore struct {
	db   *sql.DB
	caps libsql.Capabilities
}

// NewPassageStore prepares the full-text index when FTS5 is available.
func NewPassageStore(ctx context.Context, db *libsql.DB) (*PassageStore, error) {
	s := &PassageStore{db: db.DB, caps: db.Caps}
	if s.caps.FTS5 {
		if _, err := s.db.ExecContext(ctx,
			`CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(passage_id UNINDEXED, text)`,
		); err != nil {
			logx.Warn().Err(err).Msg("fts5 index unavailable, using LIKE scoring")
			s.caps.FTS5 = false
		}
	}
	return s, nil
}

// Insert writes passages and their embeddings in one transaction.
func (s *PassageStore) Insert(ctx context.Context, records []PassageRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapDB(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range records {
		var embedding any
		if len(r.Embedding) > 0 && s.caps.Vector {
			embedding = libsql.VectorLiteral(r.Embedding)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO passages (id, document_id, text, file_name, creation_date, page_number, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, CASE WHEN ? IS NULL THEN NULL ELSE vector32(?) END)`,
			r.ID, r.DocumentID, r.Text, r.FileName, r.CreationDate.Unix(), r.PageNumber, embedding, embedding,
		); err != nil {
			return errx.WrapDB(err)
		}
		if s.caps.FTS5 {
			if _, err = tx.ExecContext(ctx, `DELETE FROM passages_fts WHERE passage_id = ?`, r.ID); err != nil {
				return errx.WrapDB(err)
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO passages_fts (passage_id, text) VALUES (?, ?)`, r.ID, r.Text,
			); err != nil {
				return errx.WrapDB(err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

// Keyword ranks passages by the terms of query, best first.
func (s *PassageStore) Keyword(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	terms := Terms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	if s.caps.FTS5 {
		return s.fullText(ctx, terms, limit)
	}
	return s.likeScan(ctx, terms, limit)
}

func (s *PassageStore) fullText(ctx context.Context, terms []string, limit int) ([]model.Passage, error) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+passageColumns+`, -bm25(passages_fts) AS score
		   FROM passages_fts JOIN passages p ON p.id = passages_fts.passage_id
		  WHERE passages_fts MATCH ?
		  ORDER BY bm25(passages_fts)
		  LIMIT ?`,
		strings.Join(quoted, " OR "), limit,
	)
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return scanPassages(rows)
}

func (s *PassageStore) likeScan(ctx context.Context, terms []string, limit int) ([]model.Passage, error) {
	scores := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, t := range terms {
		scores[i] = `(CASE WHEN instr(lower(p.text), ?) > 0 THEN 1 ELSE 0 END)`
		args = append(args, t)
	}
	args = append(args, limit)

	q := fmt.Sprintf(
		`SELECT * FROM (SELECT %s, (%s) AS score FROM passages p) WHERE score > 0 ORDER BY score DESC, id LIMIT ?`,
		passageColumns, strings.Join(scores, " + "),
	)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return scanPassages(rows)
}

// Semantic ranks passages by cosine distance to vector, nearest first.
// Score is 1 - distance.
func (s *PassageStore) Semantic(ctx context.Context, vector []float32, limit int) ([]model.Passage, error) {
	if !s.caps.Vector {
		return nil, ErrVectorUnsupported
	}
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+passageColumns+`, 1 - vector_distance_cos(p.embedding, vector32(?)) AS score
		   FROM passages p
		  WHERE p.embedding IS NOT NULL
		  ORDER BY vector_distance_cos(p.embedding, vector32(?))
		  LIMIT ?`,
		libsql.VectorLiteral(vector), libsql.VectorLiteral(vector), limit,
	)
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return scanPassages(rows)
}

// Count returns the number of stored passages.
func (s *PassageStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, errx.WrapDB(err)
	}
	return n, nil
}

func scanPassages(rows *sql.Rows) ([]model.Passage, error) {
	defer rows.Close()

	var out []model.Passage
	for rows.Next() {
		var (
			p       model.Passage
			created int64
		)
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Text, &p.FileName, &created, &p.PageNumber, &p.Score); err != nil {
			return nil, errx.WrapDB(err)
		}
		p.CreationDate = time.Unix(created, 0).UTC()
		out = append(out, p)
	}
	return out, errx.WrapDB(rows.Err())
}

// Terms lowercases query and keeps its words of two or more letters or digits.
func Terms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
