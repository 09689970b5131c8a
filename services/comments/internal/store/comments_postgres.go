package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const commentColumns = `id::text, quotation_id, section, comment, name, parent_id::text,
	created_at, updated_at, deleted_at`

// PostgresCommentStore persists comments in Postgres.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

func (s *PostgresCommentStore) Insert(ctx context.Context, c NewComment) (Comment, error) {
	if c.ParentID != nil && !validID(*c.ParentID) {
		return Comment{}, ErrNotFound
	}
	q := `INSERT INTO quotation_comments (quotation_id, section, comment, name, parent_id)
	      VALUES ($1, $2, $3, $4, $5::uuid)
	      RETURNING ` + commentColumns
	return scanComment(s.pool.QueryRow(ctx, q, c.DocumentID, c.SectionID, c.Text, c.AuthorName, c.ParentID))
}

func (s *PostgresCommentStore) Query(ctx context.Context, documentID, sectionID string) ([]Comment, error) {
	q := `SELECT ` + commentColumns + `
	      FROM quotation_comments
	      WHERE quotation_id = $1 AND section = $2 AND deleted_at IS NULL
	      ORDER BY created_at ASC, id ASC`
	return s.scanComments(ctx, q, documentID, sectionID)
}

func (s *PostgresCommentStore) QueryDocument(ctx context.Context, documentID string) ([]Comment, error) {
	q := `SELECT ` + commentColumns + `
	      FROM quotation_comments
	      WHERE quotation_id = $1 AND deleted_at IS NULL
	      ORDER BY created_at ASC, id ASC`
	return s.scanComments(ctx, q, documentID)
}

func (s *PostgresCommentStore) Update(ctx context.Context, id string, p CommentPatch) (Comment, error) {
	if !validID(id) {
		return Comment{}, ErrNotFound
	}
	q := `UPDATE quotation_comments
	      SET comment = COALESCE($2::text, comment),
	          name = CASE WHEN $3::boolean THEN $4::text ELSE name END,
	          updated_at = now()
	      WHERE id = $1::uuid AND deleted_at IS NULL
	      RETURNING ` + commentColumns
	return scanComment(s.pool.QueryRow(ctx, q, id, p.Text, p.SetAuthor, p.AuthorName))
}

func (s *PostgresCommentStore) SoftDelete(ctx context.Context, id string) (Comment, bool, error) {
	if !validID(id) {
		return Comment{}, false, ErrNotFound
	}
	// COALESCE keeps the first tombstone, so a repeated delete changes nothing.
	// The locked prior value tells whether this statement set it.
	q := `WITH prior AS (
	          SELECT deleted_at AS prior_deleted_at FROM quotation_comments
	          WHERE id = $1::uuid FOR UPDATE
	      )
	      UPDATE quotation_comments SET deleted_at = COALESCE(deleted_at, now())
	      FROM prior
	      WHERE id = $1::uuid
	      RETURNING ` + commentColumns + `, prior.prior_deleted_at IS NULL`
	var (
		c       Comment
		stamped bool
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.DocumentID, &c.SectionID, &c.Text, &c.AuthorName, &c.ParentID,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt, &stamped)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, false, ErrNotFound
	}
	if err != nil {
		return Comment{}, false, err
	}
	return c, stamped, nil
}

func (s *PostgresCommentStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresCommentStore) scanComments(ctx context.Context, q string, args ...any) ([]Comment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.DocumentID, &c.SectionID, &c.Text, &c.AuthorName, &c.ParentID,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
