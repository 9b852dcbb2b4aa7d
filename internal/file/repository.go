package file

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// fileColumns is the shared SELECT column list for the files table.
const fileColumns = `id, name, extension, type, size_bytes, blob_ref,
	owner_id, owner_email, shared_with, created_at, updated_at`

// Repository implements MetadataGateway on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Query returns one page of owner-scoped matches plus the total match count.
// Ties on the sort key fall back to insertion order (seq column), so equal
// keys keep a stable ordering across pages.
func (r *Repository) Query(ctx context.Context, filters Filters, offset, limit int) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	where, args := buildWhere(filters)
	orderBy := buildOrderBy(filters.Sort)

	countQuery := fmt.Sprintf(`SELECT count(*) FROM files %s;`, where)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count files: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM files %s %s LIMIT $%d OFFSET $%d;`,
		fileColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return Page{}, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var docs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Page{}, err
		}
		docs = append(docs, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate files: %w", err)
	}

	return Page{Documents: docs, Total: total}, nil
}

// GetByID fetches one record without owner scoping.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1;`, fileColumns)

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Create inserts metadata for a new file.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := fmt.Sprintf(`
INSERT INTO files (id, name, extension, type, size_bytes, blob_ref, owner_id, owner_email, shared_with)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING %s;`, fileColumns)

	row := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.Name,
		rec.Extension,
		rec.Type,
		rec.SizeBytes,
		rec.BlobRef,
		rec.OwnerID,
		rec.OwnerEmail,
		rec.SharedWith,
	)

	stored, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("create file metadata: %w", err)
	}
	return stored, nil
}

// Update applies a partial patch and refreshes updated_at. SharedWith is
// replaced wholesale, never merged in SQL.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch Patch) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	sets := []string{"updated_at = now()"}
	args := []any{id}

	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.SharedWith != nil {
		args = append(args, *patch.SharedWith)
		sets = append(sets, fmt.Sprintf("shared_with = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE files SET %s WHERE id = $1 RETURNING %s;`,
		strings.Join(sets, ", "), fileColumns)

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, fmt.Errorf("update file metadata: %w", err)
	}
	return rec, nil
}

// DeleteRecord removes metadata for a file.
func (r *Repository) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// UsageByType aggregates per-type storage usage for one owner.
func (r *Repository) UsageByType(ctx context.Context, ownerID uuid.UUID) (map[FileType]UsageEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT type, count(*), coalesce(sum(size_bytes), 0), max(updated_at)
FROM files
WHERE owner_id = $1
GROUP BY type;`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[FileType]UsageEntry)
	for rows.Next() {
		var (
			t     FileType
			entry UsageEntry
		)
		if err := rows.Scan(&t, &entry.Count, &entry.TotalBytes, &entry.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		usage[t] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return usage, nil
}

func buildWhere(filters Filters) (string, []any) {
	conds := []string{"(owner_id = $1 OR $2 = ANY(shared_with))"}
	args := []any{filters.Owner.UserID, filters.Owner.Email}

	if len(filters.Types) > 0 {
		types := make([]string, 0, len(filters.Types))
		for _, t := range filters.Types {
			types = append(types, string(t))
		}
		args = append(args, types)
		conds = append(conds, fmt.Sprintf("type = ANY($%d)", len(args)))
	}

	if text := strings.TrimSpace(filters.SearchText); text != "" {
		args = append(args, "%"+escapeLike(text)+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// buildOrderBy maps a SortKey onto a whitelisted ORDER BY clause. The seq
// tiebreak keeps equal keys in insertion order.
func buildOrderBy(sort SortKey) string {
	var clause string
	switch sort {
	case SortNameAsc:
		clause = "name ASC"
	case SortNameDesc:
		clause = "name DESC"
	case SortSizeAsc:
		clause = "size_bytes ASC"
	case SortSizeDesc:
		clause = "size_bytes DESC"
	case SortCreatedAsc:
		clause = "created_at ASC"
	default:
		clause = "created_at DESC"
	}
	return fmt.Sprintf("ORDER BY %s, seq ASC", clause)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Extension,
		&rec.Type,
		&rec.SizeBytes,
		&rec.BlobRef,
		&rec.OwnerID,
		&rec.OwnerEmail,
		&rec.SharedWith,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, pgx.ErrNoRows
		}
		return Record{}, fmt.Errorf("scan file metadata: %w", err)
	}
	return rec, nil
}
