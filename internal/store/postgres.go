package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"catchanno/api/internal/query"
)

var (
	ErrNotFound    = errors.New("annotation not found")
	ErrDuplicateID = errors.New("annotation id already exists")
)

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const annotationColumns = `id, schema_version, creator_id, creator_name, body_text,
	tags, target_sources, target_medias,
	can_read, can_update, can_delete, can_admin,
	platform_name, context_id, collection_id, target_source_id,
	raw, deleted, created, modified`

func scanAnnotation(row pgx.Row) (Annotation, error) {
	var a Annotation
	err := row.Scan(
		&a.ID, &a.SchemaVersion, &a.CreatorID, &a.CreatorName, &a.BodyText,
		&a.Tags, &a.TargetSources, &a.TargetMedias,
		&a.CanRead, &a.CanUpdate, &a.CanDelete, &a.CanAdmin,
		&a.PlatformName, &a.ContextID, &a.CollectionID, &a.TargetSourceID,
		&a.Raw, &a.Deleted, &a.Created, &a.Modified,
	)
	return a, err
}

// Get returns the row for an id, including soft-deleted rows. Callers
// decide whether a deleted row counts as absent.
func (s *PostgresStore) Get(ctx context.Context, id string) (Annotation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE id=$1`, id)
	a, err := scanAnnotation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Annotation{}, ErrNotFound
	}
	if err != nil {
		return Annotation{}, fmt.Errorf("get annotation: %w", err)
	}
	return a, nil
}

// Insert persists a new annotation. The primary key resolves races on
// the same id; a duplicate surfaces as ErrDuplicateID.
func (s *PostgresStore) Insert(ctx context.Context, a Annotation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO annotations (`+annotationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		a.ID, a.SchemaVersion, a.CreatorID, a.CreatorName, a.BodyText,
		a.Tags, a.TargetSources, a.TargetMedias,
		a.CanRead, a.CanUpdate, a.CanDelete, a.CanAdmin,
		a.PlatformName, a.ContextID, a.CollectionID, a.TargetSourceID,
		a.Raw, a.Deleted, a.Created, a.Modified,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert annotation: %w", err)
	}
	return nil
}

// Replace overwrites the content of a live annotation. Id, creator and
// created are immutable and left untouched.
func (s *PostgresStore) Replace(ctx context.Context, a Annotation) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE annotations
		SET schema_version=$2, body_text=$3,
			tags=$4, target_sources=$5, target_medias=$6,
			can_read=$7, can_update=$8, can_delete=$9, can_admin=$10,
			platform_name=$11, context_id=$12, collection_id=$13, target_source_id=$14,
			raw=$15, modified=$16
		WHERE id=$1 AND NOT deleted
	`,
		a.ID, a.SchemaVersion, a.BodyText,
		a.Tags, a.TargetSources, a.TargetMedias,
		a.CanRead, a.CanUpdate, a.CanDelete, a.CanAdmin,
		a.PlatformName, a.ContextID, a.CollectionID, a.TargetSourceID,
		a.Raw, a.Modified,
	)
	if err != nil {
		return fmt.Errorf("replace annotation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDeleted flips the soft-delete flag. The row and its id remain
// taken; deleting an already-deleted row reports ErrNotFound.
func (s *PostgresStore) MarkDeleted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE annotations SET deleted=TRUE, modified=NOW() WHERE id=$1 AND NOT deleted`, id)
	if err != nil {
		return fmt.Errorf("mark annotation deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Query compiles the predicate to SQL, excludes soft-deleted rows, sorts
// ascending by created (id as tie-break) and paginates. A negative limit
// returns everything from offset to the end. The returned total counts
// all matches before pagination.
func (s *PostgresStore) Query(ctx context.Context, pred query.Predicate, offset, limit int) ([]Annotation, int, error) {
	var args []any
	where, err := CompilePredicate(pred, &args)
	if err != nil {
		return nil, 0, err
	}
	where = "NOT deleted AND " + where

	var total int
	countSQL := "SELECT COUNT(*) FROM annotations WHERE " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count annotations: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	dataSQL := fmt.Sprintf(`
		SELECT %s FROM annotations
		WHERE %s
		ORDER BY created ASC, id ASC
		OFFSET %d`, annotationColumns, where, offset)
	if limit >= 0 {
		dataSQL += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	items := make([]Annotation, 0)
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan annotation: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate annotations: %w", err)
	}
	return items, total, nil
}

// LoadAll streams every live annotation, used for text index rebuilds.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]Annotation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE NOT deleted`)
	if err != nil {
		return nil, fmt.Errorf("load annotations: %w", err)
	}
	defer rows.Close()

	items := make([]Annotation, 0)
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var predicateColumns = map[query.Field]string{
	query.FieldID:             "id",
	query.FieldCreatorID:      "creator_id",
	query.FieldCreatorName:    "creator_name",
	query.FieldTags:           "tags",
	query.FieldTargetSources:  "target_sources",
	query.FieldTargetMedias:   "target_medias",
	query.FieldPlatformName:   "platform_name",
	query.FieldContextID:      "context_id",
	query.FieldCollectionID:   "collection_id",
	query.FieldTargetSourceID: "target_source_id",
}

// CompilePredicate renders a predicate tree into a WHERE fragment,
// appending its bind values to args. Column names come from a fixed
// allow-list; values always bind as parameters.
func CompilePredicate(pred query.Predicate, args *[]any) (string, error) {
	switch p := pred.(type) {
	case nil:
		return "TRUE", nil
	case query.And:
		if len(p) == 0 {
			return "TRUE", nil
		}
		parts := make([]string, 0, len(p))
		for _, member := range p {
			part, err := CompilePredicate(member, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case query.Equals:
		column, err := predicateColumn(p.Field)
		if err != nil {
			return "", err
		}
		*args = append(*args, p.Value)
		return fmt.Sprintf("%s = $%d", column, len(*args)), nil
	case query.AnyOf:
		column, err := predicateColumn(p.Field)
		if err != nil {
			return "", err
		}
		*args = append(*args, p.Values)
		return fmt.Sprintf("%s = ANY($%d)", column, len(*args)), nil
	case query.ContainsAny:
		column, err := predicateColumn(p.Field)
		if err != nil {
			return "", err
		}
		*args = append(*args, p.Values)
		return fmt.Sprintf("%s && $%d", column, len(*args)), nil
	case query.TextMatch:
		*args = append(*args, p.Text)
		return fmt.Sprintf("fts @@ plainto_tsquery('english', $%d)", len(*args)), nil
	case query.ReadableBy:
		*args = append(*args, p.UserID)
		return fmt.Sprintf("(cardinality(can_read) = 0 OR $%d = ANY(can_read))", len(*args)), nil
	default:
		return "", fmt.Errorf("unsupported predicate %T", pred)
	}
}

func predicateColumn(field query.Field) (string, error) {
	column, ok := predicateColumns[field]
	if !ok {
		return "", fmt.Errorf("unknown predicate field %q", field)
	}
	return column, nil
}
