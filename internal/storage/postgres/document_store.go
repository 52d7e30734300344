package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
)

var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// systemColumns сопоставляет системные поля документа колонкам таблицы.
var systemColumns = map[string]string{
	docstore.FieldID:        "id",
	docstore.FieldCreatedAt: "created_at",
	docstore.FieldUpdatedAt: "updated_at",
}

// DocumentStore реализует docstore.Store поверх таблицы documents (JSONB).
type DocumentStore struct {
	store *Store
	now   func() time.Time
}

// NewDocumentStore создаёт хранилище документов.
func NewDocumentStore(store *Store) *DocumentStore {
	return &DocumentStore{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ping проверяет доступность базы.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	data, err := marshalFields(fields)
	if err != nil {
		return docstore.Document{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()
	row := s.store.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		RETURNING id, collection, data, created_at, updated_at
	`, collection, uuid.NewString(), data, now)

	doc, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return docstore.Document{}, fmt.Errorf("create %s document: %w", collection, docstore.ErrConflict)
		}
		return docstore.Document{}, fmt.Errorf("create %s document: %w", collection, err)
	}
	return doc, nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, collection, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
		}
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Update сливает patch с data оператором || (верхний уровень).
func (s *DocumentStore) Update(ctx context.Context, collection, id string, patch docstore.Fields) (docstore.Document, error) {
	data, err := marshalFields(patch)
	if err != nil {
		return docstore.Document{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.store.db.QueryRowContext(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb,
		    updated_at = $4
		WHERE collection = $1 AND id = $2
		RETURNING id, collection, data, created_at, updated_at
	`, collection, id, data, s.now())

	doc, err := scanDocument(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	case isUniqueViolation(err):
		return docstore.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, docstore.ErrConflict)
	case err != nil:
		return docstore.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.store.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s rows affected: %w", collection, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context, collection string, opts ...docstore.QueryOption) ([]docstore.Document, error) {
	query, args, err := buildListSQL(collection, docstore.BuildQuery(opts...))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s document: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

// buildListSQL переводит docstore.Query в SELECT. Фильтры по пользовательским
// полям идут через containment (data @> {"field": value}), сортировка по
// jsonb-значению, равенство ключей разрешается порядком вставки.
func buildListSQL(collection string, q docstore.Query) (string, []any, error) {
	var (
		sb   strings.Builder
		args = []any{collection}
	)
	sb.WriteString("SELECT id, collection, data, created_at, updated_at FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		if column, ok := systemColumns[f.Field]; ok {
			args = append(args, f.Value)
			fmt.Fprintf(&sb, " AND %s = $%d", column, len(args))
			continue
		}
		if !fieldNameRe.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		raw, err := json.Marshal(map[string]any{f.Field: f.Value})
		if err != nil {
			return "", nil, fmt.Errorf("marshal filter %q: %w", f.Field, err)
		}
		args = append(args, string(raw))
		fmt.Fprintf(&sb, " AND data @> $%d::jsonb", len(args))
	}

	sb.WriteString(" ORDER BY ")
	tieDesc := false
	for i, srt := range q.Sorts {
		expr, ok := systemColumns[srt.Field]
		if !ok {
			if !fieldNameRe.MatchString(srt.Field) {
				return "", nil, fmt.Errorf("invalid sort field %q", srt.Field)
			}
			expr = "data->'" + srt.Field + "'"
		}
		sb.WriteString(expr)
		if srt.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", ")
		if i == 0 {
			tieDesc = srt.Desc
		}
	}
	sb.WriteString("seq")
	if tieDesc {
		sb.WriteString(" DESC")
	}

	args = append(args, q.Limit)
	sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (docstore.Document, error) {
	var (
		doc docstore.Document
		raw []byte
	)
	if err := row.Scan(&doc.ID, &doc.Collection, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return docstore.Document{}, err
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	if err := json.Unmarshal(raw, &doc.Fields); err != nil {
		return docstore.Document{}, fmt.Errorf("decode document %s data: %w", doc.ID, err)
	}
	if doc.Fields == nil {
		doc.Fields = docstore.Fields{}
	}
	return doc, nil
}

func marshalFields(fields docstore.Fields) (string, error) {
	clean := make(docstore.Fields, len(fields))
	for k, v := range fields {
		if _, system := systemColumns[k]; system {
			continue
		}
		clean[k] = v
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("marshal document fields: %w", err)
	}
	return string(raw), nil
}

var _ docstore.Store = (*DocumentStore)(nil)
