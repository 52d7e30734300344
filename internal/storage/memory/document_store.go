package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
)

// storedDocument хранит документ и порядковый номер вставки для стабильной сортировки.
type storedDocument struct {
	doc docstore.Document
	seq int64
}

// DocumentStore — in-memory реализация docstore.Store для локальной разработки и тестов.
type DocumentStore struct {
	mu          sync.RWMutex
	now         func() time.Time
	seq         int64
	collections map[string]map[string]*storedDocument
}

// DocumentStoreOption настраивает DocumentStore.
type DocumentStoreOption func(*DocumentStore)

// WithClock подменяет источник времени для временных меток документов.
func WithClock(now func() time.Time) DocumentStoreOption {
	return func(s *DocumentStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDocumentStore создаёт пустое хранилище.
func NewDocumentStore(opts ...DocumentStoreOption) *DocumentStore {
	s := &DocumentStore{
		now:         func() time.Time { return time.Now().UTC() },
		collections: make(map[string]map[string]*storedDocument),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create сохраняет документ с новым идентификатором.
func (s *DocumentStore) Create(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	normalized, err := normalizeFields(fields)
	if err != nil {
		return docstore.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.seq++
	stored := &storedDocument{
		doc: docstore.Document{
			ID:         uuid.NewString(),
			Collection: collection,
			CreatedAt:  now,
			UpdatedAt:  now,
			Fields:     normalized,
		},
		seq: s.seq,
	}

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*storedDocument)
		s.collections[collection] = docs
	}
	docs[stored.doc.ID] = stored

	return cloneDocument(stored.doc), nil
}

// Get возвращает документ или docstore.ErrNotFound.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return cloneDocument(stored.doc), nil
}

// Update сливает patch с полями документа.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, patch docstore.Fields) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	normalized, err := normalizeFields(patch)
	if err != nil {
		return docstore.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	for key, value := range normalized {
		stored.doc.Fields[key] = value
	}
	stored.doc.UpdatedAt = s.now()

	return cloneDocument(stored.doc), nil
}

// Delete удаляет документ.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	delete(s.collections[collection], id)
	return nil
}

// List возвращает документы коллекции с учётом фильтров, сортировки и лимита.
// Без явной сортировки документы идут в порядке вставки.
func (s *DocumentStore) List(ctx context.Context, collection string, opts ...docstore.QueryOption) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := docstore.BuildQuery(opts...)

	filters := make([]docstore.Filter, 0, len(q.Filters))
	for _, f := range q.Filters {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		filters = append(filters, docstore.Filter{Field: f.Field, Value: value})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*storedDocument, 0)
	for _, stored := range s.collections[collection] {
		if matches(stored.doc, filters) {
			matched = append(matched, stored)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].seq < matched[j].seq
	})
	if len(q.Sorts) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, srt := range q.Sorts {
				cmp := compareValues(fieldValue(matched[i].doc, srt.Field), fieldValue(matched[j].doc, srt.Field))
				if cmp == 0 {
					continue
				}
				if srt.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			// При равенстве ключей более поздняя вставка считается «больше».
			if q.Sorts[0].Desc {
				return matched[i].seq > matched[j].seq
			}
			return false
		})
	}

	if q.Offset >= len(matched) {
		return []docstore.Document{}, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	result := make([]docstore.Document, 0, len(matched))
	for _, stored := range matched {
		result = append(result, cloneDocument(stored.doc))
	}
	return result, nil
}

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Count возвращает количество документов в коллекции (используется в тестах).
func (s *DocumentStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func matches(doc docstore.Document, filters []docstore.Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(fieldValue(doc, f.Field), f.Value) {
			return false
		}
	}
	return true
}

func fieldValue(doc docstore.Document, field string) any {
	switch field {
	case docstore.FieldID:
		return doc.ID
	case docstore.FieldCreatedAt:
		return doc.CreatedAt
	case docstore.FieldUpdatedAt:
		return doc.UpdatedAt
	default:
		return doc.Fields[field]
	}
}

// compareValues упорядочивает значения одного типа; nil меньше любого значения.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// normalizeFields приводит значения к виду, в котором их вернёт JSON-хранилище.
func normalizeFields(fields docstore.Fields) (docstore.Fields, error) {
	if fields == nil {
		return docstore.Fields{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	var out docstore.Fields
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneDocument(src docstore.Document) docstore.Document {
	dst := src
	dst.Fields = make(docstore.Fields, len(src.Fields))
	for key, value := range src.Fields {
		dst.Fields[key] = cloneValue(value)
	}
	return dst
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

var _ docstore.Store = (*DocumentStore)(nil)
var _ docstore.Pinger = (*DocumentStore)(nil)
