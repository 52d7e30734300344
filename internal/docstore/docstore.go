// Package docstore описывает границу с удалённым документным хранилищем:
// коллекции JSON-документов с операциями list/get/create/update/delete
// без транзакций, блокировок и пакетных запросов.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Системные поля, которые хранилище проставляет само.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// DefaultLimit применяется к List, если лимит не указан явно.
const DefaultLimit = 25

var (
	// ErrNotFound — документа с таким идентификатором нет в коллекции.
	ErrNotFound = errors.New("document not found")
	// ErrConflict — хранилище отклонило запись (дубликат id или уникального индекса).
	ErrConflict = errors.New("document conflict")
)

// Fields — пользовательские поля документа.
type Fields map[string]any

// Document — документ коллекции вместе с системными полями.
type Document struct {
	ID         string
	Collection string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Fields     Fields
}

// Decode раскладывает поля документа в структуру с json-тегами.
func (d Document) Decode(v any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Encode превращает структуру с json-тегами в набор полей документа.
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}

// Store — минимальный контракт удалённого документного хранилища.
type Store interface {
	List(ctx context.Context, collection string, opts ...QueryOption) ([]Document, error)
	// Get возвращает ErrNotFound, если документа нет.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create сохраняет новый документ; id и временные метки назначает хранилище.
	Create(ctx context.Context, collection string, fields Fields) (Document, error)
	// Update сливает patch с текущими полями документа.
	Update(ctx context.Context, collection, id string, patch Fields) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Pinger реализуют хранилища, которые умеют проверять доступность.
type Pinger interface {
	Ping(ctx context.Context) error
}
