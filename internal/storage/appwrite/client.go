// Package appwrite реализует docstore.Store поверх Appwrite Databases
// (официальный Go SDK).
package appwrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/appwrite/sdk-for-go/id"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
)

const defaultTimeout = 10 * time.Second

// Config — параметры подключения к проекту Appwrite.
type Config struct {
	Endpoint   string
	ProjectID  string
	APIKey     string
	DatabaseID string
	// Timeout ограничивает один вызов SDK.
	Timeout time.Duration
}

func (c Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		missing = append(missing, "project id")
	}
	if strings.TrimSpace(c.DatabaseID) == "" {
		missing = append(missing, "database id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("appwrite config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// APIError — ошибка, которую вернул Appwrite.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("appwrite: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// Unwrap сводит коды ответа к ошибкам docstore.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return docstore.ErrNotFound
	case http.StatusConflict:
		return docstore.ErrConflict
	default:
		return nil
	}
}

// Transient — 5xx и 429 имеет смысл повторить.
func (e *APIError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// rawDocument — документ в формате ответа Appwrite.
type rawDocument map[string]json.RawMessage

// databaseAPI — вызовы Appwrite Databases, которыми пользуются Client и Provisioner.
// Продакшн-реализация — sdkDatabases.
type databaseAPI interface {
	listDocuments(databaseID, collectionID string, queries []string) ([]rawDocument, error)
	getDocument(databaseID, collectionID, documentID string) (rawDocument, error)
	createDocument(databaseID, collectionID, documentID string, data map[string]any) (rawDocument, error)
	updateDocument(databaseID, collectionID, documentID string, data map[string]any) (rawDocument, error)
	deleteDocument(databaseID, collectionID, documentID string) error
	getDatabase(databaseID string) error

	createDatabase(databaseID, name string) error
	createCollection(databaseID, collectionID, name string) error
	createAttribute(databaseID, collectionID string, attr Attribute) error
	createIndex(databaseID, collectionID string, idx Index) error
}

// Client — хранилище документов в одной базе Appwrite.
type Client struct {
	cfg    Config
	api    databaseAPI
	logger *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient проверяет конфигурацию и создаёт клиент на SDK.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newClient(cfg, newSDKDatabases(cfg), opts...), nil
}

func newClient(cfg Config, api databaseAPI, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		api:    api,
		logger: log.WithField("component", "appwrite"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) List(ctx context.Context, collection string, opts ...docstore.QueryOption) ([]docstore.Document, error) {
	queries := EncodeQueries(docstore.BuildQuery(opts...))

	raws, err := invoke(ctx, c, "list", collection, func() ([]rawDocument, error) {
		return c.api.listDocuments(c.cfg.DatabaseID, collection, queries)
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	docs := make([]docstore.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := decodeDocument(collection, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	raw, err := invoke(ctx, c, "get", collection, func() (rawDocument, error) {
		return c.api.getDocument(c.cfg.DatabaseID, collection, id)
	})
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(collection, raw)
}

func (c *Client) Create(ctx context.Context, collection string, fields docstore.Fields) (docstore.Document, error) {
	data := userFields(fields)
	raw, err := invoke(ctx, c, "create", collection, func() (rawDocument, error) {
		return c.api.createDocument(c.cfg.DatabaseID, collection, id.Unique(), data)
	})
	if err != nil {
		return docstore.Document{}, fmt.Errorf("create %s document: %w", collection, err)
	}
	return decodeDocument(collection, raw)
}

func (c *Client) Update(ctx context.Context, collection, id string, patch docstore.Fields) (docstore.Document, error) {
	data := userFields(patch)
	raw, err := invoke(ctx, c, "update", collection, func() (rawDocument, error) {
		return c.api.updateDocument(c.cfg.DatabaseID, collection, id, data)
	})
	if err != nil {
		return docstore.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return decodeDocument(collection, raw)
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	_, err := invoke(ctx, c, "delete", collection, func() (struct{}, error) {
		return struct{}{}, c.api.deleteDocument(c.cfg.DatabaseID, collection, id)
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Ping запрашивает метаданные базы.
func (c *Client) Ping(ctx context.Context) error {
	_, err := invoke(ctx, c, "ping", "", func() (struct{}, error) {
		return struct{}{}, c.api.getDatabase(c.cfg.DatabaseID)
	})
	return err
}

// invoke выполняет вызов SDK с таймаутом cfg.Timeout. SDK не принимает context,
// поэтому вызов идёт в своей горутине; при отмене ctx его результат отбрасывается.
func invoke[T any](ctx context.Context, c *Client, op, collection string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	started := time.Now()
	go func() {
		v, err := fn()
		done <- result{value: v, err: toAPIError(err)}
	}()

	select {
	case <-ctx.Done():
		c.logger.WithFields(log.Fields{"op": op, "collection": collection}).Warn("appwrite call abandoned")
		return zero, ctx.Err()
	case res := <-done:
		entry := c.logger.WithFields(log.Fields{
			"op":          op,
			"collection":  collection,
			"duration_ms": time.Since(started).Milliseconds(),
		})
		if res.err != nil {
			entry = entry.WithError(res.err)
		}
		entry.Debug("appwrite call")
		return res.value, res.err
	}
}

// statusCoder — ошибка SDK с HTTP-кодом ответа.
type statusCoder interface {
	GetStatusCode() int
}

// toAPIError переводит ошибку SDK в *APIError; сетевые ошибки возвращаются как есть.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var coded statusCoder
	if !errors.As(err, &coded) || coded.GetStatusCode() == 0 {
		return err
	}
	apiErr := &APIError{StatusCode: coded.GetStatusCode(), Message: err.Error()}
	if typed, ok := coded.(interface{ GetType() string }); ok {
		apiErr.Type = typed.GetType()
	}
	if msg, ok := coded.(interface{ GetMessage() string }); ok && msg.GetMessage() != "" {
		apiErr.Message = msg.GetMessage()
	}
	return apiErr
}

// decodeDocument отделяет системные $-поля от пользовательских.
func decodeDocument(collection string, raw rawDocument) (docstore.Document, error) {
	doc := docstore.Document{Collection: collection, Fields: docstore.Fields{}}
	for key, value := range raw {
		if !strings.HasPrefix(key, "$") {
			var v any
			if err := json.Unmarshal(value, &v); err != nil {
				return docstore.Document{}, fmt.Errorf("decode field %s: %w", key, err)
			}
			doc.Fields[key] = v
			continue
		}

		var err error
		switch key {
		case docstore.FieldID:
			err = json.Unmarshal(value, &doc.ID)
		case docstore.FieldCreatedAt:
			doc.CreatedAt, err = parseTimestamp(value)
		case docstore.FieldUpdatedAt:
			doc.UpdatedAt, err = parseTimestamp(value)
		}
		if err != nil {
			return docstore.Document{}, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	if doc.ID == "" {
		return docstore.Document{}, errors.New("appwrite document without $id")
	}
	return doc, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func userFields(fields docstore.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = v
	}
	return out
}

var (
	_ docstore.Store  = (*Client)(nil)
	_ docstore.Pinger = (*Client)(nil)
)
