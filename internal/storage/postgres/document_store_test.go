package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
)

func TestBuildListSQL(t *testing.T) {
	t.Parallel()

	query, args, err := buildListSQL("orders", docstore.BuildQuery(
		docstore.Equal("businessId", "biz-1"),
		docstore.OrderDesc(docstore.FieldCreatedAt),
		docstore.Limit(1),
	))
	require.NoError(t, err)
	require.Contains(t, query, "data @> $2::jsonb")
	require.Contains(t, query, "ORDER BY created_at DESC, seq DESC LIMIT $3")
	require.Equal(t, []any{"orders", `{"businessId":"biz-1"}`, 1}, args)
}

func TestBuildListSQL_DefaultsAndSystemFilter(t *testing.T) {
	t.Parallel()

	query, args, err := buildListSQL("inventory", docstore.BuildQuery(
		docstore.Equal(docstore.FieldID, "doc-1"),
		docstore.OrderAsc("productId"),
		docstore.Offset(5),
	))
	require.NoError(t, err)
	require.Contains(t, query, "id = $2")
	require.Contains(t, query, "ORDER BY data->'productId', seq LIMIT $3 OFFSET $4")
	require.Equal(t, []any{"inventory", "doc-1", docstore.DefaultLimit, 5}, args)
}

func TestBuildListSQL_RejectsUnsafeFields(t *testing.T) {
	t.Parallel()

	_, _, err := buildListSQL("orders", docstore.BuildQuery(docstore.OrderAsc("x'; DROP TABLE documents; --")))
	require.Error(t, err)

	_, _, err = buildListSQL("orders", docstore.BuildQuery(docstore.Equal("a b", 1)))
	require.Error(t, err)
}

func TestMarshalFields_DropsSystemFields(t *testing.T) {
	t.Parallel()

	raw, err := marshalFields(docstore.Fields{docstore.FieldID: "x", "stock": 3})
	require.NoError(t, err)
	require.JSONEq(t, `{"stock":3}`, raw)
}

func TestDocumentStore_PostgresLifecycle(t *testing.T) {
	store := NewDocumentStore(openIntegrationStore(t))
	ctx := context.Background()

	first, err := store.Create(ctx, "orders", docstore.Fields{"businessId": "biz-1", "orderNumber": "ORD-001", "total": 100})
	require.NoError(t, err)
	second, err := store.Create(ctx, "orders", docstore.Fields{"businessId": "biz-1", "orderNumber": "ORD-002", "total": 250})
	require.NoError(t, err)

	latest, err := store.List(ctx, "orders",
		docstore.Equal("businessId", "biz-1"),
		docstore.OrderDesc(docstore.FieldCreatedAt),
		docstore.Limit(1),
	)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, second.ID, latest[0].ID)

	updated, err := store.Update(ctx, "orders", first.ID, docstore.Fields{"status": "completed"})
	require.NoError(t, err)
	require.Equal(t, "completed", updated.Fields["status"])
	require.Equal(t, "ORD-001", updated.Fields["orderNumber"])

	_, err = store.Create(ctx, "orders", docstore.Fields{"businessId": "biz-1", "orderNumber": "ORD-002"})
	require.True(t, errors.Is(err, docstore.ErrConflict), "expected conflict, got %v", err)

	require.NoError(t, store.Delete(ctx, "orders", first.ID))
	_, err = store.Get(ctx, "orders", first.ID)
	require.True(t, errors.Is(err, docstore.ErrNotFound))
	require.True(t, strings.Contains(err.Error(), first.ID))
}
