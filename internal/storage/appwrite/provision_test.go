package appwrite

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisioner_Apply(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	fake.fail = func(c apiCall) error {
		if c.Op == "create_database" {
			return &sdkError{status: http.StatusConflict, typ: "database_already_exists", msg: "Database already exists"}
		}
		return nil
	}

	p := NewProvisioner(client, time.Second)
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	schema := Schema("orders", "order_items", "inventory")
	res, err := p.Apply(context.Background(), "Storefront", schema)
	require.NoError(t, err)

	objects := 1
	for _, col := range schema {
		objects += 1 + len(col.Attributes) + len(col.Indexes)
	}
	assert.Equal(t, 1, res.Existed)
	assert.Equal(t, objects-1, res.Created)
	assert.Len(t, slept, len(schema))
	assert.Len(t, fake.all(), objects)

	var uniqueOrderNumber *Index
	var stockAttr *Attribute
	for _, c := range fake.all() {
		assert.Equal(t, "shop", c.Database)
		if c.Op == "create_index" && c.Collection == "orders" && c.Index.Key == "orderNumber_unique" {
			idx := c.Index
			uniqueOrderNumber = &idx
		}
		if c.Op == "create_attribute" && c.Collection == "inventory" && c.Attribute.Key == "stock" {
			attr := c.Attribute
			stockAttr = &attr
		}
	}
	require.NotNil(t, uniqueOrderNumber)
	assert.Equal(t, "unique", uniqueOrderNumber.Type())
	assert.Equal(t, []string{"businessId", "orderNumber"}, uniqueOrderNumber.Attributes)

	require.NotNil(t, stockAttr)
	assert.Equal(t, AttributeInteger, stockAttr.Kind)
	require.NotNil(t, stockAttr.Min)
	assert.Equal(t, int64(-999999), *stockAttr.Min)
	assert.Equal(t, 0, stockAttr.Default)
	assert.False(t, stockAttr.Required)
}

func TestProvisioner_StopsOnError(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	fake.fail = func(c apiCall) error {
		if c.Op == "create_attribute" {
			return &sdkError{status: http.StatusBadRequest, typ: "attribute_invalid", msg: "invalid attribute"}
		}
		return nil
	}

	_, err := NewProvisioner(client, 0).Apply(context.Background(), "Storefront", Schema("o", "i", "inv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create attribute o.businessId")
	assert.Contains(t, err.Error(), "invalid attribute")
	assert.Equal(t, "create_attribute", fake.last().Op)
}

func TestProvisioner_CanceledDuringSettle(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	p := NewProvisioner(client, time.Hour)
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := p.Apply(ctx, "Storefront", Schema("orders", "order_items", "inventory"))
	require.ErrorIs(t, err, context.Canceled)
	for _, c := range fake.all() {
		assert.NotEqual(t, "create_index", c.Op)
	}
}

func TestIndex_Type(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unique", Index{Unique: true}.Type())
	assert.Equal(t, "key", Index{}.Type())
}
