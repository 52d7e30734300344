package appwrite

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
)

// AttributeKind — тип атрибута коллекции.
type AttributeKind string

const (
	AttributeString  AttributeKind = "string"
	AttributeInteger AttributeKind = "integer"
	AttributeEnum    AttributeKind = "enum"
)

// Attribute описывает одно поле коллекции.
type Attribute struct {
	Key      string
	Kind     AttributeKind
	Required bool
	Size     int
	Min, Max *int64
	Elements []string
	Default  any
}

// Index описывает индекс коллекции.
type Index struct {
	Key        string
	Unique     bool
	Attributes []string
	Orders     []string
}

// Type — тип индекса в терминах Appwrite.
func (i Index) Type() string {
	if i.Unique {
		return "unique"
	}
	return "key"
}

// Collection — схема одной коллекции.
type Collection struct {
	ID         string
	Name       string
	Attributes []Attribute
	Indexes    []Index
}

func intRange(lo, hi int64) (*int64, *int64) { return &lo, &hi }

func str(key string, size int, required bool) Attribute {
	return Attribute{Key: key, Kind: AttributeString, Size: size, Required: required}
}

func integer(key string, required bool, lo, hi int64, def any) Attribute {
	minV, maxV := intRange(lo, hi)
	return Attribute{Key: key, Kind: AttributeInteger, Required: required, Min: minV, Max: maxV, Default: def}
}

// Schema возвращает коллекции магазина с заданными идентификаторами.
// stock допускает отрицательные значения: параллельные оформления могут продать больше остатка.
func Schema(orders, orderItems, inventory string) []Collection {
	return []Collection{
		{
			ID:   orders,
			Name: "Orders",
			Attributes: []Attribute{
				str("businessId", 255, true),
				str("orderNumber", 50, true),
				str("customerName", 255, false),
				str("customerPhone", 50, false),
				integer("total", true, 0, 99999999, nil),
				integer("itemsCount", true, 0, 999, nil),
				{Key: "status", Kind: AttributeEnum, Elements: []string{"pending", "completed", "cancelled"}, Default: "pending"},
			},
			Indexes: []Index{
				{Key: "businessId_index", Attributes: []string{"businessId"}, Orders: []string{"ASC"}},
				{Key: "orderNumber_unique", Unique: true, Attributes: []string{"businessId", "orderNumber"}, Orders: []string{"ASC", "ASC"}},
				{Key: "createdAt_index", Attributes: []string{docstore.FieldCreatedAt}, Orders: []string{"DESC"}},
			},
		},
		{
			ID:   orderItems,
			Name: "Order Items",
			Attributes: []Attribute{
				str("orderId", 255, true),
				str("businessId", 255, true),
				str("productId", 255, true),
				str("productName", 255, true),
				integer("quantity", true, 1, 999, nil),
				integer("unitPrice", true, 0, 99999999, nil),
				integer("subtotal", true, 0, 99999999, nil),
			},
			Indexes: []Index{
				{Key: "orderId_index", Attributes: []string{"orderId"}, Orders: []string{"ASC"}},
				{Key: "productId_index", Attributes: []string{"productId"}, Orders: []string{"ASC"}},
				{Key: "businessId_index", Attributes: []string{"businessId"}, Orders: []string{"ASC"}},
			},
		},
		{
			ID:   inventory,
			Name: "Inventory",
			Attributes: []Attribute{
				str("productId", 255, true),
				str("businessId", 255, true),
				integer("stock", false, -999999, 999999, 0),
				integer("minStock", false, 0, 999, 5),
				integer("maxStock", false, 0, 999999, nil),
			},
			Indexes: []Index{
				{Key: "productId_unique", Unique: true, Attributes: []string{"productId"}, Orders: []string{"ASC"}},
				{Key: "businessId_index", Attributes: []string{"businessId"}, Orders: []string{"ASC"}},
			},
		},
	}
}

// Provisioner создаёт базу, коллекции, атрибуты и индексы. Уже существующие
// объекты (409) пропускаются, поэтому повторный запуск безопасен.
type Provisioner struct {
	client *Client
	logger *log.Entry
	// settle — пауза между атрибутами и индексами: Appwrite создаёт атрибуты асинхронно.
	settle time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewProvisioner создаёт Provisioner.
func NewProvisioner(client *Client, settle time.Duration) *Provisioner {
	return &Provisioner{
		client: client,
		logger: client.logger.WithField("step", "provision"),
		settle: settle,
		sleep:  sleepCtx,
	}
}

// ProvisionResult — сколько объектов создано и сколько уже существовало.
type ProvisionResult struct {
	Created int
	Existed int
}

// Apply применяет схему.
func (p *Provisioner) Apply(ctx context.Context, databaseName string, collections []Collection) (ProvisionResult, error) {
	var res ProvisionResult
	db := p.client.cfg.DatabaseID

	if err := p.create(ctx, &res, "database "+db, func() error {
		return p.client.api.createDatabase(db, databaseName)
	}); err != nil {
		return res, fmt.Errorf("create database %s: %w", db, err)
	}

	for _, col := range collections {
		if err := p.create(ctx, &res, "collection "+col.ID, func() error {
			return p.client.api.createCollection(db, col.ID, col.Name)
		}); err != nil {
			return res, fmt.Errorf("create collection %s: %w", col.ID, err)
		}

		for _, attr := range col.Attributes {
			if err := p.create(ctx, &res, "attribute "+col.ID+"."+attr.Key, func() error {
				return p.client.api.createAttribute(db, col.ID, attr)
			}); err != nil {
				return res, fmt.Errorf("create attribute %s.%s: %w", col.ID, attr.Key, err)
			}
		}

		if len(col.Indexes) > 0 && p.settle > 0 {
			if err := p.sleep(ctx, p.settle); err != nil {
				return res, err
			}
		}

		for _, idx := range col.Indexes {
			if err := p.create(ctx, &res, "index "+col.ID+"."+idx.Key, func() error {
				return p.client.api.createIndex(db, col.ID, idx)
			}); err != nil {
				return res, fmt.Errorf("create index %s.%s: %w", col.ID, idx.Key, err)
			}
		}
		p.logger.WithField("collection", col.ID).Info("collection provisioned")
	}

	return res, nil
}

// create выполняет один вызов схемы; 409 означает, что объект уже есть.
func (p *Provisioner) create(ctx context.Context, res *ProvisionResult, object string, fn func() error) error {
	_, err := invoke(ctx, p.client, "provision", object, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	switch {
	case err == nil:
		res.Created++
		return nil
	case errors.Is(err, docstore.ErrConflict):
		res.Existed++
		p.logger.WithField("object", object).Debug("already exists")
		return nil
	default:
		return err
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
