package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/pkg/migration"
)

// SQLLedger stores orders in a relational table through gorm. Any driver
// supported by pkg/database works.
type SQLLedger struct {
	db  *gorm.DB
	now func() time.Time
}

type SQLOption func(*SQLLedger)

func WithSQLClock(now func() time.Time) SQLOption {
	return func(l *SQLLedger) { l.now = now }
}

func NewSQLLedger(db *gorm.DB, opts ...SQLOption) *SQLLedger {
	l := &SQLLedger{db: db, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

type orderRow struct {
	ID               string          `gorm:"primaryKey;size:64"`
	UserID           string          `gorm:"size:128;not null;index:idx_orders_user_created,priority:1"`
	Items            []cart.Line     `gorm:"serializer:json;not null"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DeliveryFee      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency         string          `gorm:"size:3;not null"`
	DeliveryAddress  string          `gorm:"size:512;not null"`
	PaymentMethod    string          `gorm:"size:32;not null"`
	PaymentReference string          `gorm:"size:128"`
	Status           string          `gorm:"size:16;not null;index"`
	CreatedAt        time.Time       `gorm:"not null;index:idx_orders_user_created,priority:2;index"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

func (orderRow) TableName() string { return "orders" }

// Migrations returns the schema steps for the orders table.
func Migrations() []migration.Step {
	return []migration.Step{{
		Name: "20260301000000_create_orders_table",
		Up:   func(tx *gorm.DB) error { return tx.AutoMigrate(&orderRow{}) },
		Down: func(tx *gorm.DB) error { return tx.Migrator().DropTable("orders") },
	}}
}

func (l *SQLLedger) Create(ctx context.Context, o *Order) (err error) {
	defer func() { observe("sql", "create", err) }()

	prepareCreate(o, l.now())
	row := rowFromOrder(*o)
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, o.ID)
		}
		return fmt.Errorf("order: create %s: %w", o.ID, err)
	}
	return nil
}

func (l *SQLLedger) Get(ctx context.Context, id string) (o Order, err error) {
	defer func() { observe("sql", "get", err) }()
	return l.get(l.db.WithContext(ctx), id)
}

func (l *SQLLedger) get(db *gorm.DB, id string) (Order, error) {
	var row orderRow
	if err := db.Where("id = ?", strings.TrimSpace(id)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: get %s: %w", id, err)
	}
	return row.toOrder(), nil
}

func (l *SQLLedger) ListByUser(ctx context.Context, userID string) (out []Order, err error) {
	defer func() { observe("sql", "list_by_user", err) }()
	return l.list(l.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (l *SQLLedger) ListAll(ctx context.Context) (out []Order, err error) {
	defer func() { observe("sql", "list_all", err) }()
	return l.list(l.db.WithContext(ctx))
}

func (l *SQLLedger) list(q *gorm.DB) ([]Order, error) {
	var rows []orderRow
	if err := q.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	out := make([]Order, len(rows))
	for i, r := range rows {
		out[i] = r.toOrder()
	}
	return out, nil
}

func (l *SQLLedger) UpdateStatus(ctx context.Context, id string, status Status) (o Order, err error) {
	defer func() { observe("sql", "update_status", err) }()

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := l.get(tx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(cur.Status, status); err != nil {
			return err
		}
		now := l.now().UTC()
		res := tx.Model(&orderRow{}).
			Where("id = ? AND status = ?", cur.ID, string(cur.Status)).
			Updates(map[string]interface{}{"status": string(status), "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("order: update %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
		}
		cur.Status, cur.UpdatedAt = status, now
		o = cur
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func rowFromOrder(o Order) orderRow {
	return orderRow{
		ID:               o.ID,
		UserID:           o.UserID,
		Items:            o.Items,
		Subtotal:         o.Subtotal,
		DeliveryFee:      o.DeliveryFee,
		TotalAmount:      o.TotalAmount,
		Currency:         o.Currency,
		DeliveryAddress:  o.DeliveryAddress,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentReference: o.PaymentReference,
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func (r orderRow) toOrder() Order {
	return Order{
		ID:               r.ID,
		UserID:           r.UserID,
		Items:            r.Items,
		Subtotal:         r.Subtotal,
		DeliveryFee:      r.DeliveryFee,
		TotalAmount:      r.TotalAmount,
		Currency:         r.Currency,
		DeliveryAddress:  r.DeliveryAddress,
		PaymentMethod:    PaymentMethod(r.PaymentMethod),
		PaymentReference: r.PaymentReference,
		Status:           Status(r.Status),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
