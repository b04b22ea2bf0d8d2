package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shashiranjanraj/cartsync/internal/fsdoc"
)

// OrdersCollection holds one document per order, keyed by order id.
const OrdersCollection = "orders"

// FirestoreLedger is the default ledger.
type FirestoreLedger struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreLedger(client *firestore.Client) *FirestoreLedger {
	return &FirestoreLedger{client: client, now: time.Now}
}

func (l *FirestoreLedger) col() *firestore.CollectionRef {
	return l.client.Collection(OrdersCollection)
}

type orderDoc struct {
	UserID           string       `firestore:"userId"`
	Items            []fsdoc.Line `firestore:"items"`
	Subtotal         float64      `firestore:"subtotal"`
	DeliveryFee      float64      `firestore:"deliveryFee"`
	TotalAmount      float64      `firestore:"totalAmount"`
	Currency         string       `firestore:"currency"`
	DeliveryAddress  string       `firestore:"deliveryAddress"`
	PaymentMethod    string       `firestore:"paymentMethod"`
	PaymentReference string       `firestore:"paymentReference,omitempty"`
	Status           string       `firestore:"status"`
	CreatedAt        time.Time    `firestore:"createdAt"`
	UpdatedAt        time.Time    `firestore:"updatedAt"`
}

// Create fails with ErrDuplicate instead of overwriting an existing order.
func (l *FirestoreLedger) Create(ctx context.Context, o *Order) (err error) {
	defer func() { observe("firestore", "create", err) }()

	prepareCreate(o, l.now())
	if _, err := l.col().Doc(o.ID).Create(ctx, docFromOrder(*o)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrDuplicate, o.ID)
		}
		return fmt.Errorf("order: create %s: %w", o.ID, err)
	}
	return nil
}

func (l *FirestoreLedger) Get(ctx context.Context, id string) (o Order, err error) {
	defer func() { observe("firestore", "get", err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return Order{}, ErrNotFound
	}
	snap, err := l.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: get %s: %w", id, err)
	}
	return orderFromSnapshot(snap)
}

// ListByUser needs a composite index on (userId, createdAt desc).
func (l *FirestoreLedger) ListByUser(ctx context.Context, userID string) (out []Order, err error) {
	defer func() { observe("firestore", "list_by_user", err) }()
	q := l.col().Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	return collect(q.Documents(ctx))
}

func (l *FirestoreLedger) ListAll(ctx context.Context) (out []Order, err error) {
	defer func() { observe("firestore", "list_all", err) }()
	return collect(l.col().OrderBy("createdAt", firestore.Desc).Documents(ctx))
}

// UpdateStatus reads and writes inside one transaction so concurrent
// updates cannot skip a step of the status machine.
func (l *FirestoreLedger) UpdateStatus(ctx context.Context, id string, to Status) (o Order, err error) {
	defer func() { observe("firestore", "update_status", err) }()

	ref := l.col().Doc(strings.TrimSpace(id))
	err = l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		cur, err := orderFromSnapshot(snap)
		if err != nil {
			return err
		}
		if err := checkTransition(cur.Status, to); err != nil {
			return err
		}
		now := l.now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		cur.Status, cur.UpdatedAt = to, now
		o = cur
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrInvalidStatus) {
			return Order{}, err
		}
		return Order{}, fmt.Errorf("order: update %s: %w", id, err)
	}
	return o, nil
}

func collect(it *firestore.DocumentIterator) ([]Order, error) {
	defer it.Stop()
	var out []Order
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("order: list: %w", err)
		}
		o, err := orderFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
}

func orderFromSnapshot(snap *firestore.DocumentSnapshot) (Order, error) {
	var d orderDoc
	if err := snap.DataTo(&d); err != nil {
		return Order{}, fmt.Errorf("order: decode %s: %w", snap.Ref.ID, err)
	}
	return Order{
		ID:               snap.Ref.ID,
		UserID:           d.UserID,
		Items:            fsdoc.ToLines(d.Items),
		Subtotal:         fsdoc.Money(d.Subtotal),
		DeliveryFee:      fsdoc.Money(d.DeliveryFee),
		TotalAmount:      fsdoc.Money(d.TotalAmount),
		Currency:         d.Currency,
		DeliveryAddress:  d.DeliveryAddress,
		PaymentMethod:    PaymentMethod(d.PaymentMethod),
		PaymentReference: d.PaymentReference,
		Status:           Status(d.Status),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}, nil
}

func docFromOrder(o Order) orderDoc {
	return orderDoc{
		UserID:           o.UserID,
		Items:            fsdoc.FromLines(o.Items),
		Subtotal:         o.Subtotal.InexactFloat64(),
		DeliveryFee:      o.DeliveryFee.InexactFloat64(),
		TotalAmount:      o.TotalAmount.InexactFloat64(),
		Currency:         o.Currency,
		DeliveryAddress:  o.DeliveryAddress,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentReference: o.PaymentReference,
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}
