package persist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shashiranjanraj/cartsync/internal/fsdoc"
	"github.com/shashiranjanraj/cartsync/pkg/logger"
)

// CartsCollection holds one document per user, keyed by user id.
const CartsCollection = "carts"

// FirestoreBackend is the primary remote backend. It also implements Watcher
// using Firestore's real-time document listener.
type FirestoreBackend struct {
	client *firestore.Client
}

func NewFirestoreBackend(client *firestore.Client) *FirestoreBackend {
	return &FirestoreBackend{client: client}
}

func (b *FirestoreBackend) Name() string { return "firestore" }
func (b *FirestoreBackend) Kind() Kind   { return KindRemote }

func (b *FirestoreBackend) doc(userID string) *firestore.DocumentRef {
	return b.client.Collection(CartsCollection).Doc(strings.TrimSpace(userID))
}

func (b *FirestoreBackend) Load(ctx context.Context, userID string) (Record, error) {
	snap, err := b.doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return recordFromSnapshot(snap)
}

// Save overwrites the whole document.
func (b *FirestoreBackend) Save(ctx context.Context, userID string, rec Record) error {
	_, err := b.doc(userID).Set(ctx, cartDocFromRecord(rec))
	return err
}

// Watch opens a listener on the user's cart document. The first snapshot
// reflects the current state; later ones follow every remote write.
func (b *FirestoreBackend) Watch(ctx context.Context, userID string) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := b.doc(userID).Snapshots(ctx)

	sub := &listenerSubscription{
		ch:     make(chan Snapshot),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		defer close(sub.ch)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled {
					logger.Warn("persist: firestore listener stopped", "user_id", userID, "error", err)
				}
				return
			}

			var s Snapshot
			if snap.Exists() {
				rec, err := recordFromSnapshot(snap)
				if err != nil {
					logger.Warn("persist: undecodable cart snapshot", "user_id", userID, "error", err)
					continue
				}
				s = Snapshot{Record: rec, Exists: true}
			}

			select {
			case sub.ch <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}

type listenerSubscription struct {
	ch     chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *listenerSubscription) Snapshots() <-chan Snapshot { return s.ch }

func (s *listenerSubscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

type cartDoc struct {
	Items     []fsdoc.Line `firestore:"items"`
	UpdatedAt time.Time    `firestore:"updatedAt"`
	IsActive  bool         `firestore:"isActive"`
}

func recordFromSnapshot(snap *firestore.DocumentSnapshot) (Record, error) {
	var doc cartDoc
	if err := snap.DataTo(&doc); err != nil {
		return Record{}, err
	}
	return Record{Items: fsdoc.ToLines(doc.Items), UpdatedAt: doc.UpdatedAt, IsActive: doc.IsActive}, nil
}

func cartDocFromRecord(rec Record) cartDoc {
	return cartDoc{Items: fsdoc.FromLines(rec.Items), UpdatedAt: rec.UpdatedAt.UTC(), IsActive: rec.IsActive}
}
