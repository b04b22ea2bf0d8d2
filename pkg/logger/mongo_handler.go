package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sinkQueueSize = 4096
	sinkBatchSize = 50
	sinkDrainTick = 2 * time.Second
)

// Entry is the document written for each log record. user_id and order_id are
// promoted to top-level fields so checkout trails can be queried per user or order.
type Entry struct {
	Time    time.Time `bson:"time"`
	Level   string    `bson:"level"`
	Msg     string    `bson:"msg"`
	UserID  string    `bson:"user_id,omitempty"`
	OrderID string    `bson:"order_id,omitempty"`
	Attrs   bson.M    `bson:"attrs,omitempty"`
}

// MongoSink is a slog.Handler that batches records into a MongoDB collection
// from a single background goroutine. Handle never blocks; a full queue drops.
type MongoSink struct {
	col    *mongo.Collection
	client *mongo.Client
	queue  chan Entry
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
	attrs  []slog.Attr
	group  string
}

func NewMongoSink(uri, db, collection string) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(4))
	if err != nil {
		return nil, fmt.Errorf("mongo_sink: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo_sink: ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "time", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "time", Value: -1}}},
	})

	s := &MongoSink{
		col:    col,
		client: client,
		queue:  make(chan Entry, sinkQueueSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.drain()
	return s, nil
}

func (s *MongoSink) Enabled(_ context.Context, l slog.Level) bool { return l >= slog.LevelInfo }

func (s *MongoSink) Handle(_ context.Context, r slog.Record) error {
	e := Entry{Time: r.Time, Level: r.Level.String(), Msg: r.Message, Attrs: bson.M{}}

	put := func(a slog.Attr) bool {
		switch a.Key {
		case "user_id":
			e.UserID = a.Value.String()
		case "order_id":
			e.OrderID = a.Value.String()
		default:
			key := a.Key
			if s.group != "" {
				key = s.group + "." + key
			}
			e.Attrs[key] = a.Value.Resolve().String()
		}
		return true
	}
	for _, a := range s.attrs {
		put(a)
	}
	r.Attrs(put)

	select {
	case s.queue <- e:
	default:
	}
	return nil
}

func (s *MongoSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *s
	cp.attrs = append(append([]slog.Attr(nil), s.attrs...), attrs...)
	return &cp
}

func (s *MongoSink) WithGroup(name string) slog.Handler {
	cp := *s
	if cp.group != "" {
		name = cp.group + "." + name
	}
	cp.group = name
	return &cp
}

func (s *MongoSink) drain() {
	defer close(s.exited)

	ticker := time.NewTicker(sinkDrainTick)
	defer ticker.Stop()

	batch := make([]interface{}, 0, sinkBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = s.col.InsertMany(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) >= sinkBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for len(s.queue) > 0 {
				batch = append(batch, <-s.queue)
			}
			flush()
			return
		}
	}
}

// Close writes what is queued and disconnects. Safe to call more than once.
func (s *MongoSink) Close() {
	s.once.Do(func() {
		close(s.done)
		<-s.exited
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.client.Disconnect(ctx)
	})
}

// Fanout sends each record to every handler that accepts its level.
type Fanout struct {
	handlers []slog.Handler
}

func NewFanout(hs ...slog.Handler) *Fanout { return &Fanout{handlers: hs} }

func (f *Fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: hs}
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: hs}
}
