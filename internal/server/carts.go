package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/persist"
	"github.com/shashiranjanraj/cartsync/pkg/logger"
	"github.com/shashiranjanraj/cartsync/pkg/response"
	"github.com/shashiranjanraj/cartsync/pkg/router"
	"github.com/shashiranjanraj/cartsync/pkg/sse"
)

type cartHandler struct {
	carts CartLoader
}

type cartView struct {
	UserID    string          `json:"userId"`
	Items     []cart.Line     `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt time.Time       `json:"updatedAt"`
	IsActive  bool            `json:"isActive"`
	Source    string          `json:"source"`
}

// show returns the stored cart of a user from the first backend that has it.
func (h *cartHandler) show(w http.ResponseWriter, r *http.Request) {
	uid := router.Param(r, "userId")
	rec, attempts, err := h.carts.Load(r.Context(), uid)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		response.NotFound(w)
		return
	case err != nil:
		logger.WithCtx(r.Context()).Warn("server: cart unavailable", "user_id", uid, "error", err)
		response.Error(w, http.StatusServiceUnavailable, "Cart storage unavailable")
		return
	}

	items := cart.Priced(rec.Items)
	response.Success(w, cartView{
		UserID:    uid,
		Items:     items,
		ItemCount: cart.ItemCount(items),
		Subtotal:  cart.Subtotal(items),
		UpdatedAt: rec.UpdatedAt,
		IsActive:  rec.IsActive,
		Source:    attempts[len(attempts)-1].Backend,
	})
}

const heartbeatInterval = 15 * time.Second

type cartStream struct {
	watcher   persist.Watcher
	heartbeat time.Duration
}

// serve streams a "cart" event each time the user's remote cart changes,
// starting with its current state. A deleted cart is sent as empty.
func (h *cartStream) serve(w http.ResponseWriter, r *http.Request) {
	uid := router.Param(r, "userId")
	log := logger.WithCtx(r.Context()).With("user_id", uid)

	sub, err := h.watcher.Watch(r.Context(), uid)
	if err != nil {
		log.Warn("server: cart watch failed", "error", err)
		response.Error(w, http.StatusServiceUnavailable, "Live cart updates unavailable")
		return
	}
	defer sub.Close()

	stream, err := sse.New(w, r)
	if err != nil {
		log.Error("server: cart stream", "error", err)
		return
	}
	defer stream.Close()

	ping := time.NewTicker(h.heartbeat)
	defer ping.Stop()
	snaps := sub.Snapshots()
	for {
		select {
		case <-stream.Done():
			return
		case <-ping.C:
			if err := stream.Comment("ping"); err != nil {
				return
			}
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if err := stream.Send("cart", snapshotView(uid, snap)); err != nil {
				log.Debug("server: cart stream closed", "error", err)
				return
			}
		}
	}
}

func snapshotView(uid string, snap persist.Snapshot) cartView {
	if !snap.Exists {
		return cartView{UserID: uid, Items: []cart.Line{}, Subtotal: decimal.Zero, Source: "live"}
	}
	items := cart.Priced(snap.Record.Items)
	return cartView{
		UserID:    uid,
		Items:     items,
		ItemCount: cart.ItemCount(items),
		Subtotal:  cart.Subtotal(items),
		UpdatedAt: snap.Record.UpdatedAt,
		IsActive:  snap.Record.IsActive,
		Source:    "live",
	}
}
