package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/pkg/bind"
	"github.com/shashiranjanraj/cartsync/pkg/logger"
	"github.com/shashiranjanraj/cartsync/pkg/response"
	"github.com/shashiranjanraj/cartsync/pkg/router"
)

type orderHandler struct {
	ledger order.Ledger
}

// index lists orders newest first. ?user_id= narrows to one customer and
// ?status= to one status.
func (h *orderHandler) index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter order.Status
	if s := q.Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			response.ValidationError(w, map[string]string{"status": "The selected status is invalid."})
			return
		}
		filter = st
	}

	var (
		list []order.Order
		err  error
	)
	if uid := strings.TrimSpace(q.Get("user_id")); uid != "" {
		list, err = h.ledger.ListByUser(r.Context(), uid)
	} else {
		list, err = h.ledger.ListAll(r.Context())
	}
	if err != nil {
		logger.WithCtx(r.Context()).Error("server: list orders", "error", err)
		response.ServerError(w)
		return
	}

	if filter != "" {
		kept := list[:0]
		for _, o := range list {
			if o.Status == filter {
				kept = append(kept, o)
			}
		}
		list = kept
	}
	response.List(w, list)
}

func (h *orderHandler) show(w http.ResponseWriter, r *http.Request) {
	o, err := h.ledger.Get(r.Context(), router.Param(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, o)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,in=pending,confirmed,preparing,ready,delivered,cancelled"`
}

// updateStatus moves an order along the status machine.
func (h *orderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	errs, err := bind.JSON(w, r, &req)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	id := router.Param(r, "id")
	o, err := h.ledger.UpdateStatus(r.Context(), id, order.Status(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger.WithCtx(r.Context()).Info("server: order status updated", "order_id", id, "status", o.Status)
	response.Success(w, o)
}

func (h *orderHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		response.NotFound(w)
	case errors.Is(err, order.ErrInvalidTransition):
		response.Conflict(w, err.Error())
	case errors.Is(err, order.ErrInvalidStatus):
		response.ValidationError(w, map[string]string{"status": err.Error()})
	default:
		logger.WithCtx(r.Context()).Error("server: ledger error", "error", err)
		response.ServerError(w)
	}
}
