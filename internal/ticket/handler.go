package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/k1networth/servicedesk-lite/internal/auth"
	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
	"github.com/k1networth/servicedesk-lite/internal/shared/requestid"
)

const maxBodyBytes = 1 << 20

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -source=handler.go -destination=mocks/users_mock.go -package=mocks

// Users tells whether the caller behind a token still has a user record.
type Users interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	Log   *slog.Logger
	Store Store
	Users Users

	// StrictStatus rejects updates that set a status outside new/open/closed.
	StrictStatus bool
}

// callerHandler serves a request on behalf of an already resolved caller.
type callerHandler func(w http.ResponseWriter, r *http.Request, caller string)

func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	handle := func(pattern, route string, next callerHandler) {
		mux.Handle(pattern, httpx.WithRoute(route, protect(h.withCaller(next))))
	}

	handle("GET /tickets", "/tickets", h.ListTickets)
	handle("POST /tickets", "/tickets", h.CreateTicket)
	handle("GET /tickets/{id}", "/tickets/{id}", h.GetTicket)
	handle("PUT /tickets/{id}", "/tickets/{id}", h.UpdateTicket)
	handle("DELETE /tickets/{id}", "/tickets/{id}", h.DeleteTicket)
}

// withCaller resolves the authenticated caller to an existing user before
// any ticket operation runs.
func (h *Handler) withCaller(next callerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.UserID(r.Context())
		if ok {
			exists, err := h.Users.Exists(r.Context(), caller)
			if err != nil {
				h.internalError(w, r, "caller_resolve_failed", err)
				return
			}
			ok = exists
		}
		if !ok {
			httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "User not found")
			return
		}

		next(w, r, caller)
	})
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request, caller string) {
	tickets, err := h.Store.ListByOwner(r.Context(), caller)
	if err != nil {
		h.internalError(w, r, "ticket_list_failed", err)
		return
	}
	if tickets == nil {
		tickets = []Ticket{}
	}

	httpx.WriteJSON(w, http.StatusOK, tickets)
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request, caller string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "invalid json")
		return
	}

	if err := req.Validate(); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	created, err := h.Store.Create(r.Context(), Ticket{
		Owner:       caller,
		Product:     strings.TrimSpace(req.Product),
		Description: strings.TrimSpace(req.Description),
		Status:      StatusNew,
	})
	if err != nil {
		h.internalError(w, r, "ticket_create_failed", err)
		return
	}
	if created.ID == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid Ticket Data")
		return
	}

	h.Log.Info("ticket_created", slog.String("ticket_id", created.ID), slog.String("owner", caller))
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request, caller string) {
	t, ok := h.ownedTicket(w, r, caller)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request, caller string) {
	t, ok := h.ownedTicket(w, r, caller)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var p Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "invalid json")
		return
	}

	if h.StrictStatus {
		if err := p.ValidateStatus(); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, err.Error())
			return
		}
	}

	updated, err := h.Store.Update(r.Context(), t.ID, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeNotFound(w, r)
			return
		}
		h.internalError(w, r, "ticket_update_failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request, caller string) {
	t, ok := h.ownedTicket(w, r, caller)
	if !ok {
		return
	}

	if err := h.Store.Delete(r.Context(), t.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeNotFound(w, r)
			return
		}
		h.internalError(w, r, "ticket_delete_failed", err)
		return
	}

	h.Log.Info("ticket_deleted", slog.String("ticket_id", t.ID), slog.String("owner", caller))
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ownedTicket loads the {id} ticket and checks it belongs to caller. On failure
// the response has been written and ok is false.
func (h *Handler) ownedTicket(w http.ResponseWriter, r *http.Request, caller string) (Ticket, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeNotFound(w, r)
		return Ticket{}, false
	}

	t, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeNotFound(w, r)
			return Ticket{}, false
		}
		h.internalError(w, r, "ticket_get_failed", err)
		return Ticket{}, false
	}

	// 401 rather than 403 is what existing clients expect here.
	if t.Owner != caller {
		httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "Not Authorized")
		return Ticket{}, false
	}
	return t, true
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, r, http.StatusNotFound, httpx.CodeNotFound, "Ticket Not Found")
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.Log.Error(msg,
		slog.String("request_id", requestid.Get(r.Context())),
		slog.String("err", err.Error()),
	)
	httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "internal error")
}
