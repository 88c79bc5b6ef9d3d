package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/k1networth/servicedesk-lite/internal/auth"
	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
	"github.com/k1networth/servicedesk-lite/internal/shared/requestid"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Log    *slog.Logger
	Store  Store
	Tokens *auth.Tokens

	// HashCost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	HashCost int
}

func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("POST /users", httpx.WithRoute("/users", http.HandlerFunc(h.RegisterUser)))
	mux.Handle("POST /users/login", httpx.WithRoute("/users/login", http.HandlerFunc(h.Login)))
	mux.Handle("GET /users/me", httpx.WithRoute("/users/me", protect(http.HandlerFunc(h.Me))))
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	req.Normalize()

	if err := req.Validate(); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}

	if _, err := h.Store.GetByEmail(r.Context(), req.Email); err == nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "User already exists")
		return
	} else if !errors.Is(err, ErrNotFound) {
		h.internalError(w, r, "user_lookup_failed", err)
		return
	}

	cost := h.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		h.internalError(w, r, "password_hash_failed", err)
		return
	}

	created, err := h.Store.Create(r.Context(), User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "User already exists")
			return
		}
		h.internalError(w, r, "user_create_failed", err)
		return
	}

	h.writeAuth(w, r, http.StatusCreated, created)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := h.Store.GetByEmail(r.Context(), NormalizeEmail(req.Email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.internalError(w, r, "user_lookup_failed", err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "Invalid credentials")
		return
	}

	h.writeAuth(w, r, http.StatusOK, u)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.UserID(r.Context())

	u, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "User not found")
			return
		}
		h.internalError(w, r, "user_get_failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}{u.ID, u.Name, u.Email})
}

func (h *Handler) writeAuth(w http.ResponseWriter, r *http.Request, status int, u User) {
	token, err := h.Tokens.Issue(u.ID)
	if err != nil {
		h.internalError(w, r, "token_issue_failed", err)
		return
	}
	httpx.WriteJSON(w, status, AuthResponse{ID: u.ID, Name: u.Name, Email: u.Email, Token: token})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.Log.Error(msg,
		slog.String("request_id", requestid.Get(r.Context())),
		slog.String("err", err.Error()),
	)
	httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "internal error")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeValidation, "invalid json")
		return false
	}
	return true
}
