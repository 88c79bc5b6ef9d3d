package ticket_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/k1networth/servicedesk-lite/internal/auth"
	"github.com/k1networth/servicedesk-lite/internal/shared/httpx"
	"github.com/k1networth/servicedesk-lite/internal/ticket"
	"github.com/k1networth/servicedesk-lite/internal/ticket/mocks"
)

const callerID = "7b0f6c1e-0c4e-4f53-9b3c-7d1c2c7a1e01"

func newMockedRouter(t *testing.T) (http.Handler, *mocks.MockStore, *mocks.MockUsers, string) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	users := mocks.NewMockUsers(ctrl)

	log := testLogger()
	tokens := auth.NewTokens("test-secret", time.Hour, "test")
	token, err := tokens.Issue(callerID)
	require.NoError(t, err)

	h := &ticket.Handler{Log: log, Store: store, Users: users}
	router := httpx.NewRouter(log, httpx.RouterConfig{Protect: auth.Middleware(tokens, log)}, h)
	return router, store, users, token
}

func serve(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_StoreFailures(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("should return 500 when caller lookup fails", func(t *testing.T) {
		router, _, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(false, boom)

		rec := serve(router, http.MethodGet, "/tickets", token, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Contains(t, rec.Body.String(), httpx.CodeInternal)
	})

	t.Run("should return 500 when list fails", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().ListByOwner(gomock.Any(), callerID).Return(nil, boom)

		rec := serve(router, http.MethodGet, "/tickets", token, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotContains(t, rec.Body.String(), boom.Error())
	})

	t.Run("should write an empty array when the store returns nil", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().ListByOwner(gomock.Any(), callerID).Return(nil, nil)

		rec := serve(router, http.MethodGet, "/tickets", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("should return 400 when the store returns no record", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, tk ticket.Ticket) (ticket.Ticket, error) {
				require.Equal(t, callerID, tk.Owner)
				require.Equal(t, ticket.StatusNew, tk.Status)
				return ticket.Ticket{}, nil
			})

		rec := serve(router, http.MethodPost, "/tickets", token, `{"product":"iPhone","description":"Screen"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "Invalid Ticket Data")
	})

	t.Run("should not touch the store on invalid input", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

		rec := serve(router, http.MethodPost, "/tickets", token, `{"product":"iPhone"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should return 404 when the ticket vanishes before update", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().Get(gomock.Any(), "t1").Return(ticket.Ticket{ID: "t1", Owner: callerID}, nil)
		store.EXPECT().Update(gomock.Any(), "t1", gomock.Any()).Return(ticket.Ticket{}, ticket.ErrNotFound)

		rec := serve(router, http.MethodPut, "/tickets/t1", token, `{"status":"open"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "Ticket Not Found")
	})

	t.Run("should return 500 when delete fails", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().Get(gomock.Any(), "t1").Return(ticket.Ticket{ID: "t1", Owner: callerID}, nil)
		store.EXPECT().Delete(gomock.Any(), "t1").Return(boom)

		rec := serve(router, http.MethodDelete, "/tickets/t1", token, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("should return 500 when get fails", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().Get(gomock.Any(), "t1").Return(ticket.Ticket{}, boom)

		rec := serve(router, http.MethodGet, "/tickets/t1", token, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("should never call update for a foreign ticket", func(t *testing.T) {
		router, store, users, token := newMockedRouter(t)
		users.EXPECT().Exists(gomock.Any(), callerID).Return(true, nil)
		store.EXPECT().Get(gomock.Any(), "t1").Return(ticket.Ticket{ID: "t1", Owner: "someone-else"}, nil)
		store.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rec := serve(router, http.MethodPut, "/tickets/t1", token, `{"status":"closed"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "Not Authorized")
	})
}
