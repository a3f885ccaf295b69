package user_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/service/internal/user"
)

func newHandler(t *testing.T) (*user.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return user.NewHandler(user.NewService(user.NewRepository(mock))), mock
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing username", `{"email":"a@b.com"}`, "username is required"},
		{"missing email", `{"username":"alice"}`, "email is required"},
		{"malformed body", `{not json`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := newHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Create(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			assert.NoError(t, mock.ExpectationsWereMet(), "no insert must be attempted")
		})
	}
}

func TestCreateThenList(t *testing.T) {
	h, mock := newHandler(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(createQuery)).WithArgs("a", "b@c.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "created_at"}).
			AddRow(int64(7), "a", "b@c.com", now))

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"username":"a","email":"b@c.com"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.EqualValues(t, 7, created.ID)

	mock.ExpectQuery(regexp.QuoteMeta(listQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "created_at"}).
			AddRow(int64(7), "a", "b@c.com", now))

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, created.ID, users[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBackendFailure(t *testing.T) {
	h, mock := newHandler(t)

	mock.ExpectQuery(regexp.QuoteMeta(listQuery)).
		WillReturnError(assert.AnError)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
