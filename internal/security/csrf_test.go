package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newCSRFHandler() http.Handler {
	csrf := CSRF{Header: "X-CSRF-Token"}
	return csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFBlocksMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/pay", nil)
	rr := httptest.NewRecorder()
	newCSRFHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCSRFBlocksMismatchedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/pay", nil)
	req.Header.Set("X-CSRF-Token", "header-token")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "cookie-token"})
	rr := httptest.NewRecorder()
	newCSRFHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCSRFAllowsMatchingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/pay", nil)
	req.Header.Set("X-CSRF-Token", "shared-token")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "shared-token"})
	rr := httptest.NewRecorder()
	newCSRFHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFSkipsSafeMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shipments", nil)
	rr := httptest.NewRecorder()
	newCSRFHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFSkipsBearerRequests(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/pay", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	rr := httptest.NewRecorder()
	newCSRFHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
