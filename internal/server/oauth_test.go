package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	code  string
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.code = code
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func callback(h *OAuthHandler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Delivers Token", func(t *testing.T) {
		exchanger := &fakeExchanger{token: &oauth2.Token{AccessToken: "at-1"}}
		handler := NewOAuthHandler(exchanger, "state-1", "")

		rec := callback(handler, "/callback?state=state-1&code=code-1")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("expected success page in response body")
		}
		if exchanger.code != "code-1" {
			t.Errorf("expected code-1 exchanged, got %q", exchanger.code)
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected result error: %v", result.Error())
		}
		if result.Token == nil || result.Token.AccessToken != "at-1" {
			t.Errorf("unexpected token: %+v", result.Token)
		}
	})

	t.Run("Rejects Bad State", func(t *testing.T) {
		handler := NewOAuthHandler(&fakeExchanger{}, "state-1", "")

		rec := callback(handler, "/callback?state=forged&code=code-1")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "state") {
			t.Errorf("expected state error, got %v", result.Error())
		}
	})

	t.Run("Reports Provider Denial", func(t *testing.T) {
		handler := NewOAuthHandler(&fakeExchanger{}, "state-1", "")

		rec := callback(handler, "/callback?state=state-1&error=access_denied&error_description=user+said+no")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected denial reported, got %v", result.Error())
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		exchanger := &fakeExchanger{err: fmt.Errorf("boom")}
		handler := NewOAuthHandler(exchanger, "state-1", "")

		rec := callback(handler, "/callback?state=state-1&code=code-1")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "exchange") {
			t.Errorf("expected exchange error, got %v", result.Error())
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		exchanger := &fakeExchanger{token: &oauth2.Token{AccessToken: "at-1"}}
		handler := NewOAuthHandler(exchanger, "state-1", "")

		callback(handler, "/callback?state=state-1&code=code-1")
		rec := callback(handler, "/callback?state=state-1&code=code-2")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}

		// Only the first result is delivered.
		result := <-handler.Result()
		if result.Token == nil || result.Token.AccessToken != "at-1" {
			t.Errorf("unexpected token: %+v", result.Token)
		}
		if _, open := <-handler.Result(); open {
			t.Error("result channel should be closed after delivery")
		}
	})

	t.Run("Custom Redirect Path", func(t *testing.T) {
		handler := NewOAuthHandler(&fakeExchanger{}, "state-1", "/oauth/return")

		routes := handler.Routes()
		if len(routes) != 1 || routes[0] != "/oauth/return" {
			t.Errorf("unexpected routes: %v", routes)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method Enforcement", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("Registers Handler Routes", func(t *testing.T) {
		exchanger := &fakeExchanger{token: &oauth2.Token{AccessToken: "at-1"}}
		handler := NewOAuthHandler(exchanger, "state-1", "")
		router := NewBasicRouter()
		router.Handler(handler)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=code-1", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected routed callback, got %d", rec.Code)
		}
	})

	t.Run("Middleware Wraps Handlers", func(t *testing.T) {
		router := NewBasicRouter()
		var order []string
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "first")
				next.ServeHTTP(w, r)
			})
		})
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "second")
				next.ServeHTTP(w, r)
			})
		})
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
		if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "handler" {
			t.Errorf("unexpected middleware order: %v", order)
		}
	})
}
