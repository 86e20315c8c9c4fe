package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/services"
)

func testExpense(desc string, cents int64) core.Transaction {
	return core.Transaction{Description: desc, Amount: core.Money{Cents: cents}, Kind: core.Expense}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func newTestServer(t *testing.T) (*Server, *ledger.Ledger) {
	t.Helper()
	book := ledger.New()
	srv := NewServer(":0", book, book, services.NewOverviewBuilder(book, book), Options{})
	t.Cleanup(func() {
		srv.limiter.Stop()
		close(srv.stopCacheSweep)
	})
	return srv, book
}

func postForm(srv *Server, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/")
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Record Transaction") {
		t.Fatalf("index body missing heading")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := get(srv, path); rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := get(srv, "/no-such-page"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path expected 404, got %d", rr.Code)
	}
}

func TestCreateTransactionValidationAndSuccess(t *testing.T) {
	srv, book := newTestServer(t)

	// Wrong method
	if rr := get(srv, "/transactions"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Invalid amount
	if rr := postForm(srv, "/transactions", "description=x&amount=abc&kind=expense"); rr.Code != 422 {
		t.Fatalf("invalid amount expected 422, got %d", rr.Code)
	}

	// Missing description
	if rr := postForm(srv, "/transactions", "description=&amount=1.23&kind=expense"); rr.Code != 422 {
		t.Fatalf("missing description expected 422, got %d", rr.Code)
	}

	// Unknown kind
	if rr := postForm(srv, "/transactions", "description=x&amount=1.23&kind=transfer"); rr.Code != 422 {
		t.Fatalf("unknown kind expected 422, got %d", rr.Code)
	}

	// Validation failures must not have touched the ledger
	if got := book.List(context.Background()); len(got) != 0 {
		t.Fatalf("ledger should be empty after failed creates, got %d", len(got))
	}

	// Success
	rr := postForm(srv, "/transactions", "description=food&amount=1.23&kind=expense")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{"transaction:created", "overview:refresh", "show-notification"} {
		if !strings.Contains(trigger, want) {
			t.Fatalf("HX-Trigger %q missing %q", trigger, want)
		}
	}
	if got := book.List(context.Background()); len(got) != 1 || got[0].Description != "food" {
		t.Fatalf("unexpected ledger state after create: %v", got)
	}
}

func TestCreateTransactionWithExplicitDate(t *testing.T) {
	srv, book := newTestServer(t)

	rr := postForm(srv, "/transactions", "description=rent&amount=500&kind=expense&day=1&month=2&year=2025")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	got := book.List(context.Background())
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got))
	}
	if got[0].Date.Year() != 2025 || got[0].Date.Month() != 2 || got[0].Date.Day() != 1 {
		t.Fatalf("unexpected date: %v", got[0].Date)
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv, book := newTestServer(t)

	tx, err := book.Add(context.Background(), testExpense("food", 1000))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Missing id
	if rr := postForm(srv, "/transactions/delete", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing id expected 400, got %d", rr.Code)
	}

	// Unknown id is reported, not a server error
	if rr := postForm(srv, "/transactions/delete", "id=9999"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id expected 404, got %d", rr.Code)
	}
	if got := book.List(context.Background()); len(got) != 1 {
		t.Fatalf("unknown-id delete must be a no-op, got %d transactions", len(got))
	}

	// Existing id
	rr := postForm(srv, "/transactions/delete", "id="+itoa(tx.ID))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "transaction:deleted") {
		t.Fatalf("expected transaction:deleted trigger")
	}
	if got := book.List(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty ledger after delete, got %d", len(got))
	}
}

func TestDeleteTransactionJSONBody(t *testing.T) {
	srv, book := newTestServer(t)

	tx, err := book.Add(context.Background(), testExpense("food", 1000))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/transactions/delete", strings.NewReader(`{"id": `+itoa(tx.ID)+`}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := book.List(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(got))
	}
}

func TestOverviewReflectsMutations(t *testing.T) {
	srv, book := newTestServer(t)

	rr := get(srv, "/ui/overview")
	if rr.Code != 200 {
		t.Fatalf("overview status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No transactions recorded") {
		t.Fatalf("empty overview should show placeholder: %s", rr.Body.String())
	}

	if rr := postForm(srv, "/transactions", "description=Salary&amount=1000&kind=income"); rr.Code != 200 {
		t.Fatalf("create income: %d", rr.Code)
	}
	if rr := postForm(srv, "/transactions", "description=food&amount=200&kind=expense"); rr.Code != 200 {
		t.Fatalf("create expense: %d", rr.Code)
	}

	rr = get(srv, "/ui/overview")
	body := rr.Body.String()
	for _, want := range []string{"1000.00", "200.00", "800.00", "food"} {
		if !strings.Contains(body, want) {
			t.Fatalf("overview missing %q after mutations: %s", want, body)
		}
	}

	// Deleting must invalidate the cached overview.
	tx := book.List(context.Background())[1]
	if rr := postForm(srv, "/transactions/delete", "id="+itoa(tx.ID)); rr.Code != 200 {
		t.Fatalf("delete: %d", rr.Code)
	}
	rr = get(srv, "/ui/overview")
	if strings.Contains(rr.Body.String(), "food") {
		t.Fatalf("overview still shows deleted transaction: %s", rr.Body.String())
	}
}

func TestOverviewCacheServesSameBytes(t *testing.T) {
	srv, _ := newTestServer(t)

	if rr := postForm(srv, "/transactions", "description=food&amount=5&kind=expense"); rr.Code != 200 {
		t.Fatalf("create: %d", rr.Code)
	}
	first := get(srv, "/ui/overview").Body.String()
	second := get(srv, "/ui/overview").Body.String()
	if first != second {
		t.Fatalf("cached overview should be identical across reads without mutations")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing X-Content-Type-Options header")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing X-Frame-Options header")
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	book := ledger.New()
	srv := NewServer(":0", book, book, services.NewOverviewBuilder(book, book), Options{
		RateLimitPerMinute: 2,
		OverviewCacheSize:  4,
		OverviewCacheTTL:   DefaultOptions().OverviewCacheTTL,
	})
	t.Cleanup(func() {
		srv.limiter.Stop()
		close(srv.stopCacheSweep)
	})

	for i := 0; i < 2; i++ {
		if rr := postForm(srv, "/transactions", "description=x&amount=1&kind=expense"); rr.Code != 200 {
			t.Fatalf("request %d expected 200, got %d", i+1, rr.Code)
		}
	}
	if rr := postForm(srv, "/transactions", "description=x&amount=1&kind=expense"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rr.Code)
	}
	// GETs are not rate limited
	if rr := get(srv, "/ui/overview"); rr.Code != 200 {
		t.Fatalf("GET should not be rate limited, got %d", rr.Code)
	}
}
