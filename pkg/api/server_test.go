package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/veillabs/veilbook/pkg/book"
	"github.com/veillabs/veilbook/pkg/confidential"
)

func newTestServer(t *testing.T, withKeys bool) (*Server, *book.Book) {
	t.Helper()
	svc, err := confidential.NewECIESService(t.TempDir())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if withKeys {
		if err := svc.Generate(); err != nil {
			t.Fatalf("generate: %v", err)
		}
	}
	b := book.New(svc, book.WithLogger(zap.NewNop().Sugar()))
	return NewServer(b, svc, nil, zap.NewNop().Sugar()), b
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler([]string{"*"}).ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSubmitAndGetOrders(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := doJSON(t, s, "POST", "/orders", OrderRequest{Price: 100, Quantity: 5, Side: "sell", Owner: "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[SubmitResponse](t, rec)
	if !resp.Success || resp.ID != 1 || resp.IsEncrypted {
		t.Errorf("response = %+v", resp)
	}

	rec = doJSON(t, s, "GET", "/orders", nil)
	orders := decode[OrdersResponse](t, rec)
	if len(orders.Asks) != 1 || orders.Asks[0].Price != 100 {
		t.Errorf("asks = %+v", orders.Asks)
	}
	if len(orders.Bids) != 0 {
		t.Errorf("bids = %+v", orders.Bids)
	}
}

func TestSubmitInvalidSide(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doJSON(t, s, "POST", "/orders", OrderRequest{Price: 100, Quantity: 5, Side: "hold", Owner: "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Success || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestMarketOrderNoLiquidity(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doJSON(t, s, "POST", "/market-sell", MarketOrderRequest{Quantity: 10, Owner: "bob"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, "GET", "/fills", nil)
	fills := decode[[]book.Fill](t, rec)
	if len(fills) != 0 {
		t.Errorf("fills = %+v, want empty", fills)
	}
}

func TestMarketBuyFills(t *testing.T) {
	s, _ := newTestServer(t, false)

	doJSON(t, s, "POST", "/orders", OrderRequest{Price: 90, Quantity: 3, Side: "sell", Owner: "alice"})
	rec := doJSON(t, s, "POST", "/market-buy", MarketOrderRequest{Quantity: 3, Owner: "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, "GET", "/fills", nil)
	fills := decode[[]book.Fill](t, rec)
	if len(fills) != 1 || fills[0].Price != 90 || fills[0].Quantity != 3 {
		t.Errorf("fills = %+v", fills)
	}
}

func TestConfigToggle(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := doJSON(t, s, "GET", "/config", nil)
	cfg := decode[ConfigResponse](t, rec)
	if cfg.Confidential {
		t.Error("book confidential before enabling")
	}

	rec = doJSON(t, s, "POST", "/config", ConfigRequest{Confidential: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	// Submissions are now sealed and /orders serves the decrypted view.
	rec = doJSON(t, s, "POST", "/orders", OrderRequest{Price: 100, Quantity: 5, Side: "sell", Owner: "alice"})
	resp := decode[SubmitResponse](t, rec)
	if !resp.IsEncrypted {
		t.Error("order not sealed in confidential mode")
	}

	rec = doJSON(t, s, "GET", "/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	orders := decode[OrdersResponse](t, rec)
	if len(orders.Asks) != 1 || orders.Asks[0].Price != 100 || orders.Asks[0].Remaining != 5 {
		t.Errorf("decrypted asks = %+v", orders.Asks)
	}
}

func TestConfigEnableWithoutKeys(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doJSON(t, s, "POST", "/config", ConfigRequest{Confidential: true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateKeysThenEnable(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := doJSON(t, s, "POST", "/generate-keys", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate-keys status = %d, body %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, s, "POST", "/config", ConfigRequest{Confidential: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestReset(t *testing.T) {
	s, b := newTestServer(t, true)

	doJSON(t, s, "POST", "/orders", OrderRequest{Price: 100, Quantity: 5, Side: "sell", Owner: "alice"})
	doJSON(t, s, "POST", "/orders", OrderRequest{Price: 100, Quantity: 5, Side: "buy", Owner: "bob"})

	rec := doJSON(t, s, "POST", "/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	bids, asks := b.Orders()
	if len(bids) != 0 || len(asks) != 0 {
		t.Errorf("book not cleared: %d bids, %d asks", len(bids), len(asks))
	}
	if fills := b.Fills(); len(fills) != 0 {
		t.Errorf("fills not cleared: %d", len(fills))
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := doJSON(t, s, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
