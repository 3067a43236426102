package backend

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAPI struct {
	catalogHits atomic.Int32
	checkouts   atomic.Int32
	lastItems   []checkoutItem
	balance     float64
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "UNAUTHORIZED"})
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("POST /auth/voice-login", func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode login: %v", err)
		}
		if req.VoicePin != "123456" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "INVALID_PIN", "message": "الـPIN غالط"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"token":   "tok-1",
			"user":    map[string]string{"userId": "u1", "name": req.FullName},
		})
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "USER_EXISTS", "message": "هذا اليوزر موجود قبل"})
	})
	mux.HandleFunc("GET /bank/balance", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"balance": f.balance, "currency": "TND"})
	}))
	mux.HandleFunc("POST /bank/transfer", authed(func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Amount > f.balance {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Rassid ghayr kafi (Insufficient funds)"})
			return
		}
		f.balance -= req.Amount
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "balance": f.balance})
	}))
	mux.HandleFunc("GET /bank/transactions", authed(func(w http.ResponseWriter, r *http.Request) {
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		writeJSON(w, http.StatusOK, []Transaction{
			{ID: "t1", Type: TxTransferOut, Amount: -10, CreatedAt: base},
			{ID: "t3", Type: TxCheckout, Amount: -30, CreatedAt: base.Add(2 * time.Hour)},
			{ID: "t2", Type: TxTransferIn, Amount: 20, CreatedAt: base.Add(time.Hour)},
			{ID: "t0", Type: TxTopUp, Amount: 200, CreatedAt: base.Add(-time.Hour)},
		})
	}))
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		f.catalogHits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"products": []Product{
			{ID: "p1", Name: "زيت زيتون", Price: 18.5, Stock: 10},
			{ID: "p2", Name: "حليب", Price: 1.35, Stock: 2},
			{ID: "p3", Name: "زيت نباتي", Price: 6, Stock: 5},
		}})
	})
	mux.HandleFunc("POST /orders/checkout", authed(func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastItems = req.Items
		f.checkouts.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "orderId": "o1", "newBalance": 150.0})
	}))
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{balance: 200}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), api
}

func TestLoginStoresToken(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := t.Context()

	if _, err := c.GetBalance(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("GetBalance before login error = %v, want ErrNotAuthenticated", err)
	}

	acct, err := c.Login(ctx, "سامي", "123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if acct.Name != "سامي" {
		t.Errorf("account name = %q, want %q", acct.Name, "سامي")
	}
	if _, ok := c.Account(); !ok {
		t.Error("Account() reports signed out after login")
	}

	bal, err := c.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Amount != 200 || bal.Currency != "TND" {
		t.Errorf("balance = %+v, want 200 TND", bal)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok := c.Account(); ok {
		t.Error("Account() reports signed in after logout")
	}
}

func TestServerMessages(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := t.Context()

	_, err := c.Login(ctx, "سامي", "000000")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Login error = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "INVALID_PIN" {
		t.Errorf("error = %+v, want 401 INVALID_PIN", apiErr)
	}
	if Message(err) != "الـPIN غالط" {
		t.Errorf("Message = %q, want server message", Message(err))
	}

	_, err = c.Register(ctx, "سامي", "123456")
	if Message(err) != "هذا اليوزر موجود قبل" {
		t.Errorf("register Message = %q, want server message", Message(err))
	}
}

func TestTransfer(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := t.Context()
	if _, err := c.Login(ctx, "سامي", "123456"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	bal, err := c.Transfer(ctx, "أمين", 50)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if bal.Amount != 150 {
		t.Errorf("balance after transfer = %v, want 150", bal.Amount)
	}

	_, err = c.Transfer(ctx, "أمين", 1000)
	if got := Message(err); got != "Rassid ghayr kafi (Insufficient funds)" {
		t.Errorf("insufficient funds message = %q", got)
	}

	if _, err := c.Transfer(ctx, "أمين", 0); Message(err) == "" {
		t.Error("zero amount accepted")
	}
	if _, err := c.Transfer(ctx, " ", 5); Message(err) == "" {
		t.Error("empty recipient accepted")
	}
}

func TestRecentTransactionsNewestFirst(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := t.Context()
	if _, err := c.Login(ctx, "سامي", "123456"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	txs, err := c.RecentTransactions(ctx, 3)
	if err != nil {
		t.Fatalf("RecentTransactions: %v", err)
	}
	var ids []string
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	want := []string{"t3", "t2", "t1"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
}

func TestCatalogCached(t *testing.T) {
	c, api := newTestClient(t)
	ctx := t.Context()

	for range 3 {
		if _, err := c.ListProducts(ctx, 2); err != nil {
			t.Fatalf("ListProducts: %v", err)
		}
	}
	if got := api.catalogHits.Load(); got != 1 {
		t.Errorf("catalog fetched %d times, want 1", got)
	}

	matches, err := c.FindProduct(ctx, "لوّج على زيت")
	if err != nil {
		t.Fatalf("FindProduct: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
}

func TestCartAndCheckout(t *testing.T) {
	c, api := newTestClient(t)
	ctx := t.Context()
	if _, err := c.Login(ctx, "سامي", "123456"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := c.Checkout(ctx); Message(err) != "السلّة فارغة." {
		t.Errorf("empty checkout message = %q", Message(err))
	}

	milk := Product{ID: "p2", Name: "حليب", Price: 1.35, Stock: 2}
	if _, err := c.AddToCart(ctx, milk, 2); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if _, err := c.AddToCart(ctx, milk, 1); err == nil {
		t.Error("AddToCart beyond stock succeeded")
	}
	oil := Product{ID: "p1", Name: "زيت زيتون", Price: 18.5, Stock: 10}
	cart, err := c.AddToCart(ctx, oil, 1)
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if cart.Count() != 3 {
		t.Errorf("cart count = %d, want 3", cart.Count())
	}
	if got, want := cart.Total(), 21.2; math.Abs(got-want) > 1e-9 {
		t.Errorf("cart total = %v, want %v", got, want)
	}

	order, err := c.Checkout(ctx)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if order.ID != "o1" || order.NewBalance != 150 {
		t.Errorf("order = %+v", order)
	}
	if api.checkouts.Load() != 1 || len(api.lastItems) != 2 {
		t.Errorf("checkout calls = %d items = %v", api.checkouts.Load(), api.lastItems)
	}
	if cart, _ := c.Cart(ctx); !cart.Empty() {
		t.Error("cart not cleared after checkout")
	}
}

func TestBreakerTripsOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBreaker(NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})))
	ctx := t.Context()

	for range 2 {
		if _, err := c.ListProducts(ctx, 1); Message(err) != "صار مشكل في السيرفر." {
			t.Errorf("5xx message = %q", Message(err))
		}
	}
	_, err := c.ListProducts(ctx, 1)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("third call error = %v, want ErrCircuitOpen", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hit %d times, want 2", hits.Load())
	}
}
