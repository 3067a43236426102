package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultCatalogTTL   = 5 * time.Minute
	defaultCatalogLimit = 100
	catalogKey          = "catalog"
)

// Client calls the REST API. It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	breaker      *Breaker
	catalogTTL   time.Duration
	catalogLimit int
	catalog      *expirable.LRU[string, []Product]

	mu      sync.Mutex
	token   string
	account Account
	cart    Cart
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithCatalogTTL sets how long a fetched catalog snapshot is reused.
func WithCatalogTTL(ttl time.Duration) Option {
	return func(c *Client) { c.catalogTTL = ttl }
}

// WithCatalogLimit sets how many products one snapshot holds.
func WithCatalogLimit(n int) Option {
	return func(c *Client) { c.catalogLimit = n }
}

// WithToken starts the client already signed in.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. http://localhost:4000/api).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		catalogTTL:   defaultCatalogTTL,
		catalogLimit: defaultCatalogLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewBreaker(BreakerConfig{})
	}
	c.catalog = expirable.NewLRU[string, []Product](1, nil, c.catalogTTL)
	return c
}

// Account returns the signed-in account and whether there is one.
func (c *Client) Account() (Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account, c.token != ""
}

type authRequest struct {
	FullName string `json:"fullName"`
	VoicePin string `json:"voicePin"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  Account `json:"user"`
}

// Register creates an account and signs in with it.
func (c *Client) Register(ctx context.Context, name, pin string) (Account, error) {
	return c.authenticate(ctx, "register", "/auth/register", name, pin)
}

// Login signs in with a name and a six-digit voice PIN.
func (c *Client) Login(ctx context.Context, name, pin string) (Account, error) {
	return c.authenticate(ctx, "login", "/auth/voice-login", name, pin)
}

func (c *Client) authenticate(ctx context.Context, op, path, name, pin string) (Account, error) {
	var resp authResponse
	if err := c.do(ctx, op, http.MethodPost, path, authRequest{FullName: name, VoicePin: pin}, &resp, false); err != nil {
		return Account{}, err
	}
	if resp.User.Name == "" {
		resp.User.Name = name
	}

	c.mu.Lock()
	c.token = resp.Token
	c.account = resp.User
	c.cart = Cart{}
	c.mu.Unlock()
	return resp.User, nil
}

// Logout forgets the token, the account and the cart.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.account = Account{}
	c.cart = Cart{}
	c.mu.Unlock()
	return nil
}

// GetBalance returns the current balance.
func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	var b Balance
	if err := c.do(ctx, "balance", http.MethodGet, "/bank/balance", nil, &b, true); err != nil {
		return Balance{}, err
	}
	if b.Currency == "" {
		b.Currency = "TND"
	}
	return b, nil
}

type transferRequest struct {
	ToName string  `json:"toName"`
	Amount float64 `json:"amount"`
}

type transferResponse struct {
	Balance float64 `json:"balance"`
}

// Transfer sends amount to the user called toName and returns the new
// balance. It is never retried.
func (c *Client) Transfer(ctx context.Context, toName string, amount float64) (Balance, error) {
	if strings.TrimSpace(toName) == "" {
		return Balance{}, &Error{Op: "transfer", Status: http.StatusBadRequest, Message: "لازم تقول اسم اللي باش تبعثلو."}
	}
	if amount <= 0 {
		return Balance{}, &Error{Op: "transfer", Status: http.StatusBadRequest, Message: "المبلغ لازم يكون أكثر من صفر."}
	}

	var resp transferResponse
	if err := c.do(ctx, "transfer", http.MethodPost, "/bank/transfer", transferRequest{ToName: toName, Amount: amount}, &resp, true); err != nil {
		return Balance{}, err
	}
	return Balance{Amount: resp.Balance, Currency: "TND"}, nil
}

// RecentTransactions returns at most limit transactions, newest first.
func (c *Client) RecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	var txs []Transaction
	if err := c.do(ctx, "transactions", http.MethodGet, "/bank/transactions", nil, &txs, true); err != nil {
		return nil, err
	}
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

type productsResponse struct {
	Products []Product `json:"products"`
}

// Catalog returns the catalog snapshot, fetching it when the cached one has
// expired.
func (c *Client) Catalog(ctx context.Context) ([]Product, error) {
	if products, ok := c.catalog.Get(catalogKey); ok {
		return products, nil
	}

	q := url.Values{}
	q.Set("page", "1")
	q.Set("limit", strconv.Itoa(c.catalogLimit))

	var resp productsResponse
	if err := c.do(ctx, "catalog", http.MethodGet, "/products?"+q.Encode(), nil, &resp, false); err != nil {
		return nil, err
	}
	c.catalog.Add(catalogKey, resp.Products)
	return resp.Products, nil
}

// ListProducts returns the first limit products of the catalog.
func (c *Client) ListProducts(ctx context.Context, limit int) ([]Product, error) {
	products, err := c.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// FindProduct matches query against the catalog snapshot, best match first.
func (c *Client) FindProduct(ctx context.Context, query string) ([]Match, error) {
	products, err := c.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return MatchProducts(query, products), nil
}

// AddToCart adds qty of p to the local cart, checking the known stock.
func (c *Client) AddToCart(ctx context.Context, p Product, qty int) (Cart, error) {
	if qty < 1 {
		return Cart{}, &Error{Op: "add to cart", Status: http.StatusBadRequest, Message: "الكمية لازم تكون على الأقل واحد."}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := slices.IndexFunc(c.cart.Lines, func(l CartLine) bool { return l.Product.ID == p.ID })
	already := 0
	if idx >= 0 {
		already = c.cart.Lines[idx].Quantity
	}
	if p.Stock <= 0 {
		return Cart{}, &Error{Op: "add to cart", Status: http.StatusConflict, Code: "OUT_OF_STOCK", Message: "المنتوج هذا وفى من المخزن."}
	}
	if already+qty > p.Stock {
		return Cart{}, &Error{
			Op:      "add to cart",
			Status:  http.StatusConflict,
			Code:    "OUT_OF_STOCK",
			Message: fmt.Sprintf("ما بقاش كان %d من %s.", p.Stock-already, p.Name),
		}
	}

	if idx >= 0 {
		c.cart.Lines[idx].Quantity += qty
	} else {
		c.cart.Lines = append(c.cart.Lines, CartLine{Product: p, Quantity: qty})
	}
	return c.cartCopy(), nil
}

// Cart returns a copy of the cart.
func (c *Client) Cart(ctx context.Context) (Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartCopy(), nil
}

// EmptyCart removes every line from the cart.
func (c *Client) EmptyCart(ctx context.Context) error {
	c.mu.Lock()
	c.cart = Cart{}
	c.mu.Unlock()
	return nil
}

type checkoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type checkoutRequest struct {
	Items []checkoutItem `json:"items"`
}

// Checkout pays for the cart from the bank balance and clears it. It is
// never retried.
func (c *Client) Checkout(ctx context.Context) (Order, error) {
	c.mu.Lock()
	cart := c.cartCopy()
	c.mu.Unlock()

	if cart.Empty() {
		return Order{}, &Error{Op: "checkout", Status: http.StatusBadRequest, Code: "EMPTY_CART", Message: "السلّة فارغة."}
	}

	req := checkoutRequest{Items: make([]checkoutItem, 0, len(cart.Lines))}
	for _, l := range cart.Lines {
		req.Items = append(req.Items, checkoutItem{ProductID: l.Product.ID, Quantity: l.Quantity})
	}

	var order Order
	if err := c.do(ctx, "checkout", http.MethodPost, "/orders/checkout", req, &order, true); err != nil {
		return Order{}, err
	}

	c.mu.Lock()
	c.cart = Cart{}
	c.mu.Unlock()
	c.catalog.Purge()
	return order, nil
}

func (c *Client) cartCopy() Cart {
	return Cart{Lines: slices.Clone(c.cart.Lines)}
}

type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, auth bool) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if auth && token == "" {
		return fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	if !c.breaker.Allow() {
		return fmt.Errorf("%s: %w", op, ErrCircuitOpen)
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.Failure()
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	// Drain remainder for connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)
	if err != nil {
		c.breaker.Failure()
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode >= 500 {
		c.breaker.Failure()
	} else {
		c.breaker.Success()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(op, resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", op, err)
	}
	return nil
}

func decodeError(op string, status int, body []byte) error {
	apiErr := &Error{Op: op, Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = eb.Message
		var code string
		if json.Unmarshal(eb.Error, &code) == nil {
			apiErr.Code = code
		}
	}

	if apiErr.Message == "" && apiErr.Code != "" && !isErrorCode(apiErr.Code) {
		apiErr.Message = apiErr.Code
		apiErr.Code = ""
	}
	if apiErr.Message == "" {
		apiErr.Message = statusMessage(status)
	}
	return apiErr
}

// isErrorCode reports whether s looks like USER_EXISTS rather than prose.
func isErrorCode(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func statusMessage(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "لازمك تدخل لحسابك قبل."
	case status == http.StatusNotFound:
		return "ما لقيتش اللي طلبتو."
	case status >= 500:
		return "صار مشكل في السيرفر."
	default:
		return "الطلب ما تقبلش."
	}
}
