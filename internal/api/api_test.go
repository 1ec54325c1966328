package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dadchain/internal/config"
	"dadchain/internal/database"
	"dadchain/internal/models"
	"dadchain/internal/node"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

type harness struct {
	t    *testing.T
	node *node.Node
	srv  *Server
}

func setup(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	n, err := node.New(context.Background(), node.Config{
		Owner:         owner,
		TokenName:     "Mock USDC",
		TokenSymbol:   "mUSDC",
		TokenDecimals: 6,
		BadgeBaseURI:  "ipfs://badges/",
	}, database.NewMemoryLog())
	require.NoError(t, err)

	srv := NewServer(config.HTTPConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		AdminRoutes:    true,
	}, n, nil)

	return &harness{t: t, node: n, srv: srv}
}

func (h *harness) do(method, path string, from *common.Address, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if from != nil {
		req.Header.Set(AccountHeader, from.Hex())
	}

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	require.Equal(t, code, resp.Code)
	return resp
}

func TestHealth(t *testing.T) {
	h := setup(t)
	rec := h.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSubmitAndReadJoke(t *testing.T) {
	h := setup(t)

	rec := h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{
		"content":  "What do you call a fake noodle? An impasta.",
		"imageURI": "ipfs://noodle",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"jokeId":1`)
	require.Contains(t, rec.Body.String(), `"JokeSubmitted"`)

	rec = h.do(http.MethodGet, "/api/jokes/1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	joke := decode[models.Joke](t, rec)
	require.Equal(t, alice, joke.Creator)
	require.Equal(t, "ipfs://noodle", joke.ImageURI)
	require.Equal(t, "0", joke.TipAmount.String())

	stats := decode[models.Stats](t, h.do(http.MethodGet, "/api/stats", nil, nil))
	require.Equal(t, uint64(1), stats.TotalJokes)
	require.Equal(t, uint64(1), stats.TotalUsers)
}

func TestWritesRequireAccount(t *testing.T) {
	h := setup(t)

	rec := h.do(http.MethodPost, "/api/jokes", nil, map[string]string{"content": "x"})
	requireError(t, rec, http.StatusUnauthorized, CodeMissingAccount)

	req := httptest.NewRequest(http.MethodPost, "/api/jokes", bytes.NewBufferString(`{"content":"x"}`))
	req.Header.Set(AccountHeader, "not-an-address")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	requireError(t, rec, http.StatusBadRequest, CodeInvalidAddress)
}

func TestErrorMapping(t *testing.T) {
	h := setup(t)
	h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "mine"})

	resp := requireError(t, h.do(http.MethodGet, "/api/jokes/42", nil, nil), http.StatusNotFound, CodeNotFound)
	require.Equal(t, "joke does not exist", resp.Error)

	requireError(t, h.do(http.MethodPost, "/api/jokes/42/like", &bob, nil), http.StatusNotFound, CodeNotFound)
	requireError(t, h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": ""}), http.StatusBadRequest, CodeValidation)

	resp = requireError(t, h.do(http.MethodPost, "/api/jokes/1/like", &alice, nil), http.StatusConflict, CodeRuleViolation)
	require.Equal(t, "cannot like your own joke", resp.Error)

	requireError(t, h.do(http.MethodPost, "/api/token/mint", &alice, map[string]any{"to": alice, "amount": "5"}), http.StatusForbidden, CodeUnauthorized)
	requireError(t, h.do(http.MethodGet, "/api/jokes/abc", nil, nil), http.StatusBadRequest, CodeBadRequest)
	requireError(t, h.do(http.MethodGet, "/api/users/0x123", nil, nil), http.StatusBadRequest, CodeInvalidAddress)
	requireError(t, h.do(http.MethodGet, "/api/badges/tokens/9", nil, nil), http.StatusNotFound, CodeNotFound)
}

func TestLikeFlow(t *testing.T) {
	h := setup(t)
	h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "like me"})

	rec := h.do(http.MethodPost, "/api/jokes/1/like", &bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	liked := decode[map[string]bool](t, h.do(http.MethodGet, "/api/jokes/1/likes/"+bob.Hex(), nil, nil))
	require.True(t, liked["liked"])

	requireError(t, h.do(http.MethodPost, "/api/jokes/1/like", &bob, nil), http.StatusConflict, CodeRuleViolation)
}

func TestTipFlow(t *testing.T) {
	h := setup(t)
	core := h.node.Contracts().Core

	h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "tip me"})
	rec := h.do(http.MethodPost, "/api/token/mint", &owner, map[string]any{"to": bob, "amount": "10000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/jokes/1/tip", &bob, map[string]any{"amount": "1000000"})
	resp := requireError(t, rec, http.StatusConflict, CodeRuleViolation)
	require.Equal(t, "insufficient allowance", resp.Error)

	rec = h.do(http.MethodPost, "/api/token/approve", &bob, map[string]any{"spender": core, "amount": "1000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/jokes/1/tip", &bob, map[string]any{"amount": "1000000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/jokes/1/tip", &bob, map[string]any{})
	requireError(t, rec, http.StatusBadRequest, CodeBadRequest)

	bal := decode[map[string]string](t, h.do(http.MethodGet, "/api/token/balance/"+alice.Hex(), nil, nil))
	require.Equal(t, "1000000", bal["balance"])

	allowance := decode[map[string]string](t, h.do(http.MethodGet, "/api/token/allowance/"+bob.Hex()+"/"+core.Hex(), nil, nil))
	require.Equal(t, "0", allowance["allowance"])

	user := decode[UserResponse](t, h.do(http.MethodGet, "/api/users/"+alice.Hex(), nil, nil))
	require.Equal(t, "1000000", user.TotalTipsReceived.String())
}

func TestBadgeFlow(t *testing.T) {
	h := setup(t)

	tiers := decode[[]models.BadgeTier](t, h.do(http.MethodGet, "/api/badges/tiers", nil, nil))
	require.Len(t, tiers, 3)

	requireError(t, h.do(http.MethodPost, "/api/badges/1/claim", &alice, nil), http.StatusConflict, CodeRuleViolation)

	h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "earn a badge"})
	rec := h.do(http.MethodPost, "/api/badges/1/claim", &alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"tokenId":1`)

	claimed := decode[map[string]bool](t, h.do(http.MethodGet, "/api/users/"+alice.Hex()+"/badges/1", nil, nil))
	require.True(t, claimed["claimed"])

	rec = h.do(http.MethodGet, "/api/badges/tokens/1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"tokenURI":"ipfs://badges/1"`)

	requireError(t, h.do(http.MethodPost, "/api/badges/99/claim", &alice, nil), http.StatusBadRequest, CodeValidation)

	rec = h.do(http.MethodPost, "/api/badges/tokens/1/transfer", &alice, map[string]any{"to": bob})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decode[UserResponse](t, h.do(http.MethodGet, "/api/users/"+bob.Hex(), nil, nil))
	require.Equal(t, uint64(1), user.BadgeBalance)
}

func TestAdminRoutes(t *testing.T) {
	h := setup(t)

	requireError(t, h.do(http.MethodPost, "/api/admin/base-uri", &alice, map[string]string{"baseURI": "ipfs://x/"}), http.StatusForbidden, CodeUnauthorized)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/admin/base-uri", &owner, map[string]string{"baseURI": "ipfs://x/"}).Code)

	resp := requireError(t, h.do(http.MethodPost, "/api/admin/nft-address", &owner, map[string]any{"address": h.node.Contracts().NFT}), http.StatusConflict, CodeRuleViolation)
	require.Equal(t, "badge ledger already configured", resp.Error)
}

func TestJokesPagination(t *testing.T) {
	h := setup(t)
	for i := 0; i < 15; i++ {
		h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "joke"})
	}

	page := decode[JokesResponse](t, h.do(http.MethodGet, "/api/jokes?pageSize=5", nil, nil))
	require.Len(t, page.Jokes, 5)
	require.Equal(t, uint64(15), page.Jokes[0].ID)
	require.Equal(t, uint64(11), page.NextCursor)

	page = decode[JokesResponse](t, h.do(http.MethodGet, "/api/jokes?pageSize=5&cursor=11", nil, nil))
	require.Equal(t, uint64(10), page.Jokes[0].ID)
	require.Equal(t, uint64(6), page.Jokes[4].ID)

	page = decode[JokesResponse](t, h.do(http.MethodGet, "/api/jokes?pageSize=10&cursor=6", nil, nil))
	require.Len(t, page.Jokes, 5)
	require.Zero(t, page.NextCursor)

	page = decode[JokesResponse](t, h.do(http.MethodGet, "/api/jokes", nil, nil))
	require.Len(t, page.Jokes, defaultPageSize)

	page = decode[JokesResponse](t, h.do(http.MethodGet, "/api/jokes?pageSize=0", nil, nil))
	require.Empty(t, page.Jokes)

	requireError(t, h.do(http.MethodGet, "/api/jokes?cursor=-1", nil, nil), http.StatusBadRequest, CodeBadRequest)
}

func TestContracts(t *testing.T) {
	h := setup(t)
	resp := decode[ContractsResponse](t, h.do(http.MethodGet, "/api/contracts", nil, nil))
	require.Equal(t, h.node.Contracts(), resp.Contracts)
	require.Equal(t, "mUSDC", resp.TokenInfo.Symbol)
	require.Equal(t, 280, resp.MaxContentLength)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := setup(t)
	h.srv = NewServer(config.HTTPConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}, h.node, nil)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "one"}).Code)
	requireError(t, h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "two"}), http.StatusTooManyRequests, CodeRateLimited)

	// reads are not limited
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/stats", nil, nil).Code)
}

func TestAdminRoutesCanBeDisabled(t *testing.T) {
	h := setup(t)
	h.srv = NewServer(config.HTTPConfig{RateLimitRPS: 1000, RateLimitBurst: 1000}, h.node, nil)

	for _, path := range []string{"/api/token/mint", "/api/admin/nft-address", "/api/admin/base-uri", "/api/admin/minter"} {
		rec := h.do(http.MethodPost, path, &owner, map[string]string{})
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	// user writes stay available
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/jokes", &alice, map[string]string{"content": "still open"}).Code)
}

func TestIPRateLimiterSweep(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	first := rl.GetLimiter("1.2.3.4")
	require.Same(t, first, rl.GetLimiter("1.2.3.4"))

	rl.Sweep(0)
	require.NotSame(t, first, rl.GetLimiter("1.2.3.4"))
}

func TestCORSConfig(t *testing.T) {
	require.True(t, corsConfig(nil).AllowAllOrigins)
	require.True(t, corsConfig([]string{"*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"https://dadchain.example"})
	require.False(t, cfg.AllowAllOrigins)
	require.True(t, cfg.AllowCredentials)
	require.Contains(t, cfg.AllowHeaders, AccountHeader)
}
