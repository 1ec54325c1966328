package api

import (
	"context"
	"math/big"
	"net/http"
	"strconv"

	"dadchain/internal/badge"
	"dadchain/internal/chain"
	"dadchain/internal/ledger"
	"dadchain/internal/models"
	"dadchain/internal/node"
	"dadchain/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Backend is the node as seen by the HTTP layer.
type Backend interface {
	Call(ctx context.Context, from common.Address, method string, args any) (*chain.Receipt, error)
	Contracts() node.Contracts
	Height() uint64
	Joke(id uint64) (models.Joke, error)
	Jokes(cursor, pageSize uint64) []models.Joke
	Stats() models.Stats
	UserProfile(account common.Address) models.UserProfile
	HasUserClaimedBadge(account common.Address, badgeID uint64) bool
	HasLiked(account common.Address, jokeID uint64) bool
	BadgeTiers() []models.BadgeTier
	BadgeToken(tokenID uint64) (*badge.Token, error)
	BadgeBalance(account common.Address) uint64
	BalanceOf(account common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	TokenInfo() node.TokenInfo
	MaxContentLength() int
}

type Env struct {
	Node Backend
}

type JokesResponse struct {
	Jokes      []models.Joke `json:"jokes"`
	NextCursor uint64        `json:"nextCursor"`
}

type UserResponse struct {
	Address      common.Address `json:"address"`
	BadgeBalance uint64         `json:"badgeBalance"`
	models.UserProfile
}

type ContractsResponse struct {
	node.Contracts
	TokenInfo        node.TokenInfo `json:"tokenInfo"`
	MaxContentLength int            `json:"maxContentLength"`
	Height           uint64         `json:"height"`
}

type AmountInput struct {
	Amount *models.Amount `json:"amount" binding:"required"`
}

type TransferBadgeInput struct {
	To common.Address `json:"to" binding:"required"`
}

func (e *Env) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "height": e.Node.Height()})
}

func (e *Env) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, e.Node.Stats())
}

func (e *Env) GetContracts(c *gin.Context) {
	c.JSON(http.StatusOK, ContractsResponse{
		Contracts:        e.Node.Contracts(),
		TokenInfo:        e.Node.TokenInfo(),
		MaxContentLength: e.Node.MaxContentLength(),
		Height:           e.Node.Height(),
	})
}

func (e *Env) GetJokes(c *gin.Context) {
	cursor, err := queryUint(c, "cursor", 0)
	if err != nil {
		abort(c, http.StatusBadRequest, CodeBadRequest, "invalid cursor")
		return
	}
	pageSize, err := queryUint(c, "pageSize", defaultPageSize)
	if err != nil {
		abort(c, http.StatusBadRequest, CodeBadRequest, "invalid pageSize")
		return
	}
	pageSize = min(pageSize, maxPageSize)

	jokes := e.Node.Jokes(cursor, pageSize)
	resp := JokesResponse{Jokes: jokes}
	if n := len(jokes); n > 0 && jokes[n-1].ID > 1 {
		resp.NextCursor = jokes[n-1].ID
	}
	c.JSON(http.StatusOK, resp)
}

func (e *Env) GetJoke(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		return
	}
	joke, err := e.Node.Joke(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, joke)
}

func (e *Env) GetLike(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		return
	}
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": e.Node.HasLiked(addr, id)})
}

func (e *Env) GetUser(c *gin.Context) {
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, UserResponse{
		Address:      addr,
		BadgeBalance: e.Node.BadgeBalance(addr),
		UserProfile:  e.Node.UserProfile(addr),
	})
}

func (e *Env) GetBadgeClaim(c *gin.Context) {
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	badgeID, ok := paramUint(c, "badgeId")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimed": e.Node.HasUserClaimedBadge(addr, badgeID)})
}

func (e *Env) GetBadgeTiers(c *gin.Context) {
	c.JSON(http.StatusOK, e.Node.BadgeTiers())
}

func (e *Env) GetBadgeToken(c *gin.Context) {
	tokenID, ok := paramUint(c, "tokenId")
	if !ok {
		return
	}
	tok, err := e.Node.BadgeToken(tokenID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (e *Env) GetToken(c *gin.Context) {
	c.JSON(http.StatusOK, e.Node.TokenInfo())
}

func (e *Env) GetBalance(c *gin.Context) {
	addr, ok := paramAddress(c, "address")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": models.NewAmount(e.Node.BalanceOf(addr))})
}

func (e *Env) GetAllowance(c *gin.Context) {
	owner, ok := paramAddress(c, "owner")
	if !ok {
		return
	}
	spender, ok := paramAddress(c, "spender")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":     owner,
		"spender":   spender,
		"allowance": models.NewAmount(e.Node.Allowance(owner, spender)),
	})
}

func (e *Env) SubmitJoke(c *gin.Context) {
	var input ledger.SubmitJokeArgs
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusCreated, ledger.MethodSubmitJoke, input)
}

func (e *Env) LikeJoke(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		return
	}
	e.submit(c, http.StatusOK, ledger.MethodLikeJoke, ledger.JokeArgs{JokeID: id})
}

func (e *Env) TipJoke(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		return
	}
	var input AmountInput
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, ledger.MethodTipJoke, ledger.TipJokeArgs{JokeID: id, Amount: input.Amount})
}

func (e *Env) ClaimBadge(c *gin.Context) {
	badgeID, ok := paramUint(c, "badgeId")
	if !ok {
		return
	}
	e.submit(c, http.StatusOK, ledger.MethodClaimBadge, ledger.ClaimBadgeArgs{BadgeID: badgeID})
}

func (e *Env) TransferBadge(c *gin.Context) {
	tokenID, ok := paramUint(c, "tokenId")
	if !ok {
		return
	}
	var input TransferBadgeInput
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, badge.MethodTransfer, badge.TransferArgs{To: input.To, TokenID: tokenID})
}

func (e *Env) Approve(c *gin.Context) {
	var input token.ApproveArgs
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, token.MethodApprove, input)
}

func (e *Env) Transfer(c *gin.Context) {
	var input token.TransferArgs
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, token.MethodTransfer, input)
}

func (e *Env) Mint(c *gin.Context) {
	var input token.TransferArgs
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, token.MethodMint, input)
}

func (e *Env) SetNFTAddress(c *gin.Context) {
	var input ledger.SetNFTContractAddressArgs
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, ledger.MethodSetNFTContractAddress, input)
}

func (e *Env) SetBaseURI(c *gin.Context) {
	var input badge.SetBaseURIArgs
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, badge.MethodSetBaseURI, input)
}

func (e *Env) SetMinter(c *gin.Context) {
	var input badge.SetMinterArgs
	if !bind(c, &input) {
		return
	}
	e.submit(c, http.StatusOK, badge.MethodSetMinter, input)
}

func (e *Env) submit(c *gin.Context, status int, method string, args any) {
	rcpt, err := e.Node.Call(c.Request.Context(), account(c), method, args)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, rcpt)
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abort(c, http.StatusBadRequest, CodeBadRequest, "invalid input: "+err.Error())
		return false
	}
	return true
}

func queryUint(c *gin.Context, key string, def uint64) (uint64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func paramUint(c *gin.Context, key string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, CodeBadRequest, "invalid "+key)
		return 0, false
	}
	return v, true
}

func paramAddress(c *gin.Context, key string) (common.Address, bool) {
	raw := c.Param(key)
	if !common.IsHexAddress(raw) {
		abort(c, http.StatusBadRequest, CodeInvalidAddress, "invalid "+key+" address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
