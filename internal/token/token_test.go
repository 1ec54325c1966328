package token

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"dadchain/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	user1   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	user2   = common.HexToAddress("0x0000000000000000000000000000000000000003")
	spender = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

type fixture struct {
	ch  *chain.Chain
	tok *Token
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ch:  chain.New(nil),
		tok: New(common.HexToAddress("0x00000000000000000000000000000000000000aa"), owner, "Mock USDC", "mUSDC", 6),
	}
	for name, h := range f.tok.Methods() {
		f.ch.Register(name, h)
	}
	f.ch.Register("test.pull", func(tx *chain.Tx, raw json.RawMessage) (any, error) {
		var args struct {
			From   common.Address `json:"from"`
			To     common.Address `json:"to"`
			Amount int64          `json:"amount"`
		}
		if err := chain.DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return nil, f.tok.TransferFrom(tx, spender, args.From, args.To, big.NewInt(args.Amount))
	})
	return f
}

func (f *fixture) submit(from common.Address, method, args string) (*chain.Receipt, error) {
	return f.ch.Submit(context.Background(), chain.Call{From: from, Method: method, Args: json.RawMessage(args)})
}

func (f *fixture) mint(t *testing.T, to common.Address, amount int64) {
	t.Helper()
	_, err := f.submit(owner, MethodMint, fmt.Sprintf(`{"to":%q,"amount":"%d"}`, to.Hex(), amount))
	require.NoError(t, err)
}

func TestMint(t *testing.T) {
	f := newFixture(t)
	f.mint(t, user1, 1000)

	require.Equal(t, int64(1000), f.tok.BalanceOf(user1).Int64())
	require.Equal(t, int64(1000), f.tok.TotalSupply().Int64())
	require.Equal(t, uint8(6), f.tok.Decimals())
}

func TestMintOnlyOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(user1, MethodMint, fmt.Sprintf(`{"to":%q,"amount":"5"}`, user1.Hex()))
	require.ErrorIs(t, err, ErrNotOwner)
	require.Zero(t, f.tok.TotalSupply().Sign())
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	f.mint(t, user1, 100)

	rcpt, err := f.submit(user1, MethodTransfer, fmt.Sprintf(`{"to":%q,"amount":"40"}`, user2.Hex()))
	require.NoError(t, err)
	require.Len(t, rcpt.Events, 1)
	require.Equal(t, "Transfer", rcpt.Events[0].Name)

	require.Equal(t, int64(60), f.tok.BalanceOf(user1).Int64())
	require.Equal(t, int64(40), f.tok.BalanceOf(user2).Int64())

	_, err = f.submit(user1, MethodTransfer, fmt.Sprintf(`{"to":%q,"amount":"61"}`, user2.Hex()))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	f := newFixture(t)
	f.mint(t, user1, 100)

	_, err := f.submit(user1, MethodApprove, fmt.Sprintf(`{"spender":%q,"amount":"30"}`, spender.Hex()))
	require.NoError(t, err)
	require.Equal(t, int64(30), f.tok.Allowance(user1, spender).Int64())

	_, err = f.submit(spender, "test.pull", fmt.Sprintf(`{"from":%q,"to":%q,"amount":20}`, user1.Hex(), user2.Hex()))
	require.NoError(t, err)

	require.Equal(t, int64(10), f.tok.Allowance(user1, spender).Int64())
	require.Equal(t, int64(80), f.tok.BalanceOf(user1).Int64())
	require.Equal(t, int64(20), f.tok.BalanceOf(user2).Int64())

	_, err = f.submit(spender, "test.pull", fmt.Sprintf(`{"from":%q,"to":%q,"amount":11}`, user1.Hex(), user2.Hex()))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.mint(t, user1, 5)

	_, err := f.submit(user1, MethodApprove, fmt.Sprintf(`{"spender":%q,"amount":"50"}`, spender.Hex()))
	require.NoError(t, err)

	_, err = f.submit(spender, "test.pull", fmt.Sprintf(`{"from":%q,"to":%q,"amount":6}`, user1.Hex(), user2.Hex()))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, int64(50), f.tok.Allowance(user1, spender).Int64())
}

func TestTransferFromRevertRestoresAllowance(t *testing.T) {
	f := newFixture(t)
	f.mint(t, user1, 100)

	_, err := f.submit(user1, MethodApprove, fmt.Sprintf(`{"spender":%q,"amount":"30"}`, spender.Hex()))
	require.NoError(t, err)

	// the allowance is spent before the zero recipient is rejected
	_, err = f.submit(spender, "test.pull", fmt.Sprintf(`{"from":%q,"to":%q,"amount":10}`, user1.Hex(), common.Address{}.Hex()))
	require.ErrorIs(t, err, ErrZeroAddress)

	require.Equal(t, int64(30), f.tok.Allowance(user1, spender).Int64())
	require.Equal(t, int64(100), f.tok.BalanceOf(user1).Int64())
}

func TestApproveRejectsZeroSpender(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(user1, MethodApprove, fmt.Sprintf(`{"spender":%q,"amount":"1"}`, common.Address{}.Hex()))
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestBadAmountIsValidationError(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(user1, MethodApprove, fmt.Sprintf(`{"spender":%q,"amount":"-3"}`, spender.Hex()))

	revert, ok := chain.AsRevert(err)
	require.True(t, ok)
	require.Equal(t, chain.KindValidation, revert.Kind)
}
