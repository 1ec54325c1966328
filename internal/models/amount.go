package models

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
)

var ErrInvalidAmount = errors.New("amount must be a non-negative base-10 integer")

// Amount is a token quantity in base units. JSON carries it as a decimal
// string so clients never round it through a float.
type Amount big.Int

func NewAmount(x *big.Int) *Amount {
	if x == nil {
		return (*Amount)(new(big.Int))
	}
	return (*Amount)(new(big.Int).Set(x))
}

func ParseAmount(s string) (*Amount, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return (*Amount)(v), nil
}

// Big returns a copy; a nil Amount is zero.
func (a *Amount) Big() *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(a))
}

func (a *Amount) String() string {
	if a == nil {
		return "0"
	}
	return (*big.Int)(a).String()
}

func (a *Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = *v
	return nil
}
