package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/asset"
)

// Intent describes a trade the user is about to make. For deposits
// InputAmount is in deposit-token base units, for redeems it is in shares.
type Intent struct {
	Action         Action
	Vault          common.Address
	InputAmount    *big.Int
	Sender         common.Address
	AllowanceKnown bool
	Tolerance      asset.Tolerance
}

// Validate checks the intent before any chain call is made.
func (i Intent) Validate() error {
	switch {
	case !i.Action.Valid():
		return invalidIntent(fmt.Sprintf("unknown action %q", i.Action))
	case i.Vault == (common.Address{}):
		return invalidIntent("vault address is zero")
	case i.InputAmount == nil || i.InputAmount.Sign() <= 0:
		return invalidIntent("input amount must be positive")
	case i.Tolerance.Bps > asset.BpsDenominator:
		return invalidIntent(fmt.Sprintf("tolerance %d bps out of range", i.Tolerance.Bps))
	}
	return nil
}

// NeedsAllowanceCheck reports whether the deposit token allowance must be
// read before simulating.
func (i Intent) NeedsAllowanceCheck() bool {
	return i.Action == ActionDeposit && !i.AllowanceKnown
}

func invalidIntent(ctx string) error {
	return apperror.New(apperror.CodeInvalidIntent, apperror.WithContext(ctx))
}
