package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/etfkit/business/etf/domain"
)

// PackDeposit encodes a vault deposit; a nil minimum packs as zero.
func PackDeposit(amount, minSharesOut *big.Int) ([]byte, error) {
	return VaultABI.Pack("deposit", amount, orZero(minSharesOut))
}

// PackRedeem encodes a vault redeem; a nil minimum packs as zero.
func PackRedeem(shares, minAmountOut *big.Int) ([]byte, error) {
	return VaultABI.Pack("redeem", shares, orZero(minAmountOut))
}

// PackSimulation packs the vault call simulated for action with a zero
// minimum, so the simulation reports the unbounded output.
func PackSimulation(action domain.Action, amount *big.Int) ([]byte, error) {
	if action == domain.ActionRedeem {
		return PackRedeem(amount, nil)
	}
	return PackDeposit(amount, nil)
}

// PackRebalance encodes a new target allocation for a vault.
func PackRebalance(a domain.Allocation) ([]byte, error) {
	return VaultABI.Pack("rebalance", a.Tokens, a.WeightsBig())
}

// PackUpdateParams encodes the vault slippage cap and rebalance cooldown.
func PackUpdateParams(p domain.VaultParams) ([]byte, error) {
	cooldown := new(big.Int).SetInt64(int64(p.RebalanceCooldown.Seconds()))
	return VaultABI.Pack("updateParams", new(big.Int).SetUint64(uint64(p.MaxSlippageBps)), cooldown)
}

// PackDepositToken encodes the vault depositToken getter.
func PackDepositToken() ([]byte, error) {
	return VaultABI.Pack("depositToken")
}

// PackCreateETF encodes a factory createETF call.
func PackCreateETF(p domain.CreateParams) ([]byte, error) {
	return FactoryABI.Pack("createETF", p.Name, p.Symbol, p.DepositToken, p.Tokens, p.WeightsBig())
}

// PackSetHLSAddress encodes the factory HLS address setter.
func PackSetHLSAddress(hls common.Address) ([]byte, error) {
	return FactoryABI.Pack("setHLSAddress", hls)
}

// PackSetTreasury encodes the factory treasury setter.
func PackSetTreasury(treasury common.Address) ([]byte, error) {
	return FactoryABI.Pack("setTreasury", treasury)
}

// PackSetDepositFee encodes the factory deposit fee setter.
func PackSetDepositFee(feeBps uint32) ([]byte, error) {
	return FactoryABI.Pack("setDepositFee", new(big.Int).SetUint64(uint64(feeBps)))
}

// PackSetFeeSwapConfig encodes the factory fee swap settings.
func PackSetFeeSwapConfig(c domain.FeeSwapConfig) ([]byte, error) {
	return FactoryABI.Pack("setFeeSwapConfig", c.Router, c.FeeToken, new(big.Int).SetUint64(uint64(c.MaxSlippageBps)))
}

// PackAllowance encodes an ERC-20 allowance query.
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return ERC20ABI.Pack("allowance", owner, spender)
}

// PackApprove encodes an ERC-20 approve.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
