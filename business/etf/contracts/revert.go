package contracts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertReason extracts the reason of a reverted eth_call. The second
// result is false when err is not a revert (transport failure, timeout).
// Error(string) and Panic(uint256) payloads are decoded; custom errors are
// returned as their hex-encoded data.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok && raw != "" {
			data, decErr := hexutil.Decode(raw)
			if decErr == nil && len(data) > 0 {
				return DecodeRevertData(data), true
			}
		}
	}

	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return err.Error(), true
	}
	return "", false
}

// IsRevert reports whether err is a contract revert.
func IsRevert(err error) bool {
	_, ok := RevertReason(err)
	return ok
}

// DecodeRevertData decodes raw revert data.
func DecodeRevertData(data []byte) string {
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if len(data) >= 4 {
		return fmt.Sprintf("custom error %s", hexutil.Encode(data))
	}
	return "execution reverted"
}
