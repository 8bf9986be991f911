// Package domain contains the ETF vault trade model.
package domain

import (
	"fmt"
	"strings"
)

// Action is the direction of a vault trade.
type Action string

const (
	ActionDeposit Action = "deposit"
	ActionRedeem  Action = "redeem"
)

// ParseAction parses a case-insensitive action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionDeposit, ActionRedeem:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionDeposit || a == ActionRedeem
}

// Method returns the vault method simulated for this action.
func (a Action) Method() string {
	return string(a)
}

func (a Action) String() string {
	return string(a)
}
