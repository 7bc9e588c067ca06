// Package ledger guarda os saldos das carteiras e do escrow das rodadas.
// Memory e Postgres implementam lottery.Ledger com transferências tudo-ou-nada.
package ledger

import (
	"errors"
	"fmt"

	"github.com/radieske/lottery-pool-poc/internal/lottery"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountBlocked    = errors.New("account does not accept transfers")
	ErrInvalidTransfer   = errors.New("invalid transfer")
)

var (
	_ lottery.Ledger = (*Memory)(nil)
	_ lottery.Ledger = (*Postgres)(nil)
)

func validate(t lottery.Transfer) error {
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount %d", ErrInvalidTransfer, t.Amount)
	}
	if t.From == "" || t.To == "" || t.From == t.To {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransfer, t.From, t.To)
	}
	return nil
}
