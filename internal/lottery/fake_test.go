package lottery_test

import (
	"context"
	"sync"

	"github.com/radieske/lottery-pool-poc/internal/lottery"
)

// FakeLedger registra as chamadas e delega para TransferFn quando definido.
type FakeLedger struct {
	mu    sync.Mutex
	calls [][]lottery.Transfer
	refs  []string

	TransferFn func(ctx context.Context, ref string, transfers []lottery.Transfer) error
}

func (f *FakeLedger) Transfer(ctx context.Context, ref string, transfers []lottery.Transfer) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]lottery.Transfer(nil), transfers...))
	f.refs = append(f.refs, ref)
	f.mu.Unlock()
	if f.TransferFn != nil {
		return f.TransferFn(ctx, ref, transfers)
	}
	return nil
}

func (f *FakeLedger) Calls() [][]lottery.Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]lottery.Transfer, len(f.calls))
	copy(out, f.calls)
	return out
}

// fixedSelector sempre escolhe o mesmo índice
func fixedSelector(idx int) lottery.Selector {
	return lottery.SelectorFunc(func([]lottery.Participant, []byte) (int, error) { return idx, nil })
}
