package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/radieske/lottery-pool-poc/internal/lottery"
)

// Entry é uma linha do diário de movimentações
type Entry struct {
	Ref     string
	Account string
	Op      string // CREDIT | DEBIT
	Kind    lottery.TransferKind
	Amount  int64
	At      time.Time
}

// Memory implementa o ledger em memória, útil para testes e para rodar sem Postgres
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	blocked  map[string]struct{}
	entries  []Entry
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
		blocked:  make(map[string]struct{}),
	}
}

// Deposit credita saldo externo na conta (top-up da carteira)
func (m *Memory) Deposit(_ context.Context, account string, amount int64, externalRef string) (int64, error) {
	if account == "" || amount <= 0 {
		return 0, ErrInvalidTransfer
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[account] > math.MaxInt64-amount {
		return 0, fmt.Errorf("%w: balance of %s would overflow", ErrInvalidTransfer, account)
	}
	m.balances[account] += amount
	m.entries = append(m.entries, Entry{
		Ref: "deposit:" + externalRef, Account: account, Op: "CREDIT", Amount: amount, At: time.Now(),
	})
	return m.balances[account], nil
}

// Balance retorna o saldo da conta (0 se nunca movimentada)
func (m *Memory) Balance(_ context.Context, account string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

// Block faz a conta recusar créditos, simulando um destinatário que não recebe fundos
func (m *Memory) Block(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[account] = struct{}{}
}

// Unblock desfaz Block
func (m *Memory) Unblock(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocked, account)
}

// Transfer aplica todas as pernas ou nenhuma.
// Os saldos são calculados numa cópia e só publicados se todas as pernas forem válidas.
func (m *Memory) Transfer(_ context.Context, ref string, transfers []lottery.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]int64)
	get := func(acc string) int64 {
		if v, ok := staged[acc]; ok {
			return v
		}
		return m.balances[acc]
	}

	for i, t := range transfers {
		if err := validate(t); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		if _, ok := m.blocked[t.To]; ok {
			return fmt.Errorf("leg %d to %s: %w", i, t.To, ErrAccountBlocked)
		}
		from := get(t.From)
		if from < t.Amount {
			return fmt.Errorf("leg %d from %s: %w", i, t.From, ErrInsufficientFunds)
		}
		to := get(t.To)
		if to > math.MaxInt64-t.Amount {
			return fmt.Errorf("leg %d to %s: %w: balance would overflow", i, t.To, ErrInvalidTransfer)
		}
		staged[t.From] = from - t.Amount
		staged[t.To] = to + t.Amount
	}

	now := time.Now()
	for acc, bal := range staged {
		m.balances[acc] = bal
	}
	for _, t := range transfers {
		m.entries = append(m.entries,
			Entry{Ref: ref, Account: t.From, Op: "DEBIT", Kind: t.Kind, Amount: t.Amount, At: now},
			Entry{Ref: ref, Account: t.To, Op: "CREDIT", Kind: t.Kind, Amount: t.Amount, At: now},
		)
	}
	return nil
}

// Entries retorna uma cópia do diário
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
