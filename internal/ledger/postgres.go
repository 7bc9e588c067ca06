package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/radieske/lottery-pool-poc/internal/lottery"
)

// Postgres implementa o ledger sobre as tabelas wallets e wallet_ledger
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

type wallet struct {
	id      string
	balance int64
}

// lockWallet garante que a carteira existe e trava a linha até o fim da transação
func lockWallet(ctx context.Context, tx *sql.Tx, account string) (wallet, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), account); err != nil {
		return wallet{}, err
	}
	var w wallet
	err := tx.QueryRowContext(ctx,
		`SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, account).Scan(&w.id, &w.balance)
	return w, err
}

// Deposit credita saldo na carteira e registra CREDIT no ledger
func (p *Postgres) Deposit(ctx context.Context, account string, amount int64, externalRef string) (int64, error) {
	if account == "" || amount <= 0 {
		return 0, ErrInvalidTransfer
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	w, err := lockWallet(ctx, tx, account)
	if err != nil {
		return 0, fmt.Errorf("lock wallet %s: %w", account, err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1 WHERE id=$2`, amount, w.id); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,'CREDIT',$2,$3)`,
		w.id, amount, "deposit:"+externalRef); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return w.balance + amount, nil
}

// Balance retorna o saldo da carteira; carteira inexistente tem saldo 0
func (p *Postgres) Balance(ctx context.Context, account string) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx, `SELECT balance_cents FROM wallets WHERE user_id=$1`, account).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

// Transfer aplica as pernas numa única transação.
// As carteiras são travadas em ordem alfabética para evitar deadlock entre rodadas concorrentes.
func (p *Postgres) Transfer(ctx context.Context, ref string, transfers []lottery.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var accounts []string
	for i, t := range transfers {
		if err := validate(t); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		for _, acc := range []string{t.From, t.To} {
			if _, ok := seen[acc]; !ok {
				seen[acc] = struct{}{}
				accounts = append(accounts, acc)
			}
		}
	}
	sort.Strings(accounts)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	wallets := make(map[string]*wallet, len(accounts))
	for _, acc := range accounts {
		w, err := lockWallet(ctx, tx, acc)
		if err != nil {
			return fmt.Errorf("lock wallet %s: %w", acc, err)
		}
		wallets[acc] = &w
	}

	// valida saldo perna a perna antes de escrever qualquer coisa
	for i, t := range transfers {
		from, to := wallets[t.From], wallets[t.To]
		if from.balance < t.Amount {
			return fmt.Errorf("leg %d from %s: %w", i, t.From, ErrInsufficientFunds)
		}
		from.balance -= t.Amount
		to.balance += t.Amount
	}

	for _, acc := range accounts {
		w := wallets[acc]
		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_cents = $1, version = version + 1 WHERE id=$2`, w.balance, w.id); err != nil {
			return err
		}
	}

	const insert = `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,$2,$3,$4)`
	for _, t := range transfers {
		desc := string(t.Kind) + ":" + ref
		if _, err = tx.ExecContext(ctx, insert, wallets[t.From].id, "DEBIT", t.Amount, desc); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, insert, wallets[t.To].id, "CREDIT", t.Amount, desc); err != nil {
			return err
		}
	}

	return tx.Commit()
}
