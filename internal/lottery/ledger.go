package lottery

import "context"

// TransferKind identifica o motivo de uma movimentação no ledger
type TransferKind string

const (
	KindDeposit TransferKind = "DEPOSIT"
	KindPayout  TransferKind = "PAYOUT"
	KindFee     TransferKind = "FEE"
	KindRefund  TransferKind = "REFUND"
)

// Transfer move Amount da conta From para a conta To
type Transfer struct {
	From   string
	To     string
	Amount int64
	Kind   TransferKind
}

// Ledger é a primitiva de transferência de fundos usada pela rodada.
// Transfer deve aplicar todas as pernas ou nenhuma: se qualquer uma falhar,
// nenhum saldo pode ter sido alterado.
type Ledger interface {
	Transfer(ctx context.Context, ref string, transfers []Transfer) error
}

// EscrowAccount retorna a conta que custodia os depósitos da rodada
func EscrowAccount(roundID string) string { return "escrow:" + roundID }
