package lottery

// Settlement descreve a distribuição de uma rodada que encheu
type Settlement struct {
	RoundNo      uint64
	Pool         int64
	Fee          int64
	Payout       int64
	Winner       string
	WinnerIndex  int
	Participants []Participant
	Seed         []byte
}

// ComputeSettlement calcula pool, taxa do admin (arredondada para baixo) e prêmio.
// Não tem efeito colateral; Open já garante que betSize*betCount não estoura int64.
func ComputeSettlement(betSize int64, betCount int, feePercent int64) Settlement {
	pool := betSize * int64(betCount)
	// pool/100*fee + resto evita estouro em pool*fee para pools grandes
	fee := (pool/100)*feePercent + (pool%100)*feePercent/100
	return Settlement{
		Pool:   pool,
		Fee:    fee,
		Payout: pool - fee,
	}
}

// transfers monta as pernas de saída do escrow; pernas de valor zero são omitidas
func (s Settlement) transfers(escrow, admin string) []Transfer {
	var out []Transfer
	if s.Payout > 0 {
		out = append(out, Transfer{From: escrow, To: s.Winner, Amount: s.Payout, Kind: KindPayout})
	}
	if s.Fee > 0 {
		out = append(out, Transfer{From: escrow, To: admin, Amount: s.Fee, Kind: KindFee})
	}
	return out
}
