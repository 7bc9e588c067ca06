package http

import (
	"encoding/hex"

	"github.com/radieske/lottery-pool-poc/internal/lottery"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/dto"
	"github.com/radieske/lottery-pool-poc/pkg/contracts/events"
)

func toRoundResponse(s lottery.Snapshot) dto.RoundResponse {
	return dto.RoundResponse{
		RoundID:      s.ID,
		Seq:          s.Seq,
		RoundNo:      s.RoundNo,
		State:        s.State.String(),
		BetCount:     s.BetCount,
		BetSizeCents: s.BetSize,
		Participants: toParticipants(s.Participants),
		EscrowCents:  s.Balance,
		Admin:        s.Admin,
		FeePercent:   s.FeePercent,
	}
}

func toParticipants(ps []lottery.Participant) []dto.Participant {
	out := make([]dto.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, dto.Participant{Address: p.Address, AmountCents: p.Amount})
	}
	return out
}

func toEntries(ps []lottery.Participant) []events.Entry {
	out := make([]events.Entry, 0, len(ps))
	for _, p := range ps {
		out = append(out, events.Entry{Address: p.Address, AmountCents: p.Amount})
	}
	return out
}

func settledEvent(roundID, caller string, st *lottery.Settlement) events.RoundEvent {
	return events.RoundEvent{
		Type:         events.RoundSettled,
		RoundID:      roundID,
		RoundNo:      st.RoundNo,
		Caller:       caller,
		Winner:       st.Winner,
		PoolCents:    st.Pool,
		PayoutCents:  st.Payout,
		FeeCents:     st.Fee,
		Participants: toEntries(st.Participants),
		Seed:         hexSeed(st.Seed),
	}
}

func hexSeed(b []byte) string { return hex.EncodeToString(b) }
