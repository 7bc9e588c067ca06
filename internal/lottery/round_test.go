package lottery_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/lottery-pool-poc/internal/ledger"
	"github.com/radieske/lottery-pool-poc/internal/lottery"
)

const admin = "admin"

type fixture struct {
	round  *lottery.Round
	ledger *ledger.Memory
	escrow string
}

func newFixture(t *testing.T, feePercent int64, sel lottery.Selector) *fixture {
	t.Helper()
	mem := ledger.NewMemory()
	r, err := lottery.New(lottery.Config{
		ID:         "test-round",
		Admin:      admin,
		FeePercent: feePercent,
		Ledger:     mem,
		Selector:   sel,
		Seed:       []byte("seed"),
		Log:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return &fixture{round: r, ledger: mem, escrow: lottery.EscrowAccount("test-round")}
}

func (f *fixture) fund(t *testing.T, amount int64, accounts ...string) {
	t.Helper()
	for _, acc := range accounts {
		_, err := f.ledger.Deposit(context.Background(), acc, amount, "fund")
		require.NoError(t, err)
	}
}

func (f *fixture) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), account)
	require.NoError(t, err)
	return b
}

// open descarta o snapshot devolvido por Open
func open(ctx context.Context, r *lottery.Round, caller string, size int, stake int64) error {
	_, err := r.Open(ctx, caller, size, stake)
	return err
}

func assertIdle(t *testing.T, r *lottery.Round) {
	t.Helper()
	snap := r.Snapshot()
	assert.Equal(t, lottery.StateIdle, snap.State)
	assert.Empty(t, snap.Participants)
	assert.Zero(t, snap.BetCount)
	assert.Zero(t, snap.BetSize)
	assert.Zero(t, snap.Balance)
}

func TestNew_Validation(t *testing.T) {
	mem := ledger.NewMemory()
	tests := []struct {
		name string
		cfg  lottery.Config
	}{
		{name: "missing admin", cfg: lottery.Config{Ledger: mem}},
		{name: "negative fee", cfg: lottery.Config{Admin: admin, FeePercent: -1, Ledger: mem}},
		{name: "fee above 100", cfg: lottery.Config{Admin: admin, FeePercent: 101, Ledger: mem}},
		{name: "missing ledger", cfg: lottery.Config{Admin: admin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lottery.New(tt.cfg)
			assert.ErrorIs(t, err, lottery.ErrInvalidArgument)
		})
	}

	r, err := lottery.New(lottery.Config{Admin: admin, Ledger: mem})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID())
	assertIdle(t, r)
}

func TestOpen_RejectsNonAdminInAnyState(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()

	assert.ErrorIs(t, open(ctx, f.round, "player", 2, 5), lottery.ErrUnauthorized)
	assertIdle(t, f.round)

	require.NoError(t, open(ctx, f.round, admin, 2, 5))
	assert.ErrorIs(t, open(ctx, f.round, "player", 2, 5), lottery.ErrUnauthorized)
}

func TestOpen_RejectsWhenNotIdle(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()

	require.NoError(t, open(ctx, f.round, admin, 2, 5))
	err := open(ctx, f.round, admin, 7, 9)
	require.ErrorIs(t, err, lottery.ErrInvalidState)
	assert.Equal(t, "current state does not allow this", err.Error())

	assert.Equal(t, 2, f.round.BetCount())
	assert.Equal(t, int64(5), f.round.BetSize())
}

func TestOpen_SetsRoundConfiguration(t *testing.T) {
	f := newFixture(t, 2, nil)

	require.NoError(t, open(context.Background(), f.round, admin, 3, 5))

	assert.Equal(t, lottery.StateBetting, f.round.State())
	assert.Equal(t, 3, f.round.BetCount())
	assert.Equal(t, int64(5), f.round.BetSize())
	assert.Equal(t, uint64(1), f.round.Snapshot().RoundNo)
	assert.Empty(t, f.ledger.Entries(), "open must not move funds")
}

func TestOpen_InvalidArguments(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		stake int64
	}{
		{name: "zero participants", size: 0, stake: 5},
		{name: "zero stake", size: 3, stake: 0},
		{name: "negative stake", size: 3, stake: -1},
		{name: "pool overflows", size: 2, stake: math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2, nil)
			err := open(context.Background(), f.round, admin, tt.size, tt.stake)
			assert.ErrorIs(t, err, lottery.ErrInvalidArgument)
			assertIdle(t, f.round)
		})
	}
}

func TestPlaceBet_RejectsWhenIdle(t *testing.T) {
	f := newFixture(t, 2, nil)
	f.fund(t, 100, "alice")

	_, err := f.round.PlaceBet(context.Background(), "alice", 0)
	assert.ErrorIs(t, err, lottery.ErrInvalidState)
	assert.Equal(t, int64(100), f.balance(t, "alice"))
}

func TestPlaceBet_RejectsWrongAmount(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	f.fund(t, 100, "alice")
	require.NoError(t, open(ctx, f.round, admin, 2, 50))

	for _, amount := range []int64{40, 60} {
		_, err := f.round.PlaceBet(ctx, "alice", amount)
		require.ErrorIs(t, err, lottery.ErrWrongAmount)
	}

	snap := f.round.Snapshot()
	assert.Empty(t, snap.Participants)
	assert.Zero(t, snap.Balance)
	assert.Equal(t, int64(100), f.balance(t, "alice"))
	assert.Zero(t, f.balance(t, f.escrow))
}

func TestPlaceBet_AccumulatesEscrow(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	f.fund(t, 100, "alice", "bob")
	require.NoError(t, open(ctx, f.round, admin, 3, 50))

	rc, err := f.round.PlaceBet(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, 1, rc.Position)
	assert.False(t, rc.Filled)

	rc, err = f.round.PlaceBet(ctx, "bob", 50)
	require.NoError(t, err)
	assert.Equal(t, 2, rc.Position)

	snap := f.round.Snapshot()
	assert.Equal(t, []lottery.Participant{{Address: "alice", Amount: 50}, {Address: "bob", Amount: 50}}, snap.Participants)
	assert.Equal(t, int64(100), snap.Balance)
	assert.Equal(t, int64(100), f.balance(t, f.escrow))
	assert.Equal(t, int64(50), f.balance(t, "alice"))
}

func TestPlaceBet_RejectsEscrowAsCaller(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, open(ctx, f.round, admin, 2, 5))

	_, err := f.round.PlaceBet(ctx, f.escrow, 5)
	assert.ErrorIs(t, err, lottery.ErrInvalidArgument)
	assert.NotErrorIs(t, err, lottery.ErrTransferFailure)
	assert.Empty(t, f.round.Snapshot().Participants)
	assert.Empty(t, f.ledger.Entries())
}

func TestOperationsReturnTheirOwnSnapshot(t *testing.T) {
	f := newFixture(t, 2, fixedSelector(0))
	ctx := context.Background()
	f.fund(t, 100, "alice", "bob")

	snap, err := f.round.Open(ctx, admin, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, lottery.StateBetting, snap.State)
	assert.Equal(t, 2, snap.BetCount)
	assert.Equal(t, int64(50), snap.BetSize)
	assert.Equal(t, uint64(1), snap.Seq)

	_, err = f.round.PlaceBet(ctx, "alice", 10)
	require.Error(t, err)

	rc, err := f.round.PlaceBet(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rc.Snapshot.Seq, "rejected bet must not bump seq")
	assert.Equal(t, int64(50), rc.Snapshot.Balance)
	assert.Equal(t, []lottery.Participant{{Address: "alice", Amount: 50}}, rc.Snapshot.Participants)

	rc, err = f.round.PlaceBet(ctx, "bob", 50)
	require.NoError(t, err)
	require.True(t, rc.Filled)
	assert.Equal(t, lottery.StateIdle, rc.Snapshot.State)
	assert.Equal(t, uint64(3), rc.Snapshot.Seq)
	assert.Equal(t, uint64(1), rc.Snapshot.RoundNo)

	_, err = f.round.Open(ctx, admin, 3, 5)
	require.NoError(t, err)
	c, err := f.round.Cancel(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.RoundNo)
	assert.Equal(t, lottery.StateIdle, c.Snapshot.State)
	assert.Equal(t, uint64(5), c.Snapshot.Seq)
	assert.Equal(t, f.round.Snapshot(), c.Snapshot)
}

func TestPlaceBet_SameAddressCanBetTwice(t *testing.T) {
	f := newFixture(t, 0, fixedSelector(0))
	ctx := context.Background()
	f.fund(t, 100, "alice", "bob")
	require.NoError(t, open(ctx, f.round, admin, 3, 50))

	_, err := f.round.PlaceBet(ctx, "alice", 50)
	require.NoError(t, err)
	rc, err := f.round.PlaceBet(ctx, "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, 2, rc.Position)

	rc, err = f.round.PlaceBet(ctx, "bob", 50)
	require.NoError(t, err)
	require.True(t, rc.Filled)
	assert.Len(t, rc.Settlement.Participants, 3)
	assert.Equal(t, int64(150), f.balance(t, "alice"))
	assert.Equal(t, int64(50), f.balance(t, "bob"))
}

func TestPlaceBet_FillPaysWinnerAndAdmin(t *testing.T) {
	f := newFixture(t, 2, fixedSelector(1))
	ctx := context.Background()
	f.fund(t, 100, "alice", "bob", "carol")
	require.NoError(t, open(ctx, f.round, admin, 3, 50))

	for _, p := range []string{"alice", "bob"} {
		_, err := f.round.PlaceBet(ctx, p, 50)
		require.NoError(t, err)
	}
	rc, err := f.round.PlaceBet(ctx, "carol", 50)
	require.NoError(t, err)

	require.True(t, rc.Filled)
	require.NotNil(t, rc.Settlement)
	st := rc.Settlement
	assert.Equal(t, int64(150), st.Pool)
	assert.Equal(t, int64(3), st.Fee)
	assert.Equal(t, int64(147), st.Payout)
	assert.Equal(t, "bob", st.Winner)
	assert.Equal(t, 1, st.WinnerIndex)
	assert.Len(t, st.Participants, 3)

	assert.Equal(t, int64(50), f.balance(t, "alice"))
	assert.Equal(t, int64(100-50+147), f.balance(t, "bob"))
	assert.Equal(t, int64(50), f.balance(t, "carol"))
	assert.Equal(t, int64(3), f.balance(t, admin))
	assert.Zero(t, f.balance(t, f.escrow))
	assertIdle(t, f.round)
}

func TestPlaceBet_ExactlyOneWinnerNetsPoolMinusFee(t *testing.T) {
	const ether = int64(1_000_000_000_000_000_000)
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	players := []string{"p1", "p2", "p3"}
	f.fund(t, 2*ether, players...)
	require.NoError(t, open(ctx, f.round, admin, 3, ether))

	for _, p := range players {
		_, err := f.round.PlaceBet(ctx, p, ether)
		require.NoError(t, err)
	}

	winners := 0
	for _, p := range players {
		switch net := f.balance(t, p) - 2*ether; net {
		case ether / 100 * 194:
			winners++
		case -ether:
		default:
			t.Fatalf("unexpected net balance change for %s: %d", p, net)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 6*ether/100, f.balance(t, admin))
	assertIdle(t, f.round)
}

func TestPlaceBet_SingleParticipantRoundSettlesImmediately(t *testing.T) {
	f := newFixture(t, 10, nil)
	ctx := context.Background()
	f.fund(t, 10, "alice")
	require.NoError(t, open(ctx, f.round, admin, 1, 10))

	rc, err := f.round.PlaceBet(ctx, "alice", 10)
	require.NoError(t, err)
	assert.True(t, rc.Filled)
	assert.Equal(t, int64(9), f.balance(t, "alice"))
	assert.Equal(t, int64(1), f.balance(t, admin))
	assertIdle(t, f.round)
}

func TestPlaceBet_ZeroLegsAreOmitted(t *testing.T) {
	tests := []struct {
		name       string
		fee        int64
		wantKinds  []lottery.TransferKind
		wantAdmin  int64
		wantWinner int64
	}{
		{name: "no fee", fee: 0, wantKinds: []lottery.TransferKind{lottery.KindDeposit, lottery.KindPayout}, wantAdmin: 0, wantWinner: 20},
		{name: "full fee", fee: 100, wantKinds: []lottery.TransferKind{lottery.KindDeposit, lottery.KindFee}, wantAdmin: 20, wantWinner: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &FakeLedger{}
			r, err := lottery.New(lottery.Config{Admin: admin, FeePercent: tt.fee, Ledger: fake, Selector: fixedSelector(0)})
			require.NoError(t, err)
			ctx := context.Background()
			require.NoError(t, open(ctx, r, admin, 2, 10))
			_, err = r.PlaceBet(ctx, "alice", 10)
			require.NoError(t, err)
			rc, err := r.PlaceBet(ctx, "bob", 10)
			require.NoError(t, err)

			calls := fake.Calls()
			require.Len(t, calls, 2)
			var kinds []lottery.TransferKind
			for _, leg := range calls[1] {
				kinds = append(kinds, leg.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)
			assert.Equal(t, tt.wantAdmin, rc.Settlement.Fee)
			assert.Equal(t, tt.wantWinner, rc.Settlement.Payout)
		})
	}
}

func TestPlaceBet_DepositFailureKeepsRoundUnchanged(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	f.fund(t, 10, "alice")
	require.NoError(t, open(ctx, f.round, admin, 3, 50))

	_, err := f.round.PlaceBet(ctx, "alice", 50)
	require.ErrorIs(t, err, lottery.ErrTransferFailure)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	snap := f.round.Snapshot()
	assert.Equal(t, lottery.StateBetting, snap.State)
	assert.Empty(t, snap.Participants)
	assert.Equal(t, int64(10), f.balance(t, "alice"))
}

func TestPlaceBet_SettlementFailureIsAtomic(t *testing.T) {
	f := newFixture(t, 2, fixedSelector(0))
	ctx := context.Background()
	f.fund(t, 100, "alice", "bob", "carol")
	require.NoError(t, open(ctx, f.round, admin, 3, 50))
	for _, p := range []string{"alice", "bob"} {
		_, err := f.round.PlaceBet(ctx, p, 50)
		require.NoError(t, err)
	}

	f.ledger.Block("alice")
	_, err := f.round.PlaceBet(ctx, "carol", 50)
	require.ErrorIs(t, err, lottery.ErrTransferFailure)
	assert.ErrorIs(t, err, ledger.ErrAccountBlocked)

	snap := f.round.Snapshot()
	assert.Equal(t, lottery.StateBetting, snap.State)
	assert.Len(t, snap.Participants, 2)
	assert.Equal(t, int64(100), snap.Balance)
	assert.Equal(t, int64(100), f.balance(t, f.escrow))
	assert.Equal(t, int64(100), f.balance(t, "carol"))
	assert.Zero(t, f.balance(t, admin))

	// depois de liberar a conta, a mesma aposta liquida normalmente
	f.ledger.Unblock("alice")
	rc, err := f.round.PlaceBet(ctx, "carol", 50)
	require.NoError(t, err)
	assert.True(t, rc.Filled)
	assertIdle(t, f.round)
}

func TestPlaceBet_SelectorOutOfRange(t *testing.T) {
	f := newFixture(t, 2, fixedSelector(5))
	ctx := context.Background()
	f.fund(t, 10, "alice")
	require.NoError(t, open(ctx, f.round, admin, 1, 10))

	_, err := f.round.PlaceBet(ctx, "alice", 10)
	require.ErrorIs(t, err, lottery.ErrInvalidSelection)
	assert.Equal(t, int64(10), f.balance(t, "alice"))
	assert.Equal(t, lottery.StateBetting, f.round.State())
}

func TestPlaceBet_SelectorError(t *testing.T) {
	boom := errors.New("randomness unavailable")
	sel := lottery.SelectorFunc(func([]lottery.Participant, []byte) (int, error) { return 0, boom })
	f := newFixture(t, 2, sel)
	ctx := context.Background()
	f.fund(t, 10, "alice")
	require.NoError(t, open(ctx, f.round, admin, 1, 10))

	_, err := f.round.PlaceBet(ctx, "alice", 10)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(10), f.balance(t, "alice"))
	assert.Empty(t, f.round.Snapshot().Participants)
}

func TestPlaceBet_ConcurrentBetsNeverOverfill(t *testing.T) {
	const (
		size    = 10
		players = 50
	)
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, open(ctx, f.round, admin, size, 1))

	accounts := make([]string, players)
	for i := range accounts {
		accounts[i] = "player-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	f.fund(t, 1, accounts...)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		filled   int
	)
	for _, acc := range accounts {
		wg.Add(1)
		go func(acc string) {
			defer wg.Done()
			rc, err := f.round.PlaceBet(ctx, acc, 1)
			if err != nil {
				assert.ErrorIs(t, err, lottery.ErrInvalidState)
				return
			}
			mu.Lock()
			accepted++
			if rc.Filled {
				filled++
			}
			mu.Unlock()
		}(acc)
	}
	wg.Wait()

	assert.Equal(t, size, accepted)
	assert.Equal(t, 1, filled)
	assertIdle(t, f.round)
	assert.Zero(t, f.balance(t, f.escrow))
}

func TestCancel_RejectsNonAdmin(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, open(ctx, f.round, admin, 3, 100))

	_, err := f.round.Cancel(ctx, "player")
	assert.ErrorIs(t, err, lottery.ErrUnauthorized)
	assert.Equal(t, lottery.StateBetting, f.round.State())
	assert.Equal(t, 3, f.round.BetCount())
}

func TestCancel_RejectsWhenIdle(t *testing.T) {
	f := newFixture(t, 2, nil)

	_, err := f.round.Cancel(context.Background(), admin)
	assert.ErrorIs(t, err, lottery.ErrInvalidState)
}

func TestCancel_WithoutParticipants(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	require.NoError(t, open(ctx, f.round, admin, 3, 100))

	c, err := f.round.Cancel(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, c.Refunds)
	assertIdle(t, f.round)
	assert.Empty(t, f.ledger.Entries())
}

func TestCancel_RefundsEveryParticipant(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	f.fund(t, 250, "alice", "bob")
	require.NoError(t, open(ctx, f.round, admin, 3, 100))
	for _, p := range []string{"alice", "bob"} {
		_, err := f.round.PlaceBet(ctx, p, 100)
		require.NoError(t, err)
	}

	c, err := f.round.Cancel(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.RoundNo)
	assert.Equal(t, []lottery.Participant{{Address: "alice", Amount: 100}, {Address: "bob", Amount: 100}}, c.Refunds)

	assert.Equal(t, int64(250), f.balance(t, "alice"))
	assert.Equal(t, int64(250), f.balance(t, "bob"))
	assert.Zero(t, f.balance(t, f.escrow))
	assert.Zero(t, f.balance(t, admin))
	assertIdle(t, f.round)

	// a rodada pode ser reaberta depois do cancelamento
	require.NoError(t, open(ctx, f.round, admin, 2, 5))
	assert.Equal(t, uint64(2), f.round.Snapshot().RoundNo)
}

func TestCancel_RefundFailureIsAtomic(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	f.fund(t, 100, "alice", "bob")
	require.NoError(t, open(ctx, f.round, admin, 3, 100))
	for _, p := range []string{"alice", "bob"} {
		_, err := f.round.PlaceBet(ctx, p, 100)
		require.NoError(t, err)
	}

	f.ledger.Block("bob")
	_, err := f.round.Cancel(ctx, admin)
	require.ErrorIs(t, err, lottery.ErrTransferFailure)

	snap := f.round.Snapshot()
	assert.Equal(t, lottery.StateBetting, snap.State)
	assert.Len(t, snap.Participants, 2)
	assert.Zero(t, f.balance(t, "alice"), "no partial refund")
	assert.Equal(t, int64(200), f.balance(t, f.escrow))
}

func TestCancel_ReportsLedgerError(t *testing.T) {
	boom := errors.New("db down")
	fake := &FakeLedger{}
	r, err := lottery.New(lottery.Config{Admin: admin, Ledger: fake})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, open(ctx, r, admin, 2, 10))
	_, err = r.PlaceBet(ctx, "alice", 10)
	require.NoError(t, err)

	fake.TransferFn = func(context.Context, string, []lottery.Transfer) error { return boom }
	_, err = r.Cancel(ctx, admin)
	require.ErrorIs(t, err, lottery.ErrTransferFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, lottery.StateBetting, r.State())
}
