package lottery

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State é o estado da rodada
type State int

const (
	StateIdle State = iota
	StateBetting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBetting:
		return "BETTING"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Participant é uma aposta aceita na rodada corrente
type Participant struct {
	Address string
	Amount  int64
}

// Config reúne os parâmetros imutáveis da rodada
type Config struct {
	ID         string // identifica a conta de escrow; gera UUID se vazio
	Admin      string
	FeePercent int64 // ex: 2 = 2%
	Ledger     Ledger
	Selector   Selector // default: HashSelector
	Seed       []byte   // default: 32 bytes aleatórios
	Log        *zap.Logger
}

// Snapshot é uma cópia do estado da rodada em um instante
type Snapshot struct {
	ID           string
	Seq          uint64 // cresce a cada operação aceita; ordena snapshots fora de ordem
	RoundNo      uint64
	State        State
	BetCount     int
	BetSize      int64
	Participants []Participant
	Balance      int64
	Admin        string
	FeePercent   int64
}

// BetReceipt é o resultado de uma aposta aceita.
// Settlement só vem preenchido quando a aposta encheu a rodada.
type BetReceipt struct {
	RoundNo    uint64
	Position   int
	Filled     bool
	Settlement *Settlement
	Snapshot   Snapshot // estado logo após a aposta, tirado sob o lock
}

// Cancellation lista os reembolsos feitos no cancelamento
type Cancellation struct {
	RoundNo  uint64
	Refunds  []Participant
	Snapshot Snapshot
}

// Round é a máquina de estados do bolão: IDLE --open--> BETTING --(última aposta | cancel)--> IDLE.
// Todas as operações rodam sob o mesmo mutex, inclusive a chamada ao ledger,
// então ninguém observa uma rodada cheia que ainda não foi paga.
type Round struct {
	mu sync.Mutex

	id         string
	admin      string
	feePercent int64
	escrow     string
	ledger     Ledger
	selector   Selector
	seed       []byte
	log        *zap.Logger

	state        State
	seq          uint64
	roundNo      uint64
	betCount     int
	betSize      int64
	participants []Participant
	balance      int64
}

// New cria uma rodada em IDLE
func New(cfg Config) (*Round, error) {
	if cfg.Admin == "" {
		return nil, fmt.Errorf("%w: admin required", ErrInvalidArgument)
	}
	if cfg.FeePercent < 0 || cfg.FeePercent > 100 {
		return nil, fmt.Errorf("%w: fee percent %d outside 0..100", ErrInvalidArgument, cfg.FeePercent)
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger required", ErrInvalidArgument)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Selector == nil {
		cfg.Selector = HashSelector()
	}
	if len(cfg.Seed) == 0 {
		cfg.Seed = make([]byte, 32)
		if _, err := rand.Read(cfg.Seed); err != nil {
			return nil, fmt.Errorf("generate seed: %w", err)
		}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	return &Round{
		id:         cfg.ID,
		admin:      cfg.Admin,
		feePercent: cfg.FeePercent,
		escrow:     EscrowAccount(cfg.ID),
		ledger:     cfg.Ledger,
		selector:   cfg.Selector,
		seed:       append([]byte(nil), cfg.Seed...),
		log:        cfg.Log.With(zap.String("round_id", cfg.ID)),
		state:      StateIdle,
	}, nil
}

// ID retorna o identificador da rodada
func (r *Round) ID() string { return r.id }

// Admin retorna a identidade autorizada a abrir e cancelar rodadas
func (r *Round) Admin() string { return r.admin }

// Open abre uma nova rodada com roundSize participantes apostando stake cada.
// Devolve o snapshot da rodada recém-aberta.
func (r *Round) Open(ctx context.Context, caller string, roundSize int, stake int64) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		r.log.Debug("open rejected", zap.String("caller", caller), zap.Error(ErrUnauthorized))
		return Snapshot{}, ErrUnauthorized
	}
	if r.state != StateIdle {
		r.log.Debug("open rejected", zap.Stringer("state", r.state), zap.Error(ErrInvalidState))
		return Snapshot{}, ErrInvalidState
	}
	if roundSize < 1 || stake <= 0 {
		return Snapshot{}, fmt.Errorf("%w: round size %d, stake %d", ErrInvalidArgument, roundSize, stake)
	}
	if stake > math.MaxInt64/int64(roundSize) {
		return Snapshot{}, fmt.Errorf("%w: pool of %d x %d overflows", ErrInvalidArgument, roundSize, stake)
	}

	r.seq++
	r.roundNo++
	r.betCount = roundSize
	r.betSize = stake
	r.state = StateBetting

	r.log.Info("round opened",
		zap.Uint64("round_no", r.roundNo),
		zap.Int("bet_count", roundSize),
		zap.Int64("bet_size", stake),
	)
	return r.snapshot(), nil
}

// PlaceBet registra a aposta de caller. A aposta que completa betCount
// liquida a rodada na mesma chamada: depósito, prêmio e taxa vão ao ledger juntos.
func (r *Round) PlaceBet(ctx context.Context, caller string, amount int64) (*BetReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateBetting {
		r.log.Debug("bet rejected", zap.String("caller", caller), zap.Error(ErrInvalidState))
		return nil, ErrInvalidState
	}
	if caller == "" {
		return nil, fmt.Errorf("%w: caller required", ErrInvalidArgument)
	}
	if caller == r.escrow {
		return nil, fmt.Errorf("%w: escrow account cannot bet", ErrInvalidArgument)
	}
	if amount != r.betSize {
		r.log.Debug("bet rejected", zap.String("caller", caller), zap.Int64("amount", amount))
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongAmount, amount, r.betSize)
	}

	deposit := Transfer{From: caller, To: r.escrow, Amount: amount, Kind: KindDeposit}
	entry := Participant{Address: caller, Amount: amount}

	if !r.fills() {
		if err := r.ledger.Transfer(ctx, r.ref("bet", len(r.participants)), []Transfer{deposit}); err != nil {
			r.log.Warn("deposit failed", zap.String("caller", caller), zap.Error(err))
			return nil, fmt.Errorf("%w: deposit: %w", ErrTransferFailure, err)
		}
		r.seq++
		r.participants = append(r.participants, entry)
		r.balance += amount
		r.log.Info("bet placed",
			zap.String("caller", caller),
			zap.Int("position", len(r.participants)),
			zap.Int("bet_count", r.betCount),
		)
		return &BetReceipt{RoundNo: r.roundNo, Position: len(r.participants), Snapshot: r.snapshot()}, nil
	}

	// rodada enche com esta aposta: nada é mutado até o ledger confirmar
	staged := make([]Participant, len(r.participants), len(r.participants)+1)
	copy(staged, r.participants)
	staged = append(staged, entry)

	st, err := r.settle(staged)
	if err != nil {
		return nil, err
	}

	legs := append([]Transfer{deposit}, st.transfers(r.escrow, r.admin)...)
	if err := r.ledger.Transfer(ctx, r.ref("settle", len(staged)), legs); err != nil {
		r.log.Error("settlement failed", zap.Uint64("round_no", r.roundNo), zap.Error(err))
		return nil, fmt.Errorf("%w: settlement: %w", ErrTransferFailure, err)
	}

	r.log.Info("round settled",
		zap.Uint64("round_no", st.RoundNo),
		zap.String("winner", st.Winner),
		zap.Int64("pool", st.Pool),
		zap.Int64("payout", st.Payout),
		zap.Int64("fee", st.Fee),
	)
	r.reset()

	return &BetReceipt{
		RoundNo:    st.RoundNo,
		Position:   len(staged),
		Filled:     true,
		Settlement: &st,
		Snapshot:   r.snapshot(),
	}, nil
}

// Cancel devolve a cada participante o valor depositado e volta a rodada para IDLE.
// Os reembolsos vão ao ledger em uma única chamada: ou todos saem, ou nenhum.
func (r *Round) Cancel(ctx context.Context, caller string) (*Cancellation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		r.log.Debug("cancel rejected", zap.String("caller", caller), zap.Error(ErrUnauthorized))
		return nil, ErrUnauthorized
	}
	if r.state != StateBetting {
		r.log.Debug("cancel rejected", zap.Stringer("state", r.state), zap.Error(ErrInvalidState))
		return nil, ErrInvalidState
	}

	refunds := make([]Participant, len(r.participants))
	copy(refunds, r.participants)

	if len(refunds) > 0 {
		legs := make([]Transfer, 0, len(refunds))
		for _, p := range refunds {
			legs = append(legs, Transfer{From: r.escrow, To: p.Address, Amount: p.Amount, Kind: KindRefund})
		}
		if err := r.ledger.Transfer(ctx, r.ref("cancel", len(refunds)), legs); err != nil {
			r.log.Error("refund failed", zap.Uint64("round_no", r.roundNo), zap.Error(err))
			return nil, fmt.Errorf("%w: refund: %w", ErrTransferFailure, err)
		}
	}

	roundNo := r.roundNo
	r.log.Info("round cancelled", zap.Uint64("round_no", roundNo), zap.Int("refunds", len(refunds)))
	r.reset()
	return &Cancellation{RoundNo: roundNo, Refunds: refunds, Snapshot: r.snapshot()}, nil
}

// State retorna o estado corrente
func (r *Round) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// BetCount retorna o número de apostas necessárias para encher a rodada (0 em IDLE)
func (r *Round) BetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.betCount
}

// BetSize retorna o valor exato de cada aposta (0 em IDLE)
func (r *Round) BetSize() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.betSize
}

// Snapshot retorna uma cópia consistente do estado corrente
func (r *Round) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// snapshot exige r.mu travado
func (r *Round) snapshot() Snapshot {
	ps := make([]Participant, len(r.participants))
	copy(ps, r.participants)
	return Snapshot{
		ID:           r.id,
		Seq:          r.seq,
		RoundNo:      r.roundNo,
		State:        r.state,
		BetCount:     r.betCount,
		BetSize:      r.betSize,
		Participants: ps,
		Balance:      r.balance,
		Admin:        r.admin,
		FeePercent:   r.feePercent,
	}
}

// fills indica se a próxima aposta aceita completa a rodada
func (r *Round) fills() bool { return len(r.participants)+1 == r.betCount }

// settle calcula a distribuição e sorteia o vencedor entre os participantes informados
func (r *Round) settle(participants []Participant) (Settlement, error) {
	st := ComputeSettlement(r.betSize, r.betCount, r.feePercent)
	st.RoundNo = r.roundNo
	st.Participants = participants
	st.Seed = roundSeed(r.seed, r.roundNo)

	idx, err := r.selector.Select(participants, st.Seed)
	if err != nil {
		return Settlement{}, fmt.Errorf("select winner: %w", err)
	}
	if idx < 0 || idx >= len(participants) {
		return Settlement{}, fmt.Errorf("%w: index %d of %d", ErrInvalidSelection, idx, len(participants))
	}
	st.WinnerIndex = idx
	st.Winner = participants[idx].Address
	return st, nil
}

func (r *Round) reset() {
	r.seq++
	r.participants = nil
	r.betCount = 0
	r.betSize = 0
	r.balance = 0
	r.state = StateIdle
}

// ref identifica a operação no ledger: <id>:<rodada>:<op>:<n>
func (r *Round) ref(op string, n int) string {
	return fmt.Sprintf("%s:%d:%s:%d", r.id, r.roundNo, op, n)
}
