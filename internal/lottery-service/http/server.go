package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/lottery-pool-poc/internal/ledger"
	"github.com/radieske/lottery-pool-poc/internal/lottery"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/dto"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/metrics"
	"github.com/radieske/lottery-pool-poc/pkg/contracts/events"
)

// Round é a rodada exposta pela API (implementada por *lottery.Round)
type Round interface {
	ID() string
	Open(ctx context.Context, caller string, roundSize int, stake int64) (lottery.Snapshot, error)
	PlaceBet(ctx context.Context, caller string, amount int64) (*lottery.BetReceipt, error)
	Cancel(ctx context.Context, caller string) (*lottery.Cancellation, error)
	Snapshot() lottery.Snapshot
}

// Wallets define as operações de carteira usadas pelos handlers /wallet
type Wallets interface {
	Deposit(ctx context.Context, account string, amount int64, externalRef string) (int64, error)
	Balance(ctx context.Context, account string) (int64, error)
}

// Publisher publica eventos da rodada (Kafka)
type Publisher interface {
	PublishRoundEvent(ctx context.Context, e events.RoundEvent) error
}

// SnapshotStore guarda e difunde o snapshot da rodada (Redis)
type SnapshotStore interface {
	Store(ctx context.Context, roundID string, seq uint64, snapshot any) error
}

// HistoryReader lê a trilha de auditoria de uma rodada (Postgres)
type HistoryReader interface {
	ListRoundEvents(ctx context.Context, roundID string, roundNo uint64) ([]dto.AuditEvent, error)
}

// Server expõe as operações da rodada e da carteira via HTTP
type Server struct {
	log     *zap.Logger
	round   Round
	wallets Wallets
	publ    Publisher
	cache   SnapshotStore
	metrics *metrics.Lottery
	history HistoryReader
}

// NewServer instancia o servidor HTTP do lottery-service
func NewServer(log *zap.Logger, r Round, w Wallets, p Publisher, c SnapshotStore, m *metrics.Lottery) *Server {
	return &Server{log: log, round: r, wallets: w, publ: p, cache: c, metrics: m}
}

// WithHistory habilita GET /round/{roundNo}/events
func (s *Server) WithHistory(h HistoryReader) *Server {
	s.history = h
	return s
}

// Router retorna o roteador com as rotas da rodada e da carteira
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/round", s.getRound)            // snapshot da rodada
	r.Post("/round/open", s.openRound)     // admin
	r.Post("/round/bet", s.placeBet)       // participante
	r.Post("/round/cancel", s.cancelRound) // admin
	r.Get("/round/{roundNo}/events", s.roundHistory)
	r.Get("/wallet", s.getWallet)          // GET ?userId=...
	r.Post("/wallet/deposit", s.deposit)   // top-up
	return r
}

func (s *Server) getRound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toRoundResponse(s.round.Snapshot()))
}

// openRound abre a rodada; só o admin pode e apenas em IDLE
func (s *Server) openRound(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req dto.OpenRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	snap, err := s.round.Open(r.Context(), req.CallerID, req.BetCount, req.BetSizeCents)
	if err != nil {
		s.fail(w, "open", err, started)
		return
	}
	s.metrics.RecordOp("open", "success", started)

	s.emit(r.Context(), snap, events.RoundEvent{
		Type:         events.RoundOpened,
		RoundID:      snap.ID,
		RoundNo:      snap.RoundNo,
		Caller:       req.CallerID,
		BetCount:     snap.BetCount,
		BetSizeCents: snap.BetSize,
	})
	writeJSON(w, http.StatusOK, toRoundResponse(snap))
}

// placeBet registra a aposta; a última aposta da rodada já volta com a liquidação
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	rc, err := s.round.PlaceBet(r.Context(), req.UserID, req.AmountCents)
	if err != nil {
		s.fail(w, "bet", err, started)
		return
	}
	s.metrics.RecordOp("bet", "success", started)

	snap := rc.Snapshot
	ctx := r.Context()
	s.emit(ctx, snap, events.RoundEvent{
		Type:        events.BetPlaced,
		RoundID:     snap.ID,
		RoundNo:     rc.RoundNo,
		Caller:      req.UserID,
		AmountCents: req.AmountCents,
		Position:    rc.Position,
	})

	resp := dto.BetResponse{RoundNo: rc.RoundNo, Position: rc.Position, Filled: rc.Filled}
	if st := rc.Settlement; st != nil {
		s.metrics.RecordSettlement(st.Payout, st.Fee)
		s.emit(ctx, snap, settledEvent(snap.ID, req.UserID, st))
		resp.Settlement = &dto.SettlementResponse{
			Winner:      st.Winner,
			PoolCents:   st.Pool,
			PayoutCents: st.Payout,
			FeeCents:    st.Fee,
			Seed:        hexSeed(st.Seed),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// cancelRound devolve todas as apostas; só o admin pode e apenas em BETTING
func (s *Server) cancelRound(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req dto.CancelRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	c, err := s.round.Cancel(r.Context(), req.CallerID)
	if err != nil {
		s.fail(w, "cancel", err, started)
		return
	}
	s.metrics.RecordOp("cancel", "success", started)

	var refunded int64
	for _, p := range c.Refunds {
		refunded += p.Amount
	}
	s.metrics.RecordCancellation(refunded)

	snap := c.Snapshot
	s.emit(r.Context(), snap, events.RoundEvent{
		Type:    events.RoundCancelled,
		RoundID: snap.ID,
		RoundNo: c.RoundNo,
		Caller:  req.CallerID,
		Refunds: toEntries(c.Refunds),
	})
	writeJSON(w, http.StatusOK, dto.CancelResponse{RoundNo: c.RoundNo, Refunds: toParticipants(c.Refunds)})
}

// roundHistory lista os eventos gravados pelo round-audit-worker para a rodada
func (s *Server) roundHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	roundNo, err := strconv.ParseUint(chi.URLParam(r, "roundNo"), 10, 64)
	if err != nil || roundNo == 0 {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	roundID := s.round.ID()
	evs, err := s.history.ListRoundEvents(r.Context(), roundID, roundNo)
	if err != nil {
		s.log.Error("round history", zap.Uint64("round_no", roundNo), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, dto.HistoryResponse{RoundID: roundID, RoundNo: roundNo, Events: evs})
}

// getWallet retorna o saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	bal, err := s.wallets.Balance(r.Context(), userID)
	if err != nil {
		s.log.Error("wallet balance", zap.String("userId", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "wallet unavailable")
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: userID, BalanceCents: bal})
}

// deposit adiciona saldo à carteira do usuário; contas de escrow não aceitam top-up
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 || strings.HasPrefix(req.UserID, lottery.EscrowAccount("")) {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	bal, err := s.wallets.Deposit(r.Context(), req.UserID, req.AmountCents, req.ExternalRef)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidTransfer) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("wallet deposit", zap.String("userId", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "wallet unavailable")
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: req.UserID, BalanceCents: bal})
}

// emit publica o evento e atualiza o snapshot no cache.
// snap precisa ser o snapshot devolvido pela própria operação, não um Snapshot() posterior.
// Falhas aqui são só logadas: a operação na rodada já foi efetivada.
func (s *Server) emit(ctx context.Context, snap lottery.Snapshot, ev events.RoundEvent) {
	s.metrics.SetEscrow(snap.Balance)
	if s.publ != nil {
		if err := s.publ.PublishRoundEvent(ctx, ev); err != nil {
			s.log.Warn("publish round event failed", zap.String("type", ev.Type), zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Store(ctx, snap.ID, snap.Seq, toRoundResponse(snap)); err != nil {
			s.log.Warn("store round snapshot failed", zap.Error(err))
		}
	}
}

// fail traduz o erro da rodada em status HTTP e registra a métrica
func (s *Server) fail(w http.ResponseWriter, op string, err error, started time.Time) {
	status, result := classify(err)
	s.metrics.RecordOp(op, result, started)
	if status == http.StatusInternalServerError {
		s.log.Error("round operation failed", zap.String("op", op), zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	s.log.Debug("round operation rejected", zap.String("op", op), zap.Error(err))
	writeError(w, status, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, lottery.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, lottery.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, lottery.ErrWrongAmount):
		return http.StatusBadRequest, "wrong_amount"
	case errors.Is(err, lottery.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, lottery.ErrTransferFailure):
		return http.StatusPaymentRequired, "transfer_failure"
	default:
		return http.StatusInternalServerError, "error"
	}
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
