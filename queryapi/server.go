// Package queryapi serves the read-only HTTP query surface for front-end
// tooling: fee entries and previews, pool factor, yield curves and
// staking positions. No endpoint mutates state.
package queryapi

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	dfmShared "github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager/shared"
	spShared "github.com/wesenditmedia/contracts-sub001/staking_pool/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FeeReader is the fee manager's read-only face.
type FeeReader interface {
	Fees() []dfmShared.FeeEntry
	FeeAmount(id common.Hash) *big.Int
	CalculateFees(from, to common.Address, amount *big.Int) (net, fee *big.Int, err error)
}

// PoolReader is the staking pool's read-only face.
type PoolReader interface {
	PoolFactor() (*big.Int, error)
	Apy(durationDays uint64) (*big.Int, error)
	Apr(durationDays uint64) (*big.Int, error)
	Position(id uint64) (*spShared.StakingPosition, error)
	PendingRewards(id uint64) (*big.Int, error)
	TotalStaked() *big.Int
	AllocatedShares() *big.Int
}

// Server is the query HTTP handler.
type Server struct {
	fees   FeeReader
	pool   PoolReader
	logger *zap.Logger
	mux    chi.Router
}

// NewServer builds the router.
func NewServer(fees FeeReader, pool PoolReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{fees: fees, pool: pool, logger: logger}

	mux := chi.NewRouter()
	mux.Use(s.requestLogger)
	mux.Route("/v1", func(r chi.Router) {
		r.Get("/fees", s.handleFees)
		r.Get("/fees/preview", s.handleFeePreview)
		r.Get("/pool/factor", s.handlePoolFactor)
		r.Get("/staking/apy", s.handleApy)
		r.Get("/staking/apr", s.handleApr)
		r.Get("/staking/positions/{id}", s.handlePosition)
		r.Get("/staking/positions/{id}/rewards", s.handlePendingRewards)
	})
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("query",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

type feeEntryView struct {
	Id                  string `json:"id"`
	From                string `json:"from"`
	To                  string `json:"to"`
	Percentage          string `json:"percentage"`
	Destination         string `json:"destination"`
	DoCallback          bool   `json:"doCallback"`
	DoLiquify           bool   `json:"doLiquify"`
	DoSwapForStable     bool   `json:"doSwapForStable"`
	SwapOrLiquifyAmount string `json:"swapOrLiquifyAmount"`
	CollectedAmount     string `json:"collectedAmount"`
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	entries := s.fees.Fees()
	views := make([]feeEntryView, len(entries))
	for i, e := range entries {
		views[i] = feeEntryView{
			Id:                  e.Id.Hex(),
			From:                e.From.Hex(),
			To:                  e.To.Hex(),
			Percentage:          e.Percentage.String(),
			Destination:         e.Destination.Hex(),
			DoCallback:          e.DoCallback,
			DoLiquify:           e.DoLiquify,
			DoSwapForStable:     e.DoSwapForStable,
			SwapOrLiquifyAmount: e.SwapOrLiquifyAmount.String(),
			CollectedAmount:     s.fees.FeeAmount(e.Id).String(),
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fees": views})
}

func (s *Server) handleFeePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, ok := new(big.Int).SetString(q.Get("amount"), 10)
	if !ok || amount.Sign() < 0 {
		http.Error(w, "bad amount", http.StatusBadRequest)
		return
	}
	from := common.HexToAddress(q.Get("from"))
	to := common.HexToAddress(q.Get("to"))

	net, fee, err := s.fees.CalculateFees(from, to, amount)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"amount": amount.String(),
		"net":    net.String(),
		"fee":    fee.String(),
	})
}

func (s *Server) handlePoolFactor(w http.ResponseWriter, r *http.Request) {
	factor, err := s.pool.PoolFactor()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"factor":  factor.String(),
		"percent": decimal.NewFromBigInt(factor, -18).String(),
	})
}

func (s *Server) handleApy(w http.ResponseWriter, r *http.Request) {
	s.handleYield(w, r, s.pool.Apy)
}

func (s *Server) handleApr(w http.ResponseWriter, r *http.Request) {
	s.handleYield(w, r, s.pool.Apr)
}

func (s *Server) handleYield(w http.ResponseWriter, r *http.Request, curve func(uint64) (*big.Int, error)) {
	duration, err := strconv.ParseUint(r.URL.Query().Get("duration"), 10, 64)
	if err != nil {
		http.Error(w, "bad duration", http.StatusBadRequest)
		return
	}
	value, err := curve(duration)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"durationDays": strconv.FormatUint(duration, 10),
		"value":        value.String(),
		"percent":      decimal.NewFromBigInt(value, -3).String(),
	})
}

type positionView struct {
	Id             uint64 `json:"id"`
	Owner          string `json:"owner"`
	Amount         string `json:"amount"`
	DurationDays   uint64 `json:"durationDays"`
	Shares         string `json:"shares"`
	ClaimedRewards string `json:"claimedRewards"`
	CreatedAt      int64  `json:"createdAt"`
	LastClaimedAt  int64  `json:"lastClaimedAt"`
	LockEnd        int64  `json:"lockEnd"`
	IsAutoCompound bool   `json:"isAutoCompound"`
	IsUnstaked     bool   `json:"isUnstaked"`
}

func (s *Server) positionId(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad position id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.positionId(w, r)
	if !ok {
		return
	}
	position, err := s.pool.Position(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positionView{
		Id:             position.Id,
		Owner:          position.Owner.Hex(),
		Amount:         position.Amount.String(),
		DurationDays:   position.DurationDays,
		Shares:         position.Shares.String(),
		ClaimedRewards: position.ClaimedRewards.String(),
		CreatedAt:      position.CreatedAt.Unix(),
		LastClaimedAt:  position.LastClaimedAt.Unix(),
		LockEnd:        position.LockEnd().Unix(),
		IsAutoCompound: position.IsAutoCompound,
		IsUnstaked:     position.IsUnstaked,
	})
}

func (s *Server) handlePendingRewards(w http.ResponseWriter, r *http.Request) {
	id, ok := s.positionId(w, r)
	if !ok {
		return
	}
	pending, err := s.pool.PendingRewards(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"pending": pending.String(),
		"tokens":  decimal.NewFromBigInt(pending, -18).String(),
	})
}
