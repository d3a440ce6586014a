// Package web exposes the planner over HTTP: JSON endpoints for plan and
// rebalance requests, SSE streams over the decision journal, and prometheus
// metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lendplanner/internal/domain"
	"lendplanner/internal/services/planner"
	"lendplanner/internal/services/rebalance"
)

const journalPollInterval = 2 * time.Second

type planService interface {
	BuildConversionPlan(ctx context.Context, req planner.Request) (domain.ConversionPlan, error)
	ComputeRebalance(ctx context.Context, req rebalance.Request) (domain.RebalancePlan, error)
}

type journalReader interface {
	PlansAfter(index uint64) ([]domain.PlanEventRecord, error)
	RebalancesAfter(index uint64) ([]domain.RebalanceEventRecord, error)
}

// Server exposes HTTP endpoints over the plan service.
type Server struct {
	Addr     string
	Service  planService
	Journal  journalReader
	Registry *prometheus.Registry
	L        *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, service planService, journal journalReader, registry *prometheus.Registry, l *zap.Logger) *Server {
	return &Server{Addr: addr, Service: service, Journal: journal, Registry: registry, L: l}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/plan", s.handlePlan)
	mux.HandleFunc("/rebalance", s.handleRebalance)
	mux.HandleFunc("/plans/stream", s.handlePlanStream)
	if s.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type assetPayload struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

func (a assetPayload) toDomain() (domain.Asset, error) {
	if !common.IsHexAddress(a.Address) {
		return domain.Asset{}, fmt.Errorf("invalid asset address %q", a.Address)
	}
	return domain.Asset{
		Address:  common.HexToAddress(a.Address),
		Symbol:   a.Symbol,
		Decimals: a.Decimals,
	}, nil
}

type planPayload struct {
	Collateral         assetPayload    `json:"collateral"`
	Borrow             assetPayload    `json:"borrow"`
	AmountIn           decimal.Decimal `json:"amount_in"`
	EntryKind          int             `json:"entry_kind"`
	ProportionX        decimal.Decimal `json:"proportion_x"`
	ProportionY        decimal.Decimal `json:"proportion_y"`
	HealthFactorTarget decimal.Decimal `json:"health_factor_target"`
	Periods            int64           `json:"periods"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload planPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	collateral, err := payload.Collateral.toDomain()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	borrow, err := payload.Borrow.toDomain()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := planner.Request{
		Pair:     domain.AssetPair{Collateral: collateral, Borrow: borrow},
		AmountIn: payload.AmountIn,
		Kind:     domain.EntryKind(payload.EntryKind),
		Params: domain.EntryParams{
			ProportionX: payload.ProportionX,
			ProportionY: payload.ProportionY,
		},
		HealthFactorTarget: payload.HealthFactorTarget,
		Periods:            payload.Periods,
	}

	plan, err := s.Service.BuildConversionPlan(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"null": plan.IsNull(),
		"plan": plan,
	})
}

type rebalancePayload struct {
	Collateral         assetPayload    `json:"collateral"`
	Borrow             assetPayload    `json:"borrow"`
	CollateralAmount   decimal.Decimal `json:"collateral_amount"`
	DebtAmount         decimal.Decimal `json:"debt_amount"`
	TargetHealthFactor decimal.Decimal `json:"target_health_factor"`
	Direction          string          `json:"direction,omitempty"`
	Amount             decimal.Decimal `json:"amount,omitempty"`
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload rebalancePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	collateral, err := payload.Collateral.toDomain()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	borrow, err := payload.Borrow.toDomain()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	position, err := domain.NewPosition(
		domain.AssetPair{Collateral: collateral, Borrow: borrow},
		payload.CollateralAmount, payload.DebtAmount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := rebalance.Request{
		Position:           position,
		TargetHealthFactor: payload.TargetHealthFactor,
		Direction:          parseDirection(payload.Direction),
		Amount:             payload.Amount,
	}

	plan, err := s.Service.ComputeRebalance(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrHealthFactorViolation):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"direction":               plan.Direction.String(),
		"amount":                  plan.Amount,
		"resulting_health_factor": plan.ResultingHealthFactor,
		"infinite":                plan.Infinite,
	})
}

func parseDirection(s string) domain.RebalanceDirection {
	switch s {
	case "repay_borrow_asset":
		return domain.RebalanceRepayBorrowAsset
	case "repay_collateral_asset":
		return domain.RebalanceRepayCollateralAsset
	default:
		return domain.RebalanceNoAction
	}
}

func (s *Server) handlePlanStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeat every 30s so proxies keep the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendRecords := func() error {
		records, err := s.Journal.PlansAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return err
			}
			lastIndex = record.Index
		}
		if len(records) > 0 {
			flusher.Flush()
		}
		return nil
	}

	if err := sendRecords(); err != nil {
		s.L.Error("plan stream write failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendRecords(); err != nil {
				s.L.Error("plan stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
