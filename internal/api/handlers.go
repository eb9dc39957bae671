package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/xtrntr/farmduel/internal/auth"
	"github.com/xtrntr/farmduel/internal/db"
	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
	"github.com/xtrntr/farmduel/internal/scheduler"
)

// SchedulerFactory builds a fresh scheduler for one competition and
// reports the PRNG seed it uses
type SchedulerFactory func() (*scheduler.Scheduler, int64, error)

// Ledger stores competition history. db.DB implements it.
type Ledger interface {
	CreateCompetition(ctx context.Context, seed int64, rules any) (string, error)
	RecordDay(ctx context.Context, competitionID string, snap models.Snapshot) error
	FinishCompetition(ctx context.Context, competitionID, status string, final models.Snapshot) error
	GetCompetitionTrades(ctx context.Context, competitionID string) ([]db.TradeRecord, error)
	LatestCompetition(ctx context.Context) (*db.Competition, error)
}

type contextKey string

const operatorKey contextKey = "operator"

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Rules        *rules.Rules
	NewScheduler SchedulerFactory
	Ledger       Ledger
	AuthService  *auth.AuthService
	Hub          *Hub
	Logger       *slog.Logger

	mu      sync.Mutex
	current *scheduler.Scheduler
	running bool
}

// NewHandler creates a new handler. ledger and authService may be nil.
func NewHandler(r *rules.Rules, newScheduler SchedulerFactory, ledger Ledger, authService *auth.AuthService, hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub([]string{"*"}, logger)
	}
	return &Handler{
		Rules:        r,
		NewScheduler: newScheduler,
		Ledger:       ledger,
		AuthService:  authService,
		Hub:          hub,
		Logger:       logger,
	}
}

// Routes mounts every endpoint. Control endpoints need an operator token
// when an auth service is configured.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ws", h.Hub.ServeWS)
	r.Get("/rules", h.GetRules)
	r.Get("/orderbook", h.GetOrderBook)
	r.Get("/trades", h.GetTrades)

	if h.AuthService != nil {
		r.Post("/auth/login", h.Login)
	}

	r.Group(func(r chi.Router) {
		if h.AuthService != nil {
			r.Use(h.JWTAuthMiddleware)
		}
		r.Get("/stream-competition", h.StreamCompetition)
		r.Post("/stop-competition", h.StopCompetition)
	})
}

// begin claims the single competition slot
func (h *Handler) begin() (*scheduler.Scheduler, int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil, 0, models.ErrCompetitionRunning
	}
	s, seed, err := h.NewScheduler()
	if err != nil {
		return nil, 0, err
	}
	h.current = s
	h.running = true
	return s, seed, nil
}

func (h *Handler) end() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

func (h *Handler) active() *scheduler.Scheduler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// StreamCompetition runs a competition and streams every snapshot as a
// server-sent event. Disconnecting stops the competition.
func (h *Handler) StreamCompetition(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "Streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	s, seed, err := h.begin()
	if errors.Is(err, models.ErrCompetitionRunning) {
		http.Error(w, `{"error": "Competition already running"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Logger.Error("failed to create competition", "error", err)
		http.Error(w, `{"error": "Failed to create competition"}`, http.StatusInternalServerError)
		return
	}
	defer h.end()

	// ledger writes outlive a disconnecting viewer
	ledgerCtx := context.WithoutCancel(r.Context())
	var competitionID string
	if h.Ledger != nil {
		competitionID, err = h.Ledger.CreateCompetition(ledgerCtx, seed, h.Rules)
		if err != nil {
			h.Logger.Error("failed to record competition, continuing without ledger", "error", err)
		}
	}
	h.Logger.Info("competition started", "seed", seed, "competition", competitionID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(snap models.Snapshot) error {
		h.record(ledgerCtx, competitionID, snap)
		h.Hub.Broadcast(snap)

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := s.Run(r.Context(), emit); err != nil {
		h.Logger.Warn("competition stream ended early", "error", err)
	}
}

func (h *Handler) record(ctx context.Context, competitionID string, snap models.Snapshot) {
	if h.Ledger == nil || competitionID == "" {
		return
	}
	if !snap.Final {
		if err := h.Ledger.RecordDay(ctx, competitionID, snap); err != nil {
			h.Logger.Error("failed to record day", "competition", competitionID, "day", snap.Day, "error", err)
		}
		return
	}
	status := db.StatusFinished
	if snap.Day < h.Rules.TotalDays {
		status = db.StatusStopped
	}
	if err := h.Ledger.FinishCompetition(ctx, competitionID, status, snap); err != nil {
		h.Logger.Error("failed to finish competition", "competition", competitionID, "error", err)
	}
}

// StopCompetition asks the running competition to stop after the current turn
func (h *Handler) StopCompetition(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	s, running := h.current, h.running
	h.mu.Unlock()

	if !running || s.State() != scheduler.Running {
		http.Error(w, `{"error": "No competition running"}`, http.StatusBadRequest)
		return
	}
	s.Stop()
	json.NewEncoder(w).Encode(map[string]string{"message": "Competition stopping"})
}

// GetOrderBook retrieves the current order book
func (h *Handler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	buyOrders, sellOrders := []models.Order{}, []models.Order{}
	if s := h.active(); s != nil {
		buyOrders, sellOrders = s.OrderBook()
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"buy_orders":  buyOrders,
		"sell_orders": sellOrders,
	})
}

// GetRules returns the effective rules table
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.Rules)
}

// GetTrades retrieves the trade history of a competition, the latest one
// unless ?competition= is given
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		http.Error(w, `{"error": "Trade ledger disabled"}`, http.StatusServiceUnavailable)
		return
	}

	id := r.URL.Query().Get("competition")
	if id == "" {
		latest, err := h.Ledger.LatestCompetition(r.Context())
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, `{"error": "No competitions recorded"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			h.Logger.Error("failed to get latest competition", "error", err)
			http.Error(w, `{"error": "Failed to retrieve trades"}`, http.StatusInternalServerError)
			return
		}
		id = latest.ID
	}

	trades, err := h.Ledger.GetCompetitionTrades(r.Context(), id)
	if err != nil {
		h.Logger.Error("failed to get trades", "competition", id, "error", err)
		http.Error(w, `{"error": "Failed to retrieve trades"}`, http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []db.TradeRecord{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"competition": id,
		"trades":      trades,
	})
}

// Login exchanges the operator password for a token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	token, err := h.AuthService.Login(req.Password)
	if err != nil {
		http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// JWTAuthMiddleware verifies operator tokens. Browsers cannot set headers
// on an EventSource, so ?token= is accepted too.
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			http.Error(w, `{"error": "Authorization header required"}`, http.StatusUnauthorized)
			return
		}

		operator, err := h.AuthService.GetOperatorFromToken(tokenString)
		if err != nil {
			http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
