package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xtrntr/farmduel/internal/auth"
	"github.com/xtrntr/farmduel/internal/db"
	"github.com/xtrntr/farmduel/internal/decision"
	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
	"github.com/xtrntr/farmduel/internal/scheduler"
)

// memLedger is an in-memory Ledger
type memLedger struct {
	mu       sync.Mutex
	ids      []string
	days     map[string][]int
	trades   map[string][]db.TradeRecord
	statuses map[string]string
}

func newMemLedger() *memLedger {
	return &memLedger{
		days:     map[string][]int{},
		trades:   map[string][]db.TradeRecord{},
		statuses: map[string]string{},
	}
}

func (l *memLedger) CreateCompetition(ctx context.Context, seed int64, rules any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := "comp-" + string(rune('a'+len(l.ids)))
	l.ids = append(l.ids, id)
	l.statuses[id] = db.StatusRunning
	return id, nil
}

func (l *memLedger) RecordDay(ctx context.Context, id string, snap models.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.days[id] = append(l.days[id], snap.Day)
	for _, t := range snap.Trades {
		l.trades[id] = append(l.trades[id], db.TradeRecord{CompetitionID: id, Trade: t})
	}
	return nil
}

func (l *memLedger) FinishCompetition(ctx context.Context, id, status string, final models.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[id] = status
	return nil
}

func (l *memLedger) status(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statuses[id]
}

func (l *memLedger) GetCompetitionTrades(ctx context.Context, id string) ([]db.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trades[id], nil
}

func (l *memLedger) LatestCompetition(ctx context.Context) (*db.Competition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ids) == 0 {
		return nil, db.ErrNotFound
	}
	id := l.ids[len(l.ids)-1]
	return &db.Competition{ID: id, Status: l.statuses[id]}, nil
}

// blocker holds the first decision until the competition is cancelled
type blocker struct {
	started chan struct{}
	once    sync.Once
}

func (b *blocker) Decide(ctx context.Context, self, rival models.FarmView, daysLeft int) (models.Action, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return models.Action{Kind: models.Maintenance}, ctx.Err()
}

func testRules() *rules.Rules {
	r := rules.Default()
	r.TotalDays = 3
	return r
}

// scriptedFactory builds schedulers for two farms named Farm A and Farm B
func scriptedFactory(r *rules.Rules, sources func() [2]scheduler.Source) SchedulerFactory {
	return func() (*scheduler.Scheduler, int64, error) {
		src := sources()
		s, err := scheduler.New(scheduler.Config{
			Rules: r,
			Players: [2]scheduler.Player{
				{ID: "Farm A", Source: src[0]},
				{ID: "Farm B", Source: src[1]},
			},
			Rand: rand.New(rand.NewSource(1)),
		})
		return s, 1, err
	}
}

func plantingSources() [2]scheduler.Source {
	return [2]scheduler.Source{
		decision.NewScripted("1 Plant Tomato", "5 Buy Corn 1"),
		decision.NewScripted("3 Maintenance"),
	}
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func readEvents(t *testing.T, body io.Reader) []models.Snapshot {
	t.Helper()
	var snaps []models.Snapshot
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var snap models.Snapshot
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap))
		snaps = append(snaps, snap)
	}
	return snaps
}

func TestHandler_StreamCompetition(t *testing.T) {
	r := testRules()
	ledger := newMemLedger()
	h := NewHandler(r, scriptedFactory(r, plantingSources), ledger, nil, nil, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest("GET", "/stream-competition", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	snaps := readEvents(t, w.Body)
	require.Len(t, snaps, 4)
	assert.Equal(t, "1 Plant Tomato", snaps[0].Farms["Farm A"].Decision)
	assert.Equal(t, "5 Buy Corn 1", snaps[1].Farms["Farm A"].Decision)
	assert.InDelta(t, 20, snaps[1].Farms["Farm A"].ReservedMoney, 1e-9)

	final := snaps[3]
	assert.True(t, final.Final)
	assert.Equal(t, "Final", final.Farms["Farm A"].Day)
	assert.Zero(t, final.Farms["Farm A"].ReservedMoney)

	assert.Equal(t, []int{1, 2, 3}, ledger.days["comp-a"])
	assert.Equal(t, db.StatusFinished, ledger.statuses["comp-a"])

	// the slot is free again
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/stream-competition", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ledger.ids, 2)
}

func TestHandler_AlreadyRunningAndStop(t *testing.T) {
	r := testRules()
	ledger := newMemLedger()
	block := &blocker{started: make(chan struct{})}
	h := NewHandler(r, scriptedFactory(r, func() [2]scheduler.Source {
		return [2]scheduler.Source{block, decision.NewScripted()}
	}), ledger, nil, nil, nil)
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/stream-competition")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-block.started:
	case <-time.After(5 * time.Second):
		t.Fatal("competition did not start")
	}

	second, err := srv.Client().Get(srv.URL + "/stream-competition")
	require.NoError(t, err)
	body, _ := io.ReadAll(second.Body)
	second.Body.Close()
	assert.Equal(t, http.StatusBadRequest, second.StatusCode)
	assert.Contains(t, string(body), "already running")

	stop, err := srv.Client().Post(srv.URL+"/stop-competition", "application/json", nil)
	require.NoError(t, err)
	stop.Body.Close()
	assert.Equal(t, http.StatusOK, stop.StatusCode)

	snaps := readEvents(t, resp.Body)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Final)
	assert.Equal(t, db.StatusStopped, ledger.status("comp-a"))

	stop, err = srv.Client().Post(srv.URL+"/stop-competition", "application/json", nil)
	require.NoError(t, err)
	stop.Body.Close()
	assert.Equal(t, http.StatusBadRequest, stop.StatusCode)
}

func TestHandler_WebSocketViewers(t *testing.T) {
	r := testRules()
	h := NewHandler(r, scriptedFactory(r, plantingSources), nil, nil, nil, nil)
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, err := srv.Client().Get(srv.URL + "/stream-competition")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	var got []models.Snapshot
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(got) < 4 {
		var snap models.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		got = append(got, snap)
	}
	assert.Equal(t, 1, got[0].Day)
	assert.True(t, got[3].Final)

	// a late viewer gets the last snapshot
	late, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap models.Snapshot
	require.NoError(t, late.ReadJSON(&snap))
	assert.True(t, snap.Final)
}

func TestHandler_GetOrderBook(t *testing.T) {
	r := testRules()
	h := NewHandler(r, scriptedFactory(r, plantingSources), nil, nil, nil, nil)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/orderbook", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string][]models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Empty(t, response["buy_orders"])
	assert.Empty(t, response["sell_orders"])
	assert.Contains(t, response, "buy_orders")
}

func TestHandler_GetRules(t *testing.T) {
	r := testRules()
	h := NewHandler(r, scriptedFactory(r, plantingSources), nil, nil, nil, nil)

	w := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(w, httptest.NewRequest("GET", "/rules", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var got rules.Rules
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 3, got.TotalDays)
	assert.Equal(t, 20.0, got.Crops["Corn"].SellPrice)
}

func TestHandler_GetTrades(t *testing.T) {
	r := testRules()
	trade := models.Trade{Buyer: "Farm B", Seller: "Farm A", CropType: "Corn", Amount: 1, Value: 20, Day: 2}

	tests := []struct {
		name           string
		ledger         func() Ledger
		query          string
		expectedStatus int
		expectedTrades int
	}{
		{
			name:           "LedgerDisabled",
			ledger:         func() Ledger { return nil },
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "NoCompetitions",
			ledger:         func() Ledger { return newMemLedger() },
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Latest",
			ledger: func() Ledger {
				l := newMemLedger()
				id, _ := l.CreateCompetition(context.Background(), 1, nil)
				l.RecordDay(context.Background(), id, models.Snapshot{Day: 2, Trades: []models.Trade{trade}})
				return l
			},
			expectedStatus: http.StatusOK,
			expectedTrades: 1,
		},
		{
			name: "ByID",
			ledger: func() Ledger {
				l := newMemLedger()
				l.CreateCompetition(context.Background(), 1, nil)
				l.CreateCompetition(context.Background(), 2, nil)
				return l
			},
			query:          "?competition=comp-b",
			expectedStatus: http.StatusOK,
			expectedTrades: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(r, scriptedFactory(r, plantingSources), tt.ledger(), nil, nil, nil)
			w := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(w, httptest.NewRequest("GET", "/trades"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response struct {
				Competition string           `json:"competition"`
				Trades      []db.TradeRecord `json:"trades"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Len(t, response.Trades, tt.expectedTrades)
			assert.NotEmpty(t, response.Competition)
		})
	}
}

func TestHandler_LoginAndProtectedRoutes(t *testing.T) {
	r := testRules()
	hash, err := bcrypt.GenerateFromPassword([]byte("testpass"), bcrypt.MinCost)
	require.NoError(t, err)
	authService := auth.NewAuthService("test-secret", string(hash), time.Hour)
	h := NewHandler(r, scriptedFactory(r, plantingSources), nil, authService, nil, nil)
	router := newTestRouter(h)

	tests := []struct {
		name           string
		requestBody    map[string]interface{}
		expectedStatus int
		expectToken    bool
	}{
		{
			name:           "Success",
			requestBody:    map[string]interface{}{"password": "testpass"},
			expectedStatus: http.StatusOK,
			expectToken:    true,
		},
		{
			name:           "Invalid Credentials",
			requestBody:    map[string]interface{}{"password": "wrongpass"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	var token string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.requestBody)
			req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			if tt.expectToken {
				assert.NotEmpty(t, response["token"])
				token, _ = response["token"].(string)
			} else {
				assert.Contains(t, response, "error")
			}
		})
	}
	require.NotEmpty(t, token)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/stream-competition", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/stop-competition", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// EventSource clients pass the token in the query string
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/stream-competition?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, readEvents(t, w.Body), 4)

	req := httptest.NewRequest("POST", "/stop-competition", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// read-only endpoints stay public
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/rules", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
