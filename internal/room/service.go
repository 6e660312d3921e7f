package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/clock"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/indicator"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/joinref"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/metrics"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/model"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/portfolio"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/series"
	"github.com/ingbaker-bot/fund-battle-online-sub000/internal/store"
)

// DefaultStartDay is the first index with full indicator warmup: the season
// line plus its 10-day slope reference.
const DefaultStartDay = indicator.WindowMA60 + 10

// ErrFrozen is returned when day advancement hits the trade-freeze barrier.
var ErrFrozen = errors.New("room: trade freeze active")

// Enumerated configuration values. No cross-field validation beyond these.
var (
	// AllowedFeeRates are the selectable fee percentages.
	AllowedFeeRates = []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(0.5),
		decimal.NewFromFloat(1.0),
		decimal.NewFromFloat(1.5),
	}

	// AllowedAutoIntervals are the selectable auto-advance periods, seconds.
	AllowedAutoIntervals = []int{2, 5, 10, 30}

	// LookbackWindows maps chart window names to trading-day counts.
	LookbackWindows = map[string]int{
		"6m": 120,
		"1y": 240,
		"2y": 480,
	}
)

// Config carries the game knobs resolved at startup.
type Config struct {
	InitialCapital  decimal.Decimal
	StopLossPct     decimal.Decimal
	SeriesDays      int
	DefaultDuration time.Duration // game length when start request omits one
	SettleBuffer    time.Duration // 0 → DefaultSettleBuffer
}

// session is the server-side runtime state of one room: the price series,
// the day clock, timers, and each player's portfolio engine.
type session struct {
	mu       sync.Mutex
	series   *series.PriceSeries
	clk      *clock.SessionClock
	auto     *clock.AutoAdvancer
	endTimer *time.Timer
	engines  map[string]*portfolio.Engine
}

// stopTimers cancels the auto-advancer and the game-duration timer. Safe to
// call repeatedly; always called before a terminal transition so no orphaned
// advance fires after the room closes.
func (sess *session) stopTimers() {
	sess.auto.Stop()
	sess.mu.Lock()
	if sess.endTimer != nil {
		sess.endTimer.Stop()
		sess.endTimer = nil
	}
	sess.mu.Unlock()
}

// Service exposes room coordination over HTTP. Cross-participant state lives
// in the snapshot store; per-room runtime state lives in sessions.
type Service struct {
	store        store.Store
	hub          *WSHub
	cfg          Config
	settleBuffer time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService creates the room service. Pass nil for hub to disable
// broadcasting (tests).
func NewService(st store.Store, hub *WSHub, cfg Config) *Service {
	if cfg.SettleBuffer <= 0 {
		cfg.SettleBuffer = DefaultSettleBuffer
	}
	if cfg.SeriesDays <= 0 {
		cfg.SeriesDays = 500
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 10 * time.Minute
	}
	if hub == nil {
		hub = NewWSHub() // never started; Broadcast drops into the buffer
	}
	return &Service{
		store:        st,
		hub:          hub,
		cfg:          cfg,
		settleBuffer: cfg.SettleBuffer,
		sessions:     make(map[string]*session),
	}
}

// Routes mounts all room endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/rooms", s.CreateRoom)
	r.Get("/rooms/{code}", s.GetRoom)
	r.Post("/rooms/{code}/join", s.JoinRoom)
	r.Get("/rooms/{code}/players", s.ListPlayers)
	r.Post("/rooms/{code}/start", s.StartGame)
	r.Post("/rooms/{code}/advance", s.AdvanceDay)
	r.Post("/rooms/{code}/autoplay", s.SetAutoplay)
	r.Post("/rooms/{code}/freeze", s.AcquireFreeze)
	r.Get("/rooms/{code}/freeze", s.FreezeStatus)
	r.Delete("/rooms/{code}/freeze", s.ReleaseFreeze)
	r.Post("/rooms/{code}/freeze/clear", s.ForceClearFreeze)
	r.Post("/rooms/{code}/trade", s.Trade)
	r.Get("/rooms/{code}/indicators", s.Indicators)
	r.Get("/rooms/{code}/series", s.Series)
	r.Get("/rooms/{code}/ledger/{nickname}", s.Ledger)
	r.Post("/rooms/{code}/end", s.EndGame)
	r.Post("/rooms/{code}/reset", s.ResetRoom)
}

func (s *Service) session(code string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	return sess, ok
}

// --- Request/Response types ---

// CreateRoomRequest is the JSON body for room creation.
type CreateRoomRequest struct {
	FeeRate decimal.Decimal `json:"fee_rate"` // percent, from AllowedFeeRates
	Seed    int64           `json:"seed"`     // 0 → random series shape
}

// CreateRoomResponse returns the new room plus its shareable join payload.
type CreateRoomResponse struct {
	Room     *model.RoomState `json:"room"`
	JoinLink string           `json:"join_link"`
}

// JoinRequest identifies the joining player.
type JoinRequest struct {
	Nickname string `json:"nickname"`
}

// StartRequest optionally overrides the game duration.
type StartRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

// AutoplayRequest toggles the host's auto-advance scheduler.
type AutoplayRequest struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
}

// FreezeRequestBody identifies the freeze author.
type FreezeRequestBody struct {
	Nickname string `json:"nickname"`
}

// TradeRequest is the JSON body for POST /rooms/{code}/trade.
type TradeRequest struct {
	Nickname string          `json:"nickname"`
	Kind     model.TradeKind `json:"kind"`
	Amount   decimal.Decimal `json:"amount"` // BUY: cash to spend
	Units    decimal.Decimal `json:"units"`  // SELL: units to liquidate
}

// TradeResponse returns the executed transaction and position snapshot.
type TradeResponse struct {
	Transaction   *model.Transaction `json:"transaction"`
	Day           int                `json:"day"`
	Cash          decimal.Decimal    `json:"cash"`
	Units         decimal.Decimal    `json:"units"`
	AvgCost       decimal.Decimal    `json:"avg_cost"`
	Assets        decimal.Decimal    `json:"assets"`
	ROI           decimal.Decimal    `json:"roi"`
	StopLossPrice decimal.Decimal    `json:"stop_loss_price"`
	StopLossAlarm bool               `json:"stop_loss_alarm"`
}

// FreezeStatusResponse describes the barrier for the countdown display.
type FreezeStatusResponse struct {
	Frozen    bool                  `json:"frozen"`
	Countdown int                   `json:"countdown"`
	Requests  []model.FreezeRequest `json:"requests"`
}

// --- Handlers ---

// CreateRoom handles POST /api/v1/rooms. The creator becomes the host by
// convention; role enforcement is the auth layer's job, not ours.
func (s *Service) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !feeRateAllowed(req.FeeRate) {
		writeError(w, "fee_rate must be one of the allowed percentages", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	code, err := s.newRoomCode(ctx)
	if err != nil {
		writeError(w, "failed to allocate room code", http.StatusInternalServerError)
		return
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cfg := series.DefaultGeneratorConfig(seed)
	cfg.Days = s.cfg.SeriesDays
	// Anchor the series so its last day lands on "today"; the year offset
	// relabels the whole window as a different era for display.
	base := time.Now().UTC().AddDate(0, 0, -cfg.Days)
	ps := series.Generate(cfg, base)

	now := time.Now().UTC()
	room := &model.RoomState{
		Code:             code,
		Status:           model.RoomWaiting,
		CurrentDay:       DefaultStartDay,
		StartDay:         DefaultStartDay,
		FeeRate:          req.FeeRate,
		IndicatorToggles: []string{model.ToggleMA20, model.ToggleMA60, model.ToggleRiver, model.ToggleTrend},
		TimeOffsetYears:  10 + rand.Intn(50),
		CreatedAt:        now,
	}

	if err := s.store.CreateRoom(ctx, room); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	sess := &session{
		series:  ps,
		clk:     clock.NewSessionClock(DefaultStartDay, ps.Len()-1),
		engines: make(map[string]*portfolio.Engine),
	}
	sess.auto = clock.NewAutoAdvancer(func() { s.autoTick(code) })

	s.mu.Lock()
	s.sessions[code] = sess
	s.mu.Unlock()
	metrics.ActiveRooms.Inc()

	link, _ := joinref.Link(code)
	slog.Info("room created",
		"room", code,
		"fee_rate", room.FeeRate.String(),
		"offset_years", room.TimeOffsetYears,
		"series_days", ps.Len(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateRoomResponse{Room: room, JoinLink: link})
}

// GetRoom handles GET /api/v1/rooms/{code}.
func (s *Service) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, room)
}

// JoinRoom handles POST /api/v1/rooms/{code}/join. Joining requires only the
// 6-digit code; the link/QR payload carries nothing else.
func (s *Service) JoinRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := joinref.ValidateCode(code); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nickname == "" {
		writeError(w, "nickname is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	if room.Status == model.RoomEnded {
		writeError(w, "game already ended", http.StatusConflict)
		return
	}

	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	sess.mu.Lock()
	if _, exists := sess.engines[req.Nickname]; exists {
		sess.mu.Unlock()
		writeError(w, "nickname already taken", http.StatusConflict)
		return
	}
	sess.engines[req.Nickname] = portfolio.NewEngine(s.cfg.InitialCapital, s.cfg.StopLossPct)
	sess.mu.Unlock()

	// First write carries no ROI; it appears once trading/ticking starts.
	player := &model.PlayerState{
		Nickname: req.Nickname,
		Cash:     s.cfg.InitialCapital,
		Assets:   s.cfg.InitialCapital,
	}
	if err := s.store.UpsertPlayer(ctx, code, player); err != nil {
		writeError(w, "failed to save player", http.StatusInternalServerError)
		return
	}

	slog.Info("player joined", "room", code, "nickname", req.Nickname)
	writeJSON(w, player)
}

// ListPlayers handles GET /api/v1/rooms/{code}/players, the host/spectator
// aggregation view.
func (s *Service) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.store.ListPlayers(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, "failed to list players", http.StatusInternalServerError)
		return
	}
	if players == nil {
		players = []model.PlayerState{}
	}
	writeJSON(w, players)
}

// StartGame handles POST /api/v1/rooms/{code}/start: WAITING → PLAYING.
func (s *Service) StartGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	if room.Status != model.RoomWaiting {
		writeError(w, "room is not waiting to start", http.StatusConflict)
		return
	}

	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	duration := s.cfg.DefaultDuration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	end := time.Now().UTC().Add(duration)
	room.Status = model.RoomPlaying
	room.GameEnd = &end
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		writeError(w, "failed to start game", http.StatusInternalServerError)
		return
	}

	sess.mu.Lock()
	sess.endTimer = time.AfterFunc(duration, func() {
		if err := s.endGame(context.Background(), code); err != nil {
			slog.Error("duration-triggered settlement failed", "room", code, "err", err)
		}
	})
	sess.mu.Unlock()

	s.hub.Broadcast(Event{Type: "game_started", Room: code, Day: sess.clk.Day()})
	slog.Info("game started", "room", code, "ends_at", end)
	writeJSON(w, room)
}

// AdvanceDay handles POST /api/v1/rooms/{code}/advance, the host's manual
// day increment. Rejected while any trade freeze is outstanding.
func (s *Service) AdvanceDay(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ctx := r.Context()

	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	if room.Status != model.RoomPlaying {
		writeError(w, "room is not playing", http.StatusConflict)
		return
	}

	day, err := s.advanceDay(ctx, code)
	if err != nil {
		if errors.Is(err, ErrFrozen) {
			writeError(w, "trade freeze active", http.StatusConflict)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"day": day})
}

// SetAutoplay handles POST /api/v1/rooms/{code}/autoplay. The scheduler is
// disabled automatically when a freeze appears and never auto-resumes.
func (s *Service) SetAutoplay(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req AutoplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	if !req.Enabled {
		sess.auto.Stop()
		writeJSON(w, map[string]bool{"running": false})
		return
	}

	if !intervalAllowed(req.IntervalSeconds) {
		writeError(w, "interval_seconds must be one of the allowed values", http.StatusBadRequest)
		return
	}

	reqs, err := s.store.ListFreezeRequests(r.Context(), code)
	if err != nil {
		writeError(w, "failed to check freeze barrier", http.StatusInternalServerError)
		return
	}
	if Frozen(reqs) {
		writeError(w, "trade freeze active", http.StatusConflict)
		return
	}

	sess.auto.Start(time.Duration(req.IntervalSeconds) * time.Second)
	writeJSON(w, map[string]bool{"running": true})
}

// AcquireFreeze handles POST /api/v1/rooms/{code}/freeze: the player's
// trade-intent signal. Stops autoplay and raises the barrier.
func (s *Service) AcquireFreeze(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req FreezeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nickname == "" {
		writeError(w, "nickname is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	if room.Status != model.RoomPlaying {
		writeError(w, "room is not playing", http.StatusConflict)
		return
	}

	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	fr, err := s.store.CreateFreezeRequest(ctx, code, req.Nickname)
	if err != nil {
		writeError(w, "failed to acquire freeze", http.StatusInternalServerError)
		return
	}

	// Advisory: the scheduler is stopped here, but a concurrent host action
	// could still race the request. Acceptable for a casual game.
	sess.auto.Stop()
	metrics.FreezeLeases.Inc()

	s.hub.Broadcast(Event{
		Type: "freeze_acquired", Room: code,
		Nickname: req.Nickname, Countdown: FreezeWindowSeconds,
	})
	writeJSON(w, fr)
}

// FreezeStatus handles GET /api/v1/rooms/{code}/freeze.
func (s *Service) FreezeStatus(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.store.ListFreezeRequests(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, "failed to read freeze barrier", http.StatusInternalServerError)
		return
	}
	if reqs == nil {
		reqs = []model.FreezeRequest{}
	}
	writeJSON(w, FreezeStatusResponse{
		Frozen:    Frozen(reqs),
		Countdown: Countdown(reqs, time.Now().UTC()),
		Requests:  reqs,
	})
}

// ReleaseFreeze handles DELETE /api/v1/rooms/{code}/freeze: the author
// removes their own request after completing or cancelling the trade.
func (s *Service) ReleaseFreeze(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req FreezeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nickname == "" {
		writeError(w, "nickname is required", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteFreezeRequest(r.Context(), code, req.Nickname); err != nil {
		writeError(w, "failed to release freeze", http.StatusInternalServerError)
		return
	}

	s.hub.Broadcast(Event{Type: "freeze_released", Room: code, Nickname: req.Nickname})
	w.WriteHeader(http.StatusNoContent)
}

// ForceClearFreeze handles POST /api/v1/rooms/{code}/freeze/clear: the
// host's force-release of all outstanding requests regardless of author.
func (s *Service) ForceClearFreeze(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := s.store.DeleteAllFreezeRequests(r.Context(), code); err != nil {
		writeError(w, "failed to clear freeze barrier", http.StatusInternalServerError)
		return
	}

	s.hub.Broadcast(Event{Type: "freeze_released", Room: code})
	w.WriteHeader(http.StatusNoContent)
}

// Trade handles POST /api/v1/rooms/{code}/trade. A completed trade consumes
// the current day's price tick, releases the trader's freeze request, and
// advances the day unless another player's freeze is still outstanding.
func (s *Service) Trade(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Nickname == "" {
		writeError(w, "nickname is required", http.StatusBadRequest)
		return
	}
	if req.Kind != model.TradeBuy && req.Kind != model.TradeSell {
		writeError(w, "kind must be BUY or SELL", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	if room.Status != model.RoomPlaying {
		writeError(w, "room is not playing", http.StatusConflict)
		return
	}

	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	sess.mu.Lock()
	engine, ok := sess.engines[req.Nickname]
	if !ok {
		sess.mu.Unlock()
		writeError(w, "player has not joined this room", http.StatusNotFound)
		return
	}

	day := sess.clk.Day()
	price, valid := sess.series.NAV(day)
	if !valid {
		sess.mu.Unlock()
		writeError(w, "no price available for current day", http.StatusConflict)
		return
	}

	var tx *model.Transaction
	switch req.Kind {
	case model.TradeBuy:
		tx, err = engine.Buy(day, price, req.Amount)
	case model.TradeSell:
		tx, err = engine.Sell(day, price, req.Units)
	}
	if err != nil {
		sess.mu.Unlock()
		metrics.TradesRejected.Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := TradeResponse{
		Transaction:   tx,
		Day:           day,
		Cash:          engine.Cash(),
		Units:         engine.Units(),
		AvgCost:       engine.AvgCost(),
		Assets:        engine.Assets(price),
		ROI:           engine.ROI(price),
		StopLossPrice: engine.StopLossPrice(),
		StopLossAlarm: engine.StopLossActive(),
	}
	playerDoc := snapshotPlayer(req.Nickname, engine, price)
	sess.mu.Unlock()

	if err := s.store.InsertTransaction(ctx, code, req.Nickname, tx); err != nil {
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}
	if err := s.store.UpsertPlayer(ctx, code, playerDoc); err != nil {
		writeError(w, "failed to save player state", http.StatusInternalServerError)
		return
	}

	// Trade completion releases the author's own freeze request.
	if err := s.store.DeleteFreezeRequest(ctx, code, req.Nickname); err != nil {
		slog.Warn("failed to release freeze after trade", "room", code, "err", err)
	}

	metrics.TradesTotal.WithLabelValues(string(req.Kind)).Inc()
	s.hub.Broadcast(Event{
		Type: "trade_executed", Room: code, Day: day,
		Nickname: req.Nickname, Kind: string(req.Kind),
	})
	slog.Info("trade executed",
		"room", code,
		"nickname", req.Nickname,
		"kind", req.Kind,
		"day", day,
		"price", price.String(),
		"units", tx.Units.String(),
		"amount", tx.Amount.String(),
	)

	// Trading consumes the current day's tick. If another player's freeze is
	// still up, the advance waits for the barrier instead.
	if _, err := s.advanceDay(ctx, code); err != nil && !errors.Is(err, ErrFrozen) {
		slog.Warn("post-trade day advance failed", "room", code, "err", err)
	}

	writeJSON(w, resp)
}

// Indicators handles GET /api/v1/rooms/{code}/indicators?day=N.
func (s *Service) Indicators(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	day := sess.clk.Day()
	if q := r.URL.Query().Get("day"); q != "" {
		parsed, err := parseDay(q)
		if err != nil {
			writeError(w, "invalid day", http.StatusBadRequest)
			return
		}
		// Never serve indices past the shared pointer: no future peeking.
		if parsed > sess.clk.Day() {
			writeError(w, "day is ahead of the session clock", http.StatusBadRequest)
			return
		}
		day = parsed
	}

	snap := indicator.At(sess.series, day)
	nav, _ := sess.series.NAV(day)
	writeJSON(w, map[string]interface{}{
		"day":      day,
		"nav":      nav,
		"snapshot": snap,
	})
}

// Series handles GET /api/v1/rooms/{code}/series?window=6m|1y|2y. Dates are
// relabeled with the room's cosmetic year offset; indices are untouched.
func (s *Service) Series(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	room, err := s.store.GetRoom(r.Context(), code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	window := r.URL.Query().Get("window")
	if window == "" {
		window = "1y"
	}
	days, ok := LookbackWindows[window]
	if !ok {
		writeError(w, "window must be one of 6m, 1y, 2y", http.StatusBadRequest)
		return
	}

	to := sess.clk.Day() + 1
	from := to - days
	points := sess.series.Slice(from, to)
	for i := range points {
		points[i].Date = series.DisplayDate(points[i], room.TimeOffsetYears)
	}
	writeJSON(w, points)
}

// Ledger handles GET /api/v1/rooms/{code}/ledger/{nickname}, most recent
// first for display.
func (s *Service) Ledger(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "nickname"))
	if err != nil {
		writeError(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, txs)
}

// EndGame handles POST /api/v1/rooms/{code}/end, the host's end trigger.
func (s *Service) EndGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := s.endGame(r.Context(), code); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	room, err := s.store.GetRoom(r.Context(), code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, room)
}

// ResetRoom handles POST /api/v1/rooms/{code}/reset: same code and series,
// fresh everything else, back to WAITING.
func (s *Service) ResetRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ctx := r.Context()

	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		writeError(w, "room not found", http.StatusNotFound)
		return
	}
	sess, ok := s.session(code)
	if !ok {
		writeError(w, "room session not found", http.StatusNotFound)
		return
	}

	sess.stopTimers()
	if err := s.store.DeleteAllFreezeRequests(ctx, code); err != nil {
		writeError(w, "failed to clear freeze barrier", http.StatusInternalServerError)
		return
	}
	if err := s.store.DeletePlayers(ctx, code); err != nil {
		writeError(w, "failed to clear players", http.StatusInternalServerError)
		return
	}

	sess.mu.Lock()
	sess.clk.Reset()
	sess.engines = make(map[string]*portfolio.Engine)
	sess.mu.Unlock()

	wasEnded := room.Status == model.RoomEnded
	room.Status = model.RoomWaiting
	room.CurrentDay = room.StartDay
	room.GameEnd = nil
	room.FinalWinner = nil
	room.TimeOffsetYears = 10 + rand.Intn(50)
	if err := s.store.UpdateRoom(ctx, room); err != nil {
		writeError(w, "failed to reset room", http.StatusInternalServerError)
		return
	}
	if wasEnded {
		metrics.ActiveRooms.Inc()
	}

	s.hub.Broadcast(Event{Type: "room_reset", Room: code, Day: room.StartDay})
	slog.Info("room reset", "room", code)
	writeJSON(w, room)
}

// --- Internals ---

// advanceDay is the single shared day-increment path for the manual handler,
// the autoplay scheduler, and post-trade tick consumption. It honors the
// freeze barrier, ticks every player's engine at the new price, refreshes
// their documents, and broadcasts the day plus any crossover signal.
func (s *Service) advanceDay(ctx context.Context, code string) (int, error) {
	reqs, err := s.store.ListFreezeRequests(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("check freeze barrier: %w", err)
	}
	if Frozen(reqs) {
		return 0, ErrFrozen
	}

	sess, ok := s.session(code)
	if !ok {
		return 0, fmt.Errorf("room %s: no active session", code)
	}

	sess.mu.Lock()
	day, advanced := sess.clk.Advance()
	if !advanced {
		sess.mu.Unlock()
		// Series exhausted: the game ends itself.
		go func() {
			if err := s.endGame(context.Background(), code); err != nil {
				slog.Error("series-end settlement failed", "room", code, "err", err)
			}
		}()
		return day, nil
	}

	price, valid := sess.series.NAV(day)
	var updates []*model.PlayerState
	if valid {
		for nickname, engine := range sess.engines {
			engine.Tick(price)
			updates = append(updates, snapshotPlayer(nickname, engine, price))
		}
	}
	sess.mu.Unlock()

	room, err := s.store.GetRoom(ctx, code)
	if err == nil {
		room.CurrentDay = day
		if err := s.store.UpdateRoom(ctx, room); err != nil {
			slog.Warn("failed to persist day pointer", "room", code, "err", err)
		}
	}

	for _, doc := range updates {
		if err := s.store.UpsertPlayer(ctx, code, doc); err != nil {
			slog.Warn("failed to refresh player doc", "room", code, "nickname", doc.Nickname, "err", err)
		}
	}

	metrics.DayAdvances.Inc()
	s.hub.Broadcast(Event{Type: "day_advanced", Room: code, Day: day})

	if sig := indicator.DetectCross(sess.series, day); sig != nil {
		metrics.CrossSignals.WithLabelValues(string(sig.Kind), string(sig.Confidence)).Inc()
		s.hub.Broadcast(Event{
			Type: "cross_signal", Room: code, Day: day,
			Kind: string(sig.Kind), Confidence: string(sig.Confidence),
		})
	}

	return day, nil
}

// autoTick is the scheduler callback. A freeze appearing between ticks
// disables autoplay; it must be explicitly re-enabled afterward.
func (s *Service) autoTick(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, ok := s.session(code)
	if !ok {
		return
	}

	room, err := s.store.GetRoom(ctx, code)
	if err != nil || room.Status != model.RoomPlaying {
		sess.auto.Stop()
		return
	}

	if _, err := s.advanceDay(ctx, code); err != nil {
		if errors.Is(err, ErrFrozen) {
			sess.auto.Stop()
			return
		}
		slog.Warn("autoplay advance failed", "room", code, "err", err)
	}
}

// snapshotPlayer captures a player document with ROI and assets computed
// server-side so the aggregation view needs no client math. Must be called
// with the session lock held.
func snapshotPlayer(nickname string, engine *portfolio.Engine, price decimal.Decimal) *model.PlayerState {
	roi := engine.ROI(price)
	return &model.PlayerState{
		Nickname: nickname,
		Cash:     engine.Cash(),
		Units:    engine.Units(),
		AvgCost:  engine.AvgCost(),
		ROI:      &roi,
		Assets:   engine.Assets(price),
	}
}

// newRoomCode allocates an unused 6-digit numeric join code.
func (s *Service) newRoomCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 20; attempt++ {
		code := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		if _, err := s.store.GetRoom(ctx, code); errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
	}
	return "", errors.New("room code space exhausted")
}

func feeRateAllowed(rate decimal.Decimal) bool {
	for _, allowed := range AllowedFeeRates {
		if rate.Equal(allowed) {
			return true
		}
	}
	return false
}

func intervalAllowed(seconds int) bool {
	for _, allowed := range AllowedAutoIntervals {
		if seconds == allowed {
			return true
		}
	}
	return false
}

func parseDay(q string) (int, error) {
	var day int
	if _, err := fmt.Sscanf(q, "%d", &day); err != nil || day < 0 {
		return 0, errors.New("invalid day")
	}
	return day, nil
}

// writeJSON writes a JSON 200 response.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
