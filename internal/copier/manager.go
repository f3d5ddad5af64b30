package copier

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/exchange"
)

const (
	// DefaultPollInterval is how often the manager polls each session's
	// source address for new fills.
	DefaultPollInterval = time.Second

	// DefaultSlippagePct is the price nudge applied to copied orders so
	// they cross the book.
	DefaultSlippagePct = 1.0

	// DefaultLeverageInterval throttles leverage updates per (session,
	// asset) pair.
	DefaultLeverageInterval = 2 * time.Second

	// DefaultBackoffBase and DefaultBackoffMax bound the per-address retry
	// delay after venue failures.
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = 5 * time.Minute
)

// Manager owns the live copy loop: it polls source addresses for fills and
// mirrors them into scaled orders, one session at a time. All sessions share
// one goroutine; the venue clients are the only concurrent actors.
type Manager struct {
	fills    exchange.FillSource
	accounts exchange.AccountStateSource
	sizing   exchange.SizingSource
	trader   exchange.Trader

	logger       *log.Logger
	pollInterval time.Duration
	slippagePct  float64

	mu       sync.Mutex
	sessions map[string]*Session

	leverageThrottle *Throttle
	backoff          *Backoff

	newID func() string
}

// ManagerOptions configures a Manager. Zero values get defaults.
type ManagerOptions struct {
	Fills    exchange.FillSource
	Accounts exchange.AccountStateSource
	Sizing   exchange.SizingSource
	Trader   exchange.Trader

	PollInterval     time.Duration
	SlippagePct      float64
	LeverageInterval time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	Logger           *log.Logger
}

// NewManager creates a Manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SlippagePct <= 0 {
		opts.SlippagePct = DefaultSlippagePct
	}
	if opts.LeverageInterval <= 0 {
		opts.LeverageInterval = DefaultLeverageInterval
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[copier] ", log.LstdFlags)
	}
	return &Manager{
		fills:            opts.Fills,
		accounts:         opts.Accounts,
		sizing:           opts.Sizing,
		trader:           opts.Trader,
		logger:           opts.Logger,
		pollInterval:     opts.PollInterval,
		slippagePct:      opts.SlippagePct,
		sessions:         make(map[string]*Session),
		leverageThrottle: NewThrottle(opts.LeverageInterval),
		backoff:          NewBackoff(opts.BackoffBase, opts.BackoffMax),
		newID:            uuid.NewString,
	}
}

// CreateOptions overrides run parameters at session creation.
type CreateOptions struct {
	Execute         bool
	PositionSizePct *float64 // overrides the run's sizing; nil keeps it
	DepositUSD      float64  // overrides the run's deposit when positive
	AutoLeverage    bool     // derive leverage per fill instead of the run's
}

// CreateSession starts copying a whale using a backtest run's parameters.
//
// Creation seeds the fill cursor to the address's most recent fill so only
// trades made after this moment are copied, and snapshots currently open
// positions so their eventual closes are recognized and skipped. Both
// lookups are best effort: a failed seed leaves the cursor unset and the
// first successful poll fast-forwards past history instead.
func (m *Manager) CreateSession(ctx context.Context, whale *domain.Whale, run *domain.BacktestRun, opts CreateOptions) *Session {
	leverage := run.Leverage
	if opts.AutoLeverage {
		leverage = 0
	} else if leverage <= 0 {
		leverage = 1
	}

	sizePct := run.PositionSizePct
	if opts.PositionSizePct != nil {
		sizePct = opts.PositionSizePct
	}

	deposit := run.InitialDepositUSD
	if opts.DepositUSD > 0 {
		deposit = opts.DepositUSD
	}

	sess := &Session{
		ID:         m.newID(),
		WhaleID:    whale.ID,
		Address:    whale.Address,
		Leverage:   leverage,
		SizePct:    sizePct,
		Assets:     append([]string(nil), run.Assets...),
		DepositUSD: deposit,
		Execute:    opts.Execute,
		IsCross:    true,
		active:     true,
		presession: make(map[string]float64),
		seen:       make(map[string]struct{}),
	}

	fills, err := m.fills.UserFills(ctx, whale.Address, 0)
	if err != nil {
		m.logger.Printf("session %s: seed cursor: %v", sess.ID, err)
	} else {
		var latest int64
		for i := range fills {
			if fills[i].Time > latest {
				latest = fills[i].Time
			}
		}
		if latest > 0 {
			sess.advanceCursor(latest)
			sess.notify("Skipping historical fills up to %d", latest)
		}
	}

	state, err := m.accounts.AccountState(ctx, whale.Address)
	if err != nil {
		m.logger.Printf("session %s: snapshot positions: %v", sess.ID, err)
	} else if state != nil {
		for _, pos := range state.Positions {
			if pos.SignedSize == 0 {
				continue
			}
			sess.presession[strings.ToUpper(pos.Asset)] = pos.SignedSize
		}
		sess.setAccountValue(state.AccountValueUSD)
		if assets := sess.presessionAssets(); len(assets) > 0 {
			sess.notify("Detected pre-session open positions: %s", strings.Join(assets, ", "))
		}
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.logger.Printf("session %s created for whale %s (%s) execute=%v", sess.ID, whale.ID, whale.Address, sess.Execute)
	return sess
}

// Session returns a session by id, or nil.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// StopSession deactivates a session. Returns false if the id is unknown.
func (m *Manager) StopSession(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.deactivate()
	m.logger.Printf("session %s stopped", id)
	return true
}

// Statuses snapshots all sessions, ordered by id.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	out := make([]Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Status())
	}
	return out
}

// Run polls until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.logger.Printf("copy loop started, poll interval %s", m.pollInterval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Printf("copy loop stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick processes every active session once. Sessions are collected under the
// lock but processed without it so a slow venue call never blocks Create or
// Stop.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	for _, sess := range sessions {
		if !sess.Active() {
			continue
		}
		m.processSession(ctx, sess)
	}
}

func (m *Manager) processSession(ctx context.Context, sess *Session) {
	if !m.backoff.Ready(sess.Address) {
		return
	}

	var since int64
	cursor, seeded := sess.cursorValue()
	if seeded {
		since = cursor + 1
	}

	fills, err := m.fills.UserFills(ctx, sess.Address, since)
	if err != nil {
		sess.recordError("fetch fills: %v", err)
		delay := m.backoff.Failure(sess.Address)
		m.logger.Printf("session %s: fetch fills: %v (next attempt in %s)", sess.ID, err, delay)
		return
	}
	m.backoff.Success(sess.Address)

	if len(fills) == 0 {
		return
	}

	if !seeded {
		// The creation-time seed failed; treat everything returned now as
		// history rather than replaying it.
		var latest int64
		for i := range fills {
			if fills[i].Time > latest {
				latest = fills[i].Time
			}
		}
		if latest > 0 {
			sess.advanceCursor(latest)
			sess.notify("Skipping historical fills up to %d", latest)
		}
		return
	}

	// Fetch the source account state at most once per tick, shared by auto
	// sizing and auto leverage across this batch of fills.
	var (
		state        *exchange.AccountState
		stateFetched bool
	)
	accountState := func() *exchange.AccountState {
		if stateFetched {
			return state
		}
		stateFetched = true
		st, err := m.accounts.AccountState(ctx, sess.Address)
		if err != nil {
			sess.recordError("fetch account state: %v", err)
			m.backoff.Failure(sess.Address)
			m.logger.Printf("session %s: fetch account state: %v", sess.ID, err)
			return nil
		}
		m.backoff.Success(sess.Address)
		state = st
		if st != nil {
			sess.setAccountValue(st.AccountValueUSD)
		}
		return state
	}

	for i := range fills {
		m.processFill(ctx, sess, &fills[i], accountState)
	}
}

// processFill mirrors one source fill into a scaled order. The cursor and
// dedupe set advance for every fill seen, usable or not, so a restart never
// replays it.
func (m *Manager) processFill(ctx context.Context, sess *Session, fill *exchange.Fill, accountState func() *exchange.AccountState) {
	if fill.Time > 0 {
		sess.advanceCursor(fill.Time)
	}
	if sess.markSeen(fill.ID()) {
		return
	}
	if fill.Time <= 0 || fill.Asset == "" || fill.Size <= 0 || fill.Price <= 0 {
		return
	}
	if !sess.allowsAsset(fill.Asset) {
		return
	}

	isBuy := strings.EqualFold(fill.Side, "b")
	signedSize := fill.Size
	if !isBuy {
		signedSize = -fill.Size
	}
	if remaining, absorbed := sess.reducePresession(fill.Asset, signedSize); absorbed {
		sess.notify("Ignored close for pre-session position %s (remaining %.4f) at %d", fill.Asset, remaining, fill.Time)
		return
	}

	var pct float64
	if sess.SizePct != nil {
		pct = clampPct(*sess.SizePct)
	} else {
		state := accountState()
		if state == nil || state.AccountValueUSD <= 0 || sess.DepositUSD <= 0 {
			sess.recordError("auto sizing unavailable for %s at %d", fill.Asset, fill.Time)
			return
		}
		pct = clampPct(sess.DepositUSD / state.AccountValueUSD * 100)
	}

	size := fill.Size * pct / 100
	if size <= 0 {
		return
	}

	leverage := sess.Leverage
	if leverage > 0 {
		leverage = clampLeverage(leverage)
	} else if state := accountState(); state != nil && state.AccountValueUSD > 0 {
		leverage = clampLeverage(fill.Notional() / state.AccountValueUSD)
	}

	if sess.Execute && leverage > 0 {
		key := sess.ID + ":" + fill.Asset
		if m.leverageThrottle.Allow(key) {
			lev := int(leverage)
			if lev < 1 {
				lev = 1
			}
			if err := m.trader.UpdateLeverage(ctx, fill.Asset, lev, sess.IsCross); err != nil {
				sess.recordError("leverage error (ignored): %v", err)
			} else {
				m.leverageThrottle.Touch(key)
			}
		}
	}

	sizing, err := m.sizing.AssetSizing(ctx, fill.Asset)
	if err != nil {
		sess.recordError("build order error: %v", err)
		return
	}
	order, err := exchange.BuildIOCOrder(sizing, isBuy, size, fill.Price, m.slippagePct, false)
	if err != nil {
		sess.recordError("build order error: %v", err)
		return
	}

	if sess.Execute {
		if err := m.trader.SubmitOrder(ctx, order); err != nil {
			sess.recordError("order error: %v", err)
		}
	} else {
		m.logger.Printf("session %s dry-run: %s %s size=%v px=%v", sess.ID, side(isBuy), order.Asset, order.Size, order.LimitPrice)
	}
	sess.noteProcessed()
}

func side(isBuy bool) string {
	if isBuy {
		return "buy"
	}
	return "sell"
}

// clampPct bounds a sizing percentage to [0, 200].
func clampPct(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 200 {
		return 200
	}
	return pct
}

// clampLeverage bounds derived leverage to [0.1, 100].
func clampLeverage(lev float64) float64 {
	if lev < 0.1 {
		return 0.1
	}
	if lev > 100 {
		return 100
	}
	return lev
}
