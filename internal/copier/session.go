package copier

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Session is one live copy relationship between a source account and the
// operator's capital. Identity and sizing parameters are immutable after
// creation; runtime state is guarded by mu so status snapshots can be taken
// while the manager loop is working on the session.
type Session struct {
	ID      string
	WhaleID string
	Address string

	Leverage   float64  // fixed leverage; <= 0 derives it per fill from the source account
	SizePct    *float64 // percent of source size to copy; nil = auto sizing from deposit
	Assets     []string // asset allow-list; empty allows all
	DepositUSD float64  // operator capital, used by auto sizing
	Execute    bool     // false = dry-run, orders are never submitted
	IsCross    bool

	mu            sync.Mutex
	active        bool
	cursor        *int64 // timestamp of the newest fill accounted for; nil = unseeded
	processed     int
	errors        []string
	notifications []string
	presession    map[string]float64  // signed source position sizes at session start
	seen          map[string]struct{} // provider fill ids already handled
	accountValue  float64             // last known source account value
}

// Status is a point-in-time snapshot of session state.
type Status struct {
	ID            string
	WhaleID       string
	Address       string
	Active        bool
	Execute       bool
	Cursor        *int64
	Processed     int
	Errors        []string
	Notifications []string
}

// Status snapshots the session without mutating it.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cursor *int64
	if s.cursor != nil {
		c := *s.cursor
		cursor = &c
	}
	return Status{
		ID:            s.ID,
		WhaleID:       s.WhaleID,
		Address:       s.Address,
		Active:        s.active,
		Execute:       s.Execute,
		Cursor:        cursor,
		Processed:     s.processed,
		Errors:        append([]string(nil), s.errors...),
		Notifications: append([]string(nil), s.notifications...),
	}
}

// Active reports whether the loop should still visit this session.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// cursorValue returns the current cursor; ok is false when unseeded.
func (s *Session) cursorValue() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return 0, false
	}
	return *s.cursor, true
}

// advanceCursor moves the fill cursor forward, never backward.
func (s *Session) advanceCursor(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil || ts > *s.cursor {
		s.cursor = &ts
	}
}

// markSeen records a fill id and reports whether it was already handled.
// Empty ids cannot be deduplicated and are never marked.
func (s *Session) markSeen(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[id]; dup {
		return true
	}
	s.seen[id] = struct{}{}
	return false
}

func (s *Session) recordError(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Sprintf(format, args...))
}

func (s *Session) notify(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, fmt.Sprintf(format, args...))
}

func (s *Session) noteProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
}

func (s *Session) setAccountValue(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountValue = v
}

// reducePresession absorbs a fill that unwinds exposure the source already
// held when the session started. Returns (remaining, true) when the fill
// was absorbed and must not be copied. Same-side fills extend exposure and
// are not absorbed. An overshooting close flattens the remembered position;
// the whole fill is still absorbed since fills are not split.
func (s *Session) reducePresession(asset string, signedSize float64) (float64, bool) {
	key := strings.ToUpper(asset)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.presession[key]
	if !ok || current == 0 || signedSize == 0 {
		return 0, false
	}
	if (current > 0) == (signedSize > 0) {
		return 0, false
	}

	remaining := current + signedSize
	if (current > 0 && remaining < 0) || (current < 0 && remaining > 0) {
		remaining = 0
	}
	if remaining == 0 {
		delete(s.presession, key)
	} else {
		s.presession[key] = remaining
	}
	return remaining, true
}

// allowsAsset checks the session's allow-list.
func (s *Session) allowsAsset(asset string) bool {
	if len(s.Assets) == 0 {
		return true
	}
	for _, a := range s.Assets {
		if strings.EqualFold(a, asset) {
			return true
		}
	}
	return false
}

// presessionAssets lists remembered pre-session assets, sorted.
func (s *Session) presessionAssets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	assets := make([]string, 0, len(s.presession))
	for asset := range s.presession {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}
