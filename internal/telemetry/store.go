// Package telemetry persists the dashboard-facing JSON files and reads back
// the external control channel. Everything here is write-behind and
// best-effort: a failed write never fails a trading cycle.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
)

const (
	statusFile  = "status.json"
	historyFile = "trade_history.json"
	journalFile = "journal.json"
	chatFile    = "ai_chat_log.json"
	controlFile = "control.json"

	historyCap = 500
	journalCap = 100
	chatCap    = 50
)

// CommandCloseAll is the one-shot dashboard command to flatten every position.
const CommandCloseAll = "close_all"

// MarketStatus is the per-cycle market view shown on the dashboard.
type MarketStatus struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	TrendH1  string  `json:"trend_h1"`
	Momentum string  `json:"momentum"`
	ADX      float64 `json:"adx"`
	Pattern  string  `json:"pattern"`
}

// Status is the full real-time snapshot written once per cycle.
type Status struct {
	Mode      string                 `json:"mode"`
	Account   broker.AccountSnapshot `json:"account"`
	Positions []broker.Position      `json:"positions"`
	Market    MarketStatus           `json:"market"`
	Timestamp int64                  `json:"timestamp"`
}

// TradeRecord is one closed trade appended to the history log.
type TradeRecord struct {
	Ticket   uint64  `json:"ticket"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Volume   float64 `json:"volume"`
	Profit   float64 `json:"profit"`
	Reason   string  `json:"reason"`
	ClosedAt string  `json:"closed_at"`
}

// JournalEntry is one post-mortem lesson, newest first.
type JournalEntry struct {
	Date    string  `json:"date"`
	Ticket  uint64  `json:"ticket"`
	Side    string  `json:"side"`
	Result  string  `json:"result"`
	PnL     float64 `json:"pnl"`
	Lesson  string  `json:"lesson"`
	Context string  `json:"market_context"`
}

// ChatEntry is one advisory oracle exchange.
type ChatEntry struct {
	Time    string `json:"time"`
	Speaker string `json:"speaker"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Control is the externally-owned switchboard. The core polls it every cycle
// and only ever writes it to acknowledge a finished one-shot command.
type Control struct {
	TradingEnabled bool   `json:"trading_enabled"`
	Command        string `json:"command,omitempty"`
}

// Store owns the data directory.
type Store struct {
	dir string
	mu  sync.Mutex
	log zerolog.Logger
}

// NewStore creates the data directory if needed.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// writeAtomic writes via a temp file and rename so readers never see a torn file.
func (s *Store) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(name))
}

func readJSON[T any](s *Store, name string) (T, bool) {
	var out T
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

// SaveStatus writes the per-cycle snapshot.
func (s *Store) SaveStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Timestamp = time.Now().Unix()
	if err := s.writeAtomic(statusFile, st); err != nil {
		s.log.Error().Err(err).Msg("status save failed")
	}
}

// UpdatePrice refreshes only the market price and timestamp of the existing
// snapshot, so the dashboard tracks the live tick stream between cycles. A
// missing snapshot is left alone; the next cycle writes the first full one.
func (s *Store) UpdatePrice(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := readJSON[Status](s, statusFile)
	if !ok {
		return
	}
	st.Market.Price = price
	st.Timestamp = time.Now().Unix()
	if err := s.writeAtomic(statusFile, st); err != nil {
		s.log.Error().Err(err).Msg("price refresh failed")
	}
}

// AppendTrade adds a closed trade, keeping only the most recent records.
func (s *Store) AppendTrade(rec TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ClosedAt = time.Now().Format("2006-01-02 15:04:05")
	history, _ := readJSON[[]TradeRecord](s, historyFile)
	history = append(history, rec)
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	if err := s.writeAtomic(historyFile, history); err != nil {
		s.log.Error().Err(err).Msg("history save failed")
	}
}

// PrependJournal inserts a lesson at the top, keeping the newest entries.
func (s *Store) PrependJournal(entry JournalEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	journal, _ := readJSON[[]JournalEntry](s, journalFile)
	journal = append([]JournalEntry{entry}, journal...)
	if len(journal) > journalCap {
		journal = journal[:journalCap]
	}
	if err := s.writeAtomic(journalFile, journal); err != nil {
		s.log.Error().Err(err).Msg("journal save failed")
	}
}

// AppendChat records one oracle exchange in the rolling conversation log.
func (s *Store) AppendChat(speaker, message, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := ChatEntry{
		Time:    time.Now().Format("15:04:05"),
		Speaker: speaker,
		Message: message,
		Action:  action,
	}
	chat, _ := readJSON[[]ChatEntry](s, chatFile)
	chat = append(chat, entry)
	if len(chat) > chatCap {
		chat = chat[len(chat)-chatCap:]
	}
	if err := s.writeAtomic(chatFile, chat); err != nil {
		s.log.Error().Err(err).Msg("chat log save failed")
	}
}

// LoadControl reads the dashboard switchboard. A missing or unreadable file
// means trading stays enabled with no pending command.
func (s *Store) LoadControl() Control {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctl, ok := readJSON[Control](s, controlFile)
	if !ok {
		return Control{TradingEnabled: true}
	}
	return ctl
}

// ClearCommand acknowledges a one-shot dashboard command after it ran.
func (s *Store) ClearCommand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctl, ok := readJSON[Control](s, controlFile)
	if !ok {
		ctl = Control{TradingEnabled: true}
	}
	ctl.Command = ""
	if err := s.writeAtomic(controlFile, ctl); err != nil {
		s.log.Error().Err(err).Msg("control save failed")
	}
}
