package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gempurbudianarki/ai-treding-beta-1/internal/broker"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zerolog.New(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func readFile[T any](t *testing.T, s *Store, name string) T {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", name, err)
	}
	return out
}

func TestSaveStatus(t *testing.T) {
	s := newTestStore(t)
	s.SaveStatus(Status{
		Mode:    "ACTIVE",
		Account: broker.AccountSnapshot{Balance: 1000},
		Market:  MarketStatus{Symbol: "XAUUSD", Price: 2000.5},
	})

	got := readFile[Status](t, s, statusFile)
	if got.Mode != "ACTIVE" || got.Market.Symbol != "XAUUSD" {
		t.Fatalf("status=%+v", got)
	}
	if got.Timestamp == 0 {
		t.Fatal("timestamp not stamped")
	}
	if _, err := os.Stat(filepath.Join(s.dir, statusFile+".tmp")); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestUpdatePrice(t *testing.T) {
	s := newTestStore(t)

	// No snapshot yet: nothing to refresh, nothing written.
	s.UpdatePrice(2001.0)
	if _, err := os.Stat(filepath.Join(s.dir, statusFile)); !os.IsNotExist(err) {
		t.Fatal("refresh created a snapshot from nothing")
	}

	s.SaveStatus(Status{
		Mode:   "ACTIVE",
		Market: MarketStatus{Symbol: "XAUUSD", Price: 2000.5, TrendH1: "BULLISH"},
	})
	s.UpdatePrice(2001.0)

	got := readFile[Status](t, s, statusFile)
	if got.Market.Price != 2001.0 {
		t.Fatalf("price=%v, want 2001.0", got.Market.Price)
	}
	// Only price and timestamp move; the rest of the snapshot is untouched.
	if got.Mode != "ACTIVE" || got.Market.TrendH1 != "BULLISH" || got.Market.Symbol != "XAUUSD" {
		t.Fatalf("refresh clobbered snapshot: %+v", got)
	}
}

func TestAppendTradeRotation(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < historyCap+10; i++ {
		s.AppendTrade(TradeRecord{Ticket: uint64(i), Symbol: "XAUUSD"})
	}

	got := readFile[[]TradeRecord](t, s, historyFile)
	if len(got) != historyCap {
		t.Fatalf("history length=%d, want %d", len(got), historyCap)
	}
	// Oldest records are dropped; the newest survives at the tail.
	if got[len(got)-1].Ticket != uint64(historyCap+9) {
		t.Fatalf("tail ticket=%d", got[len(got)-1].Ticket)
	}
	if got[0].Ticket != 10 {
		t.Fatalf("head ticket=%d, want 10", got[0].Ticket)
	}
}

func TestPrependJournalNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < journalCap+5; i++ {
		s.PrependJournal(JournalEntry{Ticket: uint64(i), Lesson: fmt.Sprintf("lesson %d", i)})
	}

	got := readFile[[]JournalEntry](t, s, journalFile)
	if len(got) != journalCap {
		t.Fatalf("journal length=%d, want %d", len(got), journalCap)
	}
	if got[0].Ticket != uint64(journalCap+4) {
		t.Fatalf("newest entry ticket=%d, want %d", got[0].Ticket, journalCap+4)
	}
}

func TestAppendChatRotation(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < chatCap+7; i++ {
		s.AppendChat("Strategist", fmt.Sprintf("msg %d", i), "HOLD")
	}

	got := readFile[[]ChatEntry](t, s, chatFile)
	if len(got) != chatCap {
		t.Fatalf("chat length=%d, want %d", len(got), chatCap)
	}
	if got[len(got)-1].Message != fmt.Sprintf("msg %d", chatCap+6) {
		t.Fatalf("tail message=%q", got[len(got)-1].Message)
	}
}

func TestLoadControlDefaults(t *testing.T) {
	s := newTestStore(t)
	ctl := s.LoadControl()
	if !ctl.TradingEnabled {
		t.Fatal("missing control file must default to trading enabled")
	}
}

func TestClearCommand(t *testing.T) {
	s := newTestStore(t)
	data, _ := json.Marshal(Control{TradingEnabled: true, Command: CommandCloseAll})
	if err := os.WriteFile(filepath.Join(s.dir, controlFile), data, 0o644); err != nil {
		t.Fatalf("seed control: %v", err)
	}

	if got := s.LoadControl(); got.Command != CommandCloseAll {
		t.Fatalf("command=%q, want %q", got.Command, CommandCloseAll)
	}
	s.ClearCommand()
	if got := s.LoadControl(); got.Command != "" {
		t.Fatalf("command not cleared: %q", got.Command)
	}
	if got := s.LoadControl(); !got.TradingEnabled {
		t.Fatal("clearing the command must not flip the enable flag")
	}
}
