package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chatvault/chatvault/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newTestWriter(t *testing.T, cfg config.Config) *Writer {
	t.Helper()
	w, err := NewWriter(cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func readFileLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestRecordAppendsOneLine(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWriter(t, cfg)

	err := w.Record("42", KindPrivate, MessageRecord{
		Role: RoleUser, Content: "hello", SenderID: "42", SenderName: "alice",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	lines := readFileLines(t, filepath.Join(cfg.DataDir, "42_private.jsonl"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	rec, err := ParseLine([]byte(lines[0]))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if rec.Role != RoleUser || rec.Content != "hello" || rec.SenderName != "alice" {
		t.Errorf("round-trip mismatch: %+v", rec)
	}
	if rec.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestRecordValidation(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWriter(t, cfg)

	if err := w.Record("", KindPrivate, MessageRecord{Role: RoleUser, Content: "x"}); err != ErrEmptyChatID {
		t.Errorf("empty chat id: got %v", err)
	}
	if err := w.Record("1", ChatKind("channel"), MessageRecord{Role: RoleUser, Content: "x"}); err != ErrBadKind {
		t.Errorf("bad kind: got %v", err)
	}
	if err := w.Record("1", KindPrivate, MessageRecord{Role: "system", Content: "x"}); err != ErrBadRole {
		t.Errorf("bad role: got %v", err)
	}
}

func TestFilteringProducesNoWrites(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		chatID string
		kind   ChatKind
	}{
		{"private disabled", func(c *config.Config) { c.EnablePrivate = false }, "7", KindPrivate},
		{"group disabled", func(c *config.Config) { c.EnableGroup = false }, "7", KindGroup},
		{"not whitelisted", func(c *config.Config) { c.GroupWhitelist = []string{"other"} }, "7", KindGroup},
		{"blacklisted", func(c *config.Config) { c.GroupBlacklist = []string{"7"} }, "7", KindGroup},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			w := newTestWriter(t, cfg)

			if err := w.Record(tc.chatID, tc.kind, MessageRecord{Role: RoleUser, Content: "hi"}); err != nil {
				t.Fatalf("Record: %v", err)
			}
			entries, err := os.ReadDir(cfg.DataDir)
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("expected zero files, got %d", len(entries))
			}
		})
	}
}

func TestWhitelistedGroupIsRecorded(t *testing.T) {
	cfg := testConfig(t)
	cfg.GroupWhitelist = []string{"room1"}
	w := newTestWriter(t, cfg)

	if err := w.Record("room1", KindGroup, MessageRecord{Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	lines := readFileLines(t, filepath.Join(cfg.DataDir, "room1_group.jsonl"))
	if len(lines) != 1 {
		t.Errorf("expected 1 line, got %d", len(lines))
	}
}

func TestEmptyContentSkipped(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWriter(t, cfg)

	if err := w.Record("42", KindPrivate, MessageRecord{Role: RoleUser}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.DataDir, "42_private.jsonl")); !os.IsNotExist(err) {
		t.Error("expected no file for empty content")
	}
}

func TestSaveSystemInfoDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SaveSystemInfo = false
	w := newTestWriter(t, cfg)

	if err := w.Record("42", KindPrivate, MessageRecord{
		Role: RoleUser, Content: "hi", SenderID: "42", SenderName: "alice",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	lines := readFileLines(t, filepath.Join(cfg.DataDir, "42_private.jsonl"))
	rec, err := ParseLine([]byte(lines[0]))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if rec.SenderID != "" || rec.SenderName != "" {
		t.Errorf("sender info should be stripped: %+v", rec)
	}
	if strings.Contains(lines[0], "sender_id") {
		t.Errorf("sender_id key should be omitted: %s", lines[0])
	}
}

func TestHugeThresholdSingleFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileSizeMB = 1024
	w := newTestWriter(t, cfg)

	for i := 0; i < 5; i++ {
		err := w.Record("9", KindPrivate, MessageRecord{
			Role: RoleUser, Content: fmt.Sprintf("message %d", i),
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	entries, _ := os.ReadDir(cfg.DataDir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 file, got %d", len(entries))
	}
	lines := readFileLines(t, filepath.Join(cfg.DataDir, "9_private.jsonl"))
	if len(lines) != 5 {
		t.Errorf("expected 5 lines, got %d", len(lines))
	}
}

func TestRotationKeepsTriggeringRecord(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWriter(t, cfg)
	// A threshold of one byte means every append rotates, but the first
	// write lands before any rotation: the triggering record must end up in
	// the rotated file, and the new current file starts empty.
	w.maxBytes = 1

	if err := w.Record("5", KindGroup, MessageRecord{Role: RoleAssistant, Content: "over the line"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, _ := os.ReadDir(cfg.DataDir)
	var rotated, active string
	for _, e := range entries {
		_, _, rotatedAt, ok := ParseLogName(e.Name())
		if !ok {
			t.Fatalf("unexpected file %s", e.Name())
		}
		if rotatedAt != "" {
			rotated = e.Name()
		} else {
			active = e.Name()
		}
	}
	if rotated == "" {
		t.Fatal("expected a rotated file")
	}
	if active == "" {
		t.Fatal("expected an active file after rotation")
	}

	rotatedLines := readFileLines(t, filepath.Join(cfg.DataDir, rotated))
	if len(rotatedLines) != 1 {
		t.Errorf("rotated file should hold the triggering record, got %d lines", len(rotatedLines))
	}
	activeLines := readFileLines(t, filepath.Join(cfg.DataDir, active))
	if len(activeLines) != 0 {
		t.Errorf("fresh file should start empty, got %d lines", len(activeLines))
	}
}

func TestTinyThresholdPreservesAllRecords(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWriter(t, cfg)
	w.maxBytes = 200
	// Distinct rotation names need distinct seconds; freeze time per write.
	base := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	step := 0
	w.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	const total = 10
	for i := 0; i < total; i++ {
		err := w.Record("77", KindPrivate, MessageRecord{
			Role: RoleUser, Content: fmt.Sprintf("message number %02d padded out a bit", i),
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	entries, _ := os.ReadDir(cfg.DataDir)
	count := 0
	rotatedFiles := 0
	for _, e := range entries {
		lines := readFileLines(t, filepath.Join(cfg.DataDir, e.Name()))
		count += len(lines)
		if _, _, rotatedAt, ok := ParseLogName(e.Name()); ok && rotatedAt != "" {
			rotatedFiles++
		}
	}
	if count != total {
		t.Errorf("combined record count: expected %d, got %d", total, count)
	}
	if rotatedFiles == 0 {
		t.Error("expected at least one rotated file")
	}
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWriter(t, cfg)

	const goroutines = 8
	const perGoroutine = 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				err := w.Record("shared", KindPrivate, MessageRecord{
					Role:    RoleUser,
					Content: fmt.Sprintf("goroutine %d message %d", g, i),
				})
				if err != nil {
					t.Errorf("Record: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	lines := readFileLines(t, filepath.Join(cfg.DataDir, "shared_private.jsonl"))
	if len(lines) != goroutines*perGoroutine {
		t.Fatalf("expected %d lines, got %d", goroutines*perGoroutine, len(lines))
	}
	for i, line := range lines {
		if _, err := ParseLine([]byte(line)); err != nil {
			t.Fatalf("line %d does not parse (interleaved write?): %v", i, err)
		}
	}
}

func TestConcurrentWritesWithRotation(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWriter(t, cfg)
	// Every append crosses the threshold, so rotation and reopening run
	// constantly while other goroutines are appending to the same key.
	w.maxBytes = 1

	const goroutines = 4
	const perGoroutine = 100
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				err := w.Record("hot", KindPrivate, MessageRecord{
					Role:    RoleUser,
					Content: fmt.Sprintf("goroutine %d message %d", g, i),
				})
				if err != nil {
					t.Errorf("Record: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	// Every record lands exactly once across rotated and active files, and
	// every line is a complete JSON object.
	entries, err := os.ReadDir(cfg.DataDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	count := 0
	for _, e := range entries {
		lines := readFileLines(t, filepath.Join(cfg.DataDir, e.Name()))
		for i, line := range lines {
			if _, err := ParseLine([]byte(line)); err != nil {
				t.Fatalf("%s line %d does not parse: %v", e.Name(), i, err)
			}
		}
		count += len(lines)
	}
	if count != goroutines*perGoroutine {
		t.Errorf("combined record count: expected %d, got %d", goroutines*perGoroutine, count)
	}
}

type captureHub struct {
	mu     sync.Mutex
	events []string
}

func (c *captureHub) Publish(filename string, rec MessageRecord) {
	c.mu.Lock()
	c.events = append(c.events, filename+":"+rec.Content)
	c.mu.Unlock()
}

func TestPublisherSeesAcceptedRecordsOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.GroupBlacklist = []string{"bad"}
	w := newTestWriter(t, cfg)
	hub := &captureHub{}
	w.SetPublisher(hub)

	if err := w.Record("good", KindGroup, MessageRecord{Role: RoleUser, Content: "in"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record("bad", KindGroup, MessageRecord{Role: RoleUser, Content: "out"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(hub.events) != 1 || hub.events[0] != "good_group.jsonl:in" {
		t.Errorf("unexpected published events: %v", hub.events)
	}
}
