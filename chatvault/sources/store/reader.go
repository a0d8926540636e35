package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrLogNotFound = errors.New("backup log not found")

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// ChatSummary is one row of the viewer's conversation list.
type ChatSummary struct {
	Filename     string  `json:"filename"`
	ChatID       string  `json:"chat_id"`
	Type         string  `json:"type"`
	MessageCount int     `json:"message_count"`
	SizeKB       float64 `json:"size_kb"`
	LastMessage  string  `json:"last_message"`
	LastTime     string  `json:"last_time"`
}

// ChatPage is one newest-first page of records from a single log file.
type ChatPage struct {
	Messages []MessageRecord `json:"messages"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type StatsSummary struct {
	TotalChats    int     `json:"total_chats"`
	TotalMessages int     `json:"total_messages"`
	TotalSizeMB   float64 `json:"total_size_mb"`
	PrivateChats  int     `json:"private_chats"`
	GroupChats    int     `json:"group_chats"`
}

// Reader serves the viewer over the same data dir the writer appends to. It
// only ever consumes whole lines, so reading a file mid-append is safe.
type Reader struct {
	dataDir string
}

func NewReader(dataDir string) *Reader {
	return &Reader{dataDir: dataDir}
}

// ListChats enumerates every backup file, active and rotated, newest
// activity first.
func (r *Reader) ListChats() ([]ChatSummary, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ChatSummary{}, nil
		}
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(entries))
	lastTimes := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		chatID, kind, _, ok := ParseLogName(entry.Name())
		s := ChatSummary{
			Filename: entry.Name(),
			ChatID:   chatID,
			Type:     kind,
			SizeKB:   float64(info.Size()) / 1024,
		}
		if !ok {
			s.ChatID = strings.TrimSuffix(entry.Name(), ".jsonl")
			s.Type = "unknown"
		}

		lines, _ := r.readLines(entry.Name())
		s.MessageCount = len(lines)
		if last, ok := lastRecord(lines); ok {
			s.LastMessage = truncateRunes(last.Content, 50)
			s.LastTime = last.Timestamp.Format(time.RFC3339)
			lastTimes[entry.Name()] = last.Timestamp
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return lastTimes[summaries[i].Filename].After(lastTimes[summaries[j].Filename])
	})
	return summaries, nil
}

// ReadPage returns page N of a log, newest first: page 1 holds the latest
// records. Malformed lines are skipped rather than failing the page.
func (r *Reader) ReadPage(filename string, page, size int) (ChatPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	lines, err := r.readLines(filename)
	if err != nil {
		return ChatPage{}, err
	}

	total := len(lines)
	start := total - page*size
	end := total - (page-1)*size
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}

	messages := make([]MessageRecord, 0, end-start)
	for _, line := range lines[start:end] {
		rec, err := ParseLine(line)
		if err != nil {
			continue
		}
		messages = append(messages, rec)
	}
	// Newest first within the page.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return ChatPage{Messages: messages, Total: total, Page: page, PageSize: size}, nil
}

func (r *Reader) Stats() (StatsSummary, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return StatsSummary{}, nil
		}
		return StatsSummary{}, err
	}

	var stats StatsSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		stats.TotalChats++
		if info, err := entry.Info(); err == nil {
			stats.TotalSizeMB += float64(info.Size()) / (1024 * 1024)
		}
		if _, kind, _, ok := ParseLogName(entry.Name()); ok {
			switch ChatKind(kind) {
			case KindPrivate:
				stats.PrivateChats++
			case KindGroup:
				stats.GroupChats++
			}
		}
		lines, _ := r.readLines(entry.Name())
		stats.TotalMessages += len(lines)
	}
	return stats, nil
}

// readLines loads the complete lines of one log file. A trailing fragment
// without a newline (an append in flight) is dropped.
func (r *Reader) readLines(filename string) ([][]byte, error) {
	if filepath.Base(filename) != filename || !strings.HasSuffix(filename, ".jsonl") {
		return nil, ErrLogNotFound
	}
	data, err := os.ReadFile(filepath.Join(r.dataDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}

	parts := bytes.Split(data, []byte{'\n'})
	// The element after the last newline is either empty or a partial line;
	// both are excluded.
	parts = parts[:len(parts)-1]

	lines := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(bytes.TrimSpace(p)) == 0 {
			continue
		}
		lines = append(lines, p)
	}
	return lines, nil
}

// ParseLogName splits a backup filename into chat id, kind and the rotation
// timestamp ("" for the active file). ok is false for names that do not
// follow the {id}_{private|group}[_{YYYYMMDD_HHMMSS}].jsonl layout.
func ParseLogName(filename string) (chatID, kind, rotatedAt string, ok bool) {
	stem := strings.TrimSuffix(filename, ".jsonl")
	if stem == filename {
		return "", "", "", false
	}
	parts := strings.Split(stem, "_")

	// Rotated: ..._{kind}_{date}_{time}
	if len(parts) >= 4 && isDigits(parts[len(parts)-2], 8) && isDigits(parts[len(parts)-1], 6) {
		k := parts[len(parts)-3]
		if ChatKind(k).Valid() {
			id := strings.Join(parts[:len(parts)-3], "_")
			if id != "" {
				return id, k, parts[len(parts)-2] + "_" + parts[len(parts)-1], true
			}
		}
	}

	// Active: ..._{kind}
	if len(parts) >= 2 {
		k := parts[len(parts)-1]
		if ChatKind(k).Valid() {
			id := strings.Join(parts[:len(parts)-1], "_")
			if id != "" {
				return id, k, "", true
			}
		}
	}
	return "", "", "", false
}

func lastRecord(lines [][]byte) (MessageRecord, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if rec, err := ParseLine(lines[i]); err == nil {
			return rec, true
		}
	}
	return MessageRecord{}, false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
