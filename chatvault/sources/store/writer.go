package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chatvault/chatvault/config"
	"chatvault/chatvault/utils/logging"

	"go.uber.org/zap"
)

var (
	ErrEmptyChatID = errors.New("empty chat id")
	ErrBadKind     = errors.New("chat kind must be private or group")
	ErrBadRole     = errors.New("role must be user or assistant")
)

// Archiver is notified with the on-disk path of every rotated file.
// Implementations must not block; the writer calls it inline after a rename.
type Archiver interface {
	ArchiveRotated(path string)
}

// Publisher receives every record that was appended successfully.
type Publisher interface {
	Publish(filename string, rec MessageRecord)
}

// appender is the mutex-guarded handle for one conversation file.
// Guard covers file, size and rotation so lines never interleave.
type appender struct {
	mu   sync.Mutex
	file *os.File
	size int64
}

// Writer appends message records to per-conversation jsonl files and rotates
// them by size. Safe for concurrent use.
type Writer struct {
	cfg       config.Config
	maxBytes  int64
	whitelist map[string]struct{}
	blacklist map[string]struct{}

	mu        sync.Mutex
	appenders map[string]*appender

	archiver  Archiver
	publisher Publisher

	now func() time.Time
}

func NewWriter(cfg config.Config) (*Writer, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	w := &Writer{
		cfg:       cfg,
		maxBytes:  cfg.MaxFileBytes(),
		whitelist: toSet(cfg.GroupWhitelist),
		blacklist: toSet(cfg.GroupBlacklist),
		appenders: make(map[string]*appender),
		now:       time.Now,
	}
	return w, nil
}

func (w *Writer) SetArchiver(a Archiver)   { w.archiver = a }
func (w *Writer) SetPublisher(p Publisher) { w.publisher = p }

// ShouldRecord applies the channel-type switches and the group
// whitelist/blacklist. An empty whitelist admits every group.
func (w *Writer) ShouldRecord(chatID string, kind ChatKind) bool {
	switch kind {
	case KindPrivate:
		return w.cfg.EnablePrivate
	case KindGroup:
		if !w.cfg.EnableGroup {
			return false
		}
		if len(w.whitelist) > 0 {
			if _, ok := w.whitelist[chatID]; !ok {
				return false
			}
		}
		if _, ok := w.blacklist[chatID]; ok {
			return false
		}
		return true
	default:
		return false
	}
}

// Record appends one message to the conversation's current file. Filtered
// conversations and empty content are silent no-ops. On a write failure the
// record is not persisted and the error is returned; the caller is expected
// to carry on.
func (w *Writer) Record(chatID string, kind ChatKind, rec MessageRecord) error {
	if chatID == "" {
		return ErrEmptyChatID
	}
	if !kind.Valid() {
		return ErrBadKind
	}
	if rec.Role != RoleUser && rec.Role != RoleAssistant {
		return ErrBadRole
	}
	if rec.Content == "" || !w.ShouldRecord(chatID, kind) {
		return nil
	}

	if !w.cfg.SaveSystemInfo {
		rec.SenderID = ""
		rec.SenderName = ""
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.now()
	}

	line, err := rec.MarshalLine()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	name := LogFileName(chatID, kind)
	ap := w.appenderFor(name)

	ap.mu.Lock()
	if ap.file == nil {
		// First write for this key, or a previous rotation failed to reopen.
		// The handle is only ever touched under ap.mu.
		f, oerr := os.OpenFile(filepath.Join(w.cfg.DataDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if oerr != nil {
			ap.mu.Unlock()
			return fmt.Errorf("open %s: %w", name, oerr)
		}
		ap.file = f
		ap.size = statSize(f)
	}
	n, err := ap.file.Write(line)
	if err != nil {
		ap.mu.Unlock()
		logging.ErrorLogger.Error("append failed",
			zap.String("file", name), zap.Error(err))
		return fmt.Errorf("append %s: %w", name, err)
	}
	ap.size += int64(n)
	if ap.size >= w.maxBytes {
		w.rotate(ap, chatID, kind)
	}
	ap.mu.Unlock()

	if w.publisher != nil {
		w.publisher.Publish(name, rec)
	}
	return nil
}

// rotate renames the full file to its timestamped name and starts a fresh
// one. The record that pushed the file over the threshold stays in the
// rotated file. Called with the appender lock held.
func (w *Writer) rotate(ap *appender, chatID string, kind ChatKind) {
	current := filepath.Join(w.cfg.DataDir, LogFileName(chatID, kind))
	rotated := filepath.Join(w.cfg.DataDir, RotatedFileName(chatID, kind, w.now()))

	// Two rotations inside one second would collide; keep the oversized file
	// and let the next write retry.
	if _, err := os.Stat(rotated); err == nil {
		logging.AppLogger.Warn("rotation target exists, deferring",
			zap.String("target", rotated))
		return
	}

	if err := ap.file.Close(); err != nil {
		logging.ErrorLogger.Error("close before rotate failed",
			zap.String("file", current), zap.Error(err))
	}
	if err := os.Rename(current, rotated); err != nil {
		// Oversized file stays current; next write retries rotation.
		logging.ErrorLogger.Error("rotate rename failed",
			zap.String("file", current), zap.Error(err))
		if f, oerr := os.OpenFile(current, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); oerr == nil {
			ap.file = f
		}
		return
	}

	logging.AppLogger.Info("backup file rotated",
		zap.String("from", current), zap.String("to", rotated))

	f, err := os.OpenFile(current, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.ErrorLogger.Error("reopen after rotate failed",
			zap.String("file", current), zap.Error(err))
		ap.file = nil
	} else {
		ap.file = f
	}
	ap.size = 0

	if w.archiver != nil {
		w.archiver.ArchiveRotated(rotated)
	}
}

// appenderFor returns the lazily-created handle for a filename. w.mu only
// guards the map; ap.file belongs to ap.mu and is opened by Record, so a
// concurrent rotation never races with the lookup.
func (w *Writer) appenderFor(name string) *appender {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ap, ok := w.appenders[name]; ok {
		return ap
	}
	ap := &appender{}
	w.appenders[name] = ap
	return ap
}

// Close releases every open file handle. A later Record reopens lazily.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for name, ap := range w.appenders {
		ap.mu.Lock()
		if ap.file != nil {
			if err := ap.file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			ap.file = nil
		}
		ap.mu.Unlock()
		delete(w.appenders, name)
	}
	return firstErr
}

func statSize(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
