// package formatter writes the per-entity audit trail of a reconciliation run
package formatter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catalogx/internal/shared"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	separator    = "----------------------------------------------------------------------------------------"
	headerLayout = "03:04PM on January 02, 2006"
)

// Audit line kinds.
const (
	KindStarting         = "Starting"
	KindFound            = "Found"
	KindSkipped          = "Skipped"
	KindPlaylistFound    = "Playlist Found"
	KindCreatingPlaylist = "Creating Playlist"
	KindAdding           = "Adding"
)

// AuditLog appends tab separated lines, one per decision the engine makes.
//
// Write failures never abort a run: they are logged at warn level and dropped.
type AuditLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	logger *log.Logger
	now    func() time.Time
}

// NewAuditLog writes to w. A nil logger discards warnings.
func NewAuditLog(w io.Writer, logger *log.Logger) *AuditLog {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	a := &AuditLog{w: w, logger: logger, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		a.closer = c
	}
	return a
}

// NewAuditFile appends to the file named in cfg, rotating it once it reaches MaxSizeMB.
func NewAuditFile(cfg shared.AuditConfig, logger *log.Logger) *AuditLog {
	return NewAuditLog(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}, logger)
}

// Discard returns an audit log that writes nowhere.
func Discard() *AuditLog {
	return NewAuditLog(io.Discard, nil)
}

// Header writes the session separator and the start line for op.
func (a *AuditLog) Header(op string) {
	a.write(separator + "\n")
	a.Line(KindStarting, op, a.now().Format(headerLayout))
}

// Found records a matched entity: the identifying fields followed by the target URI.
func (a *AuditLog) Found(uri string, fields ...string) {
	a.Line(KindFound, append(fields[:len(fields):len(fields)], uri)...)
}

// Skipped records an entity with no match.
func (a *AuditLog) Skipped(fields ...string) {
	a.Line(KindSkipped, fields...)
}

// PlaylistFound records an existing target playlist.
func (a *AuditLog) PlaylistFound(name, id string) {
	a.Line(KindPlaylistFound, name, id)
}

// CreatingPlaylist records that a target playlist is missing and will be created.
func (a *AuditLog) CreatingPlaylist(name string) {
	a.Line(KindCreatingPlaylist, name)
}

// Adding records a matched playlist entry.
func (a *AuditLog) Adding(uri string, fields ...string) {
	a.Line(KindAdding, append(fields[:len(fields):len(fields)], uri)...)
}

// Line writes kind and fields joined by tabs.
func (a *AuditLog) Line(kind string, fields ...string) {
	a.write(kind + "\t" + strings.Join(fields, "\t") + "\n")
}

func (a *AuditLog) write(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := io.WriteString(a.w, s); err != nil {
		a.logger.Warn("failed to write audit line", "error", err)
	}
}

// Close closes the underlying writer when it is closable.
func (a *AuditLog) Close() error {
	if a.closer == nil {
		return nil
	}
	if err := a.closer.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

// Path is where a lumberjack-backed log is written, or "" for other writers.
func (a *AuditLog) Path() string {
	if lj, ok := a.w.(*lumberjack.Logger); ok {
		return lj.Filename
	}
	if f, ok := a.w.(*os.File); ok {
		return f.Name()
	}
	return ""
}
