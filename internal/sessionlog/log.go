package sessionlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/eschatch/internal/shared/paths"
)

const (
	InputFile    = "input.log"
	OutputFile   = "output.log"
	JournalFile  = "injections.jsonl"
	MetadataFile = "session.json"
)

// Meta is the content of session.json.
type Meta struct {
	ID          string     `json:"id"`
	Command     []string   `json:"command"`
	EscapeKey   string     `json:"escape_key"`
	Provider    string     `json:"provider,omitempty"`
	Model       string     `json:"model,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	ExitStatus  *int       `json:"exit_status,omitempty"`
	InputBytes  int64      `json:"input_bytes"`
	OutputBytes int64      `json:"output_bytes"`
	Injections  int        `json:"injections"`
	Compressed  bool       `json:"compressed"`
}

// Entry is one line of the injection journal.
type Entry struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Query       string    `json:"query"`
	Chat        bool      `json:"chat"`
	Directive   string    `json:"directive,omitempty"`
	Command     string    `json:"command,omitempty"`
	Action      string    `json:"action,omitempty"`
	Destructive bool      `json:"destructive"`
	Pattern     string    `json:"pattern,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Log writes one session directory.
type Log struct {
	dir      string
	compress bool
	logger   *zap.Logger

	mu      sync.Mutex
	input   *os.File
	output  *os.File
	journal *os.File
	meta    Meta
	closed  bool
}

// Open creates <root>/<meta.ID> and its log files.
func Open(root string, meta Meta, compress bool, logger *zap.Logger) (*Log, error) {
	if meta.ID == "" {
		return nil, fmt.Errorf("session log: empty session id")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}

	dir := paths.Session{Root: root, ID: meta.ID}.Dir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	l := &Log{dir: dir, compress: compress, logger: logger, meta: meta}
	var err error
	if l.input, err = create(dir, InputFile); err != nil {
		return nil, err
	}
	if l.output, err = create(dir, OutputFile); err != nil {
		l.input.Close()
		return nil, err
	}
	if l.journal, err = create(dir, JournalFile); err != nil {
		l.input.Close()
		l.output.Close()
		return nil, err
	}
	if err := l.writeMeta(); err != nil {
		l.closeFiles()
		return nil, err
	}
	return l, nil
}

func create(dir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return f, nil
}

// Dir is the session directory.
func (l *Log) Dir() string {
	if l == nil {
		return ""
	}
	return l.dir
}

// Meta returns a copy of the current metadata.
func (l *Log) Meta() Meta {
	if l == nil {
		return Meta{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meta
}

// WriteInput appends operator bytes to input.log.
func (l *Log) WriteInput(p []byte) {
	if l == nil || len(p) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.write(&l.input, InputFile, p) {
		l.meta.InputBytes += int64(len(p))
	}
}

// WriteOutput appends child bytes to output.log.
func (l *Log) WriteOutput(p []byte) {
	if l == nil || len(p) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.write(&l.output, OutputFile, p) {
		l.meta.OutputBytes += int64(len(p))
	}
}

// Record appends e to the injection journal.
func (l *Log) Record(e Entry) {
	if l == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	line, err := sonic.Marshal(e)
	if err != nil {
		l.logger.Warn("Failed to encode journal entry", zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.write(&l.journal, JournalFile, append(line, '\n')) {
		l.meta.Injections++
	}
}

// write reports whether p was written. A failing stream is closed and
// dropped so later writes are skipped.
func (l *Log) write(f **os.File, name string, p []byte) bool {
	if l.closed || *f == nil {
		return false
	}
	if _, err := (*f).Write(p); err != nil {
		l.logger.Warn("Session log write failed, disabling stream",
			zap.String("file", name), zap.Error(err))
		(*f).Close()
		*f = nil
		return false
	}
	return true
}

// Close finalizes session.json with the exit status and compresses the raw
// logs when enabled. Later calls do nothing.
func (l *Log) Close(exitStatus int) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.closeFiles()

	if l.compress {
		for _, name := range []string{InputFile, OutputFile} {
			if err := compressFile(filepath.Join(l.dir, name)); err != nil {
				l.logger.Warn("Failed to compress session log", zap.String("file", name), zap.Error(err))
				continue
			}
			l.meta.Compressed = true
		}
	}

	ended := time.Now()
	l.meta.EndedAt = &ended
	l.meta.ExitStatus = &exitStatus
	return l.writeMeta()
}

func (l *Log) closeFiles() {
	for _, f := range []**os.File{&l.input, &l.output, &l.journal} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
}

func (l *Log) writeMeta() error {
	data, err := sonic.ConfigStd.MarshalIndent(l.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	path := filepath.Join(l.dir, MetadataFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}
	return nil
}

// compressFile replaces path with path.zst.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".zst", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		dst.Close()
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// ReadLog returns the content of a raw log, transparently decompressing a
// .zst copy when the plain file is gone.
func ReadLog(dir, name string) ([]byte, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err == nil || !os.IsNotExist(err) {
		return data, err
	}

	f, err := os.Open(path + ".zst")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
