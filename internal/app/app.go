package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/eschatch/internal/escape"
	"github.com/GriffinCanCode/eschatch/internal/generation"
	"github.com/GriffinCanCode/eschatch/internal/infrastructure/config"
	"github.com/GriffinCanCode/eschatch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/eschatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/eschatch/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/eschatch/internal/llm"
	"github.com/GriffinCanCode/eschatch/internal/relay"
	"github.com/GriffinCanCode/eschatch/internal/safety"
	"github.com/GriffinCanCode/eschatch/internal/sessionlog"
	"github.com/GriffinCanCode/eschatch/internal/shared/id"
	"github.com/GriffinCanCode/eschatch/internal/terminal"
	"github.com/GriffinCanCode/eschatch/internal/transcript"
)

const (
	ExitOK          = 0
	ExitSetup       = 1
	ExitInterrupted = 130
)

const MetricsFile = "metrics.prom"

// Options are the command-line inputs. Empty fields keep the configured
// values.
type Options struct {
	Exec       string
	ConfigPath string
	Model      string
	BaseURL    string
	Preview    bool
	Verbose    bool

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer
}

func (o *Options) defaults() {
	if o.Exec == "" {
		o.Exec = "bash"
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// LoadConfig loads the configuration and applies command-line overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Model != "" {
		cfg.LLM.Model = opts.Model
	}
	if opts.BaseURL != "" {
		cfg.LLM.BaseURL = opts.BaseURL
	}
	if opts.Preview {
		cfg.Safety.PreviewMode = true
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// Run executes one session and returns the exit code.
func Run(ctx context.Context, opts Options) int {
	opts.defaults()

	cfg, err := LoadConfig(opts)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "eschatch: %v\n", err)
		return ExitSetup
	}

	s, err := newSession(cfg, opts)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "eschatch: %v\n", err)
		return ExitSetup
	}
	return s.run(ctx)
}

// session holds everything built during setup.
type session struct {
	cfg     *config.Config
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics
	log     *sessionlog.Log
	term    *terminal.Session
	loop    *relay.Loop

	teardownOnce sync.Once
}

func newSession(cfg *config.Config, opts Options) (*session, error) {
	escapeKey, err := config.ParseEscapeKey(cfg.General.EscapeKey)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.General.SessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{cfg.LogFile()},
	})
	if err != nil {
		return nil, err
	}

	gate, err := safety.NewGate(cfg.Safety.ConfirmDestructive, cfg.Safety.DestructivePatterns)
	if err != nil {
		logger.Close()
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	client, err := llm.NewClient(llm.Config{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           cfg.LLM.Timeout(),
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		OnBreakerChange: func(from, to resilience.State) {
			metrics.RecordBreakerTransition(to.String())
			logger.Warn("Generation backend breaker changed state",
				zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	if err != nil {
		logger.Close()
		return nil, err
	}

	term, err := terminal.Start(opts.Exec)
	if err != nil {
		logger.Error("Failed to start child", zap.String("exec", opts.Exec), zap.Error(err))
		logger.Close()
		return nil, err
	}

	sessionID := id.NewSessionID()
	log, err := sessionlog.Open(cfg.General.SessionDir, sessionlog.Meta{
		ID:        sessionID.String(),
		Command:   term.Args,
		EscapeKey: cfg.General.EscapeKey,
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
	}, cfg.General.CompressLogs, logger.Logger)
	if err != nil {
		// The session runs without a durable record.
		logger.Warn("Session log unavailable", zap.Error(err))
		log = nil
	}

	pipeline := generation.New(generation.Options{
		Completer:    client,
		Policy:       safety.Policy{Gate: gate, Preview: cfg.Safety.PreviewMode},
		SystemPrompt: cfg.Prompt.System,
		ChatPrompt:   cfg.Prompt.Chat,
		Logger:       logger.Named("generation"),
		Metrics:      metrics,
	})

	loop := relay.New(relay.Config{
		Terminal:   opts.Stdin,
		Display:    opts.Stdout,
		Pty:        term.Pty(),
		Machine:    escape.NewMachine(escapeKey),
		Transcript: transcript.New(cfg.Context.MaxBytes, cfg.Context.SlidingWindow),
		Generator:  pipeline,
		Log:        log,
		Metrics:    metrics,
		Logger:     logger.Named("relay"),
	})

	logger.Info("Session started",
		zap.String("session", sessionID.String()),
		zap.Strings("exec", term.Args),
		zap.Int("pid", term.Pid()),
		zap.String("escape_key", cfg.General.EscapeKey),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Bool("preview", cfg.Safety.PreviewMode))

	return &session{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		log:     log,
		term:    term,
		loop:    loop,
	}, nil
}

func (s *session) run(parent context.Context) int {
	defer s.logger.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := s.term.SyncWindowSize(s.opts.Stdin); err != nil {
		s.logger.Debug("Window size not synced", zap.Error(err))
	}

	fmt.Fprintf(s.opts.Stderr, "[ESChatch] Running %s. Press %s to describe a task.\r\n",
		filepath.Base(s.term.Args[0]), s.cfg.General.EscapeKey)

	// Deferred in reverse: the terminal is restored and the pty closed
	// before the session log and metrics are finalized, on every path
	// including a panic out of the loop.
	code := ExitInterrupted
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.finish(code)
			panic(r)
		}
		s.finish(code)
	}()
	defer s.teardown()

	if err := s.term.EnterRawMode(int(s.opts.Stdin.Fd())); err != nil {
		s.logger.Warn("Controlling input is not a terminal, relaying without raw mode", zap.Error(err))
	}

	// A signal restores the terminal while the loop is still unwinding.
	go func() {
		<-ctx.Done()
		_ = s.term.RestoreMode()
	}()

	err := s.loop.Run(ctx)
	s.teardown()

	switch {
	case err == nil:
		code = ExitOK
		s.logger.Info("Session ended", zap.Int("child_exit", s.term.ExitCode()))
	case errors.Is(err, context.Canceled):
		s.logger.Info("Session interrupted")
	default:
		s.logger.Error("Session ended by I/O error", zap.Error(err))
	}
	return code
}

// teardown restores the controlling terminal and closes the pty. Only the
// first call has an effect.
func (s *session) teardown() {
	s.teardownOnce.Do(func() {
		if err := s.term.RestoreMode(); err != nil {
			s.logger.Warn("Failed to restore terminal", zap.Error(err))
		}
		if err := s.term.Close(); err != nil {
			s.logger.Debug("Pty close", zap.Error(err))
		}
	})
}

func (s *session) finish(code int) {
	if err := s.log.Close(code); err != nil {
		s.logger.Warn("Failed to finalize session log", zap.Error(err))
	}

	dir := s.log.Dir()
	if dir == "" {
		dir = s.cfg.General.SessionDir
	}
	if err := s.metrics.WriteTextfile(filepath.Join(dir, MetricsFile)); err != nil {
		s.logger.Warn("Failed to write metrics", zap.Error(err))
	}
}
