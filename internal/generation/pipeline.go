package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/eschatch/internal/escape"
	"github.com/GriffinCanCode/eschatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/eschatch/internal/llm"
	"github.com/GriffinCanCode/eschatch/internal/safety"
)

// ErrEmptyCommand is reported when a reply normalizes to nothing.
var ErrEmptyCommand = errors.New("generated command is empty")

// Completer is the generation backend.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Request is a submitted task with read-only session context.
type Request struct {
	Query    string
	ChatMode bool
	History  []escape.Turn
	// Input and Output are the escape-stripped transcript windows.
	Input  string
	Output string
}

// Outcome describes everything a submission changes. The zero value
// changes nothing.
type Outcome struct {
	IsDirective bool
	Directive   Directive

	EnableChat   bool
	ClearHistory bool
	AppendTurns  []escape.Turn

	// Display goes to the real terminal, Inject to the child.
	Display []byte
	Inject  []byte

	Command  string
	Decision safety.Decision
	Err      error
}

// Options configures a Pipeline.
type Options struct {
	Completer    Completer
	Policy       safety.Policy
	SystemPrompt string
	ChatPrompt   string
	Logger       *zap.Logger
	Metrics      *monitoring.Metrics
}

// Pipeline handles submitted tasks.
type Pipeline struct {
	completer Completer
	policy    safety.Policy
	system    string
	chat      string
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// New creates a pipeline. A chat prompt falls back to the system prompt.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	chat := opts.ChatPrompt
	if chat == "" {
		chat = opts.SystemPrompt
	}
	return &Pipeline{
		completer: opts.Completer,
		policy:    opts.Policy,
		system:    opts.SystemPrompt,
		chat:      chat,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Handle processes one submitted task.
func (p *Pipeline) Handle(ctx context.Context, req Request) Outcome {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return Outcome{}
	}

	if d, token, ok := ParseDirective(req.Query); ok {
		p.metrics.RecordDirective(d.String())
		out := p.directive(ctx, d, token, req)
		out.IsDirective = true
		out.Directive = d
		return out
	}
	return p.command(ctx, req)
}

func (p *Pipeline) directive(ctx context.Context, d Directive, token string, req Request) Outcome {
	switch d {
	case DirectiveChat:
		return Outcome{
			EnableChat: true,
			Display:    escape.Banner("", "Chat mode enabled. Continue the conversation or press Enter twice to exit."),
		}
	case DirectiveExplain:
		return p.describe(ctx, "explain", explainSystem, explainPrompt(req))
	case DirectiveDebug:
		return p.describe(ctx, "debug", debugSystem, debugPrompt(req))
	case DirectiveClear:
		return Outcome{
			ClearHistory: true,
			Display:      escape.Banner("", "Conversation history cleared."),
		}
	case DirectiveHelp:
		return Outcome{Display: []byte(helpText)}
	case DirectiveUnknown:
		return Outcome{Display: escape.Banner("", "Unknown command: "+token)}
	default:
		panic(fmt.Sprintf("generation: unhandled directive %d", int(d)))
	}
}

// describe asks for prose about the session and shows it on the display.
func (p *Pipeline) describe(ctx context.Context, kind, system, prompt string) Outcome {
	reply, err := p.complete(ctx, kind, system, prompt)
	if err != nil {
		return failure(err)
	}
	text := strings.TrimSpace(reply)
	return Outcome{Display: terminalText("\n" + text + "\n")}
}

func (p *Pipeline) command(ctx context.Context, req Request) Outcome {
	system := p.system
	if req.ChatMode {
		system = p.chat
	}

	reply, err := p.complete(ctx, "command", system, commandPrompt(req))
	if err != nil {
		return failure(err)
	}

	command := NormalizeCommand(reply)
	if command == "" {
		p.logger.Warn("Reply held no command", zap.String("reply", reply))
		return failure(ErrEmptyCommand)
	}

	out := Outcome{Command: command}
	if req.ChatMode {
		out.AppendTurns = historyTurns(req.Query, command)
	}

	out.Decision = p.policy.Decide(command)
	switch {
	case out.Decision.Verdict.Destructive:
		p.metrics.RecordDestructive(out.Decision.Verdict.Pattern)
		p.logger.Warn("Destructive command staged",
			zap.String("command", command),
			zap.String("pattern", out.Decision.Verdict.Pattern))
		out.Display = escape.Banner(escape.Red,
			"Warning: potentially destructive command. Review it, then press Enter to run or Ctrl-C to discard.")
	case out.Decision.Action == safety.Stage:
		out.Display = escape.Banner(escape.Yellow, "Preview: press Enter to run or Ctrl-C to discard.")
	}

	out.Inject = []byte(command)
	if out.Decision.Action == safety.Submit {
		out.Inject = append(out.Inject, '\n')
	}
	p.metrics.RecordInjection(out.Decision.Action.String())
	p.logger.Info("Command generated",
		zap.String("command", command),
		zap.Stringer("action", out.Decision.Action),
		zap.Bool("chat", req.ChatMode))
	return out
}

func (p *Pipeline) complete(ctx context.Context, kind, system, prompt string) (string, error) {
	if p.completer == nil {
		return "", errors.New("no generation backend configured")
	}

	start := time.Now()
	reply, err := p.completer.Complete(ctx, llm.Request{
		System:   system,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.RecordGeneration(kind, "error", elapsed)
		p.logger.Error("Generation failed", zap.String("kind", kind), zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", err
	}
	p.metrics.RecordGeneration(kind, "ok", elapsed)
	p.logger.Debug("Generation complete", zap.String("kind", kind), zap.Duration("elapsed", elapsed))
	return reply, nil
}

func failure(err error) Outcome {
	return Outcome{
		Err:     err,
		Display: escape.Banner(escape.Red, "Generation failed: "+oneLine(err.Error())),
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
