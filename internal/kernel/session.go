// Package kernel implements the interpreter session behind the front-end
// protocol: it owns the engine, runs cells with their output captured,
// renders the last value and maps every outcome to a reply.
package kernel

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/engine"
	"github.com/itsmostafa/gokernel/internal/history"
)

// Options configures a new Session.
type Options struct {
	Engine     engine.Options
	Preference display.Preference

	// Preload lists script files run at startup and after every %reset
	Preload []string

	// History, when set, receives executed cells. The session closes it
	// on shutdown.
	History *history.Store

	Logger *slog.Logger
}

// Session is the single interpreter session of a kernel process. All its
// methods may be called from any goroutine; engine work is serialized on
// an internal worker.
type Session struct {
	id           string
	eng          *engine.Engine
	validator    *engine.Validator
	materializer *display.Materializer
	pref         display.Preference
	counter      int

	pub Publisher
	// out is pub, or discard during silent executions
	out Publisher

	history *history.Store
	logger  *slog.Logger
	worker  *worker
}

// New creates a session publishing through pub.
func New(pub Publisher, opts Options) (*Session, error) {
	if pub == nil {
		pub = discard{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	eng, err := engine.New(opts.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	s := &Session{
		id:        uuid.NewString(),
		eng:       eng,
		validator: engine.NewValidator(),
		pref:      opts.Preference,
		pub:       pub,
		out:       pub,
		history:   opts.History,
		logger:    logger,
	}

	if err := eng.Bind(display.HostObject, s.hostObject()); err != nil {
		return nil, err
	}
	if err := eng.Include("prelude.js", display.Prelude); err != nil {
		return nil, fmt.Errorf("failed to install display prelude: %w", err)
	}
	for _, path := range opts.Preload {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read preload script: %w", err)
		}
		if err := eng.Include(filepath.Base(path), string(src)); err != nil {
			return nil, err
		}
		logger.Debug("preloaded script", "path", path)
	}
	eng.RegisterDirective("display", s.displayDirective)

	s.materializer = display.NewMaterializer(eng)
	s.worker = newWorker()

	logger.Info("session started", "session", s.id, "display", s.pref.String())
	return s, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// hostObject is bound into the engine as xki.
func (s *Session) hostObject() map[string]any {
	return map[string]any{
		"displayData":       s.displayData,
		"displayPreference": func() string { return s.pref.String() },
		"setDisplayPreference": func(name string) error {
			pref, err := display.ParsePreference(name)
			if err != nil {
				return err
			}
			s.pref = pref
			return nil
		},
		"executionCount": func() int { return s.counter },
	}
}

// displayData publishes a bundle built by interpreted code.
func (s *Session) displayData(bundle map[string]any) {
	payload := make(display.Payload, len(bundle))
	for mime, content := range bundle {
		if str, ok := content.(string); ok {
			payload[mime] = str
		} else {
			payload[mime] = fmt.Sprint(content)
		}
	}
	s.out.DisplayData(payload, map[string]any{}, map[string]any{})
}

// displayDirective handles %display [plain|latex]. Without an argument it
// prints the current preference.
func (s *Session) displayDirective(args string) error {
	if args == "" {
		fmt.Fprintln(os.Stdout, s.pref)
		return nil
	}
	pref, err := display.ParsePreference(args)
	if err != nil {
		return err
	}
	s.pref = pref
	return nil
}
