package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/engine"
	"github.com/itsmostafa/gokernel/internal/history"
	"github.com/itsmostafa/gokernel/internal/protocol"
	"github.com/itsmostafa/gokernel/internal/version"
)

// Implementation is the name the kernel reports about itself.
const Implementation = "gokernel"

const inspectPlaceholder = "Sorry. Code inspection is not yet implemented."

// Banner is shown by front-ends when they connect.
var Banner = fmt.Sprintf(`%s %s
JavaScript (ECMAScript 5.1+) interactive kernel.
Use %%display latex or %%display plain to choose how values are shown.`, Implementation, version.Short())

// IsComplete reports whether code is ready to run. The validator is reset
// before every check.
func (s *Session) IsComplete(ctx context.Context, code string) (protocol.IsCompleteReply, error) {
	var v engine.Validation
	err := s.worker.Do(ctx, func() {
		s.validator.Reset()
		v = s.validator.Validate(code)
	})
	if err != nil {
		return protocol.IsCompleteReply{}, err
	}

	status := protocol.Unknown
	switch v {
	case engine.Complete:
		status = protocol.Complete
	case engine.Incomplete:
		status = protocol.Incomplete
	case engine.Mismatch:
		status = protocol.Invalid
	}
	return protocol.IsCompleteReply{Status: status, Indent: ""}, nil
}

// Inspect is not implemented and always answers with a placeholder.
func (s *Session) Inspect(code string, cursorPos, detailLevel int) protocol.InspectReply {
	return protocol.InspectReply{PlainText: inspectPlaceholder}
}

// KernelInfo returns the kernel's static metadata.
func (s *Session) KernelInfo() protocol.KernelInfoReply {
	return protocol.KernelInfoReply{
		Status:                protocol.StatusOK,
		ProtocolVersion:       protocol.Version,
		Implementation:        Implementation,
		ImplementationVersion: version.Version,
		LanguageInfo: protocol.LanguageInfo{
			Name:              "javascript",
			Version:           "ES5.1+",
			Mimetype:          "text/javascript",
			FileExtension:     ".js",
			PygmentsLexer:     "javascript",
			CodemirrorMode:    "javascript",
			NbconvertExporter: "script",
		},
		Banner:    Banner,
		Debugger:  false,
		HelpLinks: []protocol.HelpLink{},
	}
}

// Preference returns the current display preference.
func (s *Session) Preference(ctx context.Context) (display.Preference, error) {
	var pref display.Preference
	err := s.worker.Do(ctx, func() { pref = s.pref })
	return pref, err
}

// History answers a history request from the store.
func (s *Session) History(ctx context.Context, req protocol.HistoryRequest) (protocol.HistoryReply, error) {
	if s.history == nil {
		return protocol.HistoryReply{}, history.ErrDisabled
	}

	var (
		entries []history.Entry
		err     error
	)
	werr := s.worker.Do(ctx, func() {
		switch req.HistAccessType {
		case protocol.HistoryTail, "":
			entries, err = s.history.Tail(req.N)
		case protocol.HistoryRange:
			entries, err = s.history.Range(req.Session, req.Start, req.Stop)
		case protocol.HistorySearch:
			entries, err = s.history.Search(req.Pattern, req.N, req.Unique)
		default:
			err = fmt.Errorf("unknown history access type %q", req.HistAccessType)
		}
	})
	if werr != nil {
		return protocol.HistoryReply{}, werr
	}
	if err != nil {
		return protocol.HistoryReply{}, err
	}

	reply := protocol.HistoryReply{Status: protocol.StatusOK, History: make([]protocol.HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		reply.History = append(reply.History, protocol.HistoryEntry{Session: e.Session, Line: e.Line, Input: e.Source})
	}
	return reply, nil
}

// Shutdown says goodbye, closes the history store and stops the worker.
// Later requests fail with ErrShutdown.
func (s *Session) Shutdown(ctx context.Context, restart bool) (protocol.ShutdownReply, error) {
	var closeErr error
	err := s.worker.Do(ctx, func() {
		s.pub.Stream("stdout", "Bye!!\n")
		if s.history != nil {
			closeErr = s.history.Close()
		}
	})
	if err != nil && !errors.Is(err, ErrShutdown) {
		return protocol.ShutdownReply{}, err
	}
	s.worker.Stop()

	s.logger.Info("session shut down", "session", s.id, "restart", restart)
	if closeErr != nil {
		return protocol.ShutdownReply{Status: protocol.StatusOK, Restart: restart}, fmt.Errorf("closing history: %w", closeErr)
	}
	return protocol.ShutdownReply{Status: protocol.StatusOK, Restart: restart}, nil
}
