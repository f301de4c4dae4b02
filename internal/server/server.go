// Package server connects a kernel session to a front-end over a byte
// stream carrying one JSON message per line.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/kernel"
	"github.com/itsmostafa/gokernel/internal/protocol"
)

const username = "kernel"

// maxMessageSize bounds a single line on the input stream.
const maxMessageSize = 16 * 1024 * 1024

// Kernel is the session the server dispatches requests to.
type Kernel interface {
	Execute(ctx context.Context, counter int, req protocol.ExecuteRequest) (protocol.ExecuteReply, error)
	IsComplete(ctx context.Context, code string) (protocol.IsCompleteReply, error)
	Complete(ctx context.Context, code string, cursorPos int) (protocol.CompleteReply, error)
	Inspect(code string, cursorPos, detailLevel int) protocol.InspectReply
	KernelInfo() protocol.KernelInfoReply
	History(ctx context.Context, req protocol.HistoryRequest) (protocol.HistoryReply, error)
	Shutdown(ctx context.Context, restart bool) (protocol.ShutdownReply, error)
}

// Factory creates a kernel publishing through pub. It is called at start
// and again for every restart.
type Factory func(pub kernel.Publisher) (Kernel, error)

// Server reads requests from in and writes replies and publications to
// out. Requests are handled one at a time.
type Server struct {
	in      io.Reader
	out     io.Writer
	factory Factory
	logger  *slog.Logger
	session string

	mu sync.Mutex
	// parent is the header of the request being handled
	parent  *protocol.Header
	counter int
}

// New creates a server.
func New(in io.Reader, out io.Writer, factory Factory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		in:      in,
		out:     out,
		factory: factory,
		logger:  logger,
		session: uuid.NewString(),
	}
}

// Run serves requests until the input ends, a non-restart shutdown is
// handled, or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	k, err := s.factory(s)
	if err != nil {
		return fmt.Errorf("failed to start kernel: %w", err)
	}
	s.publish(protocol.StatusType, protocol.Status{ExecutionState: protocol.StateStarting})
	s.logger.Info("kernel ready", "session", s.session)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			k.Shutdown(context.Background(), false)
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Warn("discarding malformed message", "error", err)
			continue
		}

		next, stop := s.handle(ctx, k, &msg)
		if stop {
			return nil
		}
		k = next
	}

	k.Shutdown(context.Background(), false)
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// handle dispatches one request between busy and idle status
// publications. It returns the kernel to use for the next request and
// whether the server should stop.
func (s *Server) handle(ctx context.Context, k Kernel, msg *protocol.Message) (Kernel, bool) {
	msgType := msg.Header.MsgType
	log := s.logger.With("msg_type", msgType, "msg_id", msg.Header.MsgID)

	s.setParent(&msg.Header)
	defer s.setParent(nil)

	s.publish(protocol.StatusType, protocol.Status{ExecutionState: protocol.StateBusy})
	defer s.publish(protocol.StatusType, protocol.Status{ExecutionState: protocol.StateIdle})

	var (
		content any
		err     error
	)
	switch msgType {
	case protocol.ExecuteRequestType:
		content, err = s.execute(ctx, k, msg)
	case protocol.IsCompleteRequestType:
		var req protocol.IsCompleteRequest
		if err = msg.Decode(&req); err == nil {
			content, err = k.IsComplete(ctx, req.Code)
		}
	case protocol.CompleteRequestType:
		var req protocol.CompleteRequest
		if err = msg.Decode(&req); err == nil {
			content, err = k.Complete(ctx, req.Code, req.CursorPos)
		}
	case protocol.InspectRequestType:
		var req protocol.InspectRequest
		if err = msg.Decode(&req); err == nil {
			content = k.Inspect(req.Code, req.CursorPos, req.DetailLevel)
		}
	case protocol.KernelInfoRequestType:
		content = k.KernelInfo()
	case protocol.HistoryRequestType:
		var req protocol.HistoryRequest
		if err = msg.Decode(&req); err == nil {
			content, err = k.History(ctx, req)
		}
	case protocol.ShutdownRequestType:
		return s.shutdown(ctx, k, msg)
	default:
		log.Warn("ignoring unsupported message type")
		return k, false
	}

	if err != nil {
		log.Error("request failed", "error", err)
		content = errorReply(err)
	}
	s.reply(msg, content)
	log.Debug("request handled")
	return k, false
}

func (s *Server) execute(ctx context.Context, k Kernel, msg *protocol.Message) (any, error) {
	var req protocol.ExecuteRequest
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if req.StoreHistory && !req.Silent {
		s.counter++
	}
	counter := s.counter
	s.mu.Unlock()

	if !req.Silent {
		s.publish(protocol.ExecuteInputType, protocol.ExecuteInput{Code: req.Code, ExecutionCount: counter})
	}
	return k.Execute(ctx, counter, req)
}

func (s *Server) shutdown(ctx context.Context, k Kernel, msg *protocol.Message) (Kernel, bool) {
	var req protocol.ShutdownRequest
	if err := msg.Decode(&req); err != nil {
		s.logger.Warn("malformed shutdown request", "error", err)
	}

	reply, err := k.Shutdown(ctx, req.Restart)
	if err != nil {
		s.logger.Error("shutdown failed", "error", err)
	}
	s.reply(msg, reply)

	if !req.Restart {
		return k, true
	}

	next, err := s.factory(s)
	if err != nil {
		s.logger.Error("restart failed", "error", err)
		return k, true
	}
	s.mu.Lock()
	s.counter = 0
	s.mu.Unlock()
	s.logger.Info("kernel restarted")
	return next, false
}

func errorReply(err error) protocol.ErrorReply {
	ename := string(kernel.UnknownError)
	if errors.Is(err, kernel.ErrShutdown) {
		ename = "Shutdown"
	}
	return protocol.ErrorReply{
		Status:    protocol.StatusError,
		Ename:     ename,
		Evalue:    err.Error(),
		Traceback: []string{ename + ": " + err.Error()},
	}
}

func (s *Server) setParent(h *protocol.Header) {
	s.mu.Lock()
	s.parent = h
	s.mu.Unlock()
}

// reply answers a request on the channel it arrived on.
func (s *Server) reply(req *protocol.Message, content any) {
	channel := req.Channel
	if channel == "" {
		channel = protocol.ChannelShell
	}
	s.send(channel, protocol.ReplyType(req.Header.MsgType), &req.Header, content)
}

func (s *Server) publish(msgType string, content any) {
	s.mu.Lock()
	parent := s.parent
	s.mu.Unlock()
	s.send(protocol.ChannelIOPub, msgType, parent, content)
}

func (s *Server) send(channel, msgType string, parent *protocol.Header, content any) {
	msg, err := protocol.NewMessage(channel, protocol.NewHeader(msgType, s.session, username), parent, content)
	if err != nil {
		s.logger.Error("failed to encode message", "msg_type", msgType, "error", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode message", "msg_type", msgType, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		s.logger.Error("failed to write message", "msg_type", msgType, "error", err)
	}
}

// DisplayData publishes a display_data message.
func (s *Server) DisplayData(payload display.Payload, metadata, transient map[string]any) {
	s.publish(protocol.DisplayDataType, protocol.DisplayData{Data: payload, Metadata: metadata, Transient: transient})
}

// ExecuteResult publishes an execute_result message.
func (s *Server) ExecuteResult(counter int, payload display.Payload, metadata map[string]any) {
	s.publish(protocol.ExecuteResultType, protocol.ExecuteResult{ExecutionCount: counter, Data: payload, Metadata: metadata})
}

// ExecuteError publishes an error message.
func (s *Server) ExecuteError(ename, evalue string, traceback []string) {
	s.publish(protocol.ErrorType, protocol.Error{Ename: ename, Evalue: evalue, Traceback: traceback})
}

// Stream publishes a stream message.
func (s *Server) Stream(name, text string) {
	s.publish(protocol.StreamType, protocol.Stream{Name: name, Text: text})
}
