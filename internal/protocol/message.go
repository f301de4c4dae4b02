// Package protocol defines the messages exchanged with a notebook
// front-end: the envelope, request and reply contents, and the
// publications pushed outside the request/reply flow.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the messaging protocol version the kernel speaks.
const Version = "5.3"

// Channels a message can travel on.
const (
	ChannelShell   = "shell"
	ChannelControl = "control"
	ChannelIOPub   = "iopub"
)

// Message types.
const (
	ExecuteRequestType    = "execute_request"
	ExecuteReplyType      = "execute_reply"
	IsCompleteRequestType = "is_complete_request"
	IsCompleteReplyType   = "is_complete_reply"
	CompleteRequestType   = "complete_request"
	CompleteReplyType     = "complete_reply"
	InspectRequestType    = "inspect_request"
	InspectReplyType      = "inspect_reply"
	KernelInfoRequestType = "kernel_info_request"
	KernelInfoReplyType   = "kernel_info_reply"
	HistoryRequestType    = "history_request"
	HistoryReplyType      = "history_reply"
	ShutdownRequestType   = "shutdown_request"
	ShutdownReplyType     = "shutdown_reply"

	StatusType        = "status"
	StreamType        = "stream"
	ExecuteInputType  = "execute_input"
	DisplayDataType   = "display_data"
	ExecuteResultType = "execute_result"
	ErrorType         = "error"
)

// Header identifies a message.
type Header struct {
	MsgID    string `json:"msg_id"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

// Message is the envelope shared by every request, reply and publication.
type Message struct {
	Channel      string          `json:"channel,omitempty"`
	Header       Header          `json:"header"`
	ParentHeader *Header         `json:"parent_header"`
	Metadata     map[string]any  `json:"metadata"`
	Content      json.RawMessage `json:"content"`
}

// NewHeader creates a header with a fresh message id.
func NewHeader(msgType, session, username string) Header {
	return Header{
		MsgID:    uuid.New().String(),
		Session:  session,
		Username: username,
		Date:     time.Now().UTC().Format(time.RFC3339Nano),
		MsgType:  msgType,
		Version:  Version,
	}
}

// NewMessage wraps content in an envelope. parent may be nil.
func NewMessage(channel string, header Header, parent *Header, content any) (*Message, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return &Message{
		Channel:      channel,
		Header:       header,
		ParentHeader: parent,
		Metadata:     map[string]any{},
		Content:      raw,
	}, nil
}

// Decode unmarshals the content into v.
func (m *Message) Decode(v any) error {
	if len(m.Content) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(m.Content, v)
}
