// Package codec decodes and encodes the msgid-tagged JSON frames used on the wire.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingMsgID is returned by Decode when a frame has no "msgid" field or its value is null. A non-numeric msgid
// is reported as a decode error instead.
var ErrMissingMsgID = errors.New("frame missing msgid field")

// Frame is one decoded wire message: the dispatch tag plus the remaining raw JSON, which the caller unmarshals into
// a command-specific struct once it knows which one applies.
type Frame struct {
	MsgID int
	Raw   json.RawMessage
}

// Decode parses one JSON object and extracts its msgid tag. Decode does not validate the rest of the payload; that
// is the responsibility of the handler selected by msgid.
func Decode(data []byte) (Frame, error) {
	var tag struct {
		MsgID *int `json:"msgid"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if tag.MsgID == nil {
		return Frame{}, ErrMissingMsgID
	}
	return Frame{MsgID: *tag.MsgID, Raw: data}, nil
}

// Unmarshal decodes a frame's raw payload into v.
func (f Frame) Unmarshal(v any) error {
	if err := json.Unmarshal(f.Raw, v); err != nil {
		return fmt.Errorf("decode payload for msgid %d: %w", f.MsgID, err)
	}
	return nil
}

// EncodeReply marshals v, a reply struct that already carries its own msgid/errno fields, to JSON followed by a
// trailing newline so the server's newline-delimited framing can split it back out on the wire.
func EncodeReply(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return append(b, '\n'), nil
}
