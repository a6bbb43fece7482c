// Package ipc implements the length-prefixed msgpack stdio bridge.
//
// Every frame on the wire is a 4-byte big-endian payload length followed
// by that many bytes of msgpack.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	LengthPrefixSize = 4
	MaxPayloadSize   = 1 << 20 // excludes the prefix
)

// FrameErrorKind tells a broken stream apart from a bad message
type FrameErrorKind int

const (
	FrameErrorPartial  FrameErrorKind = iota // stream ended mid-frame
	FrameErrorTooLarge                       // length prefix over MaxPayloadSize
	FrameErrorDecode                         // payload is not a request
)

// FrameError is returned by the decoder, the encoder and DecodeRequest
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func newFrameError(kind FrameErrorKind, err error, format string, args ...any) *FrameError {
	return &FrameError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *FrameError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *FrameError) Unwrap() error { return e.Err }

// IsFatal reports whether the reader has lost frame alignment. A decode
// error leaves the stream usable; the next frame starts where this one ended.
func (e *FrameError) IsFatal() bool {
	return e.Kind != FrameErrorDecode
}

// IsFatalFrameError reports whether err carries a fatal *FrameError
func IsFatalFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.IsFatal()
}

// FrameDecoder splits a byte stream into frame payloads
type FrameDecoder struct {
	r io.Reader
}

func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{r: r}
}

// ReadFrame returns the next payload. It returns io.EOF only when the
// stream ends on a frame boundary; a stream cut anywhere else is a
// FrameErrorPartial.
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var prefix [LengthPrefixSize]byte
	switch _, err := io.ReadFull(d.r, prefix[:]); {
	case err == io.EOF:
		return nil, io.EOF
	case err != nil:
		return nil, newFrameError(FrameErrorPartial, err, "truncated length prefix")
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxPayloadSize {
		return nil, newFrameError(FrameErrorTooLarge, nil, "frame of %d bytes over the %d byte limit", size, MaxPayloadSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return nil, newFrameError(FrameErrorPartial, err, "truncated payload (%d bytes expected)", size)
	}
	return payload, nil
}

// FrameEncoder writes frames. Responses and events share one encoder, so
// writes are serialised and each frame goes out in a single Write.
type FrameEncoder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{w: w}
}

// WriteFrame prefixes payload with its length and writes it
func (e *FrameEncoder) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return newFrameError(FrameErrorTooLarge, nil, "frame of %d bytes over the %d byte limit", len(payload), MaxPayloadSize)
	}

	frame := binary.BigEndian.AppendUint32(make([]byte, 0, LengthPrefixSize+len(payload)), uint32(len(payload)))
	frame = append(frame, payload...)

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.w.Write(frame)
	return err
}

// Encode writes v as one msgpack frame
func (e *FrameEncoder) Encode(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return e.WriteFrame(payload)
}

// DecodeRequest parses a payload sent by the UI. Anything other than a
// well-formed request map is a FrameErrorDecode.
func DecodeRequest(payload []byte) (*Request, error) {
	var envelope struct {
		Type string `msgpack:"type"`
	}
	if err := msgpack.Unmarshal(payload, &envelope); err != nil {
		return nil, newFrameError(FrameErrorDecode, err, "payload is not a msgpack map")
	}
	if envelope.Type != TypeRequest {
		return nil, newFrameError(FrameErrorDecode, nil, "unexpected frame type %q", envelope.Type)
	}

	req := new(Request)
	if err := msgpack.Unmarshal(payload, req); err != nil {
		return nil, newFrameError(FrameErrorDecode, err, "malformed request")
	}
	return req, nil
}
