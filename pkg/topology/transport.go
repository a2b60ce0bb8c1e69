package topology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// frameDelimiter terminates every control message.
const frameDelimiter = 0

// Request kinds understood by workers.
const (
	RequestStatus = "status"
)

// Request is a control message sent from the master to a worker.
type Request struct {
	Request string `json:"request"`
}

// ErrorReply answers a request the worker cannot serve.
type ErrorReply struct {
	Error string `json:"error"`
}

// PipeTransport carries control messages over a pair of byte streams as
// NUL-terminated JSON objects. Send may be called concurrently; Recv must
// not.
type PipeTransport struct {
	input  io.Reader
	output io.Writer

	sendMu sync.Mutex

	readEOF  bool
	readErr  error
	inBuffer []byte
}

// NewPipeTransport reads frames from input and writes frames to output.
func NewPipeTransport(input io.Reader, output io.Writer) *PipeTransport {
	return &PipeTransport{
		input:  input,
		output: output,
	}
}

// Send encodes msg as one frame. The frame has been handed to the writer
// when Send returns.
func (t *PipeTransport) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode control message: %w", err)
	}
	if bytes.IndexByte(data, frameDelimiter) >= 0 {
		return fmt.Errorf("control message contains a NUL byte")
	}
	data = append(data, frameDelimiter)

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	for len(data) > 0 {
		n, err := t.output.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write control message: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Recv returns the next frame holding a JSON object. Frames that are not
// JSON objects are logged and skipped. It returns io.EOF once the input is
// exhausted.
func (t *PipeTransport) Recv() (json.RawMessage, error) {
	for {
		if end := bytes.IndexByte(t.inBuffer, frameDelimiter); end >= 0 {
			frame := bytes.TrimSpace(t.inBuffer[:end])
			t.inBuffer = t.inBuffer[end+1:]
			if len(frame) == 0 {
				continue
			}
			if frame[0] != '{' || !json.Valid(frame) {
				slog.Warn("ignored invalid control frame", "size", len(frame))
				continue
			}
			return json.RawMessage(bytes.Clone(frame)), nil
		}

		if t.readEOF {
			if len(bytes.TrimSpace(t.inBuffer)) > 0 {
				slog.Warn("discarded unterminated control frame", "size", len(t.inBuffer))
				t.inBuffer = nil
			}
			return nil, t.readErr
		}

		p := make([]byte, 4096)
		n, err := t.input.Read(p)
		if n > 0 {
			t.inBuffer = append(t.inBuffer, p[:n]...)
		}
		if err != nil {
			t.readEOF = true
			t.readErr = err
			if err != io.EOF {
				t.readErr = fmt.Errorf("failed to read control stream: %w", err)
			}
		}
	}
}
