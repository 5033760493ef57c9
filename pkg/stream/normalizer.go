// Package stream turns a provider's raw SSE byte stream into the relay's
// normalized output: one {"message":"..."} JSON object per line.
//
// The Normalizer is pull based. Each call to Next performs at most one read
// from the upstream body, so the caller controls the pace and no more than
// one chunk is ever held in memory beyond the pending partial frame.
//
// Chunk boundaries are arbitrary. Only complete lines are interpreted; an
// unterminated tail waits for the next chunk, and a rune split across chunks
// is reassembled before validation.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"unicode/utf8"

	"mercator-hq/relay/pkg/providers"
)

// Defaults for Options.
const (
	DefaultMaxFrameBytes = 1 << 20
	DefaultReadSize      = 32 << 10
)

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// Options configures a Normalizer.
type Options struct {
	// Policy handles complete data lines that fail to parse.
	Policy ParsePolicy

	// MaxFrameBytes caps the bytes held back between reads.
	MaxFrameBytes int

	// ReadSize is the buffer size for each upstream read.
	ReadSize int
}

// Event is one normalized output record.
type Event struct {
	Message string `json:"message"`
}

// Normalizer converts one upstream body into normalized event lines. It is
// not safe for concurrent use and cannot be restarted.
type Normalizer struct {
	r    io.Reader
	kind providers.Kind
	opts Options

	readBuf []byte

	// pending holds retained frames followed by the unterminated tail.
	pending []byte

	// partial holds the leading bytes of a rune split at a chunk end.
	partial []byte
	offset  int64

	out *bytes.Buffer
	enc *json.Encoder

	done     bool
	sentinel bool
	events   int64
	emitted int64
}

// New creates a Normalizer reading from r and extracting text with kind's
// extraction rules.
func New(r io.Reader, kind providers.Kind, opts Options) *Normalizer {
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}

	out := &bytes.Buffer{}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	return &Normalizer{
		r:       r,
		kind:    kind,
		opts:    opts,
		readBuf: make([]byte, opts.ReadSize),
		out:     out,
		enc:     enc,
	}
}

// Next reads one upstream chunk and returns the event lines it completed.
//
// The three outcomes are:
//   - a batch (possibly empty) and nil: more may follow
//   - nil and io.EOF: the stream ended cleanly, by sentinel or upstream close
//   - nil and any other error: the stream is broken and must be aborted
//
// An empty batch with nil error means the chunk held no complete event yet.
// If ctx is cancelled, Next returns its cause.
func (n *Normalizer) Next(ctx context.Context) ([]byte, error) {
	if n.done {
		return nil, io.EOF
	}
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	n.out.Reset()

	nr, readErr := n.r.Read(n.readBuf)
	if nr > 0 {
		chunk := n.readBuf[:nr]
		if err := n.checkUTF8(chunk); err != nil {
			n.done = true
			return nil, err
		}
		n.pending = append(n.pending, chunk...)
		if err := n.drainLines(); err != nil {
			n.done = true
			return nil, err
		}
	}

	switch {
	case readErr == nil:
	case errors.Is(readErr, io.EOF):
		if !n.done {
			if err := n.finish(); err != nil {
				n.done = true
				return nil, err
			}
		}
		n.done = true
	default:
		n.done = true
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, &ReadError{Cause: readErr}
	}

	if !n.done && len(n.pending) > n.opts.MaxFrameBytes {
		n.done = true
		return nil, &FrameTooLargeError{Size: len(n.pending), Limit: n.opts.MaxFrameBytes}
	}

	if n.out.Len() == 0 {
		if n.done {
			return nil, io.EOF
		}
		return []byte{}, nil
	}

	n.emitted += int64(n.out.Len())
	return bytes.Clone(n.out.Bytes()), nil
}

// Events returns how many events have been emitted so far.
func (n *Normalizer) Events() int64 {
	return n.events
}

// Bytes returns how many output bytes have been emitted so far.
func (n *Normalizer) Bytes() int64 {
	return n.emitted
}

// Sentinel reports whether the stream ended with data: [DONE] rather than
// an upstream close.
func (n *Normalizer) Sentinel() bool {
	return n.sentinel
}

// drainLines interprets every complete line in pending. What remains is the
// retained frames (buffer policy) followed by the unterminated tail.
func (n *Normalizer) drainLines() error {
	var retained []byte
	rest := n.pending

	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		line := rest[:i]
		rest = rest[i+1:]

		keep, err := n.handleLine(line, false)
		if err != nil {
			return err
		}
		if n.done {
			n.pending = nil
			return nil
		}
		if keep != nil {
			retained = append(retained, keep...)
		}
	}

	n.pending = append(retained, rest...)
	return nil
}

// finish handles whatever is left when the upstream closes.
func (n *Normalizer) finish() error {
	if len(n.partial) > 0 {
		return &EncodingError{Offset: n.offset - int64(len(n.partial))}
	}
	if len(bytes.TrimSpace(n.pending)) == 0 {
		return nil
	}

	line := n.pending
	n.pending = nil

	_, err := n.handleLine(line, true)
	return err
}

// handleLine interprets one line. It returns a non-nil slice when the line
// must be retained for the next chunk.
func (n *Normalizer) handleLine(line []byte, final bool) ([]byte, error) {
	line = bytes.TrimSuffix(line, []byte("\r"))

	payload, ok := cutData(line)
	if !ok {
		return nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(payload), doneMarker) {
		n.done = true
		n.sentinel = true
		return nil, nil
	}

	texts, err := providers.Extract(n.kind, payload)
	if err != nil {
		if n.opts.Policy == PolicyFail {
			return nil, &ParseError{
				Provider: n.kind.String(),
				Line:     truncate(string(payload), 128),
				Cause:    err,
			}
		}
		if final {
			slog.Debug("dropping incomplete frame at end of stream",
				"provider", n.kind.String(),
				"bytes", len(payload),
			)
			return nil, nil
		}
		keep := make([]byte, 0, len("data: ")+len(payload))
		keep = append(keep, "data: "...)
		return append(keep, payload...), nil
	}

	for _, text := range texts {
		if err := n.enc.Encode(Event{Message: text}); err != nil {
			return nil, err
		}
		n.events++
	}
	return nil, nil
}

// checkUTF8 validates chunk, carrying an incomplete trailing rune over to the
// next call.
func (n *Normalizer) checkUTF8(chunk []byte) error {
	b := chunk
	if len(n.partial) > 0 {
		b = append(n.partial, chunk...)
	}
	start := n.offset - int64(len(n.partial))
	n.offset += int64(len(chunk))
	n.partial = nil

	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(b[i:]) {
				n.partial = bytes.Clone(b[i:])
				return nil
			}
			return &EncodingError{Offset: start + int64(i)}
		}
		i += size
	}
	return nil
}

// cutData returns the payload of an SSE data line. A single space after the
// colon is part of the field separator and is dropped.
func cutData(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	payload := line[len(dataPrefix):]
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	return payload, true
}
