package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"mercator-hq/relay/pkg/providers"
)

// scriptedReader returns one scripted chunk per Read, then err (io.EOF if nil).
type scriptedReader struct {
	chunks []string
	err    error
	// eofWithLast delivers the final chunk together with io.EOF.
	eofWithLast bool
	reads       int
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	r.reads++
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	n := copy(p, chunk)
	if n < len(chunk) {
		panic("test chunk larger than read buffer")
	}
	if r.eofWithLast && len(r.chunks) == 0 && r.err == nil {
		return n, io.EOF
	}
	return n, nil
}

func newTestNormalizer(kind providers.Kind, policy ParsePolicy, chunks ...string) (*Normalizer, *scriptedReader) {
	r := &scriptedReader{chunks: chunks}
	return New(r, kind, Options{Policy: policy}), r
}

// drain pulls until EOF and returns the concatenated output.
func drain(t *testing.T, n *Normalizer) string {
	t.Helper()
	var out strings.Builder
	for i := 0; i < 100; i++ {
		batch, err := n.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out.String()
		}
		if err != nil {
			t.Fatalf("Next() unexpected error: %v", err)
		}
		out.Write(batch)
	}
	t.Fatal("normalizer did not terminate")
	return ""
}

func TestNormalizer_GeminiSingleChunk(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGemini, PolicyBuffer,
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hello\"}]}}]}\n\n",
	)

	got := drain(t, n)
	if got != "{\"message\":\"Hello\"}\n" {
		t.Errorf("expected single Hello event, got %q", got)
	}
}

func TestNormalizer_MistralSplitFrame(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindMistral, PolicyBuffer,
		`data: {"choices":[{"delta":{"content":"He`,
		"llo\"}}]}\n",
		"data: [DONE]\n",
	)
	ctx := context.Background()

	first, err := n.Next(ctx)
	if err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	if len(first) != 0 {
		t.Errorf("expected no output from partial frame, got %q", first)
	}

	second, err := n.Next(ctx)
	if err != nil {
		t.Fatalf("second Next() error = %v", err)
	}
	if string(second) != "{\"message\":\"Hello\"}\n" {
		t.Errorf("expected Hello event, got %q", second)
	}

	if _, err := n.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after sentinel, got %v", err)
	}
}

func TestNormalizer_ManyEventsInOrder(t *testing.T) {
	var chunk strings.Builder
	words := []string{"one", "two", "three", "four", "five"}
	for _, w := range words {
		chunk.WriteString(`data: {"choices":[{"delta":{"content":"` + w + `"}}]}` + "\n\n")
	}

	n, _ := newTestNormalizer(providers.KindGPT, PolicyBuffer, chunk.String())

	batch, err := n.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(batch), "\n"), "\n")
	if len(lines) != len(words) {
		t.Fatalf("expected %d events, got %d: %q", len(words), len(lines), batch)
	}
	for i, w := range words {
		if want := `{"message":"` + w + `"}`; lines[i] != want {
			t.Errorf("event %d = %s, want %s", i, lines[i], want)
		}
	}
	if n.Events() != int64(len(words)) {
		t.Errorf("Events() = %d, want %d", n.Events(), len(words))
	}
}

func TestNormalizer_DoneStopsReading(t *testing.T) {
	n, r := newTestNormalizer(providers.KindMistral, PolicyBuffer,
		"data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\ndata: [DONE]\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"c\"}}]}\n",
	)

	got := drain(t, n)
	if got != "{\"message\":\"a\"}\n" {
		t.Errorf("expected only events before sentinel, got %q", got)
	}
	if r.reads != 1 {
		t.Errorf("expected no reads after sentinel, got %d reads", r.reads)
	}
	if !n.Sentinel() {
		t.Error("Sentinel() = false after [DONE]")
	}
	if _, err := n.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF on repeated Next, got %v", err)
	}
}

func TestNormalizer_UpstreamCloseWithoutSentinel(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGemini, PolicyFail,
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"x\"}]}}]}\n",
	)

	if got := drain(t, n); got != "{\"message\":\"x\"}\n" {
		t.Errorf("unexpected output %q", got)
	}
	if n.Sentinel() {
		t.Error("Sentinel() = true without [DONE]")
	}
}

func TestNormalizer_EmptyReadIsNotEnd(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGPT, PolicyBuffer,
		": keep-alive\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"z\"}}]}\n",
	)
	ctx := context.Background()

	batch, err := n.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if batch == nil || len(batch) != 0 {
		t.Errorf("expected empty non-nil batch, got %q", batch)
	}

	batch, err = n.Next(ctx)
	if err != nil || string(batch) != "{\"message\":\"z\"}\n" {
		t.Errorf("expected z event, got %q (%v)", batch, err)
	}
}

func TestNormalizer_BufferPolicyRetainsUnparseableLine(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindMistral, PolicyBuffer,
		"data: {\"choices\":[{\"delta\":\n",
		"{\"content\":\"joined\"}}]}\n",
	)

	if got := drain(t, n); got != "{\"message\":\"joined\"}\n" {
		t.Errorf("expected retained frame to complete, got %q", got)
	}
}

func TestNormalizer_BufferPolicyDropsLeftoverAtEOF(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindMistral, PolicyBuffer,
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n",
		"data: {\"choices\":[{\"del",
	)

	if got := drain(t, n); got != "{\"message\":\"ok\"}\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestNormalizer_FailPolicy(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGemini, PolicyFail,
		"data: {not json}\n",
	)

	_, err := n.Next(context.Background())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if parseErr.Provider != "gemini" {
		t.Errorf("expected provider gemini, got %q", parseErr.Provider)
	}

	if _, err := n.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected stream closed after fatal error, got %v", err)
	}
}

func TestNormalizer_FailPolicyLeftoverAtEOF(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGemini, PolicyFail,
		"data: {\"candidates\":[",
	)

	_, err := n.Next(context.Background())
	if err != nil {
		t.Fatalf("partial tail must not fail before EOF: %v", err)
	}
	_, err = n.Next(context.Background())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError at EOF, got %T (%v)", err, err)
	}
}

func TestNormalizer_TrailingLineWithoutNewline(t *testing.T) {
	r := &scriptedReader{
		chunks:      []string{"data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}"},
		eofWithLast: true,
	}
	n := New(r, providers.KindGPT, Options{})

	batch, err := n.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(batch) != "{\"message\":\"tail\"}\n" {
		t.Errorf("expected tail event, got %q", batch)
	}
	if _, err := n.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestNormalizer_FrameTooLarge(t *testing.T) {
	r := &scriptedReader{chunks: []string{
		"data: " + strings.Repeat("x", 60),
		strings.Repeat("y", 60),
	}}
	n := New(r, providers.KindMistral, Options{MaxFrameBytes: 100})

	if _, err := n.Next(context.Background()); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err := n.Next(context.Background())
	var frameErr *FrameTooLargeError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameTooLargeError, got %T (%v)", err, err)
	}
	if frameErr.Limit != 100 {
		t.Errorf("expected limit 100, got %d", frameErr.Limit)
	}
}

func TestNormalizer_SplitRune(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGPT, PolicyFail,
		"data: {\"choices\":[{\"delta\":{\"content\":\"caf\xc3",
		"\xa9\"}}]}\n",
	)

	if got := drain(t, n); got != "{\"message\":\"café\"}\n" {
		t.Errorf("expected reassembled rune, got %q", got)
	}
}

func TestNormalizer_InvalidUTF8(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGPT, PolicyBuffer,
		"data: {\"choices\":[{\"delta\":{\"content\":\"\xff\"}}]}\n",
	)

	_, err := n.Next(context.Background())
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodingError, got %T (%v)", err, err)
	}
}

func TestNormalizer_TruncatedRuneAtEOF(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindGPT, PolicyBuffer, "data: \xe2\x82")

	if _, err := n.Next(context.Background()); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err := n.Next(context.Background())
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodingError, got %T (%v)", err, err)
	}
}

func TestNormalizer_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := &scriptedReader{err: boom}
	n := New(r, providers.KindMistral, Options{})

	_, err := n.Next(context.Background())
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected *ReadError, got %T (%v)", err, err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestNormalizer_CancelledContext(t *testing.T) {
	n, r := newTestNormalizer(providers.KindMistral, PolicyBuffer, "data: {}\n")

	cause := errors.New("idle")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)

	if _, err := n.Next(ctx); !errors.Is(err, cause) {
		t.Errorf("expected cancellation cause, got %v", err)
	}
	if r.reads != 0 {
		t.Errorf("expected no upstream read, got %d", r.reads)
	}
}

func TestNormalizer_LineVariants(t *testing.T) {
	n, _ := newTestNormalizer(providers.KindMistral, PolicyFail,
		"event: message\r\nid: 1\r\ndata:{\"choices\":[{\"delta\":{\"content\":\"<b>&\"}}]}\r\n\r\n",
		"data: [DONE]  \r\n",
	)

	if got := drain(t, n); got != "{\"message\":\"<b>&\"}\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestParsePolicyFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    ParsePolicy
		wantErr bool
	}{
		{in: "", want: PolicyBuffer},
		{in: "buffer", want: PolicyBuffer},
		{in: "FAIL", want: PolicyFail},
		{in: "retry", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePolicyFromString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicyFromString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicyFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
