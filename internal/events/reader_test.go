package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bartdeslagmulder/now-cli/internal/api"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"github.com/cenkalti/backoff/v5"
)

// scriptedOpener answers each connection with the next response in order
type scriptedOpener struct {
	responses []response
	calls     int
}

type response struct {
	status int
	body   string
}

func (s *scriptedOpener) OpenEvents(ctx context.Context, id string) (io.ReadCloser, error) {
	resp := s.responses[s.calls]
	s.calls++
	if resp.status >= 300 {
		return nil, &api.StatusError{Status: resp.status}
	}
	return io.NopCloser(strings.NewReader(resp.body)), nil
}

func lines(events ...string) string {
	return strings.Join(events, "\n") + "\n"
}

func newReader(opener Opener, quiet bool, msg *bytes.Buffer) (*Reader, *int) {
	opened := 0
	return &Reader{
		Opener:  opener,
		BackOff: &backoff.ZeroBackOff{},
		Quiet:   quiet,
		Out:     output.New(msg, io.Discard, false),
		OnOpen:  func() { opened++ },
	}, &opened
}

const fullBuild = `{"type":"build-start"}
{"type":"stdout","payload":"npm install"}
{"type":"build-complete"}
{"type":"instance-start"}`

func TestFollow_RetriesServerErrors(t *testing.T) {
	opener := &scriptedOpener{responses: []response{
		{status: 502}, {status: 503}, {status: 500}, {status: 200, body: fullBuild},
	}}
	var msg bytes.Buffer
	r, opened := newReader(opener, false, &msg)

	if err := r.Follow(context.Background(), "dpl_1"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if r.Attempts() != 4 {
		t.Errorf("expected 4 connections, got %d", r.Attempts())
	}
	if *opened != 1 {
		t.Errorf("expected OnOpen once, got %d", *opened)
	}
	if strings.Count(msg.String(), "Building…") != 1 {
		t.Errorf("expected one build-start line, got %q", msg.String())
	}
	if r.State() != InstanceStarted {
		t.Errorf("State() = %s", r.State())
	}
}

func TestFollow_ExhaustsRetries(t *testing.T) {
	opener := &scriptedOpener{responses: []response{
		{status: 500}, {status: 500}, {status: 500}, {status: 500}, {status: 200, body: fullBuild},
	}}
	r, opened := newReader(opener, false, &bytes.Buffer{})

	err := r.Follow(context.Background(), "dpl_1")
	var se *api.StatusError
	if !errors.As(err, &se) || se.Status != 500 {
		t.Fatalf("expected last StatusError, got %v", err)
	}
	if r.Attempts() != MaxAttempts {
		t.Errorf("expected %d connections, got %d", MaxAttempts, r.Attempts())
	}
	if *opened != 0 {
		t.Errorf("OnOpen should not fire, fired %d times", *opened)
	}
	if r.State() != Errored {
		t.Errorf("State() = %s", r.State())
	}
}

func TestFollow_ClientErrorIsNotRetried(t *testing.T) {
	opener := &scriptedOpener{responses: []response{{status: 404}, {status: 200, body: fullBuild}}}
	r, _ := newReader(opener, false, &bytes.Buffer{})

	err := r.Follow(context.Background(), "dpl_1")
	var se *api.StatusError
	if !errors.As(err, &se) || se.Status != 404 {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
	if opener.calls != 1 {
		t.Errorf("expected 1 connection, got %d", opener.calls)
	}
}

func TestFollow_BrokenStreamReconnectsAndErases(t *testing.T) {
	opener := &scriptedOpener{responses: []response{
		{status: 200, body: lines(`{"type":"build-start"}`, `{"type":"stdout","payload":"step 1"}`)},
		{status: 200, body: fullBuild},
	}}
	var msg bytes.Buffer
	r, opened := newReader(opener, false, &msg)

	if err := r.Follow(context.Background(), "dpl_1"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if r.Attempts() != 2 {
		t.Errorf("expected 2 connections, got %d", r.Attempts())
	}
	if *opened != 1 {
		t.Errorf("expected OnOpen once across reconnects, got %d", *opened)
	}
	// the two lines of the first connection are erased before the replay
	if !strings.Contains(msg.String(), "\x1b[2K") {
		t.Errorf("expected erase sequence before replay, got %q", msg.String())
	}
}

// bodyOpener answers each connection with the next body
type bodyOpener struct {
	bodies []io.Reader
	calls  int
}

func (b *bodyOpener) OpenEvents(ctx context.Context, id string) (io.ReadCloser, error) {
	body := b.bodies[b.calls]
	b.calls++
	return io.NopCloser(body), nil
}

// hookReader runs fn when it is reached and contributes no bytes
type hookReader struct {
	fn func()
}

func (h hookReader) Read([]byte) (int, error) {
	h.fn()
	return 0, io.EOF
}

func TestFollow_StateAfterReconnectIsStreaming(t *testing.T) {
	var r *Reader
	var during State
	opener := &bodyOpener{bodies: []io.Reader{
		strings.NewReader(lines(`{"type":"build-start"}`)),
		io.MultiReader(
			strings.NewReader(lines(`{"type":"build-start"}`)),
			hookReader{fn: func() { during = r.State() }},
			strings.NewReader(lines(`{"type":"instance-start"}`)),
		),
	}}
	r, _ = newReader(opener, false, &bytes.Buffer{})

	if err := r.Follow(context.Background(), "dpl_1"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if during != BuildRunning {
		t.Errorf("State() while reading the reconnected feed = %s, want %s", during, BuildRunning)
	}
	if r.State() != InstanceStarted {
		t.Errorf("State() = %s", r.State())
	}
}

func TestFollow_QuietWaitsForInstanceStart(t *testing.T) {
	body := lines(
		`{"type":"build-start"}`,
		`{"type":"stdout","payload":"hello"}`,
		`{"type":"something-new"}`,
		`{"type":"build-complete"}`,
		`{"type":"instance-start"}`,
		`{"type":"stdout","payload":"after"}`,
	)
	opener := &scriptedOpener{responses: []response{{status: 200, body: body}}}
	var msg bytes.Buffer
	r, _ := newReader(opener, true, &msg)

	if err := r.Follow(context.Background(), "dpl_1"); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if msg.Len() != 0 {
		t.Errorf("quiet mode should print nothing, got %q", msg.String())
	}
	if r.State() != InstanceStarted {
		t.Errorf("State() = %s", r.State())
	}
}

func TestFollow_QuietNeverResolvesWithoutInstanceStart(t *testing.T) {
	partial := lines(`{"type":"build-start"}`, `{"type":"build-complete"}`)
	opener := &scriptedOpener{responses: []response{
		{status: 200, body: partial}, {status: 200, body: partial},
		{status: 200, body: partial}, {status: 200, body: partial},
	}}
	r, _ := newReader(opener, true, &bytes.Buffer{})

	if err := r.Follow(context.Background(), "dpl_1"); err == nil {
		t.Fatal("expected failure when the feed never reports instance-start")
	}
	if opener.calls != MaxAttempts {
		t.Errorf("expected %d connections, got %d", MaxAttempts, opener.calls)
	}
}

func TestParse(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"stderr","payload":"warn"}`))
	if err != nil || ev.Type != Stderr || ev.Payload != "warn" {
		t.Errorf("Parse = %+v, %v", ev, err)
	}
	ev, err = Parse([]byte(`{"type":"deploy-state","payload":{"x":1}}`))
	if err != nil || ev.Type != Unknown || ev.Name != "deploy-state" {
		t.Errorf("Parse = %+v, %v", ev, err)
	}
	if _, err := Parse([]byte("not json")); err == nil {
		t.Error("expected error for invalid line")
	}
}

func TestState_AdvanceIsForwardOnly(t *testing.T) {
	s := Connecting
	if !s.advance(BuildCompleted) {
		t.Fatal("expected advance to build-complete")
	}
	if s.advance(BuildRunning) {
		t.Error("expected no move backwards")
	}
	if s != BuildCompleted {
		t.Errorf("state = %s", s)
	}
}
