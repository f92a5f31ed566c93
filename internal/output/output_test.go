package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestOutput_Lines(t *testing.T) {
	var msg, result bytes.Buffer
	o := New(&msg, &result, false)

	o.Log("Deploying %s", "app")
	o.Error("Upload failed")
	o.Note("use --public")
	o.Result("https://app.now.sh")

	want := "> Deploying app\n> Error! Upload failed\n> NOTE: use --public\n"
	if msg.String() != want {
		t.Errorf("messages = %q, want %q", msg.String(), want)
	}
	if result.String() != "https://app.now.sh" {
		t.Errorf("result = %q", result.String())
	}
	if o.LinesWritten() != 3 {
		t.Errorf("LinesWritten() = %d, want 3", o.LinesWritten())
	}
}

func TestOutput_DebugOnlyWhenEnabled(t *testing.T) {
	var msg bytes.Buffer
	o := New(&msg, &bytes.Buffer{}, false)
	o.Debugf("hidden %d", 1)
	if msg.Len() != 0 {
		t.Errorf("expected no debug output, got %q", msg.String())
	}

	msg.Reset()
	o = New(&msg, &bytes.Buffer{}, true)
	o.Debugf("shown %d", 2)
	if !strings.Contains(msg.String(), "shown 2") {
		t.Errorf("expected debug output, got %q", msg.String())
	}
}

func TestOutput_EraseLines(t *testing.T) {
	var msg bytes.Buffer
	o := New(&msg, &bytes.Buffer{}, false)
	o.Log("one")
	o.Log("two")
	o.EraseLines(2)

	if o.LinesWritten() != 0 {
		t.Errorf("LinesWritten() = %d after erase, want 0", o.LinesWritten())
	}
	if strings.Count(msg.String(), "\x1b[1A") != 2 {
		t.Errorf("expected two cursor-up sequences in %q", msg.String())
	}
}

func TestWait_StoppedBeforeDelay(t *testing.T) {
	var msg bytes.Buffer
	o := New(&msg, &bytes.Buffer{}, false)

	stop := o.Wait("Initializing...", time.Hour)
	stop()
	stop()

	if msg.Len() != 0 {
		t.Errorf("expected nothing written, got %q", msg.String())
	}
}

func TestWait_ShownThenErased(t *testing.T) {
	var msg bytes.Buffer
	o := New(&msg, &bytes.Buffer{}, false)

	stop := o.Wait("Initializing...", time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for o.LinesWritten() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stop()

	if !strings.Contains(msg.String(), "Initializing...") {
		t.Fatalf("expected wait message, got %q", msg.String())
	}
	if o.LinesWritten() != 0 {
		t.Errorf("expected message to be erased, %d lines remain", o.LinesWritten())
	}
}

func TestProgress_Render(t *testing.T) {
	o := New(&bytes.Buffer{}, &bytes.Buffer{}, false)
	p := o.NewProgress(1000, "2 files")
	p.Tick(500)

	got := p.Render()
	if !strings.Contains(got, " 50%") {
		t.Errorf("expected 50%% in %q", got)
	}
	if !strings.Contains(got, "1.0 kB") {
		t.Errorf("expected humanized size in %q", got)
	}
	if !strings.HasSuffix(got, "[2 files]") {
		t.Errorf("expected label suffix in %q", got)
	}

	p.Tick(5000)
	if !strings.Contains(p.Render(), "100%") {
		t.Errorf("expected progress to clamp at 100%%, got %q", p.Render())
	}
}
