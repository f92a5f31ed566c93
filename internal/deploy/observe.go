package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bartdeslagmulder/now-cli/internal/events"
	"github.com/bartdeslagmulder/now-cli/internal/logstream"
	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"github.com/bartdeslagmulder/now-cli/internal/source"
	"github.com/bartdeslagmulder/now-cli/internal/upload"
	"github.com/dustin/go-humanize"
)

// upload drives the coordinator to its terminal event
func (d *Driver) upload(ctx context.Context, inv *invocation, coord *upload.Coordinator) error {
	inv.synced = coord.ChangedFileCount()
	inv.syncedBytes = coord.ChangedByteCount()
	d.Out.Debugf("uploading %d of %d files", inv.synced, coord.TotalFileCount())

	var bar *output.Progress
	if d.Interactive {
		bar = d.Out.NewProgress(inv.syncedBytes, plural(inv.synced, "file"))
	}

	for ev := range coord.Start(ctx) {
		switch ev.Kind {
		case upload.ChunkUploaded:
			d.Out.Debugf("Uploaded: %s (%s)", strings.Join(ev.Names, " "), humanize.Bytes(uint64(ev.Bytes)))
			if bar != nil {
				bar.Tick(ev.Bytes)
			}
		case upload.Complete:
			if bar != nil {
				bar.Done()
			}
			return nil
		case upload.Failed:
			if bar != nil {
				bar.Done()
			}
			d.Out.Error("Upload failed")
			return &model.ReportedError{Err: fmt.Errorf("upload failed: %w", ev.Err)}
		}
	}
	return fmt.Errorf("upload ended without a result")
}

func (d *Driver) printURL(inv *invocation, dep *model.Deployment) {
	elapsed := formatElapsed(d.now().Sub(inv.start))

	if !d.Interactive {
		d.Out.Result(dep.URL)
		return
	}

	switch {
	case inv.opts.NoClipboard || d.Clipboard == nil:
		d.Out.Log("%s [%s]", dep.URL, elapsed)
	default:
		if err := d.Clipboard.Copy(dep.URL); err != nil {
			d.Out.Debugf("Error copying to clipboard: %v", err)
			d.Out.Log("Ready! %s [%s]", dep.URL, elapsed)
		} else {
			d.Out.Log("Ready! %s (copied to clipboard) [%s]", dep.URL, elapsed)
		}
	}

	if inv.synced > 0 {
		d.Out.Log("Synced %s (%s) [%s]", plural(inv.synced, "file"), humanize.Bytes(uint64(inv.syncedBytes)), elapsed)
	}
}

// observe follows the deployment until it is up. Static deployments are
// done once created.
func (d *Driver) observe(ctx context.Context, inv *invocation, src *source.Source, dep *model.Deployment) error {
	quiet := !d.Interactive

	if src.Type == model.TypeStatic {
		if !quiet {
			d.Out.Log("Deployment complete!")
		}
		return nil
	}

	if src.Config().Atlas {
		stop := func() {}
		if !quiet {
			stop = d.Out.Wait("Initializing...", output.DefaultWaitDelay)
		}
		reader := &events.Reader{
			Opener:  d.API,
			BackOff: d.BackOff,
			Quiet:   quiet,
			Out:     d.Out,
			OnOpen:  stop,
		}
		err := reader.Follow(ctx, dep.ID)
		stop()
		return err
	}

	if d.Logs == nil {
		return fmt.Errorf("no log transport configured")
	}
	if !quiet {
		d.Out.Log("Initializing…")
	}
	tailer := &logstream.Tailer{
		Transport: d.Logs(dep.ID),
		Out:       d.Out,
		Quiet:     quiet,
		Scale:     dep.Scale,
		Release:   func() { d.release(inv) },
	}
	return tailer.Run(ctx)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
