package jobs_test

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/orbit-chat/orbit/internal/jobs"
)

func newRegistry() *jobs.Registry {
	return jobs.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestToken(t *testing.T) {
	t.Parallel()

	tok := &jobs.Token{}
	if tok.Cancelled() {
		t.Error("fresh token reports cancelled")
	}
	tok.Cancel()
	tok.Cancel() // idempotent
	if !tok.Cancelled() {
		t.Error("cancelled token reports active")
	}
}

func TestRegistryStartSupersedes(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	first := r.Start(7)
	second := r.Start(7)

	if !first.Token.Cancelled() {
		t.Error("superseded job token not cancelled")
	}
	if second.Token.Cancelled() {
		t.Error("fresh job token already cancelled")
	}
	got, ok := r.Get(7)
	if !ok || got != second {
		t.Error("registry does not track the newest job")
	}
}

func TestRegistryCancel(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	job := r.Start(1)

	if !r.Cancel(1) {
		t.Error("Cancel(1) = false, want true")
	}
	if !job.Token.Cancelled() {
		t.Error("job token not cancelled")
	}
	if r.Cancel(99) {
		t.Error("Cancel(unknown) = true, want false")
	}
}

func TestRegistryEnd(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	job := r.Start(1)
	job.Log("finished")
	r.End(1)

	if _, ok := r.Get(1); ok {
		t.Error("ended job still tracked")
	}
	// The job object stays drainable after End.
	if logs := job.Logs(); len(logs) != 1 || logs[0] != "finished" {
		t.Errorf("Logs() = %v", logs)
	}
}

func TestJobSubscribe(t *testing.T) {
	t.Parallel()

	job := newRegistry().Start(1)
	job.Log("one")
	job.Log("two")

	ch, snapshot := job.Subscribe()
	if len(snapshot) != 2 || snapshot[0] != "one" || snapshot[1] != "two" {
		t.Fatalf("snapshot = %v, want earlier lines", snapshot)
	}

	job.Log("three")
	if got := <-ch; got != "three" {
		t.Errorf("live line = %q, want three", got)
	}

	job.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Error("unsubscribed channel left open")
	}
	// Logging after unsubscribe must not panic on the closed channel.
	job.Log("four")
}

func TestJobStreamDrainsAfterUnsubscribe(t *testing.T) {
	t.Parallel()

	job := newRegistry().Start(1)
	ch, _ := job.Subscribe()

	for i := 0; i < 5; i++ {
		job.Log(fmt.Sprintf("line %d", i))
	}
	job.Unsubscribe(ch)

	// A ranging consumer must see every buffered line and then
	// terminate instead of blocking forever.
	var got []string
	for line := range ch {
		got = append(got, line)
	}
	if len(got) != 5 || got[0] != "line 0" || got[4] != "line 4" {
		t.Errorf("drained lines = %v, want line 0..line 4", got)
	}
}

func TestJobSlowSubscriberDropsLines(t *testing.T) {
	t.Parallel()

	job := newRegistry().Start(1)
	ch, _ := job.Subscribe()

	// Overfill the subscriber buffer; Log must never block.
	for i := 0; i < 150; i++ {
		job.Log(fmt.Sprintf("line %d", i))
	}

	if got := len(job.Logs()); got != 150 {
		t.Errorf("buffer holds %d lines, want all 150", got)
	}
	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received > 100 {
				t.Errorf("received %d lines, want at most the channel capacity", received)
			}
			return
		}
	}
}
