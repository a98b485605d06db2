package bus

import (
	"sync"
	"testing"
	"time"
)

// drain empties sub's buffer without blocking and returns the count.
func drain(sub *Subscription) int {
	n := 0
	for {
		select {
		case <-sub.Ch():
			n++
		default:
			return n
		}
	}
}

func recvOne(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Ch():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus_DeliversToMatchingPrefix(t *testing.T) {
	b := New()
	runs := b.Subscribe("run.")
	everything := b.Subscribe("")
	defer b.Unsubscribe(runs)
	defer b.Unsubscribe(everything)

	b.Publish(TopicRunStarted, RunEvent{RunID: "run-1"})
	b.Publish(TopicArtifactAppended, ArtifactEvent{Artifact: "kinase_screen"})

	ev := recvOne(t, runs)
	if ev.Topic != TopicRunStarted {
		t.Fatalf("topic = %q, want %q", ev.Topic, TopicRunStarted)
	}
	re, ok := ev.Payload.(RunEvent)
	if !ok || re.RunID != "run-1" {
		t.Fatalf("payload = %#v, want RunEvent for run-1", ev.Payload)
	}

	// artifact.appended does not match the run. prefix.
	select {
	case ev := <-runs.Ch():
		t.Fatalf("unexpected event on run subscription: %v", ev.Topic)
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < 2; i++ {
		recvOne(t, everything)
	}
}

func TestBus_DropsWhenBufferFull(t *testing.T) {
	b := New()
	sub := b.Subscribe("dataset.")
	defer b.Unsubscribe(sub)

	for i := 0; i < defaultBufferSize+10; i++ {
		b.Publish(TopicDatasetFetched, DatasetEvent{Records: i})
	}
	if got := drain(sub); got != defaultBufferSize {
		t.Fatalf("drained %d events, want %d", got, defaultBufferSize)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe("run.")
	if n := b.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}

	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second call is a no-op
	b.Unsubscribe(nil)

	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
	if _, ok := <-sub.Ch(); ok {
		t.Fatal("channel still open after Unsubscribe")
	}
}

func TestBus_FanOut(t *testing.T) {
	b := New()
	first := b.Subscribe("alert")
	second := b.Subscribe("alert")
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	b.Publish(TopicAlert, Alert{Severity: "error", Message: "run failed"})

	for _, sub := range []*Subscription{first, second} {
		ev := recvOne(t, sub)
		a, ok := ev.Payload.(Alert)
		if !ok || a.Severity != "error" {
			t.Fatalf("payload = %#v, want error alert", ev.Payload)
		}
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	const publishers = 10
	const events = 5

	var wg sync.WaitGroup
	wg.Add(publishers)
	for p := 0; p < publishers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < events; i++ {
				b.Publish(TopicSymbolFinished, SymbolEvent{RunID: "run-1"})
			}
		}()
	}
	wg.Wait()

	if got := drain(sub); got != publishers*events {
		t.Fatalf("drained %d events, want %d", got, publishers*events)
	}
}
