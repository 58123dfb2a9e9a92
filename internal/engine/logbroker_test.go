package engine_test

import (
	"testing"

	"github.com/seantiz/runjs/internal/engine"
	"github.com/seantiz/runjs/internal/model"
)

func outLine(workerID string, seq int, text string) model.LogLine {
	return model.LogLine{WorkerID: workerID, Seq: seq, Stream: model.StreamOut, Line: text}
}

func drain(ch <-chan model.LogLine) []string {
	var got []string
	for l := range ch {
		got = append(got, l.Line)
	}
	return got
}

func TestLogBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewLogBroker()
	ch, unsub := b.Subscribe("w1")
	defer unsub()

	lines := []string{"line 1", "line 2", "line 3"}
	for i, l := range lines {
		b.Publish(outLine("w1", i, l))
	}
	b.Close("w1")

	got := drain(ch)
	if len(got) != len(lines) {
		t.Fatalf("got %d lines, want %d", len(got), len(lines))
	}
	for i, l := range got {
		if l != lines[i] {
			t.Errorf("line[%d] = %q, want %q", i, l, lines[i])
		}
	}
}

func TestLogBrokerKeepsStream(t *testing.T) {
	b := engine.NewLogBroker()
	ch, unsub := b.Subscribe("w1")
	defer unsub()

	b.Publish(model.LogLine{WorkerID: "w1", Seq: 0, Stream: model.StreamErr, Line: "oops"})
	b.Close("w1")

	l, ok := <-ch
	if !ok {
		t.Fatal("channel closed before delivering the line")
	}
	if l.Stream != model.StreamErr || l.Line != "oops" {
		t.Errorf("got %+v, want err stream line %q", l, "oops")
	}
}

func TestLogBrokerMultipleSubscribers(t *testing.T) {
	b := engine.NewLogBroker()
	ch1, unsub1 := b.Subscribe("w1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("w1")
	defer unsub2()

	b.Publish(outLine("w1", 0, "hello"))
	b.Close("w1")

	got1, got2 := drain(ch1), drain(ch2)
	if len(got1) != 1 || got1[0] != "hello" {
		t.Errorf("subscriber 1 got %v, want [hello]", got1)
	}
	if len(got2) != 1 || got2[0] != "hello" {
		t.Errorf("subscriber 2 got %v, want [hello]", got2)
	}
}

func TestLogBrokerTopicsAreIndependent(t *testing.T) {
	b := engine.NewLogBroker()
	ch1, unsub1 := b.Subscribe("w1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("w2")
	defer unsub2()

	b.Publish(outLine("w1", 0, "for w1"))
	b.Publish(outLine("w2", 0, "for w2"))
	b.Close("w1")
	b.Close("w2")

	if got := drain(ch1); len(got) != 1 || got[0] != "for w1" {
		t.Errorf("w1 got %v", got)
	}
	if got := drain(ch2); len(got) != 1 || got[0] != "for w2" {
		t.Errorf("w2 got %v", got)
	}
}

func TestLogBrokerCloseClosesChannels(t *testing.T) {
	b := engine.NewLogBroker()
	ch, unsub := b.Subscribe("w1")
	defer unsub()

	b.Close("w1")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close()")
	}
}

func TestLogBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := engine.NewLogBroker()
	b.Publish(outLine("w1", 0, "early"))
	b.Close("w1")

	ch, unsub := b.Subscribe("w1")
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestLogBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewLogBroker()
	ch, unsub := b.Subscribe("w1")
	unsub()

	b.Publish(outLine("w1", 0, "after unsub"))
	b.Close("w1")

	select {
	case l, ok := <-ch:
		if ok {
			t.Errorf("got unexpected line %q after unsubscribe", l.Line)
		}
	default:
	}
}

func TestLogBrokerPublishToUnknownWorkerIsNoop(t *testing.T) {
	b := engine.NewLogBroker()
	b.Publish(outLine("nonexistent", 0, "line"))
	b.Close("nonexistent")
}

func TestLogBrokerLateSubscriberMissesEarlierLines(t *testing.T) {
	b := engine.NewLogBroker()
	ch1, unsub1 := b.Subscribe("w1")
	defer unsub1()

	b.Publish(outLine("w1", 0, "line 1"))

	ch2, unsub2 := b.Subscribe("w1")
	defer unsub2()

	b.Publish(outLine("w1", 1, "line 2"))
	b.Close("w1")

	got1, got2 := drain(ch1), drain(ch2)
	if len(got1) != 2 {
		t.Errorf("subscriber 1 got %d lines, want 2", len(got1))
	}
	if len(got2) != 1 || got2[0] != "line 2" {
		t.Errorf("late subscriber got %v, want [line 2]", got2)
	}
}
