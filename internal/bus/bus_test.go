package bus

import (
	"fmt"
	"testing"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

func TestPublishOrdering(t *testing.T) {
	b := New(16)
	defer b.Close()
	sub := b.Subscribe("test", nil)

	for i := 0; i < 10; i++ {
		b.Publish(models.Event{Type: models.EventPageUpdated, Page: fmt.Sprintf("p%d", i)})
	}
	for i := 0; i < 10; i++ {
		e := <-sub.Events()
		if e.Page != fmt.Sprintf("p%d", i) {
			t.Fatalf("event %d out of order: %+v", i, e)
		}
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	b := New(3)
	defer b.Close()
	sub := b.Subscribe("slow", nil)

	for i := 0; i < 5; i++ {
		b.Publish(models.Event{Type: models.EventPageUpdated, Page: fmt.Sprintf("p%d", i)})
	}
	// Queue depth 3, five published: p0 and p1 were dropped.
	want := []string{"p2", "p3", "p4"}
	for _, w := range want {
		e := <-sub.Events()
		if e.Page != w {
			t.Fatalf("want %s, got %+v", w, e)
		}
	}
	select {
	case e := <-sub.Events():
		t.Fatalf("queue should be empty, got %+v", e)
	default:
	}
}

func TestProjectFilter(t *testing.T) {
	b := New(8)
	defer b.Close()
	sub := b.Subscribe("riverside-ws", ProjectFilter("riverside"))

	b.Publish(models.Event{Type: models.EventNotesUpdate, Project: "other"})
	b.Publish(models.Event{Type: models.EventNotesUpdate, Project: "riverside"})
	b.Publish(models.Event{Type: models.EventRegistryUpdate}) // fleet-level, no project

	e := <-sub.Events()
	if e.Project != "riverside" {
		t.Fatalf("other-project event leaked: %+v", e)
	}
	e = <-sub.Events()
	if e.Type != models.EventRegistryUpdate {
		t.Fatalf("fleet-level events must pass the filter, got %+v", e)
	}
	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New(8)
	defer b.Close()
	a := b.Subscribe("a", nil)
	c := b.Subscribe("c", nil)

	b.Unsubscribe(a)
	b.Unsubscribe(a)
	b.Unsubscribe(nil)

	if _, open := <-a.Events(); open {
		t.Error("unsubscribed channel must be closed")
	}

	// The other subscriber keeps receiving.
	b.Publish(models.Event{Type: models.EventHeartbeat})
	if e := <-c.Events(); e.Type != models.EventHeartbeat {
		t.Fatalf("surviving subscriber missed event: %+v", e)
	}
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	b := New(8)
	a := b.Subscribe("a", nil)
	c := b.Subscribe("c", nil)
	b.Close()
	if _, open := <-a.Events(); open {
		t.Error("a still open after Close")
	}
	if _, open := <-c.Events(); open {
		t.Error("c still open after Close")
	}
	// Unsubscribe after Close must not panic.
	b.Unsubscribe(a)
}
