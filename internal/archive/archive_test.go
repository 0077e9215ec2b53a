package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"simulacra-server/internal/domain"
)

func sampleEvents(t *testing.T) []domain.GameEvent {
	t.Helper()
	speak := domain.NewEvent(domain.EventSpeak, "alice", "w1", domain.SpeakParams{Message: "hello", Volume: 5})
	heard := domain.NewEvent(domain.EventHeard, "bob", "w1", domain.HeardParams{SpeakerID: "alice", Message: "hello", Distance: 3})
	move := domain.NewEvent(domain.EventMove, "alice", "w1", domain.MoveParams{
		To:         domain.Vec3{X: 5, Z: 3},
		Segments:   []domain.Vec3{{X: 5, Z: 3}},
		DurationMs: 7289,
	})
	return []domain.GameEvent{*speak, *heard, *move}
}

func TestArchive_RoundTrip(t *testing.T) {
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	events := sampleEvents(t)

	path, err := svc.Save("w1", events)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	arc, err := svc.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if arc.WorldID != "w1" {
		t.Errorf("world id = %q, want w1", arc.WorldID)
	}
	if len(arc.Events) != len(events) {
		t.Fatalf("events = %d, want %d", len(arc.Events), len(events))
	}

	for i := range events {
		got, want := arc.Events[i], events[i]
		if got.ID != want.ID || got.Kind != want.Kind || got.ActorID != want.ActorID {
			t.Errorf("event %d = %+v, want %+v", i, got, want)
		}
	}

	// Типизированные параметры переживают дорогу туда-обратно
	hp, ok := arc.Events[1].Params.(domain.HeardParams)
	if !ok || hp.SpeakerID != "alice" || hp.Distance != 3 {
		t.Errorf("heard params = %+v", arc.Events[1].Params)
	}
	mp, ok := arc.Events[2].Params.(domain.MoveParams)
	if !ok || mp.DurationMs != 7289 || len(mp.Segments) != 1 {
		t.Errorf("move params = %+v", arc.Events[2].Params)
	}
}

func TestArchive_EmptyJournal(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "w1", time.Now().UTC(), nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	arc, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(arc.Events) != 0 {
		t.Errorf("events = %d, want 0", len(arc.Events))
	}
}

func TestArchive_RejectsForeignFile(t *testing.T) {
	junk := bytes.NewBufferString("PK\x03\x04 definitely not an archive")
	if _, err := Read(junk); err == nil || !strings.Contains(err.Error(), "magic") {
		t.Errorf("err = %v, want invalid magic", err)
	}
}

func TestArchive_FilenameSanitized(t *testing.T) {
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path, err := svc.Save("ужин/../world:1", nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	base := filepath.Base(path)
	if strings.ContainsAny(base, "/:") || !strings.HasPrefix(base, "events_") {
		t.Errorf("unsafe archive filename %q", base)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("archive not on disk: %v", err)
	}

	// Внутри файла worldID остается исходным
	arc, err := svc.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if arc.WorldID != "ужин/../world:1" {
		t.Errorf("world id mangled: %q", arc.WorldID)
	}
}
