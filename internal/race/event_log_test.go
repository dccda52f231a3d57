package race

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// readEventFile parses a JSONL event log back into events.
func readEventFile(t *testing.T, path string) []Event {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("unmarshal event line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestEventLogFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !el.EmitSimple(EventTypeRaceStart, 0, RaceStartPayload{Level: "funnel", MarbleCount: 3}) {
		t.Fatal("emit race_start rejected")
	}
	if !el.EmitSimple(EventTypeMarbleSpawn, 7, MarbleSpawnPayload{MarbleID: 1, Name: "Red Circle"}) {
		t.Fatal("emit marble_spawn rejected")
	}
	if !el.EmitSimple(EventTypeMarbleFinish, 42, MarbleFinishPayload{MarbleID: 1, Place: 1}) {
		t.Fatal("emit marble_finish rejected")
	}

	// Stop performs the final flush before closing the file
	el.Stop()

	events := readEventFile(t, path)
	if len(events) != 3 {
		t.Fatalf("got %d events in file, want 3", len(events))
	}

	wantTypes := []EventType{EventTypeRaceStart, EventTypeMarbleSpawn, EventTypeMarbleFinish}
	for i, ev := range events {
		if ev.Type != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, ev.Type, wantTypes[i])
		}
		if ev.Sequence != uint64(i) {
			t.Errorf("event %d sequence = %d, want %d", i, ev.Sequence, i)
		}
		if ev.Version != EventVersion {
			t.Errorf("event %d version = %d, want %d", i, ev.Version, EventVersion)
		}
	}

	// The last emitted event must survive Stop with its payload intact
	var finish MarbleFinishPayload
	if err := json.Unmarshal(events[2].Payload, &finish); err != nil {
		t.Fatalf("unmarshal finish payload: %v", err)
	}
	if finish.MarbleID != 1 || finish.Place != 1 {
		t.Errorf("finish payload = %+v, want marble 1 place 1", finish)
	}
}

func TestEventLogSingleEventNotDelayed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("start: %v", err)
	}

	el.EmitSimple(EventTypeRaceComplete, 100, nil)
	el.Stop()

	events := readEventFile(t, path)
	if len(events) != 1 {
		t.Fatalf("got %d events in file, want 1", len(events))
	}
	if events[0].Type != EventTypeRaceComplete {
		t.Errorf("event type = %s, want %s", events[0].Type, EventTypeRaceComplete)
	}
	if events[0].TickNum != 100 {
		t.Errorf("tickNum = %d, want 100", events[0].TickNum)
	}
}

func TestEventLogStatsCountEmissions(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer el.Stop()

	for i := 0; i < 5; i++ {
		el.EmitSimple(EventTypeMarbleSpawn, uint64(i), nil)
	}

	if got := el.GetTotalCount(); got != 5 {
		t.Errorf("total count = %d, want 5", got)
	}
}
