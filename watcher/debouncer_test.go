package watcher

import (
	"testing"
	"time"
)

const testInterval = 50 * time.Millisecond

func receiveBatch(t *testing.T, d *Debouncer, timeout time.Duration) []DebouncedEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for debouncer batch")
		return nil
	}
}

func Test_Debouncer_SingleEvent(t *testing.T) {
	d := NewDebouncer(testInterval)

	d.Add("src/pages/index.vue", OpWrite)

	batch := receiveBatch(t, d, 500*time.Millisecond)
	if len(batch) != 1 {
		t.Fatalf("expected 1 event, got %d", len(batch))
	}
	if batch[0].Path != "src/pages/index.vue" || batch[0].Op != OpWrite {
		t.Errorf("unexpected event %+v", batch[0])
	}
}

func Test_Debouncer_Collapsing(t *testing.T) {
	tests := []struct {
		name string
		ops  []EventOp
		want EventOp
	}{
		{"write after write", []EventOp{OpWrite, OpWrite}, OpWrite},
		{"create then write stays create", []EventOp{OpCreate, OpWrite}, OpCreate},
		{"remove wins", []EventOp{OpWrite, OpRemove}, OpRemove},
		{"recreated", []EventOp{OpRemove, OpCreate}, OpCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(testInterval)
			for _, op := range tt.ops {
				d.Add("src/pages/index.vue", op)
			}
			batch := receiveBatch(t, d, 500*time.Millisecond)
			if len(batch) != 1 {
				t.Fatalf("expected 1 collapsed event, got %d", len(batch))
			}
			if batch[0].Op != tt.want {
				t.Errorf("op = %v, want %v", batch[0].Op, tt.want)
			}
		})
	}
}

func Test_Debouncer_SortedBatch(t *testing.T) {
	d := NewDebouncer(testInterval)

	d.Add("src/pages/b.vue", OpWrite)
	d.Add("src/pages.json.ts", OpWrite)
	d.Add("src/pages/a.vue", OpRemove)

	batch := receiveBatch(t, d, 500*time.Millisecond)
	want := []string{"src/pages.json.ts", "src/pages/a.vue", "src/pages/b.vue"}
	if len(batch) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(batch))
	}
	for i, path := range want {
		if batch[i].Path != path {
			t.Errorf("event[%d] = %q, want %q", i, batch[i].Path, path)
		}
	}
}

func Test_Debouncer_TimerReset(t *testing.T) {
	d := NewDebouncer(testInterval)

	d.Add("src/pages/a.vue", OpWrite)
	time.Sleep(testInterval / 2)
	d.Add("src/pages/b.vue", OpWrite)

	batch := receiveBatch(t, d, 500*time.Millisecond)
	if len(batch) != 2 {
		t.Fatalf("expected 2 events in a single batch, got %d", len(batch))
	}
}

func Test_Debouncer_Stop(t *testing.T) {
	d := NewDebouncer(testInterval)
	d.Add("src/pages/a.vue", OpWrite)
	d.Stop()
	d.Add("src/pages/b.vue", OpWrite)

	select {
	case batch, ok := <-d.Output():
		if ok {
			t.Errorf("expected closed channel, got batch %v", batch)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("output channel was not closed")
	}
}
