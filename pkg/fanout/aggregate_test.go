package fanout

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestAggregator_ConcurrentAdd(t *testing.T) {
	agg := NewAggregator(200)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := Target{ID: fmt.Sprintf("%d", i), Name: "n"}
			if i%4 == 0 {
				agg.Add(Failed(target, errors.New("boom")))
				return
			}
			agg.Add(Found(target, json.RawMessage(`false`)))
		}(i)
	}
	wg.Wait()

	result := agg.Freeze()
	if result.Failures != 50 {
		t.Errorf("Failures = %d, want 50", result.Failures)
	}
	if len(result.Successes) != 150 {
		t.Errorf("len(Successes) = %d, want 150", len(result.Successes))
	}
	if result.Total() != 200 {
		t.Errorf("Total() = %d, want 200", result.Total())
	}
}

func TestAggregator_FrozenRejectsAdd(t *testing.T) {
	agg := NewAggregator(0)
	agg.Add(Found(Target{ID: "1"}, json.RawMessage(`{}`)))
	frozen := agg.Freeze()

	if err := agg.Add(Failed(Target{ID: "2"}, errors.New("late"))); !errors.Is(err, ErrAggregateFrozen) {
		t.Errorf("Add() after Freeze error = %v, want ErrAggregateFrozen", err)
	}
	if got := agg.Snapshot(); got.Total() != frozen.Total() {
		t.Errorf("frozen aggregate changed: %d -> %d", frozen.Total(), got.Total())
	}
}

func TestAggregator_CollectKeepsCompletionOrder(t *testing.T) {
	outcomes := make(chan Outcome, 4)
	outcomes <- Found(Target{ID: "9", Name: "Nine"}, json.RawMessage(`{}`))
	outcomes <- Failed(Target{ID: "1"}, errors.New("down"))
	outcomes <- Found(Target{ID: "3", Name: "Three"}, json.RawMessage(`false`))
	outcomes <- Found(Target{ID: "5", Name: "Five"}, json.RawMessage(`{"a":1}`))
	close(outcomes)

	result := NewAggregator(4).Collect(outcomes)

	want := []string{"9", "3", "5"}
	if len(result.Successes) != len(want) {
		t.Fatalf("len(Successes) = %d, want %d", len(result.Successes), len(want))
	}
	for i, id := range want {
		if result.Successes[i].ID != id {
			t.Errorf("Successes[%d].ID = %s, want %s", i, result.Successes[i].ID, id)
		}
	}
	if result.Failures != 1 {
		t.Errorf("Failures = %d, want 1", result.Failures)
	}
}

func TestAggregate_SortByID(t *testing.T) {
	agg := Aggregate{Successes: []Finding{{ID: "c"}, {ID: "a"}, {ID: "b"}}}
	agg.SortByID()

	for i, id := range []string{"a", "b", "c"} {
		if agg.Successes[i].ID != id {
			t.Errorf("Successes[%d].ID = %s, want %s", i, agg.Successes[i].ID, id)
		}
	}
}

func TestAggregate_Present(t *testing.T) {
	agg := Aggregate{Successes: []Finding{
		{ID: "1", Payload: json.RawMessage(`false`)},
		{ID: "2", Payload: json.RawMessage(`{"x":1}`)},
		{ID: "3", Payload: json.RawMessage(" false\n")},
		{ID: "4", Payload: json.RawMessage(`true`)},
	}}

	present := agg.Present()
	if len(present) != 2 || present[0].ID != "2" || present[1].ID != "4" {
		t.Errorf("Present() = %+v, want IDs 2 and 4", present)
	}
}

func TestIsAbsent(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
	}{
		{"false", true},
		{" false ", true},
		{"true", false},
		{"null", false},
		{`"false"`, false},
		{"{}", false},
		{"0", false},
	}

	for _, tt := range tests {
		if got := IsAbsent(json.RawMessage(tt.payload)); got != tt.want {
			t.Errorf("IsAbsent(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	agg := NewAggregator(0)
	agg.Add(Found(Target{ID: "1"}, json.RawMessage(`{}`)))

	snap := agg.Snapshot()
	snap.Successes[0].ID = "mutated"

	if got := agg.Snapshot().Successes[0].ID; got != "1" {
		t.Errorf("mutating a snapshot changed the aggregator: ID = %s", got)
	}
}
