package psyche

import (
	"context"
	"errors"
	"testing"

	"everlight-os/pkg/telemetry"
	"everlight-os/pkg/vault"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func stateWithRecords(gaps, blocks, fragments, distortions int) State {
	mk := func(n int) []Record {
		records := make([]Record, n)
		for i := range records {
			records[i] = Record{"label": "r"}
		}
		return records
	}
	return State{
		MemoryGaps:        mk(gaps),
		EmotionalBlocks:   mk(blocks),
		IdentityFragments: mk(fragments),
		TimeDistortions:   mk(distortions),
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name         string
		state        State
		wantScore    int
		wantDetected bool
		wantLevel    int
	}{
		{name: "clean state", state: stateWithRecords(0, 0, 0, 0), wantScore: 0, wantDetected: false, wantLevel: 100},
		{name: "at threshold", state: stateWithRecords(1, 1, 0, 0), wantScore: 2, wantDetected: false, wantLevel: 80},
		{name: "above threshold", state: stateWithRecords(1, 1, 1, 0), wantScore: 3, wantDetected: true, wantLevel: 70},
		{name: "level clamps at zero", state: stateWithRecords(4, 4, 2, 2), wantScore: 12, wantDetected: true, wantLevel: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Detect(tt.state)
			if report.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", report.Score, tt.wantScore)
			}
			if report.Detected != tt.wantDetected {
				t.Errorf("Detected = %v, want %v", report.Detected, tt.wantDetected)
			}
			if report.IntegrationLevel != tt.wantLevel {
				t.Errorf("IntegrationLevel = %d, want %d", report.IntegrationLevel, tt.wantLevel)
			}
		})
	}
}

type downStore struct{}

func (downStore) Put(context.Context, string, []byte) error { return errors.New("store down") }
func (downStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store down")
}
func (downStore) List(context.Context, string, int) ([]string, error) {
	return nil, errors.New("store down")
}

func TestMergeDegradesToPassThroughWhenStoreDown(t *testing.T) {
	versions := NewVersionStore(downStore{}, nopLogger{})
	engine := NewEngine(versions, telemetry.NoopSink{}, nopLogger{}, 5)

	state := stateWithRecords(2, 1, 1, 0)
	report := Detect(state)
	if !report.Detected {
		t.Fatal("fixture should be fragmented")
	}

	merged := engine.Merge(context.Background(), "user1", state, report)
	if merged.IntegrationMetadata != nil {
		t.Error("pass-through merge must not attach integration metadata")
	}
	if len(merged.MemoryGaps) != 2 {
		t.Errorf("records should be untouched, got %d gaps", len(merged.MemoryGaps))
	}
}

func TestMergeAnnotatesCopyNotOriginal(t *testing.T) {
	store := vault.NewMemoryStore()
	versions := NewVersionStore(store, nopLogger{})
	engine := NewEngine(versions, telemetry.NoopSink{}, nopLogger{}, 5)
	ctx := context.Background()

	// Seed history containing a gap sharing a keyword with the new one.
	past := State{MemoryGaps: []Record{{"keywords": []interface{}{"school", "summer"}}}}
	if _, err := versions.Save(ctx, "user1", past); err != nil {
		t.Fatalf("Save history: %v", err)
	}

	state := State{
		MemoryGaps:      []Record{{"keywords": []interface{}{"school"}}},
		EmotionalBlocks: []Record{{"pattern": "avoidance"}},
		TimeDistortions: []Record{{"label": "lost afternoon"}},
	}
	report := Detect(state)

	merged := engine.Merge(ctx, "user1", state, report)

	if merged.IntegrationMetadata == nil {
		t.Fatal("merged state must carry integration metadata")
	}
	if merged.IntegrationMetadata.Approach != "trauma_aware_gentle" {
		t.Errorf("Approach = %q", merged.IntegrationMetadata.Approach)
	}
	if merged.MemoryGaps[0]["integration_status"] != "bridging_available" {
		t.Error("gap with historical overlap should be marked bridgeable")
	}
	if merged.EmotionalBlocks[0]["integration_approach"] != "gradual_exposure" {
		t.Error("emotional block should get the gradual exposure approach")
	}
	if merged.TimeDistortions[0]["grounding_protocol"] != "present_moment_awareness" {
		t.Error("time distortion should get temporal anchors")
	}

	// Original records must stay clean.
	if _, ok := state.MemoryGaps[0]["integration_status"]; ok {
		t.Error("Merge mutated the caller's state")
	}
}

func TestSyncVersionsEverySnapshot(t *testing.T) {
	store := vault.NewMemoryStore()
	versions := NewVersionStore(store, nopLogger{})
	engine := NewEngine(versions, telemetry.NoopSink{}, nopLogger{}, 5)
	ctx := context.Background()

	result := engine.Sync(ctx, "user1", stateWithRecords(0, 0, 0, 0))
	if result.Status != "synchronized" {
		t.Errorf("Status = %q", result.Status)
	}
	if result.FragmentationDetected {
		t.Error("clean state should not be detected as fragmented")
	}
	if result.Version == "" {
		t.Error("sync should produce a version id")
	}

	keys, err := store.List(ctx, "psyche_states/user1/", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("version count = %d, want 1", len(keys))
	}
}
