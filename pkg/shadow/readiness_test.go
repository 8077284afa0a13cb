package shadow

import (
	"context"
	"errors"
	"strings"
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

func TestAssess(t *testing.T) {
	tests := []struct {
		name      string
		profile   Profile
		wantScore float64
		wantReady bool
		wantFirst string
	}{
		{
			name:      "new user defaults are ready",
			profile:   defaultProfile,
			wantScore: 80*0.4 + 85*0.3 + 75*0.3,
			wantReady: true,
			wantFirst: "proceed_with_integration",
		},
		{
			name:      "threshold boundary is ready",
			profile:   Profile{Stability: 70, Support: 70, HistorySuccessRate: 70},
			wantScore: 70,
			wantReady: true,
			wantFirst: "proceed_with_integration",
		},
		{
			name:      "just below threshold gets preparation",
			profile:   Profile{Stability: 70, Support: 70, HistorySuccessRate: 69},
			wantScore: 69.7,
			wantReady: false,
			wantFirst: "preparation_exercises",
		},
		{
			name:      "low score gets stabilization",
			profile:   Profile{Stability: 40, Support: 50, HistorySuccessRate: 30},
			wantScore: 40,
			wantReady: false,
			wantFirst: "stabilization_practices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment := Assess(tt.profile)
			if diff := assessment.Score - tt.wantScore; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score = %v, want %v", assessment.Score, tt.wantScore)
			}
			if assessment.Ready != tt.wantReady {
				t.Errorf("Ready = %v, want %v", assessment.Ready, tt.wantReady)
			}
			if len(assessment.Recommendations) == 0 || assessment.Recommendations[0] != tt.wantFirst {
				t.Errorf("Recommendations = %v, want first %q", assessment.Recommendations, tt.wantFirst)
			}
		})
	}
}

// stubStore serves canned blobs and records writes.
type stubStore struct {
	blobs   map[string][]byte
	getErr  error
	putErr  error
	putKeys []string
}

func newStubStore() *stubStore {
	return &stubStore{blobs: map[string][]byte{}}
}

func (s *stubStore) Put(_ context.Context, key string, blob []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.putKeys = append(s.putKeys, key)
	s.blobs[key] = blob
	return nil
}

func (s *stubStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	blob, ok := s.blobs[key]
	if !ok {
		return nil, vault.ErrNotFound
	}
	return blob, nil
}

func (s *stubStore) List(_ context.Context, prefix string, _ int) ([]string, error) {
	var keys []string
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func TestVaultProfileSource(t *testing.T) {
	ctx := context.Background()

	t.Run("missing profile yields defaults", func(t *testing.T) {
		source := NewVaultProfileSource(newStubStore(), nopLogger{})
		profile, err := source.Profile(ctx, "user-1")
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if profile != defaultProfile {
			t.Errorf("profile = %+v, want defaults %+v", profile, defaultProfile)
		}
	})

	t.Run("stored profile is returned", func(t *testing.T) {
		store := newStubStore()
		store.blobs[profileKey("user-1")] = []byte(`{"emotional_stability":55,"support_system":60,"integration_history":40}`)
		source := NewVaultProfileSource(store, nopLogger{})
		profile, err := source.Profile(ctx, "user-1")
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if profile.Stability != 55 || profile.Support != 60 || profile.HistorySuccessRate != 40 {
			t.Errorf("profile = %+v", profile)
		}
	})

	t.Run("store failure yields zero profile", func(t *testing.T) {
		store := newStubStore()
		store.getErr = errors.New("connection refused")
		source := NewVaultProfileSource(store, nopLogger{})
		profile, err := source.Profile(ctx, "user-1")
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if profile != (Profile{}) {
			t.Errorf("profile = %+v, want zero", profile)
		}
	})

	t.Run("corrupt profile yields zero profile", func(t *testing.T) {
		store := newStubStore()
		store.blobs[profileKey("user-1")] = []byte("{not json")
		source := NewVaultProfileSource(store, nopLogger{})
		profile, err := source.Profile(ctx, "user-1")
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if profile != (Profile{}) {
			t.Errorf("profile = %+v, want zero", profile)
		}
	})
}

type fixedProfiles struct{ profile Profile }

func (f fixedProfiles) Profile(context.Context, string) (Profile, error) {
	return f.profile, nil
}

func TestProcessorIntegratesWhenReady(t *testing.T) {
	store := newStubStore()
	processor := NewProcessor(fixedProfiles{defaultProfile}, store, telemetry.NoopSink{}, nopLogger{})

	result, err := processor.Process(context.Background(), "user-1", "i can't carry this rage. i'm broken")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Status != StatusIntegrated {
		t.Fatalf("Status = %q, want %q", result.Status, StatusIntegrated)
	}
	if result.IntegrationID == "" {
		t.Error("IntegrationID is empty")
	}
	if len(result.Steps) != 4 || result.Steps[0].Name != "acknowledgment" || result.Steps[3].Name != "integration_ritual" {
		t.Errorf("Steps = %+v, want the four-stage sequence", result.Steps)
	}
	if result.ElementsProcessed != 2 {
		t.Errorf("ElementsProcessed = %d, want 2", result.ElementsProcessed)
	}
	if result.Depth != "moderate" {
		t.Errorf("Depth = %q, want moderate", result.Depth)
	}
	if len(store.putKeys) != 1 || !strings.HasPrefix(store.putKeys[0], "integration_records/user-1/") {
		t.Errorf("persisted keys = %v, want one under integration_records/user-1/", store.putKeys)
	}
}

func TestIntegrationDepthTiers(t *testing.T) {
	tests := []struct {
		elements int
		want     string
	}{
		{0, "surface"},
		{1, "surface"},
		{2, "moderate"},
		{3, "moderate"},
		{4, "deep"},
		{7, "deep"},
	}
	for _, tt := range tests {
		if got := integrationDepth(tt.elements); got != tt.want {
			t.Errorf("integrationDepth(%d) = %q, want %q", tt.elements, got, tt.want)
		}
	}
}

func TestProcessorQueuesWhenNotReady(t *testing.T) {
	store := newStubStore()
	profile := Profile{Stability: 40, Support: 80, HistorySuccessRate: 50}
	processor := NewProcessor(fixedProfiles{profile}, store, telemetry.NoopSink{}, nopLogger{})

	result, err := processor.Process(context.Background(), "user-2", "i'm worthless")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Status != StatusQueued {
		t.Fatalf("Status = %q, want %q", result.Status, StatusQueued)
	}
	if result.PreparationPlan == nil {
		t.Fatal("PreparationPlan is nil")
	}
	// Support is above threshold; only stability and history steps apply.
	wantSteps := append(append([]string{}, preparationByFactor["emotional_stability"]...),
		preparationByFactor["integration_history"]...)
	if len(result.PreparationPlan.Steps) != len(wantSteps) {
		t.Fatalf("plan steps = %v, want %v", result.PreparationPlan.Steps, wantSteps)
	}
	for i, step := range wantSteps {
		if result.PreparationPlan.Steps[i] != step {
			t.Errorf("plan step[%d] = %q, want %q", i, result.PreparationPlan.Steps[i], step)
		}
	}
	if !strings.HasPrefix(result.QueueKey, "shadow_queue/user-2/") {
		t.Errorf("QueueKey = %q, want shadow_queue/user-2/ prefix", result.QueueKey)
	}
	if result.EstimatedReadiness != "2-4 weeks" {
		t.Errorf("EstimatedReadiness = %q", result.EstimatedReadiness)
	}
	if len(store.putKeys) != 1 || store.putKeys[0] != result.QueueKey {
		t.Errorf("persisted keys = %v, want [%s]", store.putKeys, result.QueueKey)
	}
}

func TestProcessorNoShadowContent(t *testing.T) {
	store := newStubStore()
	processor := NewProcessor(fixedProfiles{defaultProfile}, store, telemetry.NoopSink{}, nopLogger{})

	result, err := processor.Process(context.Background(), "user-3", "the weather is lovely today")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Status != StatusNoShadowContent {
		t.Errorf("Status = %q, want %q", result.Status, StatusNoShadowContent)
	}
	if result.Readiness != nil {
		t.Error("Readiness assessed despite no shadow content")
	}
	if len(store.putKeys) != 0 {
		t.Errorf("persisted keys = %v, want none", store.putKeys)
	}
}

func TestProcessorSurvivesVaultFailure(t *testing.T) {
	store := newStubStore()
	store.putErr = errors.New("disk full")
	processor := NewProcessor(fixedProfiles{defaultProfile}, store, telemetry.NoopSink{}, nopLogger{})

	result, err := processor.Process(context.Background(), "user-4", "i'm broken")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Status != StatusIntegrated {
		t.Errorf("Status = %q, want %q", result.Status, StatusIntegrated)
	}
}
