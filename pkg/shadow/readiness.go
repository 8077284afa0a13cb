package shadow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"everlight-os/internal/pkg/logger"
	"everlight-os/pkg/vault"
)

// Readiness factor weights. Stability dominates: integration work on an
// unstable base does more harm than waiting.
const (
	weightStability = 0.4
	weightSupport   = 0.3
	weightHistory   = 0.3

	// ReadyThreshold is the minimum weighted score for active
	// integration. A score of exactly 70 is ready.
	ReadyThreshold = 70.0
)

// Profile is the per-user readiness input, each factor on a 0-100 scale.
type Profile struct {
	Stability          float64 `json:"emotional_stability"`
	Support            float64 `json:"support_system"`
	HistorySuccessRate float64 `json:"integration_history"`
}

// defaultProfile is assumed for users with no stored profile yet. New
// users start moderately ready rather than blocked.
var defaultProfile = Profile{
	Stability:          80,
	Support:            85,
	HistorySuccessRate: 75,
}

// ProfileSource resolves the readiness factors for a user.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// VaultProfileSource reads profiles from the vault under
// readiness_profiles/<user>.json. A missing object yields the new-user
// defaults; a store failure yields a zero profile, which keeps the
// assessment conservative while the store is down.
type VaultProfileSource struct {
	store vault.ObjectStore
	log   logger.ILogger
}

func NewVaultProfileSource(store vault.ObjectStore, log logger.ILogger) *VaultProfileSource {
	return &VaultProfileSource{store: store, log: log}
}

func (s *VaultProfileSource) Profile(ctx context.Context, userID string) (Profile, error) {
	blob, err := s.store.Get(ctx, profileKey(userID))
	if errors.Is(err, vault.ErrNotFound) {
		return defaultProfile, nil
	}
	if err != nil {
		s.log.Warn("ShadowReadiness", "profile read failed, assuming zero readiness", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return Profile{}, nil
	}

	var profile Profile
	if err := json.Unmarshal(blob, &profile); err != nil {
		s.log.Warn("ShadowReadiness", "corrupt profile, assuming zero readiness", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return Profile{}, nil
	}
	return profile, nil
}

func profileKey(userID string) string {
	return fmt.Sprintf("readiness_profiles/%s.json", userID)
}

// Assessment is the weighted readiness verdict for one user.
type Assessment struct {
	Ready           bool               `json:"ready"`
	Score           float64            `json:"readiness_score"`
	Factors         map[string]float64 `json:"factors"`
	Recommendations []string           `json:"recommendations"`
}

// Assess combines the profile factors into a single score:
// stability*0.4 + support*0.3 + history*0.3.
func Assess(profile Profile) Assessment {
	score := profile.Stability*weightStability +
		profile.Support*weightSupport +
		profile.HistorySuccessRate*weightHistory

	return Assessment{
		Ready: score >= ReadyThreshold,
		Score: score,
		Factors: map[string]float64{
			"emotional_stability": profile.Stability,
			"support_system":      profile.Support,
			"integration_history": profile.HistorySuccessRate,
		},
		Recommendations: recommendations(score),
	}
}

func recommendations(score float64) []string {
	switch {
	case score < 50:
		return []string{
			"stabilization_practices",
			"professional_support",
			"gentle_self_compassion",
		}
	case score < ReadyThreshold:
		return []string{
			"preparation_exercises",
			"support_system_strengthening",
		}
	default:
		return []string{"proceed_with_integration"}
	}
}
