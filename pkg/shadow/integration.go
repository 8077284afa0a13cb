package shadow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"everlight-os/internal/pkg/logger"
	"everlight-os/pkg/telemetry"
	"everlight-os/pkg/vault"
)

// Process outcome statuses.
const (
	StatusNoShadowContent = "no_shadow_content"
	StatusIntegrated      = "integrated"
	StatusQueued          = "queued_for_preparation"
)

const recordTimeLayout = "20060102T150405.000000000"

// Step is one stage of the guided integration sequence.
type Step struct {
	Name     string `json:"name"`
	Guidance string `json:"guidance"`
}

// integrationSteps is the fixed four-stage sequence, always walked in
// order. Dialogue before ritual: the material has to be heard before it
// can be reframed.
var integrationSteps = []Step{
	{Name: "acknowledgment", Guidance: "Name the shadow element without judgment."},
	{Name: "compassionate_witnessing", Guidance: "Hold the element with warmth, as a part that once protected you."},
	{Name: "shadow_dialogue", Guidance: "Ask the element what it needs and listen for the answer."},
	{Name: "integration_ritual", Guidance: "Welcome the element home as a reclaimed part of the whole self."},
}

// PreparationPlan is issued instead of integration when the user is not
// yet ready. Steps address only the factors below the threshold.
type PreparationPlan struct {
	Steps               []string `json:"steps"`
	RecommendedDuration string   `json:"recommended_duration"`
	CheckInFrequency    string   `json:"check_in_frequency"`
}

var preparationByFactor = map[string][]string{
	"emotional_stability": {"grounding_practices", "emotional_regulation", "safety_building"},
	"support_system":      {"therapeutic_relationship", "trusted_friend_network", "integration_buddy"},
	"integration_history": {"micro_integrations", "journaling_practice"},
}

var preparationFactorOrder = []string{
	"emotional_stability",
	"support_system",
	"integration_history",
}

// Result is the outcome of processing one request's shadow content.
type Result struct {
	Status             string           `json:"status"`
	Analysis           Analysis         `json:"analysis"`
	Readiness          *Assessment      `json:"readiness,omitempty"`
	IntegrationID      string           `json:"integration_id,omitempty"`
	Steps              []Step           `json:"steps,omitempty"`
	ElementsProcessed  int              `json:"elements_processed,omitempty"`
	Depth              string           `json:"integration_depth,omitempty"`
	FollowUpIn         string           `json:"follow_up_in,omitempty"`
	PreparationPlan    *PreparationPlan `json:"preparation_plan,omitempty"`
	QueueKey           string           `json:"queue_key,omitempty"`
	EstimatedReadiness string           `json:"estimated_readiness,omitempty"`
}

// Processor runs the full shadow path: analyze, gate on readiness, then
// either integrate or queue for preparation. Vault writes are best
// effort; a failed write degrades to a logged error, never a failed
// request.
type Processor struct {
	analyzer *Analyzer
	profiles ProfileSource
	store    vault.ObjectStore
	sink     telemetry.Sink
	log      logger.ILogger
}

func NewProcessor(profiles ProfileSource, store vault.ObjectStore, sink telemetry.Sink, log logger.ILogger) *Processor {
	return &Processor{
		analyzer: NewAnalyzer(),
		profiles: profiles,
		store:    store,
		sink:     sink,
		log:      log,
	}
}

func (p *Processor) Process(ctx context.Context, userID, content string) (*Result, error) {
	analysis := p.analyzer.Analyze(content)

	p.sink.Emit("EverLight/Shadow", "ShadowIntensity", float64(analysis.Intensity), "Percent",
		map[string]string{"user_id": userID})

	if analysis.TotalMatches() == 0 {
		return &Result{Status: StatusNoShadowContent, Analysis: analysis}, nil
	}

	profile, err := p.profiles.Profile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving readiness profile: %w", err)
	}
	assessment := Assess(profile)

	p.sink.Emit("EverLight/Shadow", "IntegrationAttempts", 1, "Count",
		map[string]string{"user_id": userID, "ready": fmt.Sprintf("%t", assessment.Ready)})

	if !assessment.Ready {
		return p.queue(ctx, userID, analysis, assessment), nil
	}
	return p.integrate(ctx, userID, analysis, assessment), nil
}

func (p *Processor) integrate(ctx context.Context, userID string, analysis Analysis, assessment Assessment) *Result {
	result := &Result{
		Status:            StatusIntegrated,
		Analysis:          analysis,
		Readiness:         &assessment,
		IntegrationID:     uuid.NewString(),
		Steps:             integrationSteps,
		ElementsProcessed: analysis.TotalMatches(),
		Depth:             integrationDepth(analysis.TotalMatches()),
		FollowUpIn:        "1 week",
	}

	key := fmt.Sprintf("integration_records/%s/%s.json", userID, time.Now().UTC().Format(recordTimeLayout))
	p.persist(ctx, key, map[string]interface{}{
		"integration_id": result.IntegrationID,
		"user_id":        userID,
		"analysis":       analysis,
		"readiness":      assessment,
		"steps":          integrationSteps,
		"depth":          result.Depth,
		"timestamp":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	return result
}

func (p *Processor) queue(ctx context.Context, userID string, analysis Analysis, assessment Assessment) *Result {
	plan := buildPreparationPlan(assessment)
	key := fmt.Sprintf("shadow_queue/%s/%s.json", userID, time.Now().UTC().Format(recordTimeLayout))

	result := &Result{
		Status:             StatusQueued,
		Analysis:           analysis,
		Readiness:          &assessment,
		PreparationPlan:    plan,
		QueueKey:           key,
		EstimatedReadiness: plan.RecommendedDuration,
	}

	p.persist(ctx, key, map[string]interface{}{
		"user_id":          userID,
		"analysis":         analysis,
		"readiness":        assessment,
		"preparation_plan": plan,
		"timestamp":        time.Now().UTC().Format(time.RFC3339Nano),
	})
	return result
}

// integrationDepth maps element count to how far the ritual goes in one
// session: >=4 deep, >=2 moderate, else surface.
func integrationDepth(total int) string {
	switch {
	case total >= 4:
		return "deep"
	case total >= 2:
		return "moderate"
	default:
		return "surface"
	}
}

func buildPreparationPlan(assessment Assessment) *PreparationPlan {
	plan := &PreparationPlan{
		RecommendedDuration: "2-4 weeks",
		CheckInFrequency:    "weekly",
	}
	for _, factor := range preparationFactorOrder {
		if assessment.Factors[factor] < ReadyThreshold {
			plan.Steps = append(plan.Steps, preparationByFactor[factor]...)
		}
	}
	if len(plan.Steps) == 0 {
		plan.Steps = []string{"preparation_exercises"}
	}
	return plan
}

func (p *Processor) persist(ctx context.Context, key string, record map[string]interface{}) {
	blob, err := json.Marshal(record)
	if err != nil {
		p.log.Error("ShadowIntegration", "record marshal failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}
	if err := p.store.Put(ctx, key, blob); err != nil {
		p.log.Error("ShadowIntegration", "record write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
