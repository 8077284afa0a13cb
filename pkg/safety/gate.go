package safety

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"everlight-os/pkg/lexical"
)

// Decision is the gate verdict. A non-approved decision short-circuits
// the whole pipeline: nothing downstream may observe the request.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`

	EthicalFlags []string `json:"ethical_flags,omitempty"`
	Guidance     string   `json:"guidance,omitempty"`

	ConsentRequired bool `json:"consent_required"`

	ShadowIntegrationNeeded bool     `json:"shadow_integration_needed"`
	ShadowElements          []string `json:"shadow_elements,omitempty"`

	TraumaFlags       []string `json:"trauma_flags,omitempty"`
	RequiresGrounding bool     `json:"requires_grounding"`
	GroundingProtocol string   `json:"grounding_protocol,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Evaluator is the safety contract. Local and remote implementations are
// interchangeable.
type Evaluator interface {
	Evaluate(ctx context.Context, query string, reqContext map[string]interface{}) (*Decision, error)
}

// Gate is the in-process evaluator. It runs three independent checks and
// ANDs the blocking ones: ethical patterns (fail closed, therapeutic
// context downgrades to flagged-but-allowed), explicit consent for
// sensitive operations, and a trauma awareness pass that never blocks.
type Gate struct {
	cfg      Config
	harmful  []*regexp.Regexp
	verifier *lexical.Classifier
}

var _ Evaluator = &Gate{}

func NewGate(cfg Config) (*Gate, error) {
	harmful := make([]*regexp.Regexp, 0, len(cfg.HarmfulPatterns))
	for _, pattern := range cfg.HarmfulPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("safety: compile pattern %q: %w", pattern, err)
		}
		harmful = append(harmful, re)
	}
	return &Gate{
		cfg:      cfg,
		harmful:  harmful,
		verifier: lexical.NewClassifier(),
	}, nil
}

func (g *Gate) Evaluate(_ context.Context, query string, reqContext map[string]interface{}) (*Decision, error) {
	decision := &Decision{Timestamp: time.Now().UTC()}

	ethicalOK := g.checkEthicalPatterns(query, reqContext, decision)
	consentOK := g.checkConsent(query, reqContext, decision)
	g.checkTraumaIndicators(query, decision)
	g.checkShadowContent(query, decision)

	decision.Approved = ethicalOK && consentOK
	return decision, nil
}

// checkEthicalPatterns implements recognize -> reconcile -> re-root:
// flag harm patterns, allow reconciliation only inside a declared
// therapeutic context, and attach grounding guidance either way.
func (g *Gate) checkEthicalPatterns(query string, reqContext map[string]interface{}, d *Decision) bool {
	for _, re := range g.harmful {
		if re.MatchString(query) {
			d.EthicalFlags = append(d.EthicalFlags, fmt.Sprintf("Potential harm pattern: %s", re.String()))
		}
	}
	if len(d.EthicalFlags) == 0 {
		return true
	}

	d.Guidance = "Consider reframing request with compassionate intent and explicit consent"
	if boolFlag(reqContext, "therapeutic_context") {
		return true
	}
	d.Reason = d.Guidance
	return false
}

func (g *Gate) checkConsent(query string, reqContext map[string]interface{}, d *Decision) bool {
	if !lexical.ContainsAny(query, g.cfg.SensitiveOperations) {
		return true
	}
	d.ConsentRequired = true
	if boolFlag(reqContext, "explicit_consent") {
		return true
	}
	if d.Reason == "" {
		d.Reason = "Explicit consent required for this operation"
	}
	return false
}

func (g *Gate) checkTraumaIndicators(query string, d *Decision) {
	set := lexical.NewCategorySet(lexical.CategoryTriggers{
		Category: "trauma",
		Triggers: g.cfg.TraumaIndicators,
	})
	for _, indicator := range g.verifier.Match(query, set)["trauma"] {
		d.TraumaFlags = append(d.TraumaFlags, fmt.Sprintf("Trauma indicator: %s", indicator))
	}
	if len(d.TraumaFlags) > 0 {
		d.RequiresGrounding = true
		d.GroundingProtocol = GroundingProtocolName
	}
}

func (g *Gate) checkShadowContent(query string, d *Decision) {
	set := lexical.NewCategorySet(lexical.CategoryTriggers{
		Category: "shadow",
		Triggers: g.cfg.ShadowIndicators,
	})
	d.ShadowElements = g.verifier.Match(query, set)["shadow"]
	d.ShadowIntegrationNeeded = len(d.ShadowElements) > 0
}

func boolFlag(reqContext map[string]interface{}, key string) bool {
	if reqContext == nil {
		return false
	}
	switch v := reqContext[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}
