package psyche

import (
	"everlight-os/pkg/lexical"
)

// Record is one freeform annotation inside a state snapshot (a memory
// gap, an emotional block, ...). Kept schemaless on purpose: clients
// submit these and the merge strategies annotate them in place on a
// copy.
type Record map[string]interface{}

// EmotionalTone summarizes the emotion keywords found in a request.
type EmotionalTone struct {
	PrimaryEmotion   string         `json:"primary_emotion"`
	DetectedEmotions map[string]int `json:"detected_emotions"`
	Intensity        int            `json:"emotional_intensity"`
}

// State is one per-user psyche snapshot. The first four fields are
// derived from the request text; the record lists come from the request
// context.
type State struct {
	EmotionalTone     EmotionalTone  `json:"emotional_tone"`
	CognitivePatterns map[string]int `json:"cognitive_patterns"`
	TraumaIndicators  []string       `json:"trauma_indicators"`
	IntegrationNeeds  []string       `json:"integration_needs"`

	MemoryGaps        []Record `json:"memory_gaps"`
	EmotionalBlocks   []Record `json:"emotional_blocks"`
	IdentityFragments []Record `json:"identity_fragments"`
	TimeDistortions   []Record `json:"time_distortions"`

	IntegrationMetadata *IntegrationMetadata `json:"integration_metadata,omitempty"`
}

// Extractor derives a State from free text plus structured context.
// All tables are fixed at construction; extraction is pure.
type Extractor struct {
	classifier   *lexical.Classifier
	emotions     lexical.CategorySet
	cognitive    lexical.CategorySet
	trauma       []string
	integrations lexical.CategorySet
}

func NewExtractor() *Extractor {
	return &Extractor{
		classifier: lexical.NewClassifier(),
		emotions: lexical.NewCategorySet(
			lexical.CategoryTriggers{Category: "joy", Triggers: []string{"happy", "excited", "joyful", "elated"}},
			lexical.CategoryTriggers{Category: "sadness", Triggers: []string{"sad", "depressed", "melancholy", "grief"}},
			lexical.CategoryTriggers{Category: "anger", Triggers: []string{"angry", "furious", "irritated", "rage"}},
			lexical.CategoryTriggers{Category: "fear", Triggers: []string{"afraid", "anxious", "worried", "terrified"}},
			lexical.CategoryTriggers{Category: "neutral", Triggers: []string{"okay", "fine", "normal", "regular"}},
		),
		cognitive: lexical.NewCategorySet(
			lexical.CategoryTriggers{Category: "catastrophizing", Triggers: []string{"worst case", "disaster", "terrible", "awful"}},
			lexical.CategoryTriggers{Category: "black_white_thinking", Triggers: []string{"always", "never", "everyone", "nobody"}},
			lexical.CategoryTriggers{Category: "personalization", Triggers: []string{"my fault", "because of me", "i caused"}},
			lexical.CategoryTriggers{Category: "mind_reading", Triggers: []string{"they think", "they must", "they probably"}},
		),
		trauma: []string{
			"triggered", "flashback", "dissociate", "numb",
			"overwhelmed", "freeze", "panic", "hypervigilant",
		},
		integrations: lexical.NewCategorySet(
			lexical.CategoryTriggers{Category: "shadow_work", Triggers: []string{"reject", "deny", "hate", "disgusted"}},
			lexical.CategoryTriggers{Category: "inner_child", Triggers: []string{"childhood", "young", "innocent", "hurt"}},
			lexical.CategoryTriggers{Category: "anima_animus", Triggers: []string{"masculine", "feminine", "opposite", "gender"}},
			lexical.CategoryTriggers{Category: "persona_work", Triggers: []string{"mask", "pretend", "image", "reputation"}},
		),
	}
}

func (e *Extractor) Extract(body string, reqContext map[string]interface{}) State {
	state := State{
		EmotionalTone:     e.analyzeEmotionalTone(body),
		CognitivePatterns: e.classifier.Counts(body, e.cognitive),
		TraumaIndicators:  e.detectTraumaIndicators(body),
		IntegrationNeeds:  e.assessIntegrationNeeds(body),
	}
	if reqContext != nil {
		state.MemoryGaps = toRecords(reqContext["memory_gaps"])
		state.EmotionalBlocks = toRecords(reqContext["emotional_blocks"])
		state.IdentityFragments = toRecords(reqContext["identity_fragments"])
		state.TimeDistortions = toRecords(reqContext["time_distortions"])
	}
	return state
}

func (e *Extractor) analyzeEmotionalTone(body string) EmotionalTone {
	detected := e.classifier.Counts(body, e.emotions)

	// Highest count wins; declared category order breaks ties so the
	// result is reproducible.
	primary := "neutral"
	best := 0
	for _, category := range e.emotions.Order {
		if count := detected[category]; count > best {
			primary = category
			best = count
		}
	}

	intensity := 0
	for _, count := range detected {
		intensity += count
	}

	return EmotionalTone{
		PrimaryEmotion:   primary,
		DetectedEmotions: detected,
		Intensity:        intensity,
	}
}

func (e *Extractor) detectTraumaIndicators(body string) []string {
	set := lexical.NewCategorySet(lexical.CategoryTriggers{Category: "trauma", Triggers: e.trauma})
	return e.classifier.Match(body, set)["trauma"]
}

func (e *Extractor) assessIntegrationNeeds(body string) []string {
	matches := e.classifier.Match(body, e.integrations)
	var needs []string
	for _, category := range e.integrations.Order {
		if len(matches[category]) > 0 {
			needs = append(needs, category)
		}
	}
	return needs
}

func toRecords(raw interface{}) []Record {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]interface{}:
			records = append(records, Record(v))
		case string:
			// Bare strings are promoted to labeled records.
			records = append(records, Record{"label": v})
		}
	}
	return records
}
