package shadow

import (
	"strings"

	"everlight-os/pkg/lexical"
)

// Shadow indicator categories, in fixed evaluation order.
const (
	CategoryRejectedEmotions  = "rejected_emotions"
	CategorySuppressedDesires = "suppressed_desires"
	CategoryDeniedAspects     = "denied_aspects"
	CategoryProjections       = "projected_qualities"
	CategoryShamePatterns     = "shame_patterns"
)

var categoryOrder = []string{
	CategoryRejectedEmotions,
	CategorySuppressedDesires,
	CategoryDeniedAspects,
	CategoryProjections,
	CategoryShamePatterns,
}

// Archetypal label per non-empty category.
var archetypeByCategory = map[string]string{
	CategoryRejectedEmotions:  "The Destroyer",
	CategorySuppressedDesires: "The Lover",
	CategoryDeniedAspects:     "The Innocent",
	CategoryProjections:       "The Orphan",
	CategoryShamePatterns:     "The Outcast",
}

// Match is one shadow indicator hit.
type Match struct {
	Trigger string `json:"trigger"`
	Label   string `json:"label"`
}

// Analysis is the classified shadow content of one request.
// intensity = min(100, 10*total matches); complexity tiers are
// <=2 low, 3-5 medium, >5 high.
type Analysis struct {
	Indicators map[string][]Match `json:"indicators"`
	Intensity  int                `json:"intensity"`
	Complexity string             `json:"integration_complexity"`
	Archetypes []string           `json:"archetypal_patterns"`
}

func (a *Analysis) TotalMatches() int {
	total := 0
	for _, matches := range a.Indicators {
		total += len(matches)
	}
	return total
}

// Analyzer classifies text into shadow-content categories. Rejected
// emotions additionally require a negation cue in the text: naming an
// emotion is not rejection, pushing it away is.
type Analyzer struct {
	classifier *lexical.Classifier
	emotions   lexical.CategorySet
	desires    []string
	denials    []string
	projected  []string
	shame      []string
	negations  []string
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		classifier: lexical.NewClassifier(),
		emotions: lexical.NewCategorySet(
			lexical.CategoryTriggers{Category: "anger", Triggers: []string{"rage", "fury", "irritation", "resentment"}},
			lexical.CategoryTriggers{Category: "fear", Triggers: []string{"terror", "anxiety", "panic", "dread"}},
			lexical.CategoryTriggers{Category: "sadness", Triggers: []string{"grief", "despair", "melancholy", "sorrow"}},
			lexical.CategoryTriggers{Category: "shame", Triggers: []string{"humiliation", "embarrassment", "disgrace"}},
			lexical.CategoryTriggers{Category: "envy", Triggers: []string{"jealousy", "resentment", "covetousness"}},
		),
		desires: []string{
			"want but can't", "wish i could", "if only", "dream of",
			"forbidden", "not allowed", "shouldn't want",
		},
		denials: []string{
			"i'm not", "i would never", "that's not me",
			"i don't do", "i'm above", "i'm better than",
		},
		projected: []string{
			"they always", "people are", "everyone does",
			"others should", "why do they", "i hate when people",
		},
		shame: []string{
			"i'm bad", "i'm wrong", "i'm broken",
			"i'm not enough", "i'm too much", "i'm worthless",
		},
		negations: []string{"not", "never", "shouldn't", "can't"},
	}
}

func (a *Analyzer) Analyze(content string) Analysis {
	indicators := map[string][]Match{
		CategoryRejectedEmotions:  a.rejectedEmotions(content),
		CategorySuppressedDesires: matchPhrases(content, a.desires, "societal_conditioning"),
		CategoryDeniedAspects:     matchPhrases(content, a.denials, "self_concept_protection"),
		CategoryProjections:       matchPhrases(content, a.projected, "external_attribution"),
		CategoryShamePatterns:     matchPhrases(content, a.shame, "core_wound"),
	}

	analysis := Analysis{Indicators: indicators}

	total := analysis.TotalMatches()
	analysis.Intensity = total * 10
	if analysis.Intensity > 100 {
		analysis.Intensity = 100
	}
	analysis.Complexity = complexityTier(total)

	for _, category := range categoryOrder {
		if len(indicators[category]) > 0 {
			analysis.Archetypes = append(analysis.Archetypes, archetypeByCategory[category])
		}
	}

	return analysis
}

// rejectedEmotions matches emotion keywords only when a negation cue
// co-occurs anywhere in the text.
func (a *Analyzer) rejectedEmotions(content string) []Match {
	if !lexical.ContainsAny(content, a.negations) {
		return nil
	}
	var matches []Match
	found := a.classifier.Match(content, a.emotions)
	for _, emotion := range a.emotions.Order {
		for _, trigger := range found[emotion] {
			matches = append(matches, Match{Trigger: trigger, Label: emotion})
		}
	}
	return matches
}

func matchPhrases(content string, phrases []string, label string) []Match {
	lowered := strings.ToLower(content)
	var matches []Match
	for _, phrase := range phrases {
		if strings.Contains(lowered, phrase) {
			matches = append(matches, Match{Trigger: phrase, Label: label})
		}
	}
	return matches
}

func complexityTier(total int) string {
	switch {
	case total <= 2:
		return "low"
	case total <= 5:
		return "medium"
	default:
		return "high"
	}
}
