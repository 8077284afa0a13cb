package psyche

import (
	"context"
	"time"

	"everlight-os/internal/pkg/logger"
	"everlight-os/pkg/telemetry"
)

// Indicator categories in their fixed evaluation order.
const (
	IndicatorMemoryGaps           = "memory_gaps"
	IndicatorEmotionalDisconnects = "emotional_disconnects"
	IndicatorIdentityConflicts    = "identity_conflicts"
	IndicatorTemporalDisruptions  = "temporal_disruptions"
)

var indicatorOrder = []string{
	IndicatorMemoryGaps,
	IndicatorEmotionalDisconnects,
	IndicatorIdentityConflicts,
	IndicatorTemporalDisruptions,
}

// Report scores one snapshot for discontinuity. Pure function of the
// state; see Detect.
type Report struct {
	Detected         bool           `json:"detected"`
	Score            int            `json:"score"`
	Indicators       map[string]int `json:"indicators"`
	IntegrationLevel int            `json:"integration_level"`
}

// Detect counts fragmentation indicators and derives the score.
// integration_level = max(0, 100 - score*10); detected at score > 2.
func Detect(state State) Report {
	indicators := map[string]int{
		IndicatorMemoryGaps:           len(state.MemoryGaps),
		IndicatorEmotionalDisconnects: len(state.EmotionalBlocks),
		IndicatorIdentityConflicts:    len(state.IdentityFragments),
		IndicatorTemporalDisruptions:  len(state.TimeDistortions),
	}

	score := 0
	for _, count := range indicators {
		score += count
	}

	level := 100 - score*10
	if level < 0 {
		level = 0
	}

	return Report{
		Detected:         score > 2,
		Score:            score,
		Indicators:       indicators,
		IntegrationLevel: level,
	}
}

// IntegrationMetadata marks a merged snapshot.
type IntegrationMetadata struct {
	Timestamp              time.Time      `json:"integration_timestamp"`
	FragmentationAddressed map[string]int `json:"fragmentation_addressed"`
	Approach               string         `json:"integration_approach"`
}

const integrationApproach = "trauma_aware_gentle"

// SyncResult summarizes one state synchronization round.
type SyncResult struct {
	Status                string    `json:"status"`
	Version               string    `json:"version"`
	FragmentationDetected bool      `json:"fragmentation_detected"`
	IntegrationLevel      int       `json:"integration_level"`
	Report                Report    `json:"report"`
	Timestamp             time.Time `json:"timestamp"`
}

// Engine detects fragmentation, merges fragmented snapshots against
// recent history, and versions the result. Store trouble degrades to
// pass-through: the caller always gets a usable result, never an error.
type Engine struct {
	versions     *VersionStore
	sink         telemetry.Sink
	logger       logger.ILogger
	historyLimit int
}

func NewEngine(versions *VersionStore, sink telemetry.Sink, log logger.ILogger, historyLimit int) *Engine {
	if historyLimit <= 0 {
		historyLimit = 5
	}
	return &Engine{
		versions:     versions,
		sink:         sink,
		logger:       log,
		historyLimit: historyLimit,
	}
}

// Sync runs one full round: detect, merge when fragmented, write a new
// version of the (possibly merged) state.
func (e *Engine) Sync(ctx context.Context, userID string, state State) *SyncResult {
	report := Detect(state)

	merged := state
	if report.Detected {
		merged = e.Merge(ctx, userID, state, report)
	}

	versionID := ""
	version, err := e.versions.Save(ctx, userID, merged)
	if err != nil {
		e.logger.Error("PsycheSync", "Failed to persist state version", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	} else {
		versionID = version.ID()
	}

	e.sink.Emit("EverLight/PsycheSync", "FragmentationScore", float64(report.Score), "Count",
		map[string]string{"UserId": userID})
	e.sink.Emit("EverLight/PsycheSync", "IntegrationLevel", float64(report.IntegrationLevel), "Percent",
		map[string]string{"UserId": userID})

	return &SyncResult{
		Status:                "synchronized",
		Version:               versionID,
		FragmentationDetected: report.Detected,
		IntegrationLevel:      report.IntegrationLevel,
		Report:                report,
		Timestamp:             time.Now().UTC(),
	}
}

// Merge annotates a copy of the state with a category-specific
// integration strategy per non-zero indicator. When history cannot be
// fetched the merge degrades to pass-through and the original state is
// returned untouched.
func (e *Engine) Merge(ctx context.Context, userID string, state State, report Report) State {
	history, err := e.versions.Recent(ctx, userID, e.historyLimit)
	if err != nil {
		e.logger.Warn("PsycheSync", "History unavailable, merge degraded to pass-through", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return state
	}

	merged := cloneState(state)

	for _, indicator := range indicatorOrder {
		if report.Indicators[indicator] == 0 {
			continue
		}
		switch indicator {
		case IndicatorMemoryGaps:
			bridgeMemoryGaps(merged.MemoryGaps, history)
		case IndicatorEmotionalDisconnects:
			annotateEmotionalBlocks(merged.EmotionalBlocks, history)
		case IndicatorIdentityConflicts:
			mapIdentityCoherence(merged.IdentityFragments, history)
		case IndicatorTemporalDisruptions:
			establishTemporalAnchors(merged.TimeDistortions)
		}
	}

	merged.IntegrationMetadata = &IntegrationMetadata{
		Timestamp:              time.Now().UTC(),
		FragmentationAddressed: report.Indicators,
		Approach:               integrationApproach,
	}
	return merged
}

// bridgeMemoryGaps looks for keyword overlap between each gap and
// historical gap records, attaching up to three bridges. The cap keeps
// the annotation from overwhelming the client.
func bridgeMemoryGaps(gaps []Record, history []State) {
	for _, gap := range gaps {
		gapKeywords := stringSet(gap["keywords"])
		if len(gapKeywords) == 0 {
			continue
		}

		var bridges []Record
		for _, past := range history {
			for _, candidate := range past.MemoryGaps {
				if len(bridges) >= 3 {
					break
				}
				for keyword := range stringSet(candidate["keywords"]) {
					if _, ok := gapKeywords[keyword]; ok {
						bridges = append(bridges, candidate)
						break
					}
				}
			}
		}

		if len(bridges) > 0 {
			gap["potential_bridges"] = bridges
			gap["integration_status"] = "bridging_available"
		}
	}
}

func annotateEmotionalBlocks(blocks []Record, history []State) {
	for _, block := range blocks {
		pattern, _ := block["pattern"].(string)
		frequency := 0
		if pattern != "" {
			for _, past := range history {
				for _, candidate := range past.EmotionalBlocks {
					if candidatePattern, _ := candidate["pattern"].(string); candidatePattern == pattern {
						frequency++
					}
				}
			}
		}
		if frequency > 0 {
			block["historical_context"] = []Record{{"pattern": pattern, "frequency": frequency}}
		}
		block["integration_approach"] = "gradual_exposure"
	}
}

func mapIdentityCoherence(fragments []Record, history []State) {
	timeline := make([]Record, 0, len(history))
	for i, past := range history {
		timeline = append(timeline, Record{
			"offset":          i,
			"coherence_level": float64(Detect(past).IntegrationLevel) / 100.0,
		})
	}
	for _, fragment := range fragments {
		fragment["coherence_timeline"] = timeline
		fragment["integration_path"] = "compassionate_acceptance"
	}
}

func establishTemporalAnchors(disruptions []Record) {
	anchors := []Record{
		{"anchor_type": "present_moment", "description": "Current breath awareness"},
		{"anchor_type": "safe_memory", "description": "Recalled moment of safety"},
	}
	for _, disruption := range disruptions {
		disruption["temporal_anchors"] = anchors
		disruption["grounding_protocol"] = "present_moment_awareness"
	}
}

func cloneState(state State) State {
	clone := state
	clone.MemoryGaps = cloneRecords(state.MemoryGaps)
	clone.EmotionalBlocks = cloneRecords(state.EmotionalBlocks)
	clone.IdentityFragments = cloneRecords(state.IdentityFragments)
	clone.TimeDistortions = cloneRecords(state.TimeDistortions)
	return clone
}

func cloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, record := range records {
		copied := make(Record, len(record))
		for k, v := range record {
			copied[k] = v
		}
		out[i] = copied
	}
	return out
}

func stringSet(raw interface{}) map[string]struct{} {
	set := make(map[string]struct{})
	switch items := raw.(type) {
	case []interface{}:
		for _, item := range items {
			if s, ok := item.(string); ok {
				set[s] = struct{}{}
			}
		}
	case []string:
		for _, s := range items {
			set[s] = struct{}{}
		}
	}
	return set
}
