package pipeline

import (
	"context"
	"sync"
	"time"

	"everlight-os/internal/pkg/logger"
	"everlight-os/pkg/council"
	"everlight-os/pkg/events"
	"everlight-os/pkg/psyche"
	"everlight-os/pkg/safety"
	"everlight-os/pkg/shadow"
	"everlight-os/pkg/telemetry"
)

// EventPublisher is the outbound bus seam; the watermill publisher in
// the service layer implements it.
type EventPublisher interface {
	Publish(event events.Event) error
}

// GroundingBlock is attached when the safety gate sees trauma content.
type GroundingBlock struct {
	Protocol    string   `json:"protocol"`
	Techniques  []string `json:"techniques"`
	TraumaFlags []string `json:"trauma_flags"`
}

// HealingBlock is attached when fragmentation was detected this turn.
type HealingBlock struct {
	Type             string `json:"type"`
	IntegrationLevel int    `json:"integration_level"`
	Approach         string `json:"approach"`
}

// IntegrationBlock is attached when shadow work was deferred.
type IntegrationBlock struct {
	Message            string                  `json:"message"`
	PreparationPlan    *shadow.PreparationPlan `json:"preparation_plan"`
	EstimatedReadiness string                  `json:"estimated_readiness"`
}

// Response is the composed pipeline output for one request.
type Response struct {
	Status    string    `json:"status"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	Response  string             `json:"response,omitempty"`
	Consensus *council.Consensus `json:"consensus,omitempty"`

	PsycheSync       *psyche.SyncResult `json:"psyche_sync,omitempty"`
	ShadowProcessing *shadow.Result     `json:"shadow_processing,omitempty"`

	Safety              *safety.Decision  `json:"safety,omitempty"`
	GroundingProtocol   *GroundingBlock   `json:"grounding_protocol,omitempty"`
	HealingGuidance     *HealingBlock     `json:"healing_guidance,omitempty"`
	IntegrationGuidance *IntegrationBlock `json:"integration_guidance,omitempty"`
}

// Pipeline is the full request path: safety gate, psyche sync and
// shadow processing in parallel, council invocation, composition.
type Pipeline struct {
	gate         safety.Evaluator
	extractor    *psyche.Extractor
	engine       *psyche.Engine
	shadows      *shadow.Processor
	orchestrator *council.Orchestrator
	sessions     *SessionStore
	publisher    EventPublisher
	sink         telemetry.Sink
	log          logger.ILogger
	stageTimeout time.Duration
}

func New(gate safety.Evaluator, engine *psyche.Engine, shadows *shadow.Processor,
	orchestrator *council.Orchestrator, sessions *SessionStore, publisher EventPublisher,
	sink telemetry.Sink, log logger.ILogger, stageTimeout time.Duration) *Pipeline {
	return &Pipeline{
		gate:         gate,
		extractor:    psyche.NewExtractor(),
		engine:       engine,
		shadows:      shadows,
		orchestrator: orchestrator,
		sessions:     sessions,
		publisher:    publisher,
		sink:         sink,
		log:          log,
		stageTimeout: stageTimeout,
	}
}

// Process runs one request end to end. It never returns an error to the
// transport: every failure mode folds into a Response whose status says
// what happened.
func (p *Pipeline) Process(ctx context.Context, request Request) (response *Response) {
	if request.ReceivedAt.IsZero() {
		request.ReceivedAt = time.Now().UTC()
	}
	session := &Session{
		ID:        newSessionID(request.UserID, request.ReceivedAt),
		Request:   request,
		Status:    SessionActive,
		CreatedAt: time.Now().UTC(),
	}
	p.sessions.Save(session)

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Pipeline", "stage panicked", map[string]interface{}{
				"session_id": session.ID,
				"panic":      r,
			})
			response = p.finish(session, &Response{
				Status:    SessionErrored,
				SessionID: session.ID,
				Timestamp: time.Now().UTC(),
			})
		}
	}()

	gateCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	decision, err := p.gate.Evaluate(gateCtx, request.Body, request.Context)
	cancel()
	if err != nil {
		p.log.Error("Pipeline", "safety evaluation failed", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		return p.finish(session, &Response{
			Status:    SessionErrored,
			SessionID: session.ID,
			Timestamp: time.Now().UTC(),
		})
	}
	if !decision.Approved {
		return p.finish(session, &Response{
			Status:    SessionBlocked,
			SessionID: session.ID,
			Timestamp: time.Now().UTC(),
			Safety:    decision,
		})
	}

	state := p.extractor.Extract(request.Body, request.Context)

	var (
		syncResult   *psyche.SyncResult
		shadowResult *shadow.Result
	)
	stageCtx, cancelStage := context.WithTimeout(ctx, p.stageTimeout)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		syncResult = p.engine.Sync(stageCtx, request.UserID, state)
	}()
	go func() {
		defer wg.Done()
		result, shadowErr := p.shadows.Process(stageCtx, request.UserID, request.Body)
		if shadowErr != nil {
			p.log.Warn("Pipeline", "shadow processing skipped", map[string]interface{}{
				"session_id": session.ID,
				"error":      shadowErr.Error(),
			})
			return
		}
		shadowResult = result
	}()
	wg.Wait()
	cancelStage()

	consensus, err := p.orchestrator.Invoke(ctx, request.Body, enrichContext(request.Context, session.ID, syncResult, shadowResult))
	if err != nil {
		p.log.Error("Pipeline", "council invocation failed", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		return p.finish(session, &Response{
			Status:    SessionErrored,
			SessionID: session.ID,
			Timestamp: time.Now().UTC(),
		})
	}

	return p.finish(session, compose(session.ID, decision, syncResult, shadowResult, consensus))
}

// compose folds the stage outputs into the final response. Pure; the
// conditional guidance blocks appear only when their stage asked for
// them.
func compose(sessionID string, decision *safety.Decision, syncResult *psyche.SyncResult,
	shadowResult *shadow.Result, consensus *council.Consensus) *Response {
	response := &Response{
		Status:           SessionCompleted,
		SessionID:        sessionID,
		Timestamp:        time.Now().UTC(),
		Response:         consensus.Synthesis,
		Consensus:        consensus,
		PsycheSync:       syncResult,
		ShadowProcessing: shadowResult,
	}

	if decision.RequiresGrounding {
		response.GroundingProtocol = &GroundingBlock{
			Protocol:    safety.GroundingProtocolName,
			Techniques:  []string{"breath_awareness", "body_grounding", "present_moment"},
			TraumaFlags: decision.TraumaFlags,
		}
	}
	if syncResult != nil && syncResult.FragmentationDetected {
		response.HealingGuidance = &HealingBlock{
			Type:             "fragmentation_healing",
			IntegrationLevel: syncResult.IntegrationLevel,
			Approach:         "gentle_integration",
		}
	}
	if shadowResult != nil && shadowResult.Status == shadow.StatusQueued {
		response.IntegrationGuidance = &IntegrationBlock{
			Message:            "Shadow material was noticed and held for when you are ready.",
			PreparationPlan:    shadowResult.PreparationPlan,
			EstimatedReadiness: shadowResult.EstimatedReadiness,
		}
	}
	return response
}

func enrichContext(reqContext map[string]interface{}, sessionID string,
	syncResult *psyche.SyncResult, shadowResult *shadow.Result) map[string]interface{} {
	enriched := make(map[string]interface{}, len(reqContext)+3)
	for k, v := range reqContext {
		enriched[k] = v
	}
	enriched["session_id"] = sessionID
	if syncResult != nil {
		enriched["psyche_sync"] = syncResult
	}
	if shadowResult != nil {
		enriched["shadow_processing"] = shadowResult
	}
	return enriched
}

// finish closes the session, republishes it for consumers, and emits
// the per-session metric.
func (p *Pipeline) finish(session *Session, response *Response) *Response {
	session.Status = response.Status
	session.CompletedAt = time.Now().UTC()
	session.FinalResponse = response
	p.sessions.Save(session)

	if err := p.publisher.Publish(events.NewSessionCompleted(session.ID, session.Request.UserID, response.Status)); err != nil {
		p.log.Warn("Pipeline", "session event publish failed", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}
	p.sink.Emit("EverLight/Pipeline", "SessionsProcessed", 1, "Count",
		map[string]string{"status": response.Status})
	return response
}
