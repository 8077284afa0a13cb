package council

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"everlight-os/internal/pkg/logger"
	"everlight-os/pkg/llm"
	"everlight-os/pkg/telemetry"
	"everlight-os/pkg/vault"
)

// MemberResponse is one seat's answer to one invocation.
type MemberResponse struct {
	Member    string        `json:"member"`
	Text      string        `json:"text,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// Consensus is the merged council verdict. Confidence is the fraction
// of members that answered, on a 0-100 scale; a partial council is a
// usable but less trustworthy one.
type Consensus struct {
	Responses  []MemberResponse `json:"responses"`
	Synthesis  string           `json:"synthesis"`
	Confidence float64          `json:"confidence"`
}

// Orchestrator fans a query out to every member concurrently and folds
// the answers into a Consensus. Results keep roster order regardless of
// completion order.
type Orchestrator struct {
	members     []Member
	store       vault.ObjectStore
	sink        telemetry.Sink
	log         logger.ILogger
	callTimeout time.Duration
	maxTokens   int
	temperature float64
}

func NewOrchestrator(members []Member, store vault.ObjectStore, sink telemetry.Sink, log logger.ILogger,
	callTimeout time.Duration, maxTokens int, temperature float64) *Orchestrator {
	return &Orchestrator{
		members:     members,
		store:       store,
		sink:        sink,
		log:         log,
		callTimeout: callTimeout,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (o *Orchestrator) Invoke(ctx context.Context, query string, reqContext map[string]interface{}) (*Consensus, error) {
	responses := make([]MemberResponse, len(o.members))

	var wg sync.WaitGroup
	for i, member := range o.members {
		wg.Add(1)
		go func(i int, member Member) {
			defer wg.Done()
			responses[i] = o.ask(ctx, member, query)
		}(i, member)
	}
	wg.Wait()

	consensus := &Consensus{Responses: responses}
	consensus.Synthesis, consensus.Confidence = synthesize(responses)

	o.sink.Emit("EverLight/Council", "ConsensusConfidence", consensus.Confidence, "Percent", nil)
	o.sink.Emit("EverLight/Council", "CouncilInvocations", 1, "Count", nil)

	o.archive(ctx, query, consensus, reqContext)
	return consensus, nil
}

func (o *Orchestrator) ask(ctx context.Context, member Member, query string) MemberResponse {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	prompt := fmt.Sprintf("Council Member %s: %s", titleCase(member.Name), query)
	started := time.Now()

	text, err := member.Provider.Generate(callCtx, prompt,
		llm.WithMaxTokens(o.maxTokens),
		llm.WithTemperature(o.temperature),
	)

	response := MemberResponse{
		Member:    member.Name,
		Latency:   time.Since(started),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		response.Error = err.Error()
		o.log.Warn("Council", "member call failed", map[string]interface{}{
			"member": member.Name,
			"error":  err.Error(),
		})
		return response
	}
	response.Text = text
	return response
}

// synthesize joins the successful answers in roster order and scores
// confidence as answered/total * 100.
func synthesize(responses []MemberResponse) (string, float64) {
	var parts []string
	for _, r := range responses {
		if r.Error == "" {
			parts = append(parts, fmt.Sprintf("[%s] %s", r.Member, r.Text))
		}
	}
	if len(parts) == 0 {
		return "The council could not be reached; no member responded.", 0
	}
	confidence := float64(len(parts)) / float64(len(responses)) * 100
	return "Council synthesis: " + strings.Join(parts, " "), confidence
}

// archive writes the invocation under memories/YYYY/MM/DD/<hash>.json.
// A failed write loses one memory, not the request.
func (o *Orchestrator) archive(ctx context.Context, query string, consensus *Consensus, reqContext map[string]interface{}) {
	record := map[string]interface{}{
		"query":     query,
		"consensus": consensus,
		"context":   reqContext,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	blob, err := json.Marshal(record)
	if err != nil {
		o.log.Error("Council", "memory marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("memories/%04d/%02d/%02d/%s.json", now.Year(), now.Month(), now.Day(), contentHash(query, now))
	if err := o.store.Put(ctx, key, blob); err != nil {
		o.log.Error("Council", "memory write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func titleCase(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// contentHash salts the query hash with the invocation time so repeated
// queries never collide on a key.
func contentHash(query string, at time.Time) string {
	h := fnv.New64a()
	h.Write([]byte(query))
	fmt.Fprintf(h, "|%d", at.UnixNano())
	return fmt.Sprintf("%016x", h.Sum64())
}
