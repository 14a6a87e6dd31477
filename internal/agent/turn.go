package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Stages a turn can end in.
const (
	StagePrompt       = "prompt" // refused by the prompt checks
	StageUnconfigured = "unconfigured"
	StageGenerate     = "generate"
	StageSubmit       = "submit"
)

// TurnResult is the outcome of one natural-language question.
type TurnResult struct {
	TurnID      string
	Stage       string
	Prompt      string
	SQL         string
	Explanation string
	Envelope    *models.Envelope
	ToolsUsed   []string
	Model       string
	Checks      map[string]string
	Duration    time.Duration
}

// turnState remembers the last statement the model executed through the
// execute_sql tool so it is not run twice.
type turnState struct {
	mu      sync.Mutex
	lastSQL string
	last    *models.Envelope
}

func (t *turnState) observe(sql string, env *models.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSQL, t.last = sql, env
}

func (t *turnState) executed() (string, *models.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSQL, t.last
}

// HandleTurn answers a question: prompt checks, schema context, generation,
// then Submit for the candidate statement. It always returns a result with
// an envelope.
func (o *Orchestrator) HandleTurn(ctx context.Context, prompt string) *TurnResult {
	start := time.Now()
	turnID := audit.TurnFrom(ctx)
	if turnID == "" {
		turnID = uuid.NewString()
		ctx = audit.WithTurn(ctx, turnID)
	}
	res := &TurnResult{TurnID: turnID, Prompt: prompt, Checks: map[string]string{}}
	defer func() { res.Duration = time.Since(start) }()

	if msg, ok := o.checkPrompt(prompt, res.Checks); !ok {
		log.Warn().Str("turn_id", turnID).Str("reason", msg).Msg("prompt rejected")
		res.Stage = StagePrompt
		res.Envelope = models.Failed(msg)
		return res
	}
	if o.generator == nil {
		res.Stage = StageUnconfigured
		res.Envelope = models.Failed("natural-language queries are not configured on this server")
		return res
	}

	system := baseSystemPrompt(o.dataset, o.ceiling)
	if o.preloadSchema && o.catalog != nil {
		system = o.withSchemaContext(ctx, system)
	}

	gctx := ctx
	if o.agentTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, o.agentTimeout)
		defer cancel()
	}

	state := &turnState{}
	cand, err := o.generate(gctx, GenerateRequest{
		System: system,
		Prompt: prompt,
		Tools:  tools.All(o, state.observe),
	})
	if cand != nil {
		res.Explanation = truncate(cand.Explanation, 2000)
		res.ToolsUsed = cand.ToolsUsed
		res.Model = cand.Model
	}

	lastSQL, lastEnv := state.executed()
	res.Stage = StageSubmit
	switch {
	case lastEnv != nil:
		res.SQL, res.Envelope = lastSQL, lastEnv
		if err != nil {
			log.Warn().Err(err).Str("turn_id", turnID).Msg("generator failed after executing a statement")
		}
	case err != nil:
		log.Error().Err(err).Str("turn_id", turnID).Msg("generation failed")
		msg := "query generation failed, please try again"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) {
			msg = "query generation timed out"
		}
		res.Stage = StageGenerate
		res.Envelope = models.Failed(msg)
	case cand == nil || cand.SQL == "":
		res.Stage = StageGenerate
		res.Envelope = models.Failed("no SQL statement was generated for this question")
	default:
		res.SQL = cand.SQL
		res.Envelope = o.Submit(ctx, cand.SQL, models.SubmitOptions{Source: "agent"})
	}

	log.Info().
		Str("turn_id", turnID).
		Str("status", res.Envelope.Status).
		Str("stage", res.Stage).
		Strs("tools_used", res.ToolsUsed).
		Dur("duration", time.Since(start)).
		Msg("turn complete")
	return res
}

// generate calls the model and turns a panic into an error.
func (o *Orchestrator) generate(ctx context.Context, req GenerateRequest) (cand *Candidate, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("turn_id", audit.TurnFrom(ctx)).Msg("generator panic")
			cand, err = nil, fmt.Errorf("generator panic: %v", p)
		}
	}()
	return o.generator.Generate(ctx, req)
}

func (o *Orchestrator) checkPrompt(prompt string, checks map[string]string) (string, bool) {
	if o.pii != nil {
		if found, kw := o.pii.Detect(prompt); found {
			checks["pii_check"] = "blocked: " + kw
			return "the question asks for sensitive data (" + kw + ") and was refused", false
		}
		checks["pii_check"] = "passed"
	}
	if o.prompts != nil {
		if vr := o.prompts.Validate(prompt); !vr.Valid {
			checks["prompt_validation"] = "blocked: " + vr.Category
			return vr.Message, false
		}
		checks["prompt_validation"] = "passed"
	}
	return "", true
}

// withSchemaContext appends the catalog schema to the system prompt. A
// failure only costs the model some tool calls.
func (o *Orchestrator) withSchemaContext(ctx context.Context, system string) string {
	out, err := o.audit.Track(ctx, ToolLoadSchemaContext, o.dataset, func(ctx context.Context) (any, error) {
		return o.schemaContext(ctx)
	})
	if err != nil {
		log.Warn().Err(err).Msg("schema context unavailable")
		return system
	}
	schema, _ := out.(string)
	return system + "\n\n" + schema
}
