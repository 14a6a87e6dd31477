package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options bound record summaries and the in-memory window. Zero means
// unbounded.
type Options struct {
	ArgsLimit   int
	ResultLimit int
	// MaxRecords caps the in-memory log; the oldest records are dropped
	// once sinks have seen them.
	MaxRecords int
}

// Pipeline is the ordered, append-only audit log. One mutex covers sequence
// assignment, the in-memory append and the sink writes, so every sink sees
// records in the order the hooks fired.
type Pipeline struct {
	opts  Options
	sinks []Sink
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	seq     uint64
	records []Record
}

func NewPipeline(opts Options, sinks ...Sink) *Pipeline {
	return &Pipeline{
		opts:  opts,
		sinks: sinks,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Invocation correlates the Before and After records of one tool call.
type Invocation struct {
	ID     string
	Tool   string
	TurnID string

	p      *Pipeline
	parent string
	args   string
	start  time.Time
	once   sync.Once
}

// Before appends the Before record for tool and returns the open invocation.
// The caller must call After exactly once; further calls are ignored.
func (p *Pipeline) Before(ctx context.Context, tool string, args any) *Invocation {
	inv := &Invocation{
		ID:     p.newID(),
		Tool:   tool,
		TurnID: TurnFrom(ctx),
		p:      p,
		args:   summarize(args, p.opts.ArgsLimit),
	}
	if outer := invocationFrom(ctx); outer != nil {
		inv.parent = outer.ID
	}
	inv.start = p.now()
	p.append(ctx, Record{
		InvocationID: inv.ID,
		ParentID:     inv.parent,
		TurnID:       inv.TurnID,
		Tool:         tool,
		Phase:        PhaseBefore,
		Arguments:    inv.args,
		Status:       StatusPending,
	})
	return inv
}

// Context returns ctx carrying inv, so invocations started under it record
// inv as their parent.
func (inv *Invocation) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, invocationKey, inv)
}

// After appends the After record. Only the first call has any effect.
func (inv *Invocation) After(result any, status string) {
	inv.once.Do(func() {
		p := inv.p
		if status == "" {
			status = StatusSuccess
			if r, ok := result.(StatusReporter); ok {
				status = r.AuditStatus()
			}
		}
		p.append(context.Background(), Record{
			InvocationID: inv.ID,
			ParentID:     inv.parent,
			TurnID:       inv.TurnID,
			Tool:         inv.Tool,
			Phase:        PhaseAfter,
			Arguments:    inv.args,
			Result:       summarize(result, p.opts.ResultLimit),
			Status:       status,
			DurationMs:   p.now().Sub(inv.start).Milliseconds(),
		})
	})
}

// Track runs fn between Before and After. After fires on every exit path,
// including a panic in fn, which is re-raised once recorded.
func (p *Pipeline) Track(ctx context.Context, tool string, args any, fn func(ctx context.Context) (any, error)) (result any, err error) {
	inv := p.Before(ctx, tool, args)
	defer func() {
		if r := recover(); r != nil {
			inv.After(fmt.Sprintf("panic: %v", r), StatusPanic)
			panic(r)
		}
		if err != nil {
			inv.After(err, StatusError)
			return
		}
		inv.After(result, "")
	}()
	return fn(inv.Context(ctx))
}

func (p *Pipeline) append(ctx context.Context, rec Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	rec.Seq = p.seq
	rec.Timestamp = p.now().UTC()
	p.records = append(p.records, rec)
	if n := p.opts.MaxRecords; n > 0 && len(p.records) > n {
		p.records = append(p.records[:0:0], p.records[len(p.records)-n:]...)
	}

	for _, s := range p.sinks {
		if err := s.Write(ctx, rec); err != nil {
			log.Error().
				Err(err).
				Str("sink", fmt.Sprintf("%T", s)).
				Uint64("seq", rec.Seq).
				Msg("audit sink write failed")
		}
	}
}

// Records returns a copy of every record held in memory.
func (p *Pipeline) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Record, len(p.records))
	copy(out, p.records)
	return out
}

// Drain returns the in-memory records and clears them. Sequence numbers
// keep increasing.
func (p *Pipeline) Drain() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.records
	p.records = nil
	return out
}

// Close closes every sink, returning the first error.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
