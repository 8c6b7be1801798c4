// Package jobs runs story generation jobs on a bounded pool. Each job owns
// its own generation state; nothing mutable is shared between runs.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/gate"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/graph"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/logging"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/progress"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/synth"
)

// #region pool-config

// PoolConfig sizes the pool and fixes per-run settings.
type PoolConfig struct {
	Workers int
	Seed    int64 // 0 seeds each run from the clock
	Gate    gate.GateConfig
	// PollInterval is how often Wait re-reads a job.
	PollInterval time.Duration
}

// DefaultPoolConfig runs two jobs at a time.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      2,
		Gate:         gate.DefaultGateConfig(),
		PollInterval: 200 * time.Millisecond,
	}
}

// #endregion pool-config

// #region pool

// Pool accepts jobs and runs at most Workers of them concurrently.
type Pool struct {
	store  *state.Store
	graph  *graph.GraphStore
	gen    synth.Generator
	critic gate.Critic
	config PoolConfig

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	seq    int64
	seqMu  sync.Mutex
}

// NewPool wires a pool. graphStore may be nil to skip edge indexing.
func NewPool(store *state.Store, graphStore *graph.GraphStore, gen synth.Generator, critic gate.Critic, config PoolConfig) *Pool {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPoolConfig().PollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		store:  store,
		graph:  graphStore,
		gen:    gen,
		critic: critic,
		config: config,
		sem:    semaphore.NewWeighted(int64(config.Workers)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit validates and stores a job, then schedules it. The returned record
// is queued; poll GetJob or call Wait for the outcome.
func (p *Pool) Submit(input state.JobInput) (state.JobRecord, error) {
	if err := input.Config.Validate(); err != nil {
		return state.JobRecord{}, err
	}
	mode, err := story.ParseMode(string(input.Mode))
	if err != nil {
		return state.JobRecord{}, err
	}
	input.Mode = mode

	rec, err := p.store.CreateJob(input)
	if err != nil {
		return state.JobRecord{}, err
	}
	log.Printf("[POOL] queued job=%s genre=%q mode=%s", rec.JobID, input.Inputs.Genre, mode)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.execute(rec)
	}()
	return rec, nil
}

// GetJob returns the current job record.
func (p *Pool) GetJob(jobID string) (state.JobRecord, error) {
	return p.store.GetJob(jobID)
}

// Wait blocks until the job is completed or failed, or ctx ends.
func (p *Pool) Wait(ctx context.Context, jobID string) (state.JobRecord, error) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		rec, err := p.store.GetJob(jobID)
		if err != nil {
			return state.JobRecord{}, err
		}
		if rec.Status.Terminal() {
			return rec, nil
		}
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops scheduling queued jobs and waits for running ones.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}

// #endregion pool

// #region execute

func (p *Pool) execute(job state.JobRecord) {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		p.fail(job.JobID, fmt.Errorf("pool closed before start: %w", err))
		return
	}
	defer p.sem.Release(1)

	if err := p.store.MarkRunning(job.JobID); err != nil {
		log.Printf("[POOL] job=%s: %v", job.JobID, err)
		return
	}
	log.Printf("[POOL] running job=%s", job.JobID)

	storyID, err := p.runJob(p.ctx, job)
	if err != nil {
		p.fail(job.JobID, err)
		return
	}
	if err := p.store.CompleteJob(job.JobID, storyID); err != nil {
		log.Printf("[POOL] job=%s complete: %v", job.JobID, err)
		return
	}
	log.Printf("[POOL] completed job=%s story=%s", job.JobID, storyID)
}

// runJob generates and saves one story. Nothing is written for a failed run.
func (p *Pool) runJob(ctx context.Context, job state.JobRecord) (string, error) {
	jobID := job.JobID
	reporter := progress.NewReporter(func(u progress.Update) {
		if err := p.store.UpdateProgress(jobID, u.Percent, u.Message); err != nil {
			log.Printf("[POOL] job=%s progress: %v", jobID, err)
		}
	}, 16)
	defer reporter.Close()

	s := synth.NewSynthesizer(p.gen, gate.NewGate(p.critic, p.config.Gate))
	s.OnAttempt = func(a synth.AttemptRecord) {
		err := logging.LogDecision(p.store.DB(), logging.GenerationEntry{
			JobID:   jobID,
			SceneID: a.SceneID,
			Attempt: a.Attempt,
			Step:    string(a.Step),
			Score:   a.Score,
			Reason:  a.Reason,
		})
		if err != nil {
			log.Printf("[POOL] job=%s logging error: %v", jobID, err)
		}
	}

	runner := orchestrator.NewRunner(p.gen, s, orchestrator.RunnerConfig{
		Rand:       rand.New(rand.NewSource(p.nextSeed())),
		OnProgress: reporter.Func(),
	})

	st := story.NewGenerationState(job.Input.Inputs, job.Input.Config)
	result, err := runner.Run(ctx, st, job.Input.Mode)
	if err != nil {
		return "", err
	}

	metricsJSON, err := json.Marshal(result.Eval)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	storyID, err := p.store.SaveStory(state.StoryRecord{
		JobID:       jobID,
		Mode:        result.Mode,
		State:       result.State,
		MetricsJSON: string(metricsJSON),
	})
	if err != nil {
		return "", err
	}
	if p.graph != nil {
		if _, err := p.graph.IndexStory(storyID, result.State); err != nil {
			log.Printf("[POOL] job=%s edge index: %v", jobID, err)
		}
	}
	return storyID, nil
}

func (p *Pool) fail(jobID string, err error) {
	log.Printf("[POOL] failed job=%s: %v", jobID, err)
	if ferr := p.store.FailJob(jobID, err.Error()); ferr != nil && !errors.Is(ferr, state.ErrJobNotFound) {
		log.Printf("[POOL] job=%s mark failed: %v", jobID, ferr)
	}
}

// nextSeed gives each run its own deterministic seed when Seed is set.
func (p *Pool) nextSeed() int64 {
	if p.config.Seed == 0 {
		return time.Now().UnixNano()
	}
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	seed := p.config.Seed + p.seq
	p.seq++
	return seed
}

// #endregion execute
