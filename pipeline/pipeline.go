// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/sibyl/backend"
	"github.com/poiesic/sibyl/cache"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/resilience"
	"github.com/poiesic/sibyl/storage"
)

// Dependency names used for circuit breakers in the registry.
const (
	DepVectorStore = "vector-store"
	DepWebSearch   = "web-search"
	DepGeneration  = "generation"
)

const (
	defaultCallTimeout   = 30 * time.Second
	defaultMaxDocuments  = 5
	defaultMaxWebResults = 5
	defaultHistoryTurns  = 6

	// Per-namespace cache TTLs: short for semantic search, medium for web
	// search, long for generation outputs.
	defaultSemanticTTL   = 5 * time.Minute
	defaultWebTTL        = 15 * time.Minute
	defaultGenerationTTL = time.Hour

	resultCacheSize = 256

	apologyMessage = "I'm sorry, I wasn't able to put together a response just now. Please try again in a moment."
)

const (
	basePrompt = "You are a helpful research assistant. Answer concisely and accurately. If you are unsure, say so."

	contextPromptHeader = "You are a helpful research assistant. Ground your answer in the context below when it is relevant, and say when it is not sufficient.\n\nContext:\n"

	offTopicPrompt = "You are a helpful research assistant. The user's question falls outside the topics you support. Briefly and politely explain that, and suggest they ask about something you can help with. Do not attempt to answer the question itself."
)

// Result is the terminal output of one pipeline invocation. There is
// always a response; degradation shows up in Mode and Metadata, never as
// an absent result.
type Result struct {
	Response string
	Mode     core.ServiceMode
	Metadata map[string]any
}

// state is the mutable record threaded through one invocation. It is
// owned exclusively by that invocation and discarded afterwards.
type state struct {
	query      string
	sessionId  string
	analysis   *core.QueryAnalysis
	action     RouteAction
	documents  []core.ScoredDocument
	webResults []core.SearchResult
	context    string
	response   string
	mode       core.ServiceMode
	warnings   []string
	branchErrs map[string]error
	metadata   map[string]any
}

func (st *state) degrade(mode core.ServiceMode) {
	st.mode = st.mode.Worst(mode)
}

func (st *state) warn(msg string) {
	st.warnings = append(st.warnings, msg)
}

// Pipeline is the query orchestrator. Construct it once and share it;
// all methods are safe for concurrent use.
type Pipeline struct {
	vector    backend.VectorBackend
	web       backend.WebSearchBackend
	generator backend.GenerationBackend
	analyzer  backend.QueryAnalyzer

	registry      *resilience.Registry
	semanticChain *resilience.Chain[[]core.ScoredDocument]
	webChain      *resilience.Chain[[]core.SearchResult]
	genChain      *resilience.Chain[string]

	pool        *ants.Pool
	coordinator *Coordinator
	ranker      *Ranker

	history      storage.HistoryRepository
	historyTurns int

	confidenceFloor float32
	maxDocuments    int
	maxWebResults   int
	callTimeout     time.Duration

	semanticTTL   time.Duration
	webTTL        time.Duration
	generationTTL time.Duration

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithHistory attaches a conversation history repository. The last turns
// of the session are included in generation prompts and each invocation
// appends its query/response pair. Default is no history.
func WithHistory(history storage.HistoryRepository, turns int) Option {
	return func(p *Pipeline) error {
		p.history = history
		if turns > 0 {
			p.historyTurns = turns
		}
		return nil
	}
}

// WithConfidenceFloor sets the classification confidence under which the
// router retrieves from both sources. Default is 0.5.
func WithConfidenceFloor(floor float32) Option {
	return func(p *Pipeline) error {
		p.confidenceFloor = floor
		return nil
	}
}

// WithRanker overrides the context ranker.
func WithRanker(r *Ranker) Option {
	return func(p *Pipeline) error {
		if r != nil {
			p.ranker = r
		}
		return nil
	}
}

// WithCallTimeout sets the per-call timeout for outbound backend calls.
// It should be shorter than any overall deadline the caller supplies.
// Default is 30 seconds.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.callTimeout = d
		}
		return nil
	}
}

// WithRetrievalLimits sets how many hits each source is asked for.
// Defaults are 5 and 5.
func WithRetrievalLimits(documents, webResults int) Option {
	return func(p *Pipeline) error {
		if documents > 0 {
			p.maxDocuments = documents
		}
		if webResults > 0 {
			p.maxWebResults = webResults
		}
		return nil
	}
}

// WithCacheTTLs overrides the per-namespace result cache TTLs.
func WithCacheTTLs(semantic, web, generation time.Duration) Option {
	return func(p *Pipeline) error {
		if semantic > 0 {
			p.semanticTTL = semantic
		}
		if web > 0 {
			p.webTTL = web
		}
		if generation > 0 {
			p.generationTTL = generation
		}
		return nil
	}
}

// New creates a pipeline over the given backends. The vector and web
// backends are each optional, but at least one must be present; routes
// needing a missing source are downgraded to the other.
func New(provider backend.Provider, vector backend.VectorBackend, web backend.WebSearchBackend, registry *resilience.Registry, opts ...Option) (*Pipeline, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if vector == nil && web == nil {
		return nil, ErrNoRetrievalBackend
	}

	p := &Pipeline{
		vector:          vector,
		web:             web,
		generator:       provider.Generator(),
		analyzer:        provider.Analyzer(),
		registry:        registry,
		historyTurns:    defaultHistoryTurns,
		confidenceFloor: defaultConfidenceFloor,
		maxDocuments:    defaultMaxDocuments,
		maxWebResults:   defaultMaxWebResults,
		callTimeout:     defaultCallTimeout,
		semanticTTL:     defaultSemanticTTL,
		webTTL:          defaultWebTTL,
		generationTTL:   defaultGenerationTTL,
		logger:          slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.ranker == nil {
		ranker, err := NewRanker()
		if err != nil {
			return nil, err
		}
		p.ranker = ranker
	}

	poolSize := runtime.NumCPU()
	if poolSize < 2 {
		poolSize = 2
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	p.coordinator = NewCoordinator(pool, p.logger)

	if err := p.buildChains(); err != nil {
		pool.Release()
		return nil, err
	}

	return p, nil
}

// buildChains wires one breaker-guarded retry chain per dependency, each
// with its own result cache namespace.
func (p *Pipeline) buildChains() error {
	if p.vector != nil {
		b, err := p.registry.Breaker(DepVectorStore)
		if err != nil {
			return err
		}
		results, err := cache.New[core.ID, []core.ScoredDocument](resultCacheSize, p.semanticTTL)
		if err != nil {
			return err
		}
		p.semanticChain, err = resilience.NewChain[[]core.ScoredDocument](b,
			resilience.WithCache(results, p.semanticTTL),
			resilience.WithChainLogger[[]core.ScoredDocument](p.logger))
		if err != nil {
			return err
		}
	}

	if p.web != nil {
		b, err := p.registry.Breaker(DepWebSearch)
		if err != nil {
			return err
		}
		results, err := cache.New[core.ID, []core.SearchResult](resultCacheSize, p.webTTL)
		if err != nil {
			return err
		}
		p.webChain, err = resilience.NewChain[[]core.SearchResult](b,
			resilience.WithCache(results, p.webTTL),
			resilience.WithChainLogger[[]core.SearchResult](p.logger))
		if err != nil {
			return err
		}
	}

	b, err := p.registry.Breaker(DepGeneration)
	if err != nil {
		return err
	}
	results, err := cache.New[core.ID, string](resultCacheSize, p.generationTTL)
	if err != nil {
		return err
	}
	p.genChain, err = resilience.NewChain[string](b,
		resilience.WithCache(results, p.generationTTL),
		resilience.WithChainLogger[string](p.logger))
	return err
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Invoke runs the full pipeline for one query. The only caller-visible
// errors are the entry gates: an empty query or session id, or the
// per-client rate limit. Past those, every internal failure is absorbed
// into a degraded-but-present Result.
func (p *Pipeline) Invoke(ctx context.Context, query, sessionId string) (*Result, error) {
	return p.InvokeWithMonitor(ctx, query, sessionId, nil)
}

// InvokeWithMonitor runs the pipeline with stage observation hooks.
func (p *Pipeline) InvokeWithMonitor(ctx context.Context, query, sessionId string, monitor Monitor) (*Result, error) {
	return p.run(ctx, query, sessionId, monitor, nil)
}

// Stream runs the pipeline, delivering the generated text incrementally
// through fn. The returned Result carries the accumulated text and the
// same metadata Invoke would produce. Generation results are not served
// from cache when streaming.
func (p *Pipeline) Stream(ctx context.Context, query, sessionId string, fn backend.StreamFunc) (*Result, error) {
	return p.run(ctx, query, sessionId, nil, fn)
}

func (p *Pipeline) run(ctx context.Context, query, sessionId string, monitor Monitor, stream backend.StreamFunc) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ErrEmptyQuery
	}
	if sessionId == "" {
		return nil, core.ErrEmptySessionId
	}
	if err := p.registry.Limiter().Check(sessionId, 1); err != nil {
		return nil, err
	}

	monitor.Start(query)
	st := &state{
		query:      query,
		sessionId:  sessionId,
		mode:       core.ModeFull,
		branchErrs: make(map[string]error),
		metadata:   make(map[string]any),
	}

	p.analyze(ctx, st)
	monitor.AfterAnalysis(st.analysis)

	st.action = p.route(st)
	st.metadata["route"] = st.action.String()
	monitor.AfterRoute(st.action)

	p.retrieve(ctx, st)
	monitor.AfterRetrieval(len(st.documents), len(st.webResults), st.branchErrs)

	if st.action != ActionDirect {
		st.context = p.ranker.Rank(st.documents, st.webResults)
	}
	monitor.AfterRanking(len(st.context))

	p.generate(ctx, st, stream)
	monitor.AfterGeneration(st.mode)

	result := p.formatResponse(st)
	p.recordHistory(ctx, st, result)
	monitor.Finish(result)
	return result, nil
}

// analyze classifies the query. Classification failure never fails the
// pipeline: it falls back to a general intent, which routes to both
// sources.
func (p *Pipeline) analyze(ctx context.Context, st *state) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	analysis, err := p.analyzer.Analyze(callCtx, st.query)
	if err != nil || analysis == nil {
		p.logger.Warn("query analysis failed, assuming general intent", "err", err)
		if err != nil {
			st.metadata["analysis_error"] = err.Error()
		}
		analysis = &core.QueryAnalysis{Intent: core.IntentGeneral, Confidence: 0}
	}

	st.analysis = analysis
	st.metadata["intent"] = analysis.Intent.String()
	st.metadata["confidence"] = analysis.Confidence
}

// route applies the decision table, downgrading actions that need a
// backend this pipeline was built without.
func (p *Pipeline) route(st *state) RouteAction {
	action := RouteQuery(st.analysis, p.confidenceFloor)

	switch action {
	case ActionVectorOnly:
		if p.vector == nil {
			return ActionSearchOnly
		}
	case ActionSearchOnly:
		if p.web == nil {
			return ActionVectorOnly
		}
	case ActionBoth:
		if p.vector == nil {
			return ActionSearchOnly
		}
		if p.web == nil {
			return ActionVectorOnly
		}
	}
	return action
}

// vectorOp builds the chain-guarded semantic retrieval branch.
func (p *Pipeline) vectorOp(query string) DocsOp {
	return func(ctx context.Context) ([]core.ScoredDocument, core.ServiceMode, error) {
		return p.semanticChain.Run(ctx, "semantic:"+query, func(ctx context.Context) ([]core.ScoredDocument, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
			return p.vector.Search(callCtx, query, p.maxDocuments, nil)
		})
	}
}

// webOp builds the chain-guarded web-search branch.
func (p *Pipeline) webOp(query string) ResultsOp {
	return func(ctx context.Context) ([]core.SearchResult, core.ServiceMode, error) {
		return p.webChain.Run(ctx, "web:"+query, func(ctx context.Context) ([]core.SearchResult, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
			return p.web.Search(callCtx, query, p.maxWebResults)
		})
	}
}

// retrieve executes the selected retrieval action. A single-source route
// whose source is exhausted falls back to the other source (Degraded);
// losing both leaves generation to run without context (Minimal).
func (p *Pipeline) retrieve(ctx context.Context, st *state) {
	switch st.action {
	case ActionDirect:
		return

	case ActionVectorOnly:
		docs, mode, err := p.vectorOp(st.query)(ctx)
		if err == nil {
			st.documents = docs
			st.degrade(mode)
			return
		}
		st.branchErrs[SourceVector] = err
		p.logger.Warn("knowledge retrieval exhausted", "err", err)

		if p.web != nil {
			results, _, werr := p.webOp(st.query)(ctx)
			if werr == nil {
				st.webResults = results
				st.degrade(core.ModeDegraded)
				st.warn("The knowledge store is currently unavailable; this answer draws on web search instead.")
				return
			}
			st.branchErrs[SourceWeb] = werr
		}
		st.degrade(core.ModeMinimal)
		st.warn("The knowledge store is currently unavailable; this answer was generated without retrieved context.")

	case ActionSearchOnly:
		results, mode, err := p.webOp(st.query)(ctx)
		if err == nil {
			st.webResults = results
			st.degrade(mode)
			return
		}
		st.branchErrs[SourceWeb] = err
		p.logger.Warn("web retrieval exhausted", "err", err)

		if p.vector != nil {
			docs, _, verr := p.vectorOp(st.query)(ctx)
			if verr == nil {
				st.documents = docs
				st.degrade(core.ModeDegraded)
				st.warn("Web search is currently unavailable; this answer draws on stored knowledge instead.")
				return
			}
			st.branchErrs[SourceVector] = verr
		}
		st.degrade(core.ModeMinimal)
		st.warn("Web search is currently unavailable; this answer was generated without retrieved context.")

	case ActionBoth:
		agg := p.coordinator.RetrieveBoth(ctx, p.vectorOp(st.query), p.webOp(st.query))
		st.documents = agg.Documents
		st.webResults = agg.WebResults
		for source, err := range agg.Errors {
			st.branchErrs[source] = err
		}
		for source, mode := range agg.Modes {
			if _, failed := agg.Errors[source]; !failed {
				st.degrade(mode)
			}
		}

		switch len(agg.Errors) {
		case 0:
		case 1:
			st.degrade(core.ModeDegraded)
			if _, ok := agg.Errors[SourceWeb]; ok {
				st.warn("Web search is currently unavailable; this answer may not reflect the latest information.")
			} else {
				st.warn("The knowledge store is currently unavailable; this answer may lack stored context.")
			}
		default:
			st.degrade(core.ModeMinimal)
			st.warn("Retrieval is currently unavailable; this answer was generated without supporting context.")
		}
	}
}

// generate produces the response text. Exhausted generation returns a
// fixed apology rather than an error.
func (p *Pipeline) generate(ctx context.Context, st *state, stream backend.StreamFunc) {
	messages := p.buildMessages(ctx, st)

	var (
		response string
		mode     core.ServiceMode
		err      error
	)
	if stream != nil {
		// No cache key: a cache hit would skip the incremental delivery
		response, mode, err = p.genChain.Run(ctx, "", func(ctx context.Context) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
			return p.generator.GenerateStream(callCtx, messages, stream)
		})
	} else {
		key := "generate:" + st.query + "\x00" + st.context
		response, mode, err = p.genChain.Run(ctx, key, func(ctx context.Context) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
			return p.generator.Generate(callCtx, messages)
		})
	}

	if err != nil {
		p.logger.Error("generation exhausted, returning apology", "err", err)
		st.metadata["generation_error"] = err.Error()
		st.response = apologyMessage
		st.degrade(core.ModeMinimal)
		if stream != nil {
			_ = stream(apologyMessage)
		}
		return
	}

	st.response = response
	st.degrade(mode)
}

// buildMessages assembles the conversation handed to the generator:
// system prompt (guardrail, contextual, or base), recent session history
// when configured, then the user query.
func (p *Pipeline) buildMessages(ctx context.Context, st *state) []core.Message {
	system := basePrompt
	if st.analysis != nil && st.analysis.Intent == core.IntentOffTopic {
		system = offTopicPrompt
	} else if st.context != "" {
		system = contextPromptHeader + st.context
	}

	messages := []core.Message{{Role: core.RoleSystem, Content: system}}

	if p.history != nil {
		entries, err := p.history.GetRecentEntries(ctx, st.sessionId, p.historyTurns)
		if err != nil {
			p.logger.Warn("failed to load session history", "session", st.sessionId, "err", err)
		} else {
			for _, e := range entries {
				messages = append(messages, core.Message{Role: e.Role, Content: e.Contents})
			}
		}
	}

	return append(messages, core.Message{Role: core.RoleUser, Content: st.query})
}

// formatResponse prepends accumulated degradation warnings and stamps
// the final service mode and diagnostics.
func (p *Pipeline) formatResponse(st *state) *Result {
	text := st.response
	if len(st.warnings) > 0 {
		var sb strings.Builder
		for _, w := range st.warnings {
			sb.WriteString("Note: ")
			sb.WriteString(w)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(text)
		text = sb.String()
		st.metadata["warnings"] = st.warnings
	}

	st.metadata["service_mode"] = st.mode.String()
	st.metadata["document_count"] = len(st.documents)
	st.metadata["web_result_count"] = len(st.webResults)
	st.metadata["context_chars"] = len(st.context)
	for source, err := range st.branchErrs {
		st.metadata[source+"_error"] = err.Error()
	}

	return &Result{Response: text, Mode: st.mode, Metadata: st.metadata}
}

// recordHistory appends the turn to the session. Failures are logged,
// never surfaced; history is best-effort.
func (p *Pipeline) recordHistory(ctx context.Context, st *state, result *Result) {
	if p.history == nil {
		return
	}

	// The invocation's deadline should not abort the bookkeeping write
	writeCtx := context.WithoutCancel(ctx)
	now := time.Now().UTC()
	_, err := p.history.AppendEntries(writeCtx,
		&core.HistoryEntry{SessionId: st.sessionId, Role: core.RoleUser, Contents: st.query, Timestamp: now},
		&core.HistoryEntry{SessionId: st.sessionId, Role: core.RoleAssistant, Contents: result.Response, Timestamp: now},
	)
	if err != nil {
		p.logger.Warn("failed to record session history", "session", st.sessionId, "err", err)
	}
}
