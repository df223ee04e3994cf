// Package orchestrator runs one citizen message through the whole response
// pipeline: persistence, context gathering, classification, planning,
// execution and memory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go-firstresponder/apperrors"
	"go-firstresponder/db"
	"go-firstresponder/executor"
	"go-firstresponder/geo"
	"go-firstresponder/planner"
	"go-firstresponder/responder"
	"go-firstresponder/types"
)

const (
	DefaultBudget          = 25 * time.Second
	DefaultFallbackTimeout = 10 * time.Second
	DefaultAwarenessRadius = 10.0

	// persistTimeout bounds report writes that happen after the budget.
	persistTimeout = 5 * time.Second

	ModeAgentic            = "full_agentic"
	ModeClassificationOnly = "classification_only"

	StateCompleted = "completed"
	StateFallback  = "fallback"
)

type Classifier interface {
	Classify(ctx context.Context, message string, lat, lon float64, feed, language string) types.Classification
}

type Planner interface {
	Plan(ctx context.Context, req planner.Request) types.Plan
}

type Executor interface {
	Execute(ctx context.Context, plan types.Plan, ec executor.ExecutionContext) types.ExecutionLog
}

type Memory interface {
	GetRelevantContext(ctx context.Context, loc types.Location, category string, severity types.Severity) types.RelevantContext
	GetSituationalAwareness(ctx context.Context, loc types.Location, radiusKM float64, conversationID string) types.SituationalAwareness
	StoreInteraction(ctx context.Context, id string, ictx types.InteractionContext, plan types.Plan, log types.ExecutionLog)
}

type FeedProvider interface {
	Context(ctx context.Context, lat, lon float64) types.FeedContext
}

type Recorder interface {
	RecordPipeline(state string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordPipeline(string, time.Duration) {}

// Deps are the collaborators of an Orchestrator. Store and Classifier are
// required; a nil Planner, Executor, Memory or Feeds disables that stage.
type Deps struct {
	Store      db.ReportStore
	Classifier Classifier
	Planner    Planner
	Executor   Executor
	Memory     Memory
	Feeds      FeedProvider
	Language   responder.LanguageDetector
	Recorder   Recorder
	Logger     *slog.Logger
}

type Config struct {
	Budget            time.Duration
	FallbackTimeout   time.Duration
	AwarenessRadiusKM float64
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = DefaultFallbackTimeout
	}
	if c.AwarenessRadiusKM <= 0 {
		c.AwarenessRadiusKM = DefaultAwarenessRadius
	}
	return c
}

type Orchestrator struct {
	store      db.ReportStore
	classifier Classifier
	planner    Planner
	executor   Executor
	memory     Memory
	feeds      FeedProvider
	language   responder.LanguageDetector
	recorder   Recorder
	logger     *slog.Logger
	cfg        Config
	started    time.Time
	now        func() time.Time
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("orchestrator: report store is required")
	}
	if deps.Classifier == nil {
		return nil, errors.New("orchestrator: classifier is required")
	}
	o := &Orchestrator{
		store:      deps.Store,
		classifier: deps.Classifier,
		planner:    deps.Planner,
		executor:   deps.Executor,
		memory:     deps.Memory,
		feeds:      deps.Feeds,
		language:   deps.Language,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.started = o.now()
	return o, nil
}

// Request is one inbound citizen message. ConversationID is the id of any
// earlier report of the same conversation.
type Request struct {
	Message        string
	Lat            *float64
	Lon            *float64
	Language       string
	ConversationID string
	SessionID      string
	ClientIP       string
	UserAgent      string
	MessageType    types.MessageType
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return apperrors.Validation("message", "message is required")
	}
	if r.Lat == nil {
		return apperrors.Validation("lat", "latitude is required")
	}
	if r.Lon == nil {
		return apperrors.Validation("lon", "longitude is required")
	}
	if !geo.ValidCoordinates(*r.Lat, *r.Lon) {
		return apperrors.Validation("lat/lon", "coordinates out of range")
	}
	switch r.MessageType {
	case "", types.TextMessage, types.VoiceMessage:
	default:
		return apperrors.Validation("message_type", fmt.Sprintf("unsupported message type %q", r.MessageType))
	}
	return nil
}

// Process handles one message end to end. Only validation and the initial
// report write fail the request; everything after that degrades.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Response, error) {
	start := o.now()
	if err := req.validate(); err != nil {
		return Response{}, err
	}

	report := &types.EmergencyReport{
		Message:     strings.TrimSpace(req.Message),
		MessageType: req.MessageType,
		Lat:         *req.Lat,
		Lon:         *req.Lon,
		Language:    req.Language,
		ClientIP:    req.ClientIP,
		UserAgent:   req.UserAgent,
		SessionID:   req.SessionID,
		ReceivedAt:  start,
	}
	if err := o.createReport(ctx, req.ConversationID, report); err != nil {
		return Response{}, err
	}
	logger := o.logger.With(slog.String("message_id", report.ID), slog.Int("step", report.Step))

	state := StateCompleted
	res, err := o.runWithBudget(ctx, report, req, logger)
	if err != nil {
		logger.Error("pipeline failed, falling back to classification", slog.String("error", err.Error()))
		res = o.fallback(ctx, report, req, logger)
		report.HasError = true
		report.ErrorMessage = err.Error()
		state = StateFallback
	}

	elapsed := o.now().Sub(start)
	res.ResponseMS = elapsed.Milliseconds()
	o.finish(ctx, report, res, logger)
	o.recorder.RecordPipeline(state, elapsed)
	logger.Info("message processed",
		slog.String("mode", res.Mode),
		slog.String("category", res.Category),
		slog.String("severity", res.Severity.Name()),
		slog.Duration("elapsed", elapsed),
	)
	return res, nil
}

func (o *Orchestrator) createReport(ctx context.Context, conversationID string, report *types.EmergencyReport) error {
	if conversationID == "" {
		if err := o.store.Create(ctx, report); err != nil {
			return apperrors.Wrap(apperrors.KindPersistence, "create report", err)
		}
		return nil
	}
	err := o.store.CreateFollowUp(ctx, conversationID, report)
	if errors.Is(err, db.ErrNotFound) {
		return apperrors.Validation("conversation_id", "unknown conversation")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.KindPersistence, "create follow-up", err)
	}
	return nil
}

type pipelineResult struct {
	res Response
	err error
}

// runWithBudget runs the pipeline under the overall budget. A pipeline that
// panics or outlives the budget is reported as an error.
func (o *Orchestrator) runWithBudget(ctx context.Context, report *types.EmergencyReport, req Request, logger *slog.Logger) (Response, error) {
	pctx, cancel := context.WithTimeout(ctx, o.cfg.Budget)
	defer cancel()

	// The goroutine may outlive the budget, so it works on its own copy.
	snapshot := *report
	done := make(chan pipelineResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("pipeline panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				done <- pipelineResult{err: fmt.Errorf("pipeline panic: %v", r)}
			}
		}()
		res, err := o.pipeline(pctx, &snapshot, req, logger)
		done <- pipelineResult{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-pctx.Done():
		return Response{}, fmt.Errorf("pipeline: %w", pctx.Err())
	}
}

func (o *Orchestrator) pipeline(ctx context.Context, report *types.EmergencyReport, req Request, logger *slog.Logger) (Response, error) {
	loc := types.Location{Lat: report.Lat, Lon: report.Lon}
	isFollowUp := report.ParentID != ""

	var history *types.ConversationHistory
	if isFollowUp {
		h, err := o.loadConversation(ctx, report)
		if err != nil {
			logger.Warn("conversation history unavailable", slog.String("error", err.Error()))
		} else {
			history = h
		}
	}

	language := responder.ResolveLanguage(ctx, o.language, req.Language, report.Message, logger)

	feed, awareness := o.gather(ctx, loc, conversationID(report))

	cls := o.classifier.Classify(ctx, report.Message, loc.Lat, loc.Lon, feed.Snippet, language)

	relevant := types.RelevantContext{}
	if o.memory != nil {
		relevant = o.memory.GetRelevantContext(ctx, loc, cls.Category, cls.Severity)
	}

	plan := planner.FallbackPlan()
	if o.planner != nil {
		plan = o.planner.Plan(ctx, planner.Request{
			Message:  report.Message,
			Location: loc,
			Severity: cls.Severity,
			Category: cls.Category,
			Language: language,
			History:  history,
		})
	}

	log := types.ExecutionLog{ExecutedActions: []types.ExecutionRecord{}, FinalStatus: types.StatusCompleted}
	if o.executor != nil {
		log = o.executor.Execute(ctx, plan, executor.ExecutionContext{
			Message:   report.Message,
			Location:  loc,
			Category:  cls.Category,
			Severity:  cls.Severity,
			Language:  language,
			Feed:      feed,
			Awareness: awareness,
		})
	}

	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("pipeline interrupted: %w", err)
	}

	if o.memory != nil {
		o.memory.StoreInteraction(ctx, report.ID, types.InteractionContext{
			Message:              report.Message,
			Location:             loc,
			Language:             language,
			Category:             cls.Category,
			Severity:             cls.Severity,
			InitialInstructions:  cls.Instructions,
			FeedSnippet:          feed.Snippet,
			IsFollowUp:           isFollowUp,
			ConversationStep:     report.Step,
			Conversation:         history,
			SituationalAwareness: awareness,
			HistoricalContext:    relevant,
			Timestamp:            o.now().UTC(),
		}, plan, log)
	}

	return assemble(report, language, cls, feed, awareness, relevant, plan, log), nil
}

// gather fetches the feed context and then the situational awareness around
// the caller. Both degrade to empty values on their own.
func (o *Orchestrator) gather(ctx context.Context, loc types.Location, convID string) (types.FeedContext, types.SituationalAwareness) {
	feed := types.FeedContext{Quakes: []types.SeismicEvent{}, Hazards: []types.HazardEvent{}}
	awareness := types.SituationalAwareness{}

	if o.feeds != nil {
		feed = o.feeds.Context(ctx, loc.Lat, loc.Lon)
	}
	if o.memory != nil {
		awareness = o.memory.GetSituationalAwareness(ctx, loc, o.cfg.AwarenessRadiusKM, convID)
	}
	return feed, awareness
}

// fallback produces a classification-only response. It runs on its own
// deadline because the pipeline context may already be spent.
func (o *Orchestrator) fallback(ctx context.Context, report *types.EmergencyReport, req Request, logger *slog.Logger) Response {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.FallbackTimeout)
	defer cancel()

	language := responder.ResolveLanguage(fctx, nil, req.Language, report.Message, logger)
	cls := o.classifier.Classify(fctx, report.Message, report.Lat, report.Lon, "", language)
	return classificationOnly(report, language, cls)
}

// finish writes the outcome back to the report and, for follow-ups, revises
// the conversation starter afterwards.
func (o *Orchestrator) finish(ctx context.Context, report *types.EmergencyReport, res Response, logger *slog.Logger) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	processed := o.now().UTC()
	report.Language = res.Language
	report.Category = res.Category
	report.Severity = res.Severity
	report.Instructions = res.Instructions
	report.FeedSnippet = res.FeedSnippet
	report.ResponseMS = res.ResponseMS
	report.ProcessedAt = &processed
	report.NeedsFollowUp = res.Conversation.NeedsFollowUp
	report.FollowUpQuestion = res.Conversation.FollowUpQuestion
	if report.ParentID == "" && res.Conversation.ConversationComplete {
		report.ConversationStatus = types.Completed
	}
	if err := o.store.Update(wctx, report); err != nil {
		logger.Error("failed to update report", slog.String("error", err.Error()))
		return
	}

	if report.ParentID == "" {
		return
	}
	directive := types.ConversationDirective{
		ConversationComplete: res.Conversation.ConversationComplete,
		SeverityUpdate:       res.Conversation.SeverityUpdate,
		CategoryUpdate:       res.Conversation.CategoryUpdate,
	}
	if err := o.reviseStarter(wctx, report.ParentID, directive); err != nil {
		logger.Warn("failed to revise conversation starter", slog.String("error", err.Error()))
	}
}
