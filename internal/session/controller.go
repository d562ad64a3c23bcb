package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"resumeflow/internal/backend"
	"resumeflow/internal/builder"
	"resumeflow/internal/channel"
	"resumeflow/internal/draft"
	"resumeflow/internal/errors"
	"resumeflow/internal/types"
	"resumeflow/internal/utils"
	"resumeflow/internal/validation"
)

// ErrSuperseded is returned by an operation abandoned by a restart or a newer operation.
var ErrSuperseded = errors.NewUserInputError(errors.ErrCodeSuperseded, "The operation was abandoned", nil)

// Channel is the streaming connection used for one parse or optimize attempt
type Channel interface {
	Connect(ctx context.Context) error
	OnMessage(handler func(channel.Message))
	SendParse(fileName, mimeType string, content []byte) error
	SendOptimize(req channel.OptimizeRequest) error
	Disconnect() error
}

// ChannelFactory opens a fresh channel for a logical endpoint
type ChannelFactory func(endpoint string) (Channel, error)

// NewChannelFactory returns a factory creating streaming clients for baseURL.
func NewChannelFactory(baseURL string, opts ...channel.Option) ChannelFactory {
	return func(endpoint string) (Channel, error) {
		client, err := channel.New(baseURL, endpoint, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// Recorder receives session metrics
type Recorder interface {
	RecordSessionTransition(ctx context.Context, from, to string)
	RecordValidationScore(ctx context.Context, score int)
}

// Options configures a Controller
type Options struct {
	MinJobDescription int
	ReviewDelay       time.Duration
	ResultsDelay      time.Duration
	Drafts            *draft.Store
	DraftKey          string
	Logger            *errors.Logger
	Recorder          Recorder
}

// Controller drives one résumé session from upload to results.
type Controller struct {
	factory ChannelFactory
	opts    Options
	logger  *errors.Logger
	pacer   *Pacer

	mu            sync.Mutex
	stage         Stage
	gen           uint64
	genDone       chan struct{}
	ch            Channel
	fileName      string
	original      *types.Resume
	resume        *types.Resume
	extractedText string
	warnings      []string
	job           OptimizeInput
	optimized     *types.OptimizedResume
	cover         *types.CoverLetter
	keywords      []string
	progress      Progress
	wizard        *builder.Wizard

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a controller in the landing stage.
func New(factory ChannelFactory, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = errors.NewNopLogger()
	}
	if opts.MinJobDescription <= 0 {
		opts.MinJobDescription = 50
	}
	return &Controller{
		factory: factory,
		opts:    opts,
		logger:  opts.Logger,
		pacer:   NewPacer(),
		stage:   StageLanding,
		genDone: make(chan struct{}),
		subs:    make(map[int]chan Event),
	}
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers for events. Events are dropped for a subscriber whose
// buffer is full. The returned function unsubscribes.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

// Parse uploads a résumé over the parse channel and blocks until the
// backend answers. On success the session moves to review; on failure it
// returns to landing.
func (c *Controller) Parse(ctx context.Context, upload types.Upload) error {
	switch {
	case upload.FileName == "":
		return c.reject(errors.NewUserInputError(errors.ErrCodeNoFile, "Please select a résumé file to upload", nil))
	case len(upload.Content) == 0:
		return c.reject(errors.NewUserInputError(errors.ErrCodeEmptyFile, "The selected file is empty", nil))
	case !utils.IsSupportedResumeFile(upload.FileName):
		return c.reject(errors.NewUserInputError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Unsupported file type. Please upload one of: %s",
				strings.Join(utils.SupportedResumeExtensions(), ", ")), nil))
	}
	if upload.MimeType == "" {
		upload.MimeType = utils.DetectMIME(upload.FileName, upload.Content)
	}

	c.mu.Lock()
	if c.stage != StageLanding {
		err := invalidStage("upload a résumé", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	gen, old := c.beginLocked(StageParsing)
	c.fileName = upload.FileName
	snap := c.snapshotLocked()
	c.mu.Unlock()
	disconnect(old)
	c.publish(Event{Kind: EventState, State: snap})

	msg, err := c.run(ctx, gen, StageParsing, backend.EndpointParse, func(ch Channel) error {
		return ch.SendParse(upload.FileName, upload.MimeType, upload.Content)
	})
	if err != nil {
		return c.fail(gen, StageParsing, StageLanding, err)
	}
	result, err := channel.DecodeParseResult(msg.Data)
	if err != nil {
		return c.fail(gen, StageParsing, StageLanding, err)
	}

	c.setProgress(gen, StageParsing, Progress{Stage: "complete", Percent: 100, Message: "Resume parsed successfully"})
	c.pacer.Wait(ctx, c.opts.ReviewDelay)

	c.mu.Lock()
	if !c.currentLocked(gen, StageParsing) {
		c.mu.Unlock()
		c.logger.Debug("Parse result arrived after the session moved on", "generation", gen)
		return ErrSuperseded
	}
	c.enterReviewLocked(result.Resume, result.ExtractedText, result.Warnings)
	score := validation.ValidateResume(*c.resume).OverallScore
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.recordScore(score)
	events := []Event{{Kind: EventState, State: snap}}
	for _, warning := range result.Warnings {
		events = append(events, notificationEvent(LevelWarning, warning))
	}
	c.publish(events...)
	return nil
}

// Optimize sends the verified résumé and job description over the optimize
// channel and blocks until the backend answers. Descriptions shorter than the
// configured minimum are rejected before any channel is opened.
func (c *Controller) Optimize(ctx context.Context, in OptimizeInput) error {
	description := strings.TrimSpace(in.JobDescription)

	c.mu.Lock()
	if c.stage != StageJobDescription || c.resume == nil {
		err := invalidStage("optimize", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	if utf8.RuneCountInString(description) < c.opts.MinJobDescription {
		c.mu.Unlock()
		return c.reject(errors.NewUserInputError(errors.ErrCodeJobTooShort,
			fmt.Sprintf("Job description should be at least %d characters", c.opts.MinJobDescription), nil))
	}
	c.job = OptimizeInput{
		JobDescription: description,
		JobTitle:       strings.TrimSpace(in.JobTitle),
		Company:        strings.TrimSpace(in.Company),
	}
	request := channel.OptimizeRequest{
		Resume:         c.resume.Clone(),
		JobDescription: description,
		JobTitle:       c.job.JobTitle,
		Company:        c.job.Company,
	}
	c.optimized, c.cover, c.keywords = nil, nil, nil
	gen, old := c.beginLocked(StageProcessing)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	disconnect(old)
	c.publish(Event{Kind: EventState, State: snap})

	msg, err := c.run(ctx, gen, StageProcessing, backend.EndpointOptimize, func(ch Channel) error {
		return ch.SendOptimize(request)
	})
	if err != nil {
		return c.fail(gen, StageProcessing, StageJobDescription, err)
	}
	result, err := channel.DecodeOptimizeResult(msg.Data)
	if err != nil {
		return c.fail(gen, StageProcessing, StageJobDescription, err)
	}

	c.setProgress(gen, StageProcessing, Progress{Stage: "complete", Percent: 100, Message: "Optimization complete"})
	c.pacer.Wait(ctx, c.opts.ResultsDelay)

	c.mu.Lock()
	if !c.currentLocked(gen, StageProcessing) {
		c.mu.Unlock()
		c.logger.Debug("Optimize result arrived after the session moved on", "generation", gen)
		return ErrSuperseded
	}
	c.optimized = &result.OptimizedResume
	c.cover = &result.CoverLetter
	c.keywords = result.JobKeywords
	c.setStageLocked(StageResults)
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Resume optimized",
		"match_score", result.OptimizedResume.MatchScore,
		"changes", len(result.OptimizedResume.Changes),
		"keywords", len(result.JobKeywords))
	c.publish(Event{Kind: EventState, State: snap},
		notificationEvent(LevelInfo, "Your résumé has been optimized"))
	return nil
}

// run opens a channel for one attempt, sends the request and waits for a
// terminal message. The channel is always torn down before run returns.
func (c *Controller) run(ctx context.Context, gen uint64, stage Stage, endpoint string, send func(Channel) error) (channel.Message, error) {
	ch, err := c.factory(endpoint)
	if err != nil {
		return channel.Message{}, err
	}

	done := make(chan channel.Message, 1)
	var once sync.Once
	ch.OnMessage(func(msg channel.Message) {
		if !c.current(gen, stage) {
			c.logger.Debug("Dropping stale channel message", "type", string(msg.Type), "generation", gen)
			return
		}
		if msg.Type == channel.TypeProgress {
			c.setProgress(gen, stage, Progress{Stage: msg.Stage, Percent: msg.Progress, Message: msg.Message})
			return
		}
		// Result, error and malformed frames all end the attempt.
		once.Do(func() { done <- msg })
	})

	superseded, ok := c.attach(gen, ch)
	if !ok {
		_ = ch.Disconnect()
		return channel.Message{}, ErrSuperseded
	}
	defer c.detach(ch)

	if err := ch.Connect(ctx); err != nil {
		return channel.Message{}, err
	}
	if err := send(ch); err != nil {
		return channel.Message{}, err
	}

	select {
	case msg := <-done:
		if msg.Type == channel.TypeResult {
			return msg, nil
		}
		if msg.Err != nil {
			return msg, msg.Err
		}
		return msg, errors.NewBackendError(errors.ErrCodeBackendFailed, msg.Message, nil)
	case <-superseded:
		return channel.Message{}, ErrSuperseded
	case <-ctx.Done():
		return channel.Message{}, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			"The résumé service did not answer in time", ctx.Err())
	}
}

// fail reverts the session to fallback if gen is still the running operation.
func (c *Controller) fail(gen uint64, stage, fallback Stage, err error) error {
	if stderrors.Is(err, ErrSuperseded) {
		return err
	}

	c.mu.Lock()
	if !c.currentLocked(gen, stage) {
		c.mu.Unlock()
		return err
	}
	c.setStageLocked(fallback)
	c.progress = Progress{}
	if fallback == StageLanding {
		c.clearUploadLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.LogError(err, "Session operation failed", "stage", string(stage), "fallback", string(fallback))
	c.publish(Event{Kind: EventState, State: snap}, notificationEvent(LevelError, errors.UserMessage(err)))
	return err
}

// Load puts a résumé read from a file under review, as if it had just been parsed.
func (c *Controller) Load(r types.Resume) error {
	c.mu.Lock()
	if c.stage != StageLanding {
		err := invalidStage("load a résumé", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	c.enterReviewLocked(r, "", nil)
	score := validation.ValidateResume(*c.resume).OverallScore
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.recordScore(score)
	c.publish(Event{Kind: EventState, State: snap})
	return nil
}

// StartBuilder opens the builder wizard, resuming a saved draft if there is one.
func (c *Controller) StartBuilder() (*builder.Wizard, error) {
	c.mu.Lock()
	if c.stage != StageLanding {
		err := invalidStage("open the builder", c.stage)
		c.mu.Unlock()
		return nil, c.reject(err)
	}
	wizard, err := builder.New(c.opts.Drafts, c.opts.DraftKey, c.logger)
	if err != nil {
		c.mu.Unlock()
		return nil, c.reject(err)
	}
	c.wizard = wizard
	c.setStageLocked(StageBuilder)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventState, State: snap})
	return wizard, nil
}

// WithBuilder runs fn against the open wizard and publishes the new state.
func (c *Controller) WithBuilder(fn func(*builder.Wizard) error) error {
	c.mu.Lock()
	wizard := c.wizard
	if c.stage != StageBuilder || wizard == nil {
		err := invalidStage("edit the builder", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	c.mu.Unlock()

	err := fn(wizard)
	c.publishState()
	if err != nil && errors.TypeOf(err) == errors.ErrorTypeUserInput {
		return c.reject(err)
	}
	return err
}

// CompleteBuilder finishes the wizard and moves to review.
func (c *Controller) CompleteBuilder() error {
	return c.leaveBuilder(func(w *builder.Wizard) (types.Resume, error) {
		return w.Complete()
	})
}

// SkipBuilder moves the wizard's current data to review without gating.
func (c *Controller) SkipBuilder() error {
	return c.leaveBuilder(func(w *builder.Wizard) (types.Resume, error) {
		return w.SkipToReview(), nil
	})
}

func (c *Controller) leaveBuilder(finish func(*builder.Wizard) (types.Resume, error)) error {
	c.mu.Lock()
	if c.stage != StageBuilder || c.wizard == nil {
		err := invalidStage("finish the builder", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	resume, err := finish(c.wizard)
	if err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(Event{Kind: EventState, State: snap})
		return c.reject(err)
	}
	c.wizard = nil
	c.enterReviewLocked(resume, "", nil)
	score := validation.ValidateResume(*c.resume).OverallScore
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.recordScore(score)
	c.publish(Event{Kind: EventState, State: snap})
	return nil
}

// CancelBuilder abandons the wizard, clears its draft and returns to landing.
func (c *Controller) CancelBuilder() error {
	c.mu.Lock()
	if c.stage != StageBuilder {
		err := invalidStage("cancel the builder", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	if c.wizard != nil {
		c.wizard.Cancel()
		c.wizard = nil
	}
	c.setStageLocked(StageLanding)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventState, State: snap})
	return nil
}

// UpdateResume edits the résumé under review. Validation is recomputed from
// the edited values.
func (c *Controller) UpdateResume(fn func(*types.Resume)) error {
	c.mu.Lock()
	if c.stage != StageReview || c.resume == nil {
		err := invalidStage("edit the résumé", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	fn(c.resume)
	c.resume.EnsureIDs()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventState, State: snap})
	return nil
}

// Validation scores the current résumé. ok is false when there is none.
func (c *Controller) Validation() (v types.ResumeValidation, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resume == nil {
		return types.ResumeValidation{}, false
	}
	return validation.ValidateResume(*c.resume), true
}

// Continue moves from review to job description once the score allows it.
func (c *Controller) Continue() error {
	c.mu.Lock()
	if c.stage != StageReview || c.resume == nil {
		err := invalidStage("continue", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	v := validation.ValidateResume(*c.resume)
	if !validation.ReadyToOptimize(v) {
		c.mu.Unlock()
		return c.reject(errors.NewUserInputError(errors.ErrCodeScoreTooLow,
			fmt.Sprintf("Your résumé scores %d%%. Complete more fields to reach %d%% before continuing",
				v.OverallScore, validation.MinReadyScore), nil).
			WithContext("score", v.OverallScore))
	}
	c.setStageLocked(StageJobDescription)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.recordScore(v.OverallScore)
	c.publish(Event{Kind: EventState, State: snap})
	return nil
}

// CancelReview discards the parsed résumé and returns to landing.
func (c *Controller) CancelReview() error {
	c.mu.Lock()
	if c.stage != StageReview {
		err := invalidStage("cancel the review", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	c.clearUploadLocked()
	c.setStageLocked(StageLanding)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventState, State: snap})
	return nil
}

// BackToReview returns from job description to review, keeping the entered job.
func (c *Controller) BackToReview() error {
	c.mu.Lock()
	if c.stage != StageJobDescription {
		err := invalidStage("go back to the review", c.stage)
		c.mu.Unlock()
		return c.reject(err)
	}
	c.setStageLocked(StageReview)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(Event{Kind: EventState, State: snap})
	return nil
}

// Restart returns to landing from any stage, abandoning running operations
// and clearing all session data.
func (c *Controller) Restart() {
	c.mu.Lock()
	old := c.invalidateLocked()
	c.clearUploadLocked()
	c.job = OptimizeInput{}
	c.optimized, c.cover, c.keywords = nil, nil, nil
	c.progress = Progress{}
	c.wizard = nil
	c.setStageLocked(StageLanding)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	disconnect(old)
	c.pacer.Skip()
	c.publish(Event{Kind: EventState, State: snap})
}

// SkipAnimation ends any pending display delay. Network operations are unaffected.
func (c *Controller) SkipAnimation() {
	c.pacer.Skip()
}

// Close abandons running operations and closes the open channel.
func (c *Controller) Close() {
	c.mu.Lock()
	old := c.invalidateLocked()
	c.mu.Unlock()
	disconnect(old)
	c.pacer.Skip()
}

func invalidStage(action string, stage Stage) error {
	return errors.NewUserInputError(errors.ErrCodeInvalidStage,
		fmt.Sprintf("Cannot %s during the %s stage", action, stage), nil).
		WithContext("stage", string(stage))
}

// reject reports an input error as a notification without changing stage.
func (c *Controller) reject(err error) error {
	c.logger.Debug("Request rejected", "error", err.Error())
	c.publish(notificationEvent(LevelWarning, errors.UserMessage(err)))
	return err
}

// beginLocked starts a new operation in stage. The previous channel, if any,
// is returned for teardown outside the lock.
func (c *Controller) beginLocked(stage Stage) (uint64, Channel) {
	old := c.invalidateLocked()
	c.progress = Progress{}
	c.setStageLocked(stage)
	return c.gen, old
}

func (c *Controller) invalidateLocked() Channel {
	c.gen++
	close(c.genDone)
	c.genDone = make(chan struct{})
	old := c.ch
	c.ch = nil
	return old
}

func (c *Controller) attach(gen uint64, ch Channel) (<-chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil, false
	}
	c.ch = ch
	return c.genDone, true
}

func (c *Controller) detach(ch Channel) {
	c.mu.Lock()
	if c.ch == ch {
		c.ch = nil
	}
	c.mu.Unlock()
	disconnect(ch)
}

func disconnect(ch Channel) {
	if ch != nil {
		_ = ch.Disconnect()
	}
}

func (c *Controller) current(gen uint64, stage Stage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(gen, stage)
}

func (c *Controller) currentLocked(gen uint64, stage Stage) bool {
	return c.gen == gen && c.stage == stage
}

func (c *Controller) setProgress(gen uint64, stage Stage, p Progress) {
	c.mu.Lock()
	if !c.currentLocked(gen, stage) {
		c.mu.Unlock()
		return
	}
	c.progress = p
	c.mu.Unlock()
	c.publish(Event{Kind: EventProgress, Progress: &p})
}

func (c *Controller) setStageLocked(to Stage) {
	from := c.stage
	c.stage = to
	if from == to {
		return
	}
	c.logger.Info("Session stage changed", "from", string(from), "to", string(to))
	if c.opts.Recorder != nil {
		c.opts.Recorder.RecordSessionTransition(context.Background(), string(from), string(to))
	}
}

func (c *Controller) enterReviewLocked(r types.Resume, extractedText string, warnings []string) {
	r.EnsureIDs()
	original := r.Clone()
	working := r.Clone()
	c.original = &original
	c.resume = &working
	c.extractedText = extractedText
	c.warnings = slices.Clone(warnings)
	c.setStageLocked(StageReview)
}

func (c *Controller) clearUploadLocked() {
	c.fileName = ""
	c.original = nil
	c.resume = nil
	c.extractedText = ""
	c.warnings = nil
}

func (c *Controller) recordScore(score int) {
	if c.opts.Recorder != nil {
		c.opts.Recorder.RecordValidationScore(context.Background(), score)
	}
}

func (c *Controller) snapshotLocked() *Snapshot {
	s := &Snapshot{
		Stage:          c.stage,
		FileName:       c.fileName,
		ExtractedText:  c.extractedText,
		Warnings:       slices.Clone(c.warnings),
		JobDescription: c.job.JobDescription,
		JobTitle:       c.job.JobTitle,
		Company:        c.job.Company,
		JobKeywords:    slices.Clone(c.keywords),
		Progress:       c.progress,
	}
	if c.original != nil {
		r := c.original.Clone()
		s.OriginalResume = &r
	}
	if c.resume != nil {
		r := c.resume.Clone()
		v := validation.ValidateResume(r)
		s.Resume = &r
		s.Validation = &v
		s.ScoreLabel = validation.ScoreLabel(v.OverallScore)
		s.CanContinue = c.stage == StageReview && validation.ReadyToOptimize(v)
	}
	if c.optimized != nil {
		o := *c.optimized
		o.Resume = c.optimized.Resume.Clone()
		o.Changes = slices.Clone(c.optimized.Changes)
		o.MatchedKeywords = slices.Clone(c.optimized.MatchedKeywords)
		o.SkillGaps = slices.Clone(c.optimized.SkillGaps)
		s.Optimized = &o
	}
	if c.cover != nil {
		cl := *c.cover
		cl.Body = slices.Clone(c.cover.Body)
		s.CoverLetter = &cl
	}
	if c.stage == StageBuilder && c.wizard != nil {
		step := c.wizard.Step()
		s.Builder = &BuilderState{
			Step:       step.String(),
			StepIndex:  int(step),
			StepCount:  builder.StepCount,
			Title:      step.Title(),
			CanProceed: c.wizard.CanProceed(),
			Missing:    c.wizard.Missing(),
			Resume:     c.wizard.Resume(),
		}
	}
	return s
}

func (c *Controller) publishState() {
	c.publish(Event{Kind: EventState, State: c.Snapshot()})
}

func (c *Controller) publish(events ...Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		for _, ev := range events {
			select {
			case sub <- ev:
			default:
				c.logger.Debug("Subscriber is lagging, event dropped", "kind", string(ev.Kind))
			}
		}
	}
}

func notificationEvent(level Level, message string) Event {
	return Event{
		Kind:         EventNotification,
		Notification: &Notification{Level: level, Message: message, Time: time.Now()},
	}
}
