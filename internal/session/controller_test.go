package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"resumeflow/internal/builder"
	"resumeflow/internal/channel"
	"resumeflow/internal/draft"
	"resumeflow/internal/errors"
	"resumeflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parseCall struct {
	fileName string
	mimeType string
	content  []byte
}

// fakeChannel replays a scripted set of messages once a request is sent.
type fakeChannel struct {
	endpoint   string
	connectErr error
	sendErr    error
	script     []channel.Message
	hold       chan struct{}

	mu           sync.Mutex
	handler      func(channel.Message)
	connected    bool
	disconnects  int
	parse        *parseCall
	optimize     *channel.OptimizeRequest
	emitFinished chan struct{}
}

func (f *fakeChannel) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) OnMessage(handler func(channel.Message)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *fakeChannel) SendParse(fileName, mimeType string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return channel.ErrNotConnected
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.parse = &parseCall{fileName: fileName, mimeType: mimeType, content: content}
	go f.emit()
	return nil
}

func (f *fakeChannel) SendOptimize(req channel.OptimizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return channel.ErrNotConnected
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.optimize = &req
	go f.emit()
	return nil
}

func (f *fakeChannel) emit() {
	defer close(f.emitFinished)
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	for _, msg := range f.script {
		handler(msg)
	}
}

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
	return nil
}

func (f *fakeChannel) sent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parse != nil || f.optimize != nil
}

func (f *fakeChannel) disconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.connected && f.disconnects > 0
}

type fakeFactory struct {
	mu       sync.Mutex
	channels []*fakeChannel
	prepare  func(endpoint string) *fakeChannel
}

func (ff *fakeFactory) create(endpoint string) (Channel, error) {
	ch := ff.prepare(endpoint)
	ch.endpoint = endpoint
	ch.emitFinished = make(chan struct{})
	ff.mu.Lock()
	ff.channels = append(ff.channels, ch)
	ff.mu.Unlock()
	return ch, nil
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.channels)
}

func (ff *fakeFactory) last() *fakeChannel {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.channels[len(ff.channels)-1]
}

func scripted(messages ...channel.Message) *fakeFactory {
	return &fakeFactory{prepare: func(string) *fakeChannel {
		return &fakeChannel{script: messages}
	}}
}

func progressMsg(stage string, percent int) channel.Message {
	return channel.Message{Type: channel.TypeProgress, Stage: stage, Progress: percent, Message: stage + "..."}
}

func resultMsg(t *testing.T, payload any) channel.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return channel.Message{Type: channel.TypeResult, Data: data, Progress: 100}
}

func errorMsg(text string) channel.Message {
	return channel.Message{
		Type:    channel.TypeError,
		Message: text,
		Err:     errors.NewBackendError(errors.ErrCodeBackendFailed, text, nil),
	}
}

func completeResume() types.Resume {
	return types.Resume{
		Contact: types.ContactInfo{Name: "Alex Johnson", Email: "alex@x.com", Phone: "5551234567", Location: "SF"},
		Summary: "Backend engineer with eight years of experience building distributed systems.",
		Experience: []types.Experience{{
			Company: "Acme", Position: "Engineer", StartDate: "2019", EndDate: "Present",
			Description: []string{"Built the billing platform"},
		}},
		Education: []types.Education{{Institution: "MIT", Degree: "BS", Field: "Computer Science"}},
		Skills:    []types.Skill{{Category: "Languages", Items: []string{"Go", "Python"}}},
	}
}

func parseResult(t *testing.T, warnings ...string) channel.Message {
	if warnings == nil {
		warnings = []string{}
	}
	return resultMsg(t, types.ParseResult{Resume: completeResume(), ExtractedText: "raw...", Warnings: warnings})
}

func optimizeResult(t *testing.T) channel.Message {
	r := completeResume()
	r.Summary = "Tailored summary for the role with emphasis on distributed systems."
	return resultMsg(t, types.OptimizeResult{
		OptimizedResume: types.OptimizedResume{
			Resume:          r,
			Changes:         []types.ResumeChange{{Section: "summary", Type: types.ChangeModified, Description: "Focused"}},
			MatchScore:      82,
			MatchedKeywords: []string{"Go"},
		},
		CoverLetter: types.CoverLetter{Greeting: "Dear team,", Body: []string{"Hello"}, Signature: "Alex"},
		JobKeywords: []string{"Go", "Kubernetes"},
	})
}

var pdfUpload = types.Upload{FileName: "resume.pdf", Content: []byte("%PDF-1.7")}

func newController(factory *fakeFactory) *Controller {
	return New(factory.create, Options{MinJobDescription: 50})
}

// drain collects events until the subscription is idle.
func drain(events <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func notifications(events []Event) []Notification {
	var out []Notification
	for _, ev := range events {
		if ev.Kind == EventNotification {
			out = append(out, *ev.Notification)
		}
	}
	return out
}

func toReview(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Parse(context.Background(), pdfUpload))
	require.Equal(t, StageReview, c.Stage())
}

func toJobDescription(t *testing.T, c *Controller) {
	t.Helper()
	toReview(t, c)
	require.NoError(t, c.Continue())
	require.Equal(t, StageJobDescription, c.Stage())
}

func TestParseToReview(t *testing.T) {
	factory := scripted(
		progressMsg("uploading", 10),
		progressMsg("parsing", 60),
		parseResult(t, "Phone number format looks unusual"),
	)
	c := newController(factory)
	events, unsubscribe := c.Subscribe(64)
	defer unsubscribe()

	require.NoError(t, c.Parse(context.Background(), pdfUpload))

	snap := c.Snapshot()
	assert.Equal(t, StageReview, snap.Stage)
	require.NotNil(t, snap.Resume)
	assert.Equal(t, "Alex Johnson", snap.Resume.Contact.Name)
	assert.Equal(t, "raw...", snap.ExtractedText)
	assert.Equal(t, []string{"Phone number format looks unusual"}, snap.Warnings)
	require.NotNil(t, snap.Validation)
	assert.GreaterOrEqual(t, snap.Validation.OverallScore, 50)
	assert.True(t, snap.CanContinue)
	assert.NotEmpty(t, snap.Resume.Experience[0].ID)
	assert.Equal(t, snap.OriginalResume.Experience[0].ID, snap.Resume.Experience[0].ID)

	ch := factory.last()
	assert.Equal(t, "parse", ch.endpoint)
	assert.Equal(t, "resume.pdf", ch.parse.fileName)
	assert.Equal(t, "application/pdf", ch.parse.mimeType, "MIME type detected from the extension")
	assert.True(t, ch.disconnected(), "the channel is closed after the result")

	got := drain(events)
	var stages []Stage
	var percents []int
	for _, ev := range got {
		switch ev.Kind {
		case EventState:
			stages = append(stages, ev.State.Stage)
		case EventProgress:
			percents = append(percents, ev.Progress.Percent)
		}
	}
	assert.Equal(t, []Stage{StageParsing, StageReview}, stages)
	assert.Equal(t, []int{10, 60, 100}, percents)
	notes := notifications(got)
	require.Len(t, notes, 1)
	assert.Equal(t, LevelWarning, notes[0].Level)

	require.NoError(t, c.Continue())
	assert.Equal(t, StageJobDescription, c.Stage())
}

func TestParseRejectsBadInputBeforeNetwork(t *testing.T) {
	tests := []struct {
		name   string
		upload types.Upload
		code   string
	}{
		{"no file", types.Upload{}, errors.ErrCodeNoFile},
		{"empty file", types.Upload{FileName: "resume.pdf"}, errors.ErrCodeEmptyFile},
		{"unsupported type", types.Upload{FileName: "photo.png", Content: []byte("x")}, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := scripted(parseResult(t))
			c := newController(factory)
			events, unsubscribe := c.Subscribe(16)
			defer unsubscribe()

			err := c.Parse(context.Background(), tt.upload)
			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, errors.ErrorTypeUserInput, appErr.Type)
			assert.Equal(t, StageLanding, c.Stage())
			assert.Equal(t, 0, factory.count(), "no channel is opened")
			assert.Len(t, notifications(drain(events)), 1)
		})
	}
}

func TestParseFailuresReturnToLanding(t *testing.T) {
	tests := []struct {
		name    string
		prepare func() *fakeChannel
		message string
	}{
		{
			name:    "backend error",
			prepare: func() *fakeChannel { return &fakeChannel{script: []channel.Message{progressMsg("parsing", 30), errorMsg("Could not read PDF")}} },
			message: "Could not read PDF",
		},
		{
			name: "malformed frame",
			prepare: func() *fakeChannel {
				return &fakeChannel{script: []channel.Message{{
					Type: channel.TypeMalformed,
					Err:  errors.NewProtocolError(errors.ErrCodeMalformedMessage, "Received an unreadable message from the résumé service", nil),
				}}}
			},
			message: "Received an unreadable message from the résumé service",
		},
		{
			name: "connect failure",
			prepare: func() *fakeChannel {
				return &fakeChannel{connectErr: errors.NewTransportError(errors.ErrCodeConnectFailed, "Could not connect to the résumé service", nil)}
			},
			message: "Could not connect to the résumé service",
		},
		{
			name: "invalid result payload",
			prepare: func() *fakeChannel {
				return &fakeChannel{script: []channel.Message{{Type: channel.TypeResult, Data: json.RawMessage(`{"extractedText":"x"}`)}}}
			},
			message: "The résumé service returned an incomplete result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &fakeFactory{prepare: func(string) *fakeChannel { return tt.prepare() }}
			c := newController(factory)
			events, unsubscribe := c.Subscribe(64)
			defer unsubscribe()

			err := c.Parse(context.Background(), pdfUpload)
			require.Error(t, err)

			snap := c.Snapshot()
			assert.Equal(t, StageLanding, snap.Stage)
			assert.Nil(t, snap.Resume, "partial state is discarded")
			assert.Empty(t, snap.FileName)
			assert.True(t, factory.last().disconnected())

			notes := notifications(drain(events))
			require.NotEmpty(t, notes)
			last := notes[len(notes)-1]
			assert.Equal(t, LevelError, last.Level)
			assert.Equal(t, tt.message, last.Message)

			// The session can retry after a failure.
			assert.Equal(t, StageLanding, c.Stage())
		})
	}
}

func TestJobDescriptionLengthBoundary(t *testing.T) {
	factory := &fakeFactory{prepare: func(endpoint string) *fakeChannel {
		if endpoint == "parse" {
			return &fakeChannel{script: []channel.Message{parseResult(t)}}
		}
		return &fakeChannel{script: []channel.Message{optimizeResult(t)}}
	}}
	c := newController(factory)
	toJobDescription(t, c)
	channelsBefore := factory.count()

	err := c.Optimize(context.Background(), OptimizeInput{JobDescription: strings.Repeat("x", 49)})
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeJobTooShort, appErr.Code)
	assert.Equal(t, StageJobDescription, c.Stage(), "49 characters do not leave job description")
	assert.Equal(t, channelsBefore, factory.count(), "rejected before any channel is created")

	err = c.Optimize(context.Background(), OptimizeInput{JobDescription: "  " + strings.Repeat("x", 49) + "  "})
	require.Error(t, err, "surrounding whitespace does not count")

	require.NoError(t, c.Optimize(context.Background(), OptimizeInput{JobDescription: strings.Repeat("x", 50)}))
	assert.Equal(t, StageResults, c.Stage(), "50 characters are accepted")
}

func TestOptimizeToResults(t *testing.T) {
	factory := &fakeFactory{prepare: func(endpoint string) *fakeChannel {
		if endpoint == "parse" {
			return &fakeChannel{script: []channel.Message{parseResult(t)}}
		}
		return &fakeChannel{script: []channel.Message{progressMsg("analyzing", 20), optimizeResult(t)}}
	}}
	c := newController(factory)
	toJobDescription(t, c)

	description := strings.Repeat("We need a Go engineer with Kubernetes experience. ", 2)
	require.NoError(t, c.Optimize(context.Background(), OptimizeInput{JobDescription: description, Company: " Globex "}))

	snap := c.Snapshot()
	assert.Equal(t, StageResults, snap.Stage)
	require.NotNil(t, snap.Optimized)
	assert.Equal(t, 82, snap.Optimized.MatchScore)
	require.NotNil(t, snap.CoverLetter)
	assert.Equal(t, "Dear team,", snap.CoverLetter.Greeting)
	assert.Equal(t, []string{"Go", "Kubernetes"}, snap.JobKeywords)
	assert.Equal(t, "Globex", snap.Company)

	ch := factory.last()
	assert.Equal(t, "optimize", ch.endpoint)
	require.NotNil(t, ch.optimize)
	assert.Equal(t, strings.TrimSpace(description), ch.optimize.JobDescription)
	assert.Equal(t, "Alex Johnson", ch.optimize.Resume.Contact.Name)
	assert.Equal(t, "Globex", ch.optimize.Company)
	assert.True(t, ch.disconnected())

	c.Restart()
	snap = c.Snapshot()
	assert.Equal(t, StageLanding, snap.Stage)
	assert.Nil(t, snap.Resume)
	assert.Nil(t, snap.Optimized)
	assert.Nil(t, snap.CoverLetter)
	assert.Empty(t, snap.JobDescription)
}

func TestOptimizeFailureKeepsResume(t *testing.T) {
	factory := &fakeFactory{prepare: func(endpoint string) *fakeChannel {
		if endpoint == "parse" {
			return &fakeChannel{script: []channel.Message{parseResult(t)}}
		}
		return &fakeChannel{script: []channel.Message{errorMsg("Model overloaded")}}
	}}
	c := newController(factory)
	toJobDescription(t, c)

	description := strings.Repeat("d", 60)
	err := c.Optimize(context.Background(), OptimizeInput{JobDescription: description})
	require.Error(t, err)
	assert.Equal(t, "Model overloaded", errors.UserMessage(err))

	snap := c.Snapshot()
	assert.Equal(t, StageJobDescription, snap.Stage)
	require.NotNil(t, snap.Resume)
	assert.Equal(t, "Alex Johnson", snap.Resume.Contact.Name)
	assert.Equal(t, description, snap.JobDescription, "the user can retry without re-entering data")
}

func TestStaleResultIsIgnoredAfterRestart(t *testing.T) {
	hold := make(chan struct{})
	var held *fakeChannel
	factory := &fakeFactory{prepare: func(string) *fakeChannel {
		held = &fakeChannel{hold: hold, script: []channel.Message{progressMsg("parsing", 50), parseResult(t)}}
		return held
	}}
	c := newController(factory)

	parseErr := make(chan error, 1)
	go func() { parseErr <- c.Parse(context.Background(), pdfUpload) }()

	require.Eventually(t, func() bool {
		return factory.count() == 1 && c.Stage() == StageParsing && factory.last().sent()
	}, 5*time.Second, 5*time.Millisecond)

	c.Restart()
	err := <-parseErr
	assert.True(t, stderrors.Is(err, ErrSuperseded))
	assert.True(t, held.disconnected())

	close(hold)
	<-held.emitFinished

	snap := c.Snapshot()
	assert.Equal(t, StageLanding, snap.Stage, "the late result does not move the session")
	assert.Nil(t, snap.Resume)
	assert.Equal(t, 0, snap.Progress.Percent, "late progress is dropped too")
}

func TestReviewGating(t *testing.T) {
	weak := types.Resume{Contact: types.ContactInfo{Name: "Alex"}}
	factory := scripted(resultMsg(t, types.ParseResult{Resume: weak, Warnings: []string{}}))
	c := newController(factory)
	toReview(t, c)

	v, ok := c.Validation()
	require.True(t, ok)
	assert.Less(t, v.OverallScore, 50)
	assert.False(t, c.Snapshot().CanContinue)

	err := c.Continue()
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeScoreTooLow, appErr.Code)
	assert.Equal(t, StageReview, c.Stage())

	require.NoError(t, c.UpdateResume(func(r *types.Resume) { *r = completeResume() }))
	v, _ = c.Validation()
	assert.Equal(t, 100, v.OverallScore, "validation follows every edit")
	assert.NotEmpty(t, c.Snapshot().Resume.Experience[0].ID, "new entries receive ids")
	assert.Equal(t, "Alex", c.Snapshot().OriginalResume.Contact.Name, "edits never alias the parsed original")

	require.NoError(t, c.Continue())
	require.NoError(t, c.BackToReview())
	assert.Equal(t, StageReview, c.Stage())

	require.NoError(t, c.CancelReview())
	snap := c.Snapshot()
	assert.Equal(t, StageLanding, snap.Stage)
	assert.Nil(t, snap.OriginalResume)
	assert.Empty(t, snap.ExtractedText)
}

func TestLoadEntersReviewWithoutNetwork(t *testing.T) {
	factory := scripted()
	c := newController(factory)

	require.NoError(t, c.Load(completeResume()))
	snap := c.Snapshot()
	assert.Equal(t, StageReview, snap.Stage)
	assert.True(t, snap.CanContinue)
	assert.NotEmpty(t, snap.Resume.Experience[0].ID)
	assert.Zero(t, factory.count())

	err := c.Load(completeResume())
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeInvalidStage, appErr.Code)
}

func TestActionsRequireTheRightStage(t *testing.T) {
	c := newController(scripted())

	assert.Error(t, c.Continue())
	assert.Error(t, c.CancelReview())
	assert.Error(t, c.BackToReview())
	assert.Error(t, c.UpdateResume(func(*types.Resume) {}))
	assert.Error(t, c.Optimize(context.Background(), OptimizeInput{JobDescription: strings.Repeat("x", 60)}))
	assert.Error(t, c.CompleteBuilder())
	assert.Error(t, c.CancelBuilder())
	_, ok := c.Validation()
	assert.False(t, ok)
	assert.Equal(t, StageLanding, c.Stage())
}

func TestBuilderFlow(t *testing.T) {
	store, err := draft.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	c := New(scripted().create, Options{MinJobDescription: 50, Drafts: store, DraftKey: "resumeBuilderDraft"})

	wizard, err := c.StartBuilder()
	require.NoError(t, err)
	assert.Equal(t, StageBuilder, c.Stage())
	require.NotNil(t, c.Snapshot().Builder)
	assert.Equal(t, "contact", c.Snapshot().Builder.Step)

	err = c.CompleteBuilder()
	require.Error(t, err, "an incomplete wizard cannot finish")
	assert.Equal(t, StageBuilder, c.Stage())

	require.NoError(t, c.WithBuilder(func(w *builder.Wizard) error {
		assert.Same(t, wizard, w)
		return w.Update(func(r *types.Resume) { *r = completeResume() })
	}))
	assert.True(t, store.Exists("resumeBuilderDraft"))

	require.NoError(t, c.CompleteBuilder())
	snap := c.Snapshot()
	assert.Equal(t, StageReview, snap.Stage)
	assert.Equal(t, "Alex Johnson", snap.Resume.Contact.Name)
	assert.Empty(t, snap.ExtractedText)
	assert.False(t, store.Exists("resumeBuilderDraft"), "completion clears the draft")
}

func TestBuilderCancelClearsDraft(t *testing.T) {
	store, err := draft.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	c := New(scripted().create, Options{Drafts: store, DraftKey: "resumeBuilderDraft"})

	_, err = c.StartBuilder()
	require.NoError(t, err)
	require.NoError(t, c.WithBuilder(func(w *builder.Wizard) error {
		return w.Update(func(r *types.Resume) { r.Contact.Name = "Draft" })
	}))
	require.NoError(t, c.CancelBuilder())
	assert.Equal(t, StageLanding, c.Stage())
	assert.False(t, store.Exists("resumeBuilderDraft"))
}

func TestSkipAnimationReleasesPacing(t *testing.T) {
	factory := scripted(parseResult(t))
	c := New(factory.create, Options{MinJobDescription: 50, ReviewDelay: time.Hour})

	done := make(chan error, 1)
	go func() { done <- c.Parse(context.Background(), pdfUpload) }()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, StageReview, c.Stage())
			return
		case <-ticker.C:
			c.SkipAnimation()
		case <-timeout:
			t.Fatal("Parse did not finish after skipping the animation")
		}
	}
}

func TestParseContextCancelled(t *testing.T) {
	factory := &fakeFactory{prepare: func(string) *fakeChannel {
		return &fakeChannel{hold: make(chan struct{})}
	}}
	c := newController(factory)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Parse(ctx, pdfUpload)
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
	assert.Equal(t, StageLanding, c.Stage())
	assert.True(t, factory.last().disconnected())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := newController(scripted())
	events, unsubscribe := c.Subscribe(1)
	unsubscribe()
	unsubscribe()
	_, open := <-events
	assert.False(t, open)
	c.Restart()
}
