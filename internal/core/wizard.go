package core

// wizard.go drives one import through its steps.
//
// The Wizard owns a single ImportSession. Every operation checks the current
// step against the transition table first, then its guard; a rejected
// operation returns a *TransitionError and leaves the session untouched.
//
// StartImport returns as soon as the session enters Importing. Dispatch runs
// in the background and moves the session to Success or Failed. Progress is
// broadcast to subscribers until then.
//
// Closing while Importing cancels the import context: in-flight creates are
// aborted, rows not yet dispatched are never sent, and the outcome is
// discarded without a notification.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/google/uuid"
)

var (
	// ErrTransitionNotAllowed matches every *TransitionError.
	ErrTransitionNotAllowed = errors.New("transition not allowed")

	ErrNoFile         = errors.New("no file provided")
	ErrEmptyFile      = errors.New("csv file is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrRowErrors      = errors.New("row errors block import")
)

// WizardEvent is an operation applied to a wizard.
type WizardEvent string

const (
	EventSelectFile  WizardEvent = "select_file"
	EventValidate    WizardEvent = "validate"
	EventNext        WizardEvent = "next"
	EventBack        WizardEvent = "back"
	EventStartImport WizardEvent = "start_import"
	EventClose       WizardEvent = "close"
)

// transitions lists the events each step accepts. Guards are checked by the
// operation itself.
var transitions = map[WizardStep][]WizardEvent{
	StepSelectFile: {EventSelectFile, EventValidate, EventNext, EventClose},
	StepPreview:    {EventValidate, EventNext, EventStartImport, EventBack, EventClose},
	StepImporting:  {EventClose},
	StepSuccess:    {EventClose},
	StepFailed:     {EventClose},
}

// Allows reports whether step accepts event.
func (s WizardStep) Allows(event WizardEvent) bool {
	return slices.Contains(transitions[s], event)
}

// TransitionError is returned for an operation the current step rejects or
// whose guard fails.
type TransitionError struct {
	From  WizardStep
	Event WizardEvent
	Err   error // failed guard, nil when the step does not accept the event
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transition not allowed: %s from %s", e.Event, e.From)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrTransitionNotAllowed
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Importer runs the persistence phase. *Gateway implements it.
type Importer interface {
	ImportRows(ctx context.Context, ic ImportContext, records []ProcessRecord, onProgress ProgressCallback) ImportOutcome
}

// WizardConfig holds per-wizard policy.
type WizardConfig struct {
	Policy        ScoreErrorPolicy
	ImportTimeout time.Duration // zero means no limit
	Now           func() time.Time
}

// Wizard is the import state machine for one session.
type Wizard struct {
	importer  Importer
	emitter   *NotificationEmitter
	validator *SchemaValidator
	cfg       WizardConfig
	ic        ImportContext
	logger    *slog.Logger

	mu       sync.RWMutex
	session  *ImportSession
	progress ImportProgress
	cancel   context.CancelFunc
	done     chan struct{}

	listenerMu      sync.Mutex
	listeners       []chan ImportProgress
	listenersClosed bool
}

// NewWizard opens a wizard in StepSelectFile. An empty ic.SessionID is
// replaced with a new UUID.
func NewWizard(ic ImportContext, importer Importer, emitter *NotificationEmitter, cfg WizardConfig) *Wizard {
	if ic.SessionID == "" {
		ic.SessionID = uuid.NewString()
	}
	requested := cfg.Policy
	if !requested.Valid() {
		cfg.Policy = ScorePolicyWarn
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	w := &Wizard{
		importer:  importer,
		emitter:   emitter,
		validator: NewSchemaValidator(),
		cfg:       cfg,
		ic:        ic,
		session:   newImportSession(ic.SessionID, cfg.Now()),
	}
	w.logger = logging.FromContext(WithImportContext(context.Background(), ic))
	if requested != "" && requested != cfg.Policy {
		w.logger.Warn("unknown score error policy, using warn", "policy", requested)
	}
	w.progress.Step = StepSelectFile
	return w
}

// ID returns the session id.
func (w *Wizard) ID() string {
	return w.ic.SessionID
}

// ImportContext returns the context the wizard imports under.
func (w *Wizard) ImportContext() ImportContext {
	return w.ic
}

// CurrentStep returns the current step.
func (w *Wizard) CurrentStep() WizardStep {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session.Step
}

// Report returns the current validation report.
func (w *Wizard) Report() ValidationReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session.Report
}

// Result returns a copy of the import result, or nil before the import ends.
func (w *Wizard) Result() *ImportResult {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.session.Result == nil {
		return nil
	}
	res := *w.session.Result
	return &res
}

// LastActivity returns when the session last changed.
func (w *Wizard) LastActivity() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session.UpdatedAt
}

// Snapshot returns a copy of all observable state.
func (w *Wizard) Snapshot() WizardSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := w.session
	blocked := s.Report.BlocksImport(w.cfg.Policy)
	snap := WizardSnapshot{
		ID:        s.ID,
		Step:      s.Step,
		Headers:   slices.Clone(s.Headers),
		Rows:      slices.Clone(s.Rows),
		RowCount:  len(s.Rows),
		Report:    s.Report,
		Messages:  s.messages(),
		CanImport: s.Step == StepPreview && blocked == nil,
		Progress:  w.progress,
		Failure:   s.Failure,
		UpdatedAt: s.UpdatedAt,
	}
	snap.CanAdvance = (s.Step == StepSelectFile && w.previewGuard() == nil) || snap.CanImport
	if s.File != nil {
		snap.FileName = s.File.Name
	}
	if s.Result != nil {
		res := *s.Result
		snap.Result = &res
	}
	return snap
}

// SelectFile parses and validates f and stores the outcome in the session.
// A file that cannot be parsed is recorded on the session rather than
// returned; the wizard then refuses Next.
func (w *Wizard) SelectFile(f FileHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.check(EventSelectFile); err != nil {
		return err
	}

	s := w.session
	file := f
	s.File = &file
	s.clearData()

	res, err := ParseFile(f)
	if err != nil {
		s.FormatErr = err
		w.logger.Info("file rejected", "file", f.Name, "size", f.Size, "error", err)
	} else {
		s.Headers = res.Headers
		s.Rows = res.Rows
		s.Report = w.validator.Validate(res.Headers, res.Rows)
		w.logger.Info("file parsed",
			"file", f.Name,
			"rows", len(res.Rows),
			"missing_columns", len(s.Report.MissingColumns),
			"row_errors", len(s.Report.RowErrors),
		)
	}

	w.touch()
	return nil
}

// Validate recomputes the report from the current rows.
func (w *Wizard) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.check(EventValidate); err != nil {
		return err
	}

	s := w.session
	if s.parsed() {
		s.Report = w.validator.Validate(s.Headers, s.Rows)
	} else {
		s.Report = ValidationReport{}
	}
	w.touch()
	return nil
}

// Next advances SelectFile to Preview, or starts the import from Preview.
// The step is read and acted on under one lock, so a concurrent Back cannot
// turn a Preview Next into an import from SelectFile.
func (w *Wizard) Next() error {
	w.mu.Lock()

	if err := w.check(EventNext); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.session.Step == StepPreview {
		launch, err := w.beginImport(context.Background(), EventNext)
		w.mu.Unlock()
		if err != nil {
			return err
		}
		launch()
		return nil
	}
	defer w.mu.Unlock()

	if err := w.previewGuard(); err != nil {
		return &TransitionError{From: StepSelectFile, Event: EventNext, Err: err}
	}

	w.session.Step = StepPreview
	w.touch()
	return nil
}

// Back returns from Preview to SelectFile. Rows and report are cleared; the
// file reference is kept, but a file must be selected again before Next.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.check(EventBack); err != nil {
		return err
	}

	w.session.clearData()
	w.session.Step = StepSelectFile
	w.touch()
	return nil
}

// StartImport moves Preview to Importing and dispatches the rows in the
// background. ctx supplies values only; use Close to cancel the import.
func (w *Wizard) StartImport(ctx context.Context) error {
	return w.startImport(ctx, EventStartImport)
}

// NextImport is Next restricted to its Preview leg: it starts the import or
// fails, and never moves SelectFile to Preview. Callers that must reserve
// resources before an import, like the HTTP import limiter, use it.
func (w *Wizard) NextImport(ctx context.Context) error {
	return w.startImport(ctx, EventNext)
}

func (w *Wizard) startImport(ctx context.Context, event WizardEvent) error {
	w.mu.Lock()
	if err := w.check(event); err != nil {
		w.mu.Unlock()
		return err
	}
	launch, err := w.beginImport(ctx, event)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	launch()
	return nil
}

// beginImport moves Preview to Importing. w.mu must be held. The returned
// launch func announces the import and starts dispatch; call it after
// unlocking.
func (w *Wizard) beginImport(ctx context.Context, event WizardEvent) (launch func(), err error) {
	s := w.session
	if s.Step != StepPreview {
		return nil, &TransitionError{From: s.Step, Event: event}
	}
	if err := s.Report.BlocksImport(w.cfg.Policy); err != nil {
		return nil, &TransitionError{From: s.Step, Event: event, Err: err}
	}

	records := RecordsFromRows(s.Rows)

	base := context.WithoutCancel(ctx)
	var (
		importCtx context.Context
		cancel    context.CancelFunc
	)
	if w.cfg.ImportTimeout > 0 {
		importCtx, cancel = context.WithTimeout(base, w.cfg.ImportTimeout)
	} else {
		importCtx, cancel = context.WithCancel(base)
	}

	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	s.Step = StepImporting
	w.progress = ImportProgress{Total: len(records), Step: StepImporting}
	progress := w.progress
	w.touch()

	return func() {
		w.logger.Info("import started", "rows", len(records), "policy", w.cfg.Policy)
		w.notifyProgress(progress)
		go w.runImport(importCtx, cancel, records, done)
	}, nil
}

func (w *Wizard) runImport(ctx context.Context, cancel context.CancelFunc, records []ProcessRecord, done chan struct{}) {
	defer close(done)
	defer cancel()

	outcome := w.importer.ImportRows(ctx, w.ic, records, w.onProgress)
	res := outcome.Result()

	w.mu.Lock()
	s := w.session
	if s.Step != StepImporting {
		w.mu.Unlock()
		w.logger.Info("import outcome discarded", "step", s.Step, "succeeded", len(res.Succeeded))
		w.closeListeners()
		return
	}

	var reason string
	switch {
	case outcome.TransportErr != nil:
		reason = "network error"
	case outcome.Cancelled:
		reason = "import timed out"
	}

	s.Result = &res
	if reason != "" {
		s.Step = StepFailed
		s.Failure = FailureMessage(res, reason)
	} else {
		s.Step = StepSuccess
	}
	w.progress.Step = s.Step
	progress := w.progress
	step := s.Step
	w.touch()
	w.mu.Unlock()

	w.logger.Info("import finished",
		"step", step,
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
		"transport_error", outcome.TransportErr,
	)

	w.notifyProgress(progress)
	w.closeListeners()

	notifyCtx := WithImportContext(context.WithoutCancel(ctx), w.ic)
	if step == StepSuccess {
		w.emitter.ImportSucceeded(notifyCtx, res)
	} else {
		w.emitter.ImportFailed(notifyCtx, res, reason)
	}
}

// Close discards the session. Closing an importing wizard cancels the import.
// Closing a closed wizard is a no-op.
func (w *Wizard) Close() error {
	w.mu.Lock()
	s := w.session
	if s.Step == StepClosed {
		w.mu.Unlock()
		return nil
	}

	wasImporting := s.Step == StepImporting
	s.Step = StepClosed
	s.discard()
	w.progress.Step = StepClosed
	cancel := w.cancel
	w.touch()
	w.mu.Unlock()

	w.logger.Info("wizard closed", "was_importing", wasImporting)

	if wasImporting && cancel != nil {
		// runImport closes the listeners once dispatch unwinds.
		cancel()
		return nil
	}
	w.closeListeners()
	return nil
}

// Wait blocks until a started import reaches its terminal step or ctx ends.
// Without a started import it returns the current step immediately.
func (w *Wizard) Wait(ctx context.Context) (WizardStep, error) {
	w.mu.RLock()
	done := w.done
	w.mu.RUnlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return w.CurrentStep(), ctx.Err()
		}
	}
	return w.CurrentStep(), nil
}

// Subscribe returns a channel of progress updates, starting with the current
// state. The channel is closed when the wizard reaches a terminal step or the
// returned cancel function is called.
func (w *Wizard) Subscribe() (<-chan ImportProgress, func()) {
	ch := make(chan ImportProgress, 16)

	w.mu.RLock()
	current := w.progress
	w.mu.RUnlock()
	ch <- current

	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()

	if w.listenersClosed {
		close(ch)
		return ch, func() {}
	}
	w.listeners = append(w.listeners, ch)

	unsubscribe := func() {
		w.listenerMu.Lock()
		defer w.listenerMu.Unlock()
		for i, l := range w.listeners {
			if l == ch {
				w.listeners = append(w.listeners[:i], w.listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// check returns a TransitionError when the current step rejects event.
// Callers hold w.mu.
func (w *Wizard) check(event WizardEvent) error {
	if !w.session.Step.Allows(event) {
		return &TransitionError{From: w.session.Step, Event: event}
	}
	return nil
}

// previewGuard returns why SelectFile cannot advance, or nil. Callers hold w.mu.
func (w *Wizard) previewGuard() error {
	s := w.session
	switch {
	case s.File == nil:
		return ErrNoFile
	case s.FormatErr != nil:
		return s.FormatErr
	case !s.parsed():
		return ErrNoFile
	case s.Report.IsEmpty:
		return ErrEmptyFile
	}
	return nil
}

// touch records session activity. Callers hold w.mu.
func (w *Wizard) touch() {
	w.session.UpdatedAt = w.cfg.Now()
}

func (w *Wizard) onProgress(p ImportProgress) {
	w.mu.Lock()
	if w.session.Step != StepImporting {
		w.mu.Unlock()
		return
	}
	w.progress = p
	w.mu.Unlock()

	w.notifyProgress(p)
}

// notifyProgress sends progress to all listeners, skipping slow ones.
func (w *Wizard) notifyProgress(p ImportProgress) {
	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()

	for _, ch := range w.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

// closeListeners closes all listener channels. Later subscribers receive
// the final state and a closed channel.
func (w *Wizard) closeListeners() {
	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()

	for _, ch := range w.listeners {
		close(ch)
	}
	w.listeners = nil
	w.listenersClosed = true
}
