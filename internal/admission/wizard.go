package admission

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

// Step is a wizard position, numbered from one.
type Step int

const (
	StepFamily Step = iota + 1
	StepStudent
	StepTransport
	StepPreview
	StepConfirm
)

var stepNames = map[Step]string{
	StepFamily:    "family",
	StepStudent:   "student",
	StepTransport: "transport",
	StepPreview:   "preview",
	StepConfirm:   "confirm",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "step-" + strconv.Itoa(int(s))
}

// Valid reports whether s is one of the five steps.
func (s Step) Valid() bool {
	return s >= StepFamily && s <= StepConfirm
}

// ParseStep accepts a step number or name.
func ParseStep(raw string) (Step, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		s := Step(n)
		return s, s.Valid()
	}
	for s, name := range stepNames {
		if name == raw {
			return s, true
		}
	}
	return 0, false
}

// Submitter sends a finished application upstream.
type Submitter interface {
	SubmitAdmission(ctx context.Context, payload interface{}) (models.Row, error)
}

// Application is the payload submitted for a completed wizard.
type Application struct {
	Family    FamilyForm    `json:"family"`
	Student   StudentForm   `json:"student"`
	Transport TransportForm `json:"transport"`
	Confirm   ConfirmForm   `json:"confirm"`
	Fees      FeeBreakdown  `json:"fees"`
}

// StepState describes one entry of the step indicator.
type StepState struct {
	Step      Step   `json:"step"`
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Completed bool   `json:"completed"`
}

// Snapshot is the render state of the wizard.
type Snapshot struct {
	CurrentStep Step              `json:"current_step"`
	CurrentName string            `json:"current_name"`
	MaxReached  Step              `json:"max_reached_step"`
	Steps       []StepState       `json:"steps"`
	Family      *FamilyForm       `json:"family,omitempty"`
	Student     *StudentForm      `json:"student,omitempty"`
	Transport   *TransportForm    `json:"transport,omitempty"`
	Confirm     *ConfirmForm      `json:"confirm,omitempty"`
	Fees        FeeBreakdown      `json:"fees"`
	Errors      map[string]string `json:"errors,omitempty"`
	Submitting  bool              `json:"submitting"`
}

// Wizard is the linear admission form. Forward movement only happens by
// saving the current step; completed steps can be revisited.
type Wizard struct {
	validate *validator.Validate

	mu         sync.Mutex
	current    Step
	maxReached Step
	family     *FamilyForm
	student    *StudentForm
	transport  *TransportForm
	confirm    *ConfirmForm
	errs       map[string]string
	submitting bool
}

// NewWizard creates a wizard on the first step.
func NewWizard(validate *validator.Validate) *Wizard {
	if validate == nil {
		validate = NewValidator()
	}
	return &Wizard{validate: validate, current: StepFamily, maxReached: StepFamily}
}

// SaveStep validates form and stores it for step, then moves to the next
// step. Steps past the furthest reached one are locked.
func (w *Wizard) SaveStep(step Step, form interface{}) error {
	if !step.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown step")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if step > w.maxReached {
		return appErrors.ErrStepLocked
	}

	if step != StepPreview {
		if form == nil {
			return appErrors.Clone(appErrors.ErrValidation, "step form is required")
		}
		if err := w.validate.Struct(form); err != nil {
			msgs := validationMessages(err)
			w.errs = msgs
			return appErrors.WithFields(appErrors.ErrValidation, msgs)
		}
		if err := w.storeLocked(step, form); err != nil {
			return err
		}
	}

	w.errs = nil
	w.current = step
	w.advanceLocked()
	return nil
}

// Next advances when the current step is complete.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.completedLocked(w.current) {
		return appErrors.Clone(appErrors.ErrValidation, "complete the current step first")
	}
	w.advanceLocked()
	return nil
}

// Back moves one step back. It never changes the furthest reached step.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current > StepFamily {
		w.current--
	}
}

// GoTo jumps to a step that has already been reached.
func (w *Wizard) GoTo(step Step) error {
	if !step.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown step")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if step > w.maxReached {
		return appErrors.ErrStepLocked
	}
	w.current = step
	return nil
}

// Fees recomputes the breakdown from the saved forms.
func (w *Wizard) Fees() FeeBreakdown {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feesLocked()
}

// Snapshot returns the render state.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	steps := make([]StepState, 0, int(StepConfirm))
	for s := StepFamily; s <= StepConfirm; s++ {
		steps = append(steps, StepState{
			Step:      s,
			Name:      s.String(),
			Reachable: s <= w.maxReached,
			Completed: w.completedLocked(s),
		})
	}

	snap := Snapshot{
		CurrentStep: w.current,
		CurrentName: w.current.String(),
		MaxReached:  w.maxReached,
		Steps:       steps,
		Fees:        w.feesLocked(),
		Submitting:  w.submitting,
	}
	if w.family != nil {
		f := *w.family
		snap.Family = &f
	}
	if w.student != nil {
		s := *w.student
		s.Documents = append([]string(nil), w.student.Documents...)
		snap.Student = &s
	}
	if w.transport != nil {
		t := *w.transport
		snap.Transport = &t
	}
	if w.confirm != nil {
		c := *w.confirm
		snap.Confirm = &c
	}
	if len(w.errs) > 0 {
		snap.Errors = appErrors.MergeFields(w.errs)
	}
	return snap
}

// Submit sends the application. A 422 from the backend is merged into the
// field errors and the wizard returns to the earliest step they concern. On
// success the wizard starts over.
func (w *Wizard) Submit(ctx context.Context, s Submitter) (models.Row, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, appErrors.ErrBusy
	}
	if w.current != StepConfirm || w.confirm == nil || !w.confirm.AcceptTerms {
		w.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrStepLocked, "confirm the application before submitting")
	}
	app := Application{
		Family:    *w.family,
		Student:   *w.student,
		Transport: *w.transport,
		Confirm:   *w.confirm,
		Fees:      w.feesLocked(),
	}
	w.submitting = true
	w.mu.Unlock()

	row, err := s.SubmitAdmission(ctx, app)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && errors.Is(err, appErrors.ErrServerValidation) {
			w.errs = appErrors.MergeFields(w.errs, appErr.Fields)
			w.current = earliestStep(appErr.Fields, w.current)
			return nil, appErrors.WithFields(appErrors.ErrServerValidation, w.errs)
		}
		return nil, err
	}

	w.resetLocked()
	return row, nil
}

// Reset discards every saved step.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Wizard) resetLocked() {
	w.current = StepFamily
	w.maxReached = StepFamily
	w.family = nil
	w.student = nil
	w.transport = nil
	w.confirm = nil
	w.errs = nil
}

func (w *Wizard) storeLocked(step Step, form interface{}) error {
	switch f := form.(type) {
	case *FamilyForm:
		if step == StepFamily {
			cp := *f
			cp.ParentCategory = ParseCategory(string(f.ParentCategory))
			w.family = &cp
			return nil
		}
	case *StudentForm:
		if step == StepStudent {
			cp := *f
			cp.Documents = append([]string(nil), f.Documents...)
			w.student = &cp
			return nil
		}
	case *TransportForm:
		if step == StepTransport {
			cp := *f
			if !cp.Required {
				cp.RouteID = 0
				cp.PickUp = ""
				cp.Fee = 0
			}
			w.transport = &cp
			return nil
		}
	case *ConfirmForm:
		if step == StepConfirm {
			cp := *f
			w.confirm = &cp
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "form does not belong to step "+step.String())
}

func (w *Wizard) advanceLocked() {
	if w.current < StepConfirm {
		w.current++
	}
	if w.current > w.maxReached {
		w.maxReached = w.current
	}
}

func (w *Wizard) completedLocked(step Step) bool {
	switch step {
	case StepFamily:
		return w.family != nil
	case StepStudent:
		return w.student != nil
	case StepTransport:
		return w.transport != nil
	case StepPreview:
		return w.family != nil && w.student != nil && w.transport != nil
	case StepConfirm:
		return w.confirm != nil && w.confirm.AcceptTerms
	default:
		return false
	}
}

func (w *Wizard) feesLocked() FeeBreakdown {
	var (
		base      Money
		category  = CategoryNormal
		transport Money
	)
	if w.student != nil {
		base = w.student.BaseFee
	}
	if w.family != nil {
		category = w.family.ParentCategory
	}
	if w.transport != nil && w.transport.Required {
		transport = w.transport.Fee
	}
	return CalculateFees(base, category, transport)
}

func earliestStep(fields map[string]string, fallback Step) Step {
	best := Step(0)
	for name := range fields {
		if s, ok := fieldStep[name]; ok && (best == 0 || s < best) {
			best = s
		}
	}
	if best == 0 {
		return fallback
	}
	return best
}
