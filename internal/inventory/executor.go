package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Mode restricts which transitions a batch performs.
type Mode string

const (
	// ModeAuto removes installed packages and restores uninstalled ones.
	ModeAuto Mode = "auto"
	// ModeRemove only removes; selected uninstalled packages are skipped.
	ModeRemove Mode = "remove"
	// ModeRestore only restores; selected installed packages are skipped.
	ModeRestore Mode = "restore"
)

// ParseMode converts user input into a Mode. The empty string is ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeRemove, ModeRestore:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q: must be one of: auto, remove, restore", s)
}

// Permits reports whether a batch in mode m performs action a.
func (m Mode) Permits(a Action) bool {
	switch m {
	case ModeRemove:
		return a == ActionRemove
	case ModeRestore:
		return a == ActionRestore
	default:
		return true
	}
}

// OutcomeKind classifies the result of one package in a batch.
type OutcomeKind string

const (
	OutcomeApplied OutcomeKind = "applied"
	OutcomeFailed  OutcomeKind = "failed"
	// OutcomeSkipped is a rejected transition: no device call was made.
	OutcomeSkipped OutcomeKind = "skipped"
)

// Outcome is the result for a single package.
type Outcome struct {
	Name   string
	Tier   string
	Action Action
	From   Status
	To     Status // status after the action; equals From unless Kind is OutcomeApplied
	Kind   OutcomeKind
	Reason string // why a transition was skipped
	Err    error  // set when Kind is OutcomeFailed
}

// Report collects the outcomes of one batch, in the order they were attempted.
type Report struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes of the given kind.
func (r *Report) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Errors returns the errors of all failed outcomes.
func (r *Report) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Executor applies transitions to packages through a Gateway.
type Executor struct {
	gateway   Gateway
	logger    zerolog.Logger
	onOutcome func(Outcome)
}

// NewExecutor creates an Executor.
func NewExecutor(gw Gateway, logger zerolog.Logger) *Executor {
	return &Executor{gateway: gw, logger: logger}
}

// OnOutcome registers a callback invoked after every package of a batch,
// e.g. to drive a progress bar.
func (e *Executor) OnOutcome(fn func(Outcome)) {
	e.onOutcome = fn
}

// Preflight checks that the device is reachable when the gateway supports it.
// The returned error wraps ErrGatewayUnavailable.
func (e *Executor) Preflight(ctx context.Context) error {
	p, ok := e.gateway.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

// Apply runs the batch: every row of visible whose name is in sel gets the
// transition its status calls for. Selected packages that are not visible
// are not part of the batch. A failure on one package does not stop the
// others. Apply does not modify any inventory; callers record the result
// with Inventory.ApplyReport.
func (e *Executor) Apply(ctx context.Context, visible []Row, sel *Selection, mode Mode) *Report {
	report := &Report{}

	for _, row := range visible {
		if !sel.Contains(row.Name) {
			continue
		}

		t, ok := NextTransition(row.Status)
		if ok && !mode.Permits(t.Action) {
			o := Outcome{
				Name:   row.Name,
				Tier:   row.Tier,
				Action: t.Action,
				From:   row.Status,
				To:     row.Status,
				Kind:   OutcomeSkipped,
				Reason: fmt.Sprintf("%s mode", mode),
			}
			e.record(report, o)
			continue
		}

		e.record(report, e.run(ctx, row.Package, t, ok))
	}

	e.logger.Info().
		Int("applied", report.Count(OutcomeApplied)).
		Int("failed", report.Count(OutcomeFailed)).
		Int("skipped", report.Count(OutcomeSkipped)).
		Msg("batch complete")

	return report
}

// ApplyOne performs a single row action. The action must match the package
// status; removing an unsafe package is skipped like in a batch.
func (e *Executor) ApplyOne(ctx context.Context, pkg Package, action Action) Outcome {
	t, ok := TransitionFor(pkg.Status, action)
	if !ok {
		return Outcome{
			Name:   pkg.Name,
			Tier:   pkg.Tier,
			Action: action,
			From:   pkg.Status,
			To:     pkg.Status,
			Kind:   OutcomeSkipped,
			Reason: fmt.Sprintf("already %s", pkg.Status),
		}
	}
	o := e.run(ctx, pkg, t, true)
	if e.onOutcome != nil {
		e.onOutcome(o)
	}
	return o
}

func (e *Executor) record(r *Report, o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if e.onOutcome != nil {
		e.onOutcome(o)
	}
}

func (e *Executor) run(ctx context.Context, pkg Package, t Transition, known bool) Outcome {
	o := Outcome{
		Name:   pkg.Name,
		Tier:   pkg.Tier,
		Action: t.Action,
		From:   pkg.Status,
		To:     pkg.Status,
	}

	if !known {
		o.Kind = OutcomeSkipped
		o.Reason = fmt.Sprintf("unknown status %q", pkg.Status)
		return o
	}

	if !Allowed(t.Action, pkg.Tier) {
		o.Kind = OutcomeSkipped
		o.Reason = fmt.Sprintf("%s tier cannot be removed", pkg.Tier)
		e.logger.Debug().Str("package", pkg.Name).Str("tier", pkg.Tier).Msg("transition rejected")
		return o
	}

	if err := ctx.Err(); err != nil {
		o.Kind = OutcomeFailed
		o.Err = &ActionError{Name: pkg.Name, Action: t.Action, Err: err}
		return o
	}

	var err error
	switch t.Action {
	case ActionRemove:
		err = e.gateway.Remove(ctx, pkg.Name)
	case ActionRestore:
		err = e.gateway.Restore(ctx, pkg.Name)
	}

	if err != nil {
		o.Kind = OutcomeFailed
		o.Err = &ActionError{Name: pkg.Name, Action: t.Action, Err: err}
		e.logger.Warn().Err(err).Str("package", pkg.Name).Str("action", string(t.Action)).Msg("action failed")
		return o
	}

	o.Kind = OutcomeApplied
	o.To = t.To
	e.logger.Debug().Str("package", pkg.Name).Str("action", string(t.Action)).Msg("action applied")
	return o
}
