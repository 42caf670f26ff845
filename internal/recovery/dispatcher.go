// Package recovery dispatches category-specific remediation for failed
// operations. Collaborators register ordered (predicate, action) rules; the
// first rule whose predicate matches the failing command wins, and recovery
// is attempted at most once per error event.
package recovery

import (
	"fmt"
	"log/slog"
	"sync"
)

// Outcome is the terminal recovery state of an error event.
type Outcome int

const (
	NotAttempted Outcome = iota
	Recovered
	Unrecovered
)

func (o Outcome) String() string {
	switch o {
	case Recovered:
		return "recovered"
	case Unrecovered:
		return "unrecovered"
	default:
		return "not-attempted"
	}
}

// Rule pairs a predicate over the failing command with a remediation action.
// Actions must be idempotent: running one when its precondition is already
// resolved is a no-op, not an error.
type Rule struct {
	Name   string
	Match  func(command string) bool
	Action func() error
}

// Dispatcher evaluates rules in registration order and records exactly one
// outcome per error event. It never retries the original failing operation;
// that decision belongs to the caller after observing the outcome.
type Dispatcher struct {
	mu       sync.Mutex
	rules    []Rule
	outcomes map[string]Outcome
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{outcomes: make(map[string]Outcome)}
}

// Register appends a rule. Order matters: earlier rules win ties.
func (d *Dispatcher) Register(rule Rule) error {
	if rule.Match == nil || rule.Action == nil {
		return fmt.Errorf("recovery: rule %q needs both a matcher and an action", rule.Name)
	}
	d.mu.Lock()
	d.rules = append(d.rules, rule)
	d.mu.Unlock()
	return nil
}

// Attempt runs recovery for the error event identified by errorID. A repeat
// call for the same event is a no-op returning the recorded outcome. If no
// rule matches, the event is Unrecovered with no side effects.
func (d *Dispatcher) Attempt(errorID, command string) Outcome {
	d.mu.Lock()
	if prior, done := d.outcomes[errorID]; done {
		d.mu.Unlock()
		return prior
	}
	rule, matched := d.match(command)
	d.mu.Unlock()

	var outcome Outcome
	if !matched {
		outcome = Unrecovered
		slog.Debug("recovery: no rule matched", "error_id", errorID, "command", command)
	} else if err := rule.Action(); err != nil {
		outcome = Unrecovered
		slog.Warn("recovery: action failed",
			"error_id", errorID, "rule", rule.Name, "error", err)
	} else {
		outcome = Recovered
		slog.Info("recovery: action succeeded", "error_id", errorID, "rule", rule.Name)
	}

	d.mu.Lock()
	// A concurrent attempt may have recorded first; the earliest wins so the
	// event transitions exactly once.
	if prior, done := d.outcomes[errorID]; done {
		d.mu.Unlock()
		return prior
	}
	d.outcomes[errorID] = outcome
	d.mu.Unlock()
	return outcome
}

// OutcomeOf reports the recorded outcome for an event, or NotAttempted.
func (d *Dispatcher) OutcomeOf(errorID string) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcomes[errorID]
}

func (d *Dispatcher) match(command string) (Rule, bool) {
	for _, r := range d.rules {
		if r.Match(command) {
			return r, true
		}
	}
	return Rule{}, false
}
