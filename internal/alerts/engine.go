// internal/alerts/engine.go
// Engine evaluates a small set of compiled rules against a metrics snapshot
// and notifies sinks when a rule transitions from not-firing to firing,
// rather than on every tick while the condition holds.
package alerts

import (
	"fmt"
	"sync"
)

// Sink receives a formatted alert message when a rule fires.
type Sink interface {
    Notify(ruleName, msg string)
}

type rule struct {
    name string
    expr string
    pred Predicate
    firing bool
}

// Engine holds compiled rules and fires sinks on the firing edge only (not
// on every evaluation while a condition remains true), avoiding the paging
// storm a naive "notify every tick" design would cause.
type Engine struct {
    mu    sync.Mutex
    rules []*rule
    sinks []Sink
}

// NewEngine constructs an engine reporting to the given sinks.
func NewEngine(sinks ...Sink) *Engine {
    return &Engine{sinks: sinks}
}

// AddRule compiles expr and registers it under name.
func (e *Engine) AddRule(name, expr string) error {
    pred, err := Compile(expr)
    if err != nil {
        return fmt.Errorf("alerts: rule %q: %w", name, err)
    }
    e.mu.Lock()
    e.rules = append(e.rules, &rule{name: name, expr: expr, pred: pred})
    e.mu.Unlock()
    return nil
}

// Evaluate runs every rule against sample, notifying sinks for rules that
// just started firing. Rules that stop firing are reset silently so a later
// re-trigger pages again.
func (e *Engine) Evaluate(sample map[string]float64) {
    e.mu.Lock()
    rules := append([]*rule(nil), e.rules...)
    sinks := append([]Sink(nil), e.sinks...)
    e.mu.Unlock()

    for _, r := range rules {
        fired := r.pred(sample)
        e.mu.Lock()
        wasFiring := r.firing
        r.firing = fired
        e.mu.Unlock()

        if fired && !wasFiring {
            msg := fmt.Sprintf("%s (%s)", r.name, r.expr)
            for _, s := range sinks {
                s.Notify(r.name, msg)
            }
        }
    }
}
