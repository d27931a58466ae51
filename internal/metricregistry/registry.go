// Package metricregistry declares how each user metric is computed and which
// activity events can change it.
package metricregistry

import (
	"fmt"
	"regexp"

	"go.uber.org/multierr"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Filter is an extra equality predicate applied to the source rows.
type Filter struct {
	Column string
	Value  any
}

// Definition is the aggregation recipe of a metric.
type Definition struct {
	Key         enums.MetricKey
	Label       string
	Description string
	Source      enums.MetricSource
	Aggregation enums.Aggregation
	// Field is the aggregated column (sum/max/distinctCount/field).
	Field string
	// UserColumn scopes source rows to the user; defaults to user_id.
	UserColumn string
	Filter     *Filter
	Transform  enums.MetricTransform
	// Components are summed for computed metrics.
	Components []enums.MetricKey
}

// Computed reports whether the metric is derived from other metrics.
func (d Definition) Computed() bool {
	return d.Aggregation == enums.AggregationComputed
}

// ScopeColumn returns the column that holds the user id on the source table.
func (d Definition) ScopeColumn() string {
	if d.UserColumn != "" {
		return d.UserColumn
	}
	if d.Source == enums.MetricSourceUsers {
		return "id"
	}
	return "user_id"
}

// EventToMetrics maps an event type to the ordered metric keys it can affect.
type EventToMetrics map[enums.ActivityEventType][]enums.MetricKey

// Registry is the validated, read-only metric table.
type Registry struct {
	defs   map[enums.MetricKey]Definition
	order  []enums.MetricKey
	events EventToMetrics
}

// New validates the table and returns a registry. All problems are reported together.
func New(defs []Definition, eventMap EventToMetrics) (*Registry, error) {
	r := &Registry{
		defs:   make(map[enums.MetricKey]Definition, len(defs)),
		events: make(EventToMetrics, len(eventMap)),
	}
	var errs error
	for _, def := range defs {
		if def.Key == "" {
			errs = multierr.Append(errs, fmt.Errorf("metric with label %q has no key", def.Label))
			continue
		}
		if _, dup := r.defs[def.Key]; dup {
			errs = multierr.Append(errs, fmt.Errorf("metric %s defined twice", def.Key))
			continue
		}
		errs = multierr.Append(errs, validateDefinition(def))
		r.defs[def.Key] = def
		r.order = append(r.order, def.Key)
	}

	for _, def := range defs {
		for _, component := range def.Components {
			if _, ok := r.defs[component]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("metric %s references unknown component %s", def.Key, component))
			}
		}
	}
	errs = multierr.Append(errs, r.detectCycles())

	for eventType, keys := range eventMap {
		if !eventType.IsValid() {
			errs = multierr.Append(errs, fmt.Errorf("event map references unknown event type %q", eventType))
		}
		for _, key := range keys {
			if _, ok := r.defs[key]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("event %s references unknown metric %s", eventType, key))
			}
		}
		r.events[eventType] = append([]enums.MetricKey(nil), keys...)
	}

	if errs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, errs, "invalid metric registry")
	}
	return r, nil
}

func validateDefinition(def Definition) error {
	var errs error
	if !def.Aggregation.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("metric %s has unknown aggregation %q", def.Key, def.Aggregation))
	}
	if def.Computed() {
		if len(def.Components) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("computed metric %s has no components", def.Key))
		}
		return errs
	}
	if len(def.Components) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("metric %s lists components but is not computed", def.Key))
	}
	if !def.Source.IsValid() || def.Source == enums.MetricSourceDerived {
		errs = multierr.Append(errs, fmt.Errorf("metric %s has invalid source %q", def.Key, def.Source))
	}
	switch def.Aggregation {
	case enums.AggregationSum, enums.AggregationMax, enums.AggregationDistinctCount, enums.AggregationField:
		if def.Field == "" {
			errs = multierr.Append(errs, fmt.Errorf("metric %s needs a field for %s", def.Key, def.Aggregation))
		}
	}
	for _, column := range []string{def.Field, def.UserColumn, filterColumn(def.Filter)} {
		if column != "" && !identifierPattern.MatchString(column) {
			errs = multierr.Append(errs, fmt.Errorf("metric %s uses invalid column %q", def.Key, column))
		}
	}
	return errs
}

func filterColumn(f *Filter) string {
	if f == nil {
		return ""
	}
	return f.Column
}

// detectCycles runs a DFS over computed metric components.
func (r *Registry) detectCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[enums.MetricKey]int, len(r.defs))
	var errs error
	var visit func(key enums.MetricKey, path []enums.MetricKey)
	visit = func(key enums.MetricKey, path []enums.MetricKey) {
		switch state[key] {
		case visiting:
			errs = multierr.Append(errs, fmt.Errorf("computed metric cycle: %v", append(path, key)))
			return
		case done:
			return
		}
		state[key] = visiting
		for _, component := range r.defs[key].Components {
			if _, ok := r.defs[component]; ok {
				visit(component, append(path, key))
			}
		}
		state[key] = done
	}
	for _, key := range r.order {
		if state[key] == unvisited {
			visit(key, nil)
		}
	}
	return errs
}

// MetricsAffectedBy returns the metrics an event type can change; empty for unmapped types.
func (r *Registry) MetricsAffectedBy(eventType enums.ActivityEventType) []enums.MetricKey {
	keys := r.events[eventType]
	out := make([]enums.MetricKey, len(keys))
	copy(out, keys)
	return out
}

// DefinitionOf returns the recipe for key.
func (r *Registry) DefinitionOf(key enums.MetricKey) (Definition, bool) {
	def, ok := r.defs[key]
	return def, ok
}

// Keys returns every registered metric in declaration order.
func (r *Registry) Keys() []enums.MetricKey {
	out := make([]enums.MetricKey, len(r.order))
	copy(out, r.order)
	return out
}

// ResolveOrder expands keys so every computed metric follows its components.
// Unknown keys are skipped.
func (r *Registry) ResolveOrder(keys []enums.MetricKey) []enums.MetricKey {
	seen := make(map[enums.MetricKey]bool, len(keys))
	var out []enums.MetricKey
	var visit func(key enums.MetricKey)
	visit = func(key enums.MetricKey) {
		if seen[key] {
			return
		}
		def, ok := r.defs[key]
		if !ok {
			return
		}
		seen[key] = true
		for _, component := range def.Components {
			visit(component)
		}
		out = append(out, key)
	}
	for _, key := range keys {
		visit(key)
	}
	return out
}
