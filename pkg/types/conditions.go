package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

// ConditionRule is a single metric threshold inside an achievement.
type ConditionRule struct {
	Metric   enums.MetricKey         `json:"metric"`
	Operator enums.ConditionOperator `json:"operator,omitempty"`
	Target   float64                 `json:"target"`
	Weight   float64                 `json:"weight,omitempty"`
}

// ConditionSet is the persisted unlock condition of an achievement.
type ConditionSet struct {
	Type       enums.ConditionType `json:"type"`
	Combinator enums.Combinator    `json:"combinator,omitempty"`
	Rules      []ConditionRule     `json:"rules"`
	StartsAt   *time.Time          `json:"startsAt,omitempty"`
	EndsAt     *time.Time          `json:"endsAt,omitempty"`
}

// Metrics returns the distinct metric keys referenced by the rules.
func (c ConditionSet) Metrics() []enums.MetricKey {
	seen := make(map[enums.MetricKey]struct{}, len(c.Rules))
	out := make([]enums.MetricKey, 0, len(c.Rules))
	for _, rule := range c.Rules {
		if _, ok := seen[rule.Metric]; ok {
			continue
		}
		seen[rule.Metric] = struct{}{}
		out = append(out, rule.Metric)
	}
	return out
}

// Value marshals the condition set into JSON.
func (c ConditionSet) Value() (driver.Value, error) {
	buf, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSON into the condition set.
func (c *ConditionSet) Scan(value interface{}) error {
	raw, err := jsonBytes("condition set", value)
	if err != nil {
		return err
	}
	if raw == nil {
		*c = ConditionSet{}
		return nil
	}
	var result ConditionSet
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*c = result
	return nil
}

// RuleProgress records how far a user is on one achievement rule.
type RuleProgress struct {
	Metric       enums.MetricKey `json:"metric"`
	CurrentValue float64         `json:"currentValue"`
	TargetValue  float64         `json:"targetValue"`
	Met          bool            `json:"met"`
}

// RuleProgressList is persisted as a JSON array on the progress row.
type RuleProgressList []RuleProgress

// Value marshals the list into JSON.
func (l RuleProgressList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	buf, err := json.Marshal([]RuleProgress(l))
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the JSON array.
func (l *RuleProgressList) Scan(value interface{}) error {
	raw, err := jsonBytes("rule progress", value)
	if err != nil || raw == nil {
		*l = nil
		return err
	}
	var result []RuleProgress
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*l = result
	return nil
}
