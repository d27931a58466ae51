package achievements

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// Evaluation is the outcome of checking one achievement against a snapshot.
type Evaluation struct {
	Unlocked     bool
	Progress     int
	CurrentValue float64
	TargetValue  float64
	Rules        types.RuleProgressList
}

type ruleResult struct {
	met      bool
	progress float64
	weight   float64
}

// Evaluate checks conditions against metric values. Metrics missing from the
// map count as zero.
func Evaluate(cond types.ConditionSet, metrics map[enums.MetricKey]float64, now time.Time) Evaluation {
	out := Evaluation{Rules: make(types.RuleProgressList, 0, len(cond.Rules))}
	if len(cond.Rules) == 0 {
		return out
	}
	for _, rule := range cond.Rules {
		value := metrics[rule.Metric]
		out.Rules = append(out.Rules, types.RuleProgress{
			Metric:       rule.Metric,
			CurrentValue: value,
			TargetValue:  rule.Target,
			Met:          rule.Operator.Compare(value, rule.Target),
		})
	}
	primary := cond.Rules[0]
	out.CurrentValue = metrics[primary.Metric]
	out.TargetValue = primary.Target

	switch cond.Type {
	case enums.ConditionTypeStreak:
		out.Unlocked, out.Progress = evaluateStreak(primary, metrics)
	case enums.ConditionTypeTimeBounded:
		if !withinWindow(cond, now) {
			return out
		}
		out.Unlocked, out.Progress = evaluateRules(cond, metrics)
	default:
		out.Unlocked, out.Progress = evaluateRules(cond, metrics)
	}
	return out
}

// evaluateRules treats several rules as a compound set whatever the declared
// type: all must hold unless the combinator is OR.
func evaluateRules(cond types.ConditionSet, metrics map[enums.MetricKey]float64) (bool, int) {
	if len(cond.Rules) == 1 {
		return evaluateSimple(cond.Rules[0], metrics)
	}
	return evaluateCompound(cond.Rules, cond.Combinator, metrics)
}

func evaluateSimple(rule types.ConditionRule, metrics map[enums.MetricKey]float64) (bool, int) {
	res := scoreRule(rule, metrics)
	return res.met, int(math.Round(res.progress))
}

func evaluateCompound(rules []types.ConditionRule, combinator enums.Combinator, metrics map[enums.MetricKey]float64) (bool, int) {
	results := make([]ruleResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, scoreRule(rule, metrics))
	}

	if combinator == enums.CombinatorOr {
		best := results[0]
		met := false
		for _, r := range results {
			if r.progress > best.progress {
				best = r
			}
			met = met || r.met
		}
		return met, int(math.Round(best.progress))
	}

	var totalWeight float64
	all := true
	for _, r := range results {
		totalWeight += r.weight
		all = all && r.met
	}
	var progress float64
	if totalWeight > 0 {
		for _, r := range results {
			progress += r.progress * r.weight / totalWeight
		}
	}
	return all, int(math.Round(progress))
}

func evaluateStreak(rule types.ConditionRule, metrics map[enums.MetricKey]float64) (bool, int) {
	if rule.Target <= 0 {
		return false, 0
	}
	current := metrics[rule.Metric]
	return current >= rule.Target, int(math.Round(math.Min(100, current/rule.Target*100)))
}

func scoreRule(rule types.ConditionRule, metrics map[enums.MetricKey]float64) ruleResult {
	value := metrics[rule.Metric]
	res := ruleResult{met: rule.Operator.Compare(value, rule.Target), weight: rule.Weight}
	if res.weight <= 0 {
		res.weight = 1
	}
	switch {
	case rule.Target > 0:
		res.progress = math.Min(100, value/rule.Target*100)
	case res.met:
		res.progress = 100
	}
	return res
}

func withinWindow(cond types.ConditionSet, now time.Time) bool {
	if cond.StartsAt != nil && now.Before(*cond.StartsAt) {
		return false
	}
	if cond.EndsAt != nil && now.After(*cond.EndsAt) {
		return false
	}
	return true
}

// PeriodKey names the period a repeatable achievement is earned in. One-time
// achievements return an empty key. Weeks start on Sunday, UTC.
func PeriodKey(r enums.Repeatability, now time.Time) string {
	now = now.UTC()
	switch r {
	case enums.RepeatabilityDaily:
		return now.Format("2006-01-02")
	case enums.RepeatabilityWeekly:
		start := now.AddDate(0, 0, -int(now.Weekday()))
		return "W" + start.Format("2006-01-02")
	case enums.RepeatabilityMonthly:
		return now.Format("2006-01")
	default:
		return ""
	}
}

// CreditKey is the reward idempotency key for an achievement in a period.
func CreditKey(achievementID uuid.UUID, periodKey string) string {
	key := "achievement:" + achievementID.String()
	if periodKey != "" {
		key += ":" + periodKey
	}
	return key
}
