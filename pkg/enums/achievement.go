package enums

import "fmt"

// ConditionType selects how an achievement's rules are evaluated.
type ConditionType string

const (
	ConditionTypeSimple      ConditionType = "simple"
	ConditionTypeCompound    ConditionType = "compound"
	ConditionTypeStreak      ConditionType = "streak"
	ConditionTypeTimeBounded ConditionType = "time_bounded"
)

// IsValid reports whether the condition type is supported.
func (t ConditionType) IsValid() bool {
	switch t {
	case ConditionTypeSimple, ConditionTypeCompound, ConditionTypeStreak, ConditionTypeTimeBounded:
		return true
	}
	return false
}

// Combinator joins compound rules.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// ConditionOperator compares a metric value against a rule target.
type ConditionOperator string

const (
	OperatorGTE ConditionOperator = "gte"
	OperatorGT  ConditionOperator = "gt"
	OperatorLTE ConditionOperator = "lte"
	OperatorLT  ConditionOperator = "lt"
	OperatorEQ  ConditionOperator = "eq"
)

// IsValid reports whether the operator is supported. Empty means gte.
func (o ConditionOperator) IsValid() bool {
	switch o {
	case "", OperatorGTE, OperatorGT, OperatorLTE, OperatorLT, OperatorEQ:
		return true
	}
	return false
}

// Compare applies the operator; unknown operators behave like gte.
func (o ConditionOperator) Compare(value, target float64) bool {
	switch o {
	case OperatorGT:
		return value > target
	case OperatorLTE:
		return value <= target
	case OperatorLT:
		return value < target
	case OperatorEQ:
		return value == target
	default:
		return value >= target
	}
}

// Repeatability controls whether an achievement can be earned again per period.
type Repeatability string

const (
	RepeatabilityOneTime Repeatability = "one_time"
	RepeatabilityDaily   Repeatability = "daily"
	RepeatabilityWeekly  Repeatability = "weekly"
	RepeatabilityMonthly Repeatability = "monthly"
)

var validRepeatabilities = []Repeatability{
	RepeatabilityOneTime,
	RepeatabilityDaily,
	RepeatabilityWeekly,
	RepeatabilityMonthly,
}

// IsValid reports whether the value matches a known repeatability.
func (r Repeatability) IsValid() bool {
	for _, candidate := range validRepeatabilities {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRepeatability converts raw input into Repeatability.
func ParseRepeatability(value string) (Repeatability, error) {
	for _, candidate := range validRepeatabilities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid repeatability %q", value)
}
