package usermetrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cashstore-backend/internal/metricregistry"
	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

// Store evaluates a single non-computed metric for a user.
type Store interface {
	Aggregate(ctx context.Context, def metricregistry.Definition, userID uuid.UUID) (float64, error)
}

type store struct {
	base repo.Base
	now  func() time.Time
}

// NewStore returns a Store that aggregates directly over the source tables.
func NewStore(db *gorm.DB, now func() time.Time) Store {
	if now == nil {
		now = time.Now
	}
	return &store{base: repo.NewBase(db), now: now}
}

func (s *store) Aggregate(ctx context.Context, def metricregistry.Definition, userID uuid.UUID) (float64, error) {
	query := s.scoped(ctx, def, userID)
	switch def.Aggregation {
	case enums.AggregationCount:
		return scanFloat(query.Select("COUNT(*)"))
	case enums.AggregationSum:
		return scanFloat(query.Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", def.Field)))
	case enums.AggregationDistinctCount:
		return scanFloat(query.Select(fmt.Sprintf("COUNT(DISTINCT %s)", def.Field)))
	case enums.AggregationMax:
		return scanFloat(query.Select(fmt.Sprintf("COALESCE(MAX(%s), 0)", def.Field)))
	case enums.AggregationField:
		return s.field(query, def)
	default:
		return 0, fmt.Errorf("metric %s: aggregation %s cannot be queried", def.Key, def.Aggregation)
	}
}

func (s *store) scoped(ctx context.Context, def metricregistry.Definition, userID uuid.UUID) *gorm.DB {
	query := s.base.DB(ctx).
		Table(string(def.Source)).
		Where(clause.Eq{Column: clause.Column{Name: def.ScopeColumn()}, Value: userID})
	if def.Filter != nil {
		query = query.Where(clause.Eq{Column: clause.Column{Name: def.Filter.Column}, Value: def.Filter.Value})
	}
	return query
}

func (s *store) field(query *gorm.DB, def metricregistry.Definition) (float64, error) {
	query = query.Limit(1)
	if def.Transform == enums.MetricTransformDaysSince {
		var values []time.Time
		if err := query.Pluck(def.Field, &values).Error; err != nil {
			return 0, err
		}
		if len(values) == 0 || values[0].IsZero() {
			return 0, nil
		}
		days := math.Floor(s.now().Sub(values[0]).Hours() / 24)
		return math.Max(days, 0), nil
	}
	var values []sql.NullFloat64
	if err := query.Pluck(def.Field, &values).Error; err != nil {
		return 0, err
	}
	if len(values) == 0 || !values[0].Valid {
		return 0, nil
	}
	return values[0].Float64, nil
}

func scanFloat(query *gorm.DB) (float64, error) {
	var value sql.NullFloat64
	if err := query.Row().Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	if !value.Valid {
		return 0, nil
	}
	return value.Float64, nil
}
