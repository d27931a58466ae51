// Package usermetrics computes registry metrics for a user on demand.
package usermetrics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/cashstore-backend/internal/metricregistry"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
)

// Snapshot is the value of each computed metric at evaluation time.
type Snapshot map[enums.MetricKey]float64

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge copies every value of other into s.
func (s Snapshot) Merge(other Snapshot) {
	for k, v := range other {
		s[k] = v
	}
}

// ServiceParams configure the metric service.
type ServiceParams struct {
	Registry *metricregistry.Registry
	Store    Store
}

// Service computes metric snapshots. Identical concurrent requests share one computation.
type Service struct {
	registry *metricregistry.Registry
	store    Store
	flight   singleflight.Group
}

// NewService builds a metric service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("metric registry required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("metric store required")
	}
	return &Service{registry: params.Registry, store: params.Store}, nil
}

// ComputeForEvent computes only the metrics eventType can affect. Unmapped
// event types yield an empty snapshot.
func (s *Service) ComputeForEvent(ctx context.Context, userID uuid.UUID, eventType enums.ActivityEventType) (Snapshot, error) {
	keys := s.registry.MetricsAffectedBy(eventType)
	if len(keys) == 0 {
		return Snapshot{}, nil
	}
	return s.Compute(ctx, userID, keys)
}

// ComputeAll computes every registered metric.
func (s *Service) ComputeAll(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	return s.Compute(ctx, userID, s.registry.Keys())
}

// Compute evaluates keys, plus the components of any computed metric among them.
func (s *Service) Compute(ctx context.Context, userID uuid.UUID, keys []enums.MetricKey) (Snapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	ordered := s.registry.ResolveOrder(keys)
	if len(ordered) == 0 {
		return Snapshot{}, nil
	}
	value, err, _ := s.flight.Do(flightKey(userID, ordered), func() (any, error) {
		return s.compute(ctx, userID, ordered)
	})
	if err != nil {
		return nil, err
	}
	return value.(Snapshot).Clone(), nil
}

func (s *Service) compute(ctx context.Context, userID uuid.UUID, ordered []enums.MetricKey) (Snapshot, error) {
	snapshot := make(Snapshot, len(ordered))
	for _, key := range ordered {
		def, _ := s.registry.DefinitionOf(key)
		if def.Computed() {
			var total float64
			for _, component := range def.Components {
				total += snapshot[component]
			}
			snapshot[key] = total
			continue
		}
		value, err := s.store.Aggregate(ctx, def, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("compute metric %s", key))
		}
		snapshot[key] = value
	}
	return snapshot, nil
}

func flightKey(userID uuid.UUID, keys []enums.MetricKey) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = string(key)
	}
	sort.Strings(parts)
	return userID.String() + "|" + strings.Join(parts, ",")
}
