package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/domain/benchmark"
	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// BenchmarkTTL is how long a computed benchmark is served from cache
const BenchmarkTTL = 10 * time.Minute

// BandSame selects the subject's own population band
const BandSame = "same"

// BenchmarkService compares a municipality with its peers
type BenchmarkService struct{ *base }

// BenchmarkQuery selects the subject and peer group. ProfileID is honoured
// for admins only; everyone else is benchmarked as themselves.
type BenchmarkQuery struct {
	ProfileID *uuid.UUID
	Band      string
}

// Get ranks the municipality against all municipalities, or only those in
// the requested population band.
func (s *BenchmarkService) Get(ctx context.Context, p *auth.Principal, q BenchmarkQuery) (*benchmark.Result, error) {
	if err := authorize(p, auth.BenchmarkRead); err != nil {
		return nil, err
	}
	subjectID := p.ID
	if q.ProfileID != nil && auth.IsAdmin(p) {
		subjectID = *q.ProfileID
	}

	subject, err := s.store.GetProfile(ctx, subjectID)
	if err != nil {
		return nil, wrap(err, "profile")
	}
	if subject.Role != model.RoleMunicipality {
		return nil, Invalid("benchmarks are only available for municipalities")
	}

	band, err := resolveBand(q.Band, subject.Population)
	if err != nil {
		return nil, err
	}

	key := cache.BenchmarkKey(subject.ID, string(band))
	res, err := cache.Remember(ctx, s.cache, s.logger, key, BenchmarkTTL, func(ctx context.Context) (benchmark.Result, error) {
		return s.compute(ctx, subject, band)
	})
	if err != nil {
		return nil, wrap(err, "benchmark")
	}
	return &res, nil
}

func (s *BenchmarkService) compute(ctx context.Context, subject *model.Profile, band model.PopulationBand) (benchmark.Result, error) {
	lo, hi := band.Bounds()
	rows, err := s.store.MunicipalityMetrics(ctx, lo, hi)
	if err != nil {
		return benchmark.Result{}, err
	}

	var mine map[string]float64
	peers := make([]map[string]float64, 0, len(rows)+1)
	for i := range rows {
		m := metricMap(&rows[i])
		if rows[i].ProfileID == subject.ID {
			mine = m
		}
		peers = append(peers, m)
	}
	if mine == nil {
		// the subject's population lies outside the requested band
		if mine, err = s.subjectMetrics(ctx, subject); err != nil {
			return benchmark.Result{}, err
		}
		peers = append(peers, mine)
	}
	return benchmark.Compare(band, mine, peers), nil
}

// subjectMetrics finds the subject's figures across all municipalities; a
// subject with no activity scores zero everywhere
func (s *BenchmarkService) subjectMetrics(ctx context.Context, subject *model.Profile) (map[string]float64, error) {
	rows, err := s.store.MunicipalityMetrics(ctx, subject.Population, subject.Population+1)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ProfileID == subject.ID {
			return metricMap(&rows[i]), nil
		}
	}
	return metricMap(&store.MunicipalityMetrics{ProfileID: subject.ID, Population: subject.Population}), nil
}

func metricMap(m *store.MunicipalityMetrics) map[string]float64 {
	return map[string]float64{
		"project_count":        m.ProjectCount,
		"avg_progress":         m.AvgProgress,
		"budget_utilization":   m.BudgetUtilization,
		"compliance_score":     m.ComplianceScore,
		"active_rfps":          m.ActiveRFPs,
		"accepted_connections": m.AcceptedConnections,
	}
}

func resolveBand(raw string, population int64) (model.PopulationBand, error) {
	switch raw {
	case "", "all":
		return model.BandAll, nil
	case BandSame:
		return model.BandFor(population), nil
	}
	switch b := model.PopulationBand(raw); b {
	case model.BandSmall, model.BandMedium, model.BandLarge:
		return b, nil
	}
	return "", InvalidField("band", "must be one of all, same, small, medium, large")
}
