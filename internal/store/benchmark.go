package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MunicipalityMetrics are the per-municipality figures compared by benchmarking
type MunicipalityMetrics struct {
	ProfileID           uuid.UUID
	Population          int64
	ProjectCount        float64
	AvgProgress         float64
	BudgetUtilization   float64
	ComplianceScore     float64
	ActiveRFPs          float64
	AcceptedConnections float64
}

const municipalityMetricsQuery = `
SELECT p.id, p.population,
	(SELECT COUNT(*) FROM projects pr WHERE pr.owner_id = p.id),
	COALESCE((
		SELECT AVG(CASE WHEN t.total = 0 THEN 0 ELSE t.done * 100.0 / t.total END)
		FROM (
			SELECT COUNT(tk.id) FILTER (WHERE tk.status = 'done') AS done, COUNT(tk.id) AS total
			FROM projects pr LEFT JOIN tasks tk ON tk.project_id = pr.id
			WHERE pr.owner_id = p.id
			GROUP BY pr.id
		) t
	), 0),
	COALESCE((
		SELECT CASE WHEN SUM(b.planned_amount) > 0 THEN SUM(b.actual_amount) * 100.0 / SUM(b.planned_amount) ELSE 0 END
		FROM budget_items b JOIN projects pr ON pr.id = b.project_id
		WHERE pr.owner_id = p.id
	), 0),
	COALESCE((
		SELECT CASE WHEN COUNT(*) > 0 THEN COUNT(*) FILTER (WHERE c.status = 'compliant') * 100.0 / COUNT(*) ELSE 0 END
		FROM compliance_requirements c JOIN projects pr ON pr.id = c.project_id
		WHERE pr.owner_id = p.id
	), 0),
	(SELECT COUNT(*) FROM rfps r WHERE r.owner_id = p.id AND r.status = 'published'),
	(SELECT COUNT(*) FROM connections cn
		WHERE (cn.requester_id = p.id OR cn.recipient_id = p.id) AND cn.status = 'accepted')
FROM profiles p
WHERE p.role = 'municipality'`

// MunicipalityMetrics computes benchmark figures for every municipality whose
// population lies in [minPop, maxPop). A negative maxPop means no upper bound.
func (s *Store) MunicipalityMetrics(ctx context.Context, minPop, maxPop int64) ([]MunicipalityMetrics, error) {
	query := municipalityMetricsQuery + ` AND p.population >= $1`
	args := []interface{}{minPop}
	if maxPop >= 0 {
		query += ` AND p.population < $2`
		args = append(args, maxPop)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("municipality metrics: %w", ConvertDBError(err))
	}
	defer rows.Close()

	var metrics []MunicipalityMetrics
	for rows.Next() {
		var m MunicipalityMetrics
		err := rows.Scan(&m.ProfileID, &m.Population, &m.ProjectCount, &m.AvgProgress, &m.BudgetUtilization,
			&m.ComplianceScore, &m.ActiveRFPs, &m.AcceptedConnections)
		if err != nil {
			return nil, fmt.Errorf("scan municipality metrics: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
