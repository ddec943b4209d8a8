package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/citymind/urbanlink/internal/model"
)

const solutionColumns = `id, developer_id, name, description, category, tags, price_min, price_max, rating, deployments, status, created_at, updated_at`

var solutionList = listSpec{
	filters: map[string]filterFunc{
		"category":     eqString("category"),
		"developer_id": eqUUID("developer_id"),
		"status":       eqString("status"),
		"tag":          arrayContains("tags"),
		"budget":       cmpFloat("price_max", "<="),
		"min_rating":   cmpFloat("rating", ">="),
	},
	sorts: map[string]string{
		"name":        "name",
		"rating":      "rating",
		"price_min":   "price_min",
		"created_at":  "created_at",
		"deployments": "deployments",
	},
	search:      []string{"name", "description"},
	defaultSort: "created_at DESC, id ASC",
}

func scanSolution(row scanner) (*model.Solution, error) {
	var sol model.Solution
	err := row.Scan(&sol.ID, &sol.DeveloperID, &sol.Name, &sol.Description, &sol.Category,
		pq.Array(&sol.Tags), &sol.PriceMin, &sol.PriceMax, &sol.Rating, &sol.Deployments,
		&sol.Status, &sol.CreatedAt, &sol.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sol.Tags == nil {
		sol.Tags = []string{}
	}
	return &sol, nil
}

// CreateSolution inserts a marketplace listing
func (s *Store) CreateSolution(ctx context.Context, sol *model.Solution) error {
	if sol.ID == uuid.Nil {
		sol.ID = uuid.New()
	}
	if sol.Tags == nil {
		sol.Tags = []string{}
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO solutions (id, developer_id, name, description, category, tags, price_min, price_max, rating, deployments, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at, updated_at`,
		sol.ID, sol.DeveloperID, sol.Name, sol.Description, sol.Category, pq.Array(sol.Tags),
		sol.PriceMin, sol.PriceMax, sol.Rating, sol.Deployments, sol.Status,
	).Scan(&sol.CreatedAt, &sol.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create solution: %w", ConvertDBError(err))
	}
	return nil
}

// GetSolution loads a solution by id
func (s *Store) GetSolution(ctx context.Context, id uuid.UUID) (*model.Solution, error) {
	sol, err := scanSolution(s.q.QueryRowContext(ctx,
		`SELECT `+solutionColumns+` FROM solutions WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return sol, nil
}

// UpdateSolution writes every mutable solution column
func (s *Store) UpdateSolution(ctx context.Context, sol *model.Solution) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE solutions
SET name = $2, description = $3, category = $4, tags = $5, price_min = $6, price_max = $7,
	rating = $8, deployments = $9, status = $10, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		sol.ID, sol.Name, sol.Description, sol.Category, pq.Array(sol.Tags), sol.PriceMin, sol.PriceMax,
		sol.Rating, sol.Deployments, sol.Status,
	).Scan(&sol.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update solution: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteSolution removes a solution
func (s *Store) DeleteSolution(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM solutions WHERE id = $1`, id))
}

// ListSolutions returns solutions visible to the viewer: published listings
// plus the viewer's own. Admins see everything.
func (s *Store) ListSolutions(ctx context.Context, viewer uuid.UUID, admin bool, opts ListOptions) ([]model.Solution, error) {
	var lq listQuery
	if !admin {
		lq.where("(status = 'published' OR developer_id = ?)", viewer)
	}
	query, args, err := lq.build(`SELECT `+solutionColumns+` FROM solutions`, solutionList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list solutions: %w", ConvertDBError(err))
	}
	defer rows.Close()

	solutions := []model.Solution{}
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		solutions = append(solutions, *sol)
	}
	return solutions, rows.Err()
}

// SolutionCategoryCounts counts published solutions per category
func (s *Store) SolutionCategoryCounts(ctx context.Context) (map[model.Category]int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM solutions WHERE status = 'published' GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count solutions: %w", ConvertDBError(err))
	}
	defer rows.Close()

	counts := make(map[model.Category]int, len(model.Categories))
	for _, c := range model.Categories {
		counts[c] = 0
	}
	for rows.Next() {
		var category model.Category
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// CountPublishedSolutions counts a developer's published listings
func (s *Store) CountPublishedSolutions(ctx context.Context, developerID uuid.UUID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM solutions WHERE developer_id = $1 AND status = 'published'`, developerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count solutions: %w", ConvertDBError(err))
	}
	return n, nil
}
