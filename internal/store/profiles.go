package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const profileColumns = `id, email, password_hash, full_name, organization, role, city, country, population, bio, created_at, updated_at`

var profileList = listSpec{
	filters: map[string]filterFunc{
		"role":    eqString("role"),
		"city":    eqString("city"),
		"country": eqString("country"),
	},
	sorts: map[string]string{
		"full_name":  "full_name",
		"created_at": "created_at",
		"population": "population",
	},
	search:      []string{"full_name", "organization", "city"},
	defaultSort: "full_name ASC, id ASC",
}

func scanProfile(row scanner) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.Organization, &p.Role,
		&p.City, &p.Country, &p.Population, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a profile, assigning an id when unset
func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO profiles (id, email, password_hash, full_name, organization, role, city, country, population, bio)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at, updated_at`,
		p.ID, p.Email, p.PasswordHash, p.FullName, p.Organization, p.Role, p.City, p.Country, p.Population, p.Bio,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create profile: %w", ConvertDBError(err))
	}
	return nil
}

// GetProfile loads a profile by id
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p, err := scanProfile(s.q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return p, nil
}

// GetProfileByEmail loads a profile by case-insensitive email
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := scanProfile(s.q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return p, nil
}

// UpdateProfile writes the editable profile fields
func (s *Store) UpdateProfile(ctx context.Context, p *model.Profile) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE profiles
SET full_name = $2, organization = $3, city = $4, country = $5, population = $6, bio = $7, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		p.ID, p.FullName, p.Organization, p.City, p.Country, p.Population, p.Bio,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update profile: %w", ConvertDBError(err))
	}
	return nil
}

// UpdatePasswordHash replaces a profile's password hash
func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return expectOne(s.q.ExecContext(ctx,
		`UPDATE profiles SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash))
}

// ListProfiles returns profiles matching opts
func (s *Store) ListProfiles(ctx context.Context, opts ListOptions) ([]model.Profile, error) {
	var lq listQuery
	query, args, err := lq.build(`SELECT `+profileColumns+` FROM profiles`, profileList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", ConvertDBError(err))
	}
	defer rows.Close()

	profiles := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}
