package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// ProfileService reads and edits profiles
type ProfileService struct{ *base }

// ProfilePatch holds the editable profile fields; nil fields are left alone
type ProfilePatch struct {
	FullName     *string `json:"full_name"`
	Organization *string `json:"organization"`
	City         *string `json:"city"`
	Country      *string `json:"country"`
	Population   *int64  `json:"population"`
	Bio          *string `json:"bio"`
	Password     *string `json:"password"`
}

// Me returns the caller's own profile
func (s *ProfileService) Me(ctx context.Context, p *auth.Principal) (*model.Profile, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	profile, err := s.store.GetProfile(ctx, p.ID)
	return profile, wrap(err, "profile")
}

// Get returns any profile; profiles are a public directory
func (s *ProfileService) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Profile, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	profile, err := s.store.GetProfile(ctx, id)
	return profile, wrap(err, "profile")
}

// List returns profiles matching opts
func (s *ProfileService) List(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.Profile, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	profiles, err := s.store.ListProfiles(ctx, opts)
	return profiles, wrap(err, "profile")
}

// UpdateMe applies patch to the caller's profile
func (s *ProfileService) UpdateMe(ctx context.Context, p *auth.Principal, patch ProfilePatch) (*model.Profile, error) {
	profile, err := s.Me(ctx, p)
	if err != nil {
		return nil, err
	}

	setString(&profile.FullName, patch.FullName)
	setString(&profile.Organization, patch.Organization)
	setString(&profile.City, patch.City)
	setString(&profile.Country, patch.Country)
	setString(&profile.Bio, patch.Bio)
	if patch.Population != nil {
		profile.Population = *patch.Population
	}
	if err := profile.Validate(); err != nil {
		return nil, wrap(err, "profile")
	}

	var hash string
	if patch.Password != nil {
		if err := auth.ValidatePassword(*patch.Password); err != nil {
			return nil, InvalidField("password", err.Error())
		}
		if hash, err = auth.HashPassword(*patch.Password); err != nil {
			return nil, Internal(err)
		}
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateProfile(ctx, profile); err != nil {
			return err
		}
		if hash != "" {
			if err := t.st.UpdatePasswordHash(ctx, profile.ID, hash); err != nil {
				return err
			}
		}
		return t.audit(ctx, "profile.updated", "profile", profile.ID, nil, detail("password_changed", hash != ""))
	})
	if err != nil {
		return nil, wrap(err, "profile")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return profile, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
