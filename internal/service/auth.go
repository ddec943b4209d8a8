package service

import (
	"context"
	"time"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// errBadCredentials is returned for every failed login so that callers
// cannot tell unknown emails from wrong passwords
var errBadCredentials = Unauthorized("invalid email or password")

// dummyHash is compared against when the email is unknown to keep login
// timing uniform
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3r1PnkjZlZ8o3D7ZHBVJ3m6"

// AuthService registers profiles and issues access tokens
type AuthService struct{ *base }

// RegisterInput is a self-service sign-up
type RegisterInput struct {
	Email        string     `json:"email"`
	Password     string     `json:"password"`
	FullName     string     `json:"full_name"`
	Organization string     `json:"organization"`
	Role         model.Role `json:"role"`
	City         string     `json:"city"`
	Country      string     `json:"country"`
	Population   int64      `json:"population"`
	Bio          string     `json:"bio"`
}

// Session is an issued access token and the profile it belongs to
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   *model.Profile `json:"profile"`
}

// Register creates a non-admin profile and signs it in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	selfService := false
	for _, r := range model.SelfServiceRoles {
		if in.Role == r {
			selfService = true
		}
	}
	if !selfService {
		return nil, InvalidField("role", "must be municipality, developer or integrator")
	}

	profile, err := s.CreateProfile(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(profile)
}

// CreateProfile validates and stores a profile of any role. It backs both
// self-service registration and the operator user command.
func (s *AuthService) CreateProfile(ctx context.Context, in RegisterInput) (*model.Profile, error) {
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, InvalidField("password", err.Error())
	}

	profile := &model.Profile{
		Email:        model.NormalizeEmail(in.Email),
		FullName:     in.FullName,
		Organization: in.Organization,
		Role:         in.Role,
		City:         in.City,
		Country:      in.Country,
		Population:   in.Population,
		Bio:          in.Bio,
	}
	if err := profile.Validate(); err != nil {
		return nil, wrap(err, "profile")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, Internal(err)
	}
	profile.PasswordHash = hash

	err = s.inTx(ctx, model.SystemActor, func(t *txn) error {
		if err := t.st.CreateProfile(ctx, profile); err != nil {
			if store.IsUniqueViolation(err) {
				return Conflict("email is already registered")
			}
			return err
		}
		t.actor = profile.ID
		return t.audit(ctx, "profile.registered", "profile", profile.ID, nil, detail("role", profile.Role))
	})
	if err != nil {
		return nil, wrap(err, "profile")
	}
	return profile, nil
}

// Login checks credentials and issues a token
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	profile, err := s.store.GetProfileByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if store.IsNotFound(err) {
			auth.CheckPassword(password, dummyHash)
			return nil, errBadCredentials
		}
		return nil, wrap(err, "profile")
	}
	if !auth.CheckPassword(password, profile.PasswordHash) {
		return nil, errBadCredentials
	}
	return s.issue(profile)
}

func (s *AuthService) issue(profile *model.Profile) (*Session, error) {
	token, expires, err := s.tokens.GenerateToken(profile.ID, profile.Email, []string{string(profile.Role)})
	if err != nil {
		return nil, Internal(err)
	}
	return &Session{Token: token, ExpiresAt: expires, Profile: profile}, nil
}
