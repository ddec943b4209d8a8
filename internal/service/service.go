// Package service holds the platform's use cases. Every operation takes the
// calling principal, enforces role permissions and row policies, and returns
// *Error values the transport layer maps to responses.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/events"
	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// Notifier pushes a notification to a profile's live connections
type Notifier interface {
	Notify(profileID uuid.UUID, payload interface{}) bool
}

type noopNotifier struct{}

func (noopNotifier) Notify(uuid.UUID, interface{}) bool { return false }

// Deps are the collaborators shared by every service
type Deps struct {
	Store    *store.Store
	Cache    cache.Cache
	Events   events.Publisher
	Notifier Notifier
	Tokens   *auth.TokenService
	Logger   *zap.Logger
	Now      func() time.Time
}

// Services groups the use cases exposed to the API and CLI
type Services struct {
	Auth          *AuthService
	Profiles      *ProfileService
	Marketplace   *MarketplaceService
	Connections   *ConnectionService
	Projects      *ProjectService
	Tasks         *TaskService
	Budgets       *BudgetService
	Documents     *DocumentService
	Compliance    *ComplianceService
	RFPs          *RFPService
	Funding       *FundingService
	Workflows     *WorkflowService
	Audit         *AuditService
	ROI           *ROIService
	Benchmark     *BenchmarkService
	Notifications *NotificationService
	Dashboard     *DashboardService
}

type base struct {
	store    *store.Store
	cache    cache.Cache
	events   events.Publisher
	notifier Notifier
	tokens   *auth.TokenService
	logger   *zap.Logger
	now      func() time.Time
}

// New wires the services. Optional dependencies fall back to in-process or
// no-op implementations.
func New(d Deps) *Services {
	b := &base{
		store:    d.Store,
		cache:    d.Cache,
		events:   d.Events,
		notifier: d.Notifier,
		tokens:   d.Tokens,
		logger:   d.Logger,
		now:      d.Now,
	}
	if b.cache == nil {
		b.cache = cache.NewMemoryCache(cache.DefaultCacheConfig())
	}
	if b.events == nil {
		b.events = events.Noop{}
	}
	if b.notifier == nil {
		b.notifier = noopNotifier{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.Named("service")
	if b.now == nil {
		b.now = time.Now
	}

	return &Services{
		Auth:          &AuthService{b},
		Profiles:      &ProfileService{b},
		Marketplace:   &MarketplaceService{b},
		Connections:   &ConnectionService{b},
		Projects:      &ProjectService{b},
		Tasks:         &TaskService{b},
		Budgets:       &BudgetService{b},
		Documents:     &DocumentService{b},
		Compliance:    &ComplianceService{b},
		RFPs:          &RFPService{b},
		Funding:       &FundingService{b},
		Workflows:     &WorkflowService{b},
		Audit:         &AuditService{b},
		ROI:           &ROIService{b},
		Benchmark:     &BenchmarkService{b},
		Notifications: &NotificationService{b},
		Dashboard:     &DashboardService{b},
	}
}

// SystemPrincipal acts on behalf of background jobs and operator commands
func SystemPrincipal() *auth.Principal {
	return &auth.Principal{ID: model.SystemActor, Roles: []string{string(model.RoleAdmin)}}
}

func authorize(p *auth.Principal, perm auth.RBACPermission) error {
	if p == nil {
		return Unauthorized("authentication required")
	}
	if !auth.Can(p, perm) {
		return Forbidden("your role does not allow this action")
	}
	return nil
}

func authenticated(p *auth.Principal) error {
	if p == nil {
		return Unauthorized("authentication required")
	}
	return nil
}

// txn is a unit of work. Audit entries and notifications written through it
// are fanned out to the event publisher and live hub only after commit.
type txn struct {
	st     *store.Store
	actor  uuid.UUID
	audits []model.AuditLog
	notes  []model.Notification
}

func (t *txn) audit(ctx context.Context, action, entityType string, entityID uuid.UUID, projectID *uuid.UUID, details map[string]interface{}) error {
	entry := model.AuditLog{
		ActorID:    t.actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ProjectID:  projectID,
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return Internal(err)
		}
		entry.Details = raw
	}
	if err := t.st.InsertAuditLog(ctx, &entry); err != nil {
		return err
	}
	t.audits = append(t.audits, entry)
	return nil
}

// notify stores a notification for profileID. Actors are never notified of
// their own actions.
func (t *txn) notify(ctx context.Context, profileID uuid.UUID, kind, title, body, entityType string, entityID uuid.UUID) error {
	if profileID == t.actor || profileID == uuid.Nil {
		return nil
	}
	n := model.Notification{
		ProfileID:  profileID,
		Kind:       kind,
		Title:      title,
		Body:       body,
		EntityType: entityType,
		EntityID:   &entityID,
	}
	if err := t.st.InsertNotification(ctx, &n); err != nil {
		return err
	}
	t.notes = append(t.notes, n)
	return nil
}

func (b *base) inTx(ctx context.Context, actor uuid.UUID, fn func(t *txn) error) error {
	var t *txn
	err := b.store.WithTx(ctx, func(tx *store.Store) error {
		t = &txn{st: tx, actor: actor}
		return fn(t)
	})
	if err != nil {
		return err
	}
	b.afterCommit(context.WithoutCancel(ctx), t)
	return nil
}

func (b *base) afterCommit(ctx context.Context, t *txn) {
	for i := range t.audits {
		a := &t.audits[i]
		if err := b.events.Publish(ctx, events.Subject("audit", a.EntityType), a); err != nil {
			b.logger.Warn("publish audit event",
				zap.String("action", a.Action),
				zap.String("entity_id", a.EntityID.String()),
				zap.Error(err))
		}
	}
	for i := range t.notes {
		b.notifier.Notify(t.notes[i].ProfileID, &t.notes[i])
	}
}

// invalidate drops cached read models after a write; failures only log
func (b *base) invalidate(ctx context.Context, prefix string) {
	if err := b.cache.DeletePrefix(ctx, prefix); err != nil {
		b.logger.Warn("invalidate cache", zap.String("prefix", prefix), zap.Error(err))
	}
}

func detail(kv ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}
