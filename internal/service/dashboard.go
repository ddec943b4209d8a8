package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// DashboardService gathers the caller's at-a-glance counts
type DashboardService struct{ *base }

// Dashboard holds counts relevant to the caller's role. Counts that do not
// apply to the role are omitted.
type Dashboard struct {
	ProjectsByStatus    map[model.ProjectStatus]int `json:"projects_by_status,omitempty"`
	OpenTasksAssigned   *int                        `json:"open_tasks_assigned,omitempty"`
	PendingConnections  int                         `json:"pending_connections"`
	UnreadNotifications int                         `json:"unread_notifications"`
	OpenRFPs            *int                        `json:"open_rfps,omitempty"`
	PublishedSolutions  *int                        `json:"published_solutions,omitempty"`
	ActiveBids          *int                        `json:"active_bids,omitempty"`
}

// Get runs the count queries concurrently
func (s *DashboardService) Get(ctx context.Context, p *auth.Principal) (*Dashboard, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	d := &Dashboard{}
	g, gctx := errgroup.WithContext(ctx)

	if auth.Can(p, auth.ProjectsWrite) || auth.Can(p, auth.ProjectsWork) {
		g.Go(func() error {
			counts, err := s.store.CountProjectsByStatus(gctx, p.ID)
			d.ProjectsByStatus = counts
			return err
		})
	}
	if auth.Can(p, auth.ProjectsWork) {
		g.Go(func() error {
			n, err := s.store.CountOpenTasksAssigned(gctx, p.ID)
			d.OpenTasksAssigned = &n
			return err
		})
	}
	g.Go(func() error {
		n, err := s.store.CountPendingIncoming(gctx, p.ID)
		d.PendingConnections = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountUnreadNotifications(gctx, p.ID)
		d.UnreadNotifications = n
		return err
	})
	if auth.Can(p, auth.RFPsWrite) || auth.Can(p, auth.BidsWrite) {
		g.Go(func() error {
			n, err := s.store.CountOpenRFPs(gctx, s.now())
			d.OpenRFPs = &n
			return err
		})
	}
	if auth.Can(p, auth.SolutionsWrite) {
		g.Go(func() error {
			n, err := s.store.CountPublishedSolutions(gctx, p.ID)
			d.PublishedSolutions = &n
			return err
		})
	}
	if auth.Can(p, auth.BidsWrite) {
		g.Go(func() error {
			n, err := s.store.CountActiveBids(gctx, p.ID)
			d.ActiveBids = &n
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, wrap(err, "dashboard")
	}
	return d, nil
}
