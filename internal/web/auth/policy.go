package auth

import (
	"github.com/citymind/urbanlink/internal/model"
)

// Row policies. Each mirrors a database row-level-security rule and is
// evaluated before a row is returned or written.

// CanViewSolution allows published listings to everyone and drafts or
// archived listings to their developer
func CanViewSolution(p *Principal, s *model.Solution) bool {
	if s.Status == model.SolutionPublished {
		return true
	}
	return CanEditSolution(p, s)
}

// CanEditSolution allows the owning developer and admins
func CanEditSolution(p *Principal, s *model.Solution) bool {
	return p != nil && (s.DeveloperID == p.ID || IsAdmin(p))
}

// CanViewConnection allows either party
func CanViewConnection(p *Principal, c *model.Connection) bool {
	return p != nil && (c.Involves(p.ID) || IsAdmin(p))
}

// CanAccessProject allows the owner, the assigned integrator and admins to
// read and write a project and its child rows
func CanAccessProject(p *Principal, pr *model.Project) bool {
	return p != nil && (pr.IsMember(p.ID) || IsAdmin(p))
}

// CanManageProject allows the owner and admins to change ownership-level
// settings such as deletion and integrator assignment
func CanManageProject(p *Principal, pr *model.Project) bool {
	return p != nil && (pr.OwnerID == p.ID || IsAdmin(p))
}

// CanViewRFP allows everyone once published and only the owner while draft
func CanViewRFP(p *Principal, r *model.RFP) bool {
	if r.Status.IsPublic() {
		return true
	}
	return CanManageRFP(p, r)
}

// CanManageRFP allows the owning municipality and admins
func CanManageRFP(p *Principal, r *model.RFP) bool {
	return p != nil && (r.OwnerID == p.ID || IsAdmin(p))
}

// CanViewBid allows the bidder, the RFP owner and admins
func CanViewBid(p *Principal, b *model.Bid, r *model.RFP) bool {
	return p != nil && (b.BidderID == p.ID || r.OwnerID == p.ID || IsAdmin(p))
}

// CanAccessApplication allows the applicant and admins
func CanAccessApplication(p *Principal, a *model.FundingApplication) bool {
	return p != nil && (a.ApplicantID == p.ID || IsAdmin(p))
}

// CanViewTemplate allows everyone for public templates, else the creator
func CanViewTemplate(p *Principal, w *model.WorkflowTemplate) bool {
	if w.IsPublic {
		return true
	}
	return CanEditTemplate(p, w)
}

// CanEditTemplate allows the creator and admins
func CanEditTemplate(p *Principal, w *model.WorkflowTemplate) bool {
	return p != nil && (w.CreatedBy == p.ID || IsAdmin(p))
}

// CanViewNotification allows only the recipient
func CanViewNotification(p *Principal, n *model.Notification) bool {
	return p != nil && n.ProfileID == p.ID
}
