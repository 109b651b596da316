package notification

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/go-collab-notify/internal/application/message"
	"github.com/go-collab-notify/internal/domain"
)

// companyInfo is computed on every build and never cached: member counts and
// owners read by concurrent consumers may disagree, which is acceptable for
// informational content.
type companyInfo struct {
	ID          string
	Name        string
	Description string
	LogoURL     string
	CreatedAt   string
	MemberCount *int
	OwnerName   string
	OwnerEmail  string
}

// resolveCompanyInfo never fails. If the company or its memberships cannot be
// read, the result degrades to the id alone.
func (m *Materializer) resolveCompanyInfo(ctx context.Context, companyID string) companyInfo {
	info := companyInfo{ID: companyID}

	company, err := m.companies.Get(ctx, companyID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("could not load company for notification", "company_id", companyID, "err", err)
		}
		return info
	}
	memberships, err := m.memberships.ListByCompany(ctx, companyID)
	if err != nil {
		slog.Warn("could not list company memberships for notification", "company_id", companyID, "err", err)
		return info
	}

	info.Name = company.Name
	info.Description = company.Description
	info.LogoURL = company.LogoURL
	if !company.CreatedAt.IsZero() {
		info.CreatedAt = company.CreatedAt.UTC().Format(time.RFC3339)
	}
	count := len(memberships)
	info.MemberCount = &count

	if owner, ok := primaryOwner(memberships); ok {
		u, err := m.users.Get(ctx, owner.UserID)
		switch {
		case err == nil:
			info.OwnerName, info.OwnerEmail = u.Name, u.Email
		case !errors.Is(err, domain.ErrNotFound):
			slog.Warn("could not load company owner", "company_id", companyID, "user_id", owner.UserID, "err", err)
		}
	}
	return info
}

// primaryOwner returns the earliest-created OWNER membership.
func primaryOwner(memberships []domain.Membership) (domain.Membership, bool) {
	owners := make([]domain.Membership, 0, len(memberships))
	for _, ms := range memberships {
		if ms.Role == domain.RoleOwner {
			owners = append(owners, ms)
		}
	}
	if len(owners) == 0 {
		return domain.Membership{}, false
	}
	sort.SliceStable(owners, func(i, j int) bool {
		return owners[i].CreatedAt.Before(owners[j].CreatedAt)
	})
	return owners[0], true
}

func (c companyInfo) snapshot() *domain.CompanySnapshot {
	return &domain.CompanySnapshot{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.OwnerEmail,
		Description: c.Description,
		LogoURL:     c.LogoURL,
		CreatedAt:   c.CreatedAt,
		MemberCount: c.MemberCount,
	}
}

func (c companyInfo) message() *message.Company {
	return &message.Company{
		Name:        c.Name,
		ID:          c.ID,
		Description: c.Description,
		OwnerName:   c.OwnerName,
		OwnerEmail:  c.OwnerEmail,
		CreatedAt:   c.CreatedAt,
		MemberCount: c.MemberCount,
		LogoURL:     c.LogoURL,
	}
}
