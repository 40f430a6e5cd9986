package registrations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/aura-lms/registration/internal/models"
)

// createdLayout is the day/month/year format shown in the review grid.
const createdLayout = "02/01/06"

// Country is a selectable country on the form.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var (
	countriesOnce sync.Once
	countries     []Country
)

// parseCountry returns the region for an ISO 3166-1 alpha-2 country code.
func parseCountry(code string) (r language.Region, ok bool) {
	if len(code) != 2 {
		return r, false
	}
	r, err := language.ParseRegion(code)
	if err != nil || !r.IsCountry() || r.String() != strings.ToUpper(code) {
		return r, false
	}
	return r, display.English.Regions().Name(r) != ""
}

// CountryName returns the English name of a country code, or the code itself
// when it is not a known country.
func CountryName(code string) string {
	r, ok := parseCountry(code)
	if !ok {
		return code
	}
	return display.English.Regions().Name(r)
}

// Countries lists every known country sorted by English name.
func Countries() []Country {
	countriesOnce.Do(func() {
		for a := 'A'; a <= 'Z'; a++ {
			for b := 'A'; b <= 'Z'; b++ {
				code := string([]rune{a, b})
				if r, ok := parseCountry(code); ok {
					countries = append(countries, Country{Code: code, Name: display.English.Regions().Name(r)})
				}
			}
		}
		sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })
	})
	return countries
}

// InterestsText joins interests for display.
func InterestsText(interests []string) string {
	return strings.Join(interests, ", ")
}

// ReviewRow is a registration record as shown in the administrator grid.
type ReviewRow struct {
	ID              uuid.UUID             `json:"id"`
	TenantID        uuid.UUID             `json:"tenant_id"`
	Tenant          string                `json:"tenant"`
	FirstName       string                `json:"first_name"`
	LastName        string                `json:"last_name"`
	Email           string                `json:"email"`
	Country         string                `json:"country"`
	CountryName     string                `json:"country_name"`
	Gender          string                `json:"gender"`
	Position        string                `json:"position"`
	Domain          string                `json:"domain"`
	Comments        string                `json:"comments"`
	Interests       string                `json:"interests"`
	Confirmed       string                `json:"confirmed"`
	Approved        models.ApprovalStatus `json:"approved"`
	Status          string                `json:"status"`
	Notified        bool                  `json:"notified"`
	AssessorSet     bool                  `json:"assessor_set"`
	DuplicateUserID *uuid.UUID            `json:"duplicate_user_id,omitempty"`
	Created         string                `json:"created"`
}

// FormatRow builds the grid row for reg. duplicate is the id of an existing
// account with similar names, if any.
func FormatRow(reg *models.Registration, tenant string, duplicate *uuid.UUID) ReviewRow {
	confirmed := "No"
	if reg.Confirmed {
		confirmed = "Yes"
	}
	return ReviewRow{
		ID:              reg.ID,
		TenantID:        reg.TenantID,
		Tenant:          tenant,
		FirstName:       reg.FirstName,
		LastName:        reg.LastName,
		Email:           reg.Email,
		Country:         reg.Country,
		CountryName:     CountryName(reg.Country),
		Gender:          reg.Gender,
		Position:        reg.Position,
		Domain:          reg.Domain,
		Comments:        reg.Comments,
		Interests:       InterestsText(reg.Interests),
		Confirmed:       confirmed,
		Approved:        reg.Approved,
		Status:          reg.Approved.String(),
		Notified:        reg.Approved == models.ApprovalNotified,
		AssessorSet:     reg.Assessor != nil,
		DuplicateUserID: duplicate,
		Created:         reg.CreatedAt.Format(createdLayout),
	}
}

// FormSummary is a draft as shown on the review step.
type FormSummary struct {
	Tenant      string   `json:"tenant"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Country     string   `json:"country"`
	CountryName string   `json:"country_name"`
	Gender      string   `json:"gender"`
	Position    string   `json:"position"`
	Domain      string   `json:"domain"`
	Comments    string   `json:"comments"`
	Interests   string   `json:"interests"`
	InterestSet []string `json:"interest_list"`
}

func summarize(f models.RegistrationForm, tenant string) FormSummary {
	return FormSummary{
		Tenant:      tenant,
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		Email:       f.Email,
		Country:     f.Country,
		CountryName: CountryName(f.Country),
		Gender:      f.Gender,
		Position:    f.Position,
		Domain:      f.Domain,
		Comments:    f.Comments,
		Interests:   InterestsText(f.Interests),
		InterestSet: f.Interests,
	}
}

// ReviewPage is one page of the administrator grid.
type ReviewPage struct {
	Rows  []ReviewRow `json:"rows"`
	Total int         `json:"total"`
}

// ListForReview returns records awaiting review that the actor administers.
// Global administrators see every tenant.
func (s *Service) ListForReview(ctx context.Context, actor Actor, limit, offset int) (*ReviewPage, error) {
	filter := ReviewFilter{Limit: limit, Offset: offset}
	if !actor.GlobalAdmin {
		tenants, err := s.tenants.ListAdministeredTenants(ctx, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("list administered tenants: %w", err)
		}
		if len(tenants) == 0 {
			return &ReviewPage{Rows: []ReviewRow{}}, nil
		}
		filter.TenantIDs = tenants
	}

	list, total, err := s.store.ListForReview(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(list))
	for _, reg := range list {
		ids = append(ids, reg.TenantID)
	}
	names, err := s.tenants.Names(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("tenant names: %w", err)
	}

	rows := make([]ReviewRow, 0, len(list))
	for _, reg := range list {
		var dup *uuid.UUID
		u, err := s.accounts.FindSimilar(ctx, reg.FirstName, reg.LastName)
		if err != nil {
			return nil, fmt.Errorf("find similar account: %w", err)
		}
		if u != nil {
			id := u.ID
			dup = &id
		}
		rows = append(rows, FormatRow(reg, names[reg.TenantID], dup))
	}
	return &ReviewPage{Rows: rows, Total: total}, nil
}
