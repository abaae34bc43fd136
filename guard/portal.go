package guard

import goSession "github.com/MrEthical07/goSession"

var (
	reviewers = []goSession.Role{goSession.RoleReviewer, goSession.RoleAdmin}
	admins    = []goSession.Role{goSession.RoleAdmin}
)

// PortalRoutes returns the grant portal's route table.
func PortalRoutes() []Route {
	return []Route{
		{Path: "/", Children: []Route{
			{Path: "", Name: "landing"},
		}},
		{Path: "/login", Children: []Route{
			{Path: "", Name: "login"},
		}},

		{Path: "/dashboard", Meta: Meta{RequiresAuth: true}, Children: []Route{
			{Path: "", Name: "applicant-dashboard"},
		}},
		{Path: "/applications", Meta: Meta{RequiresAuth: true}, Children: []Route{
			{Path: "new", Name: "application-new"},
			{Path: "review", Name: "application-review-submit"},
			{Path: ":id", Name: "application-detail"},
		}},

		{Path: "/reviews", Meta: Meta{RequiresAuth: true, Roles: reviewers}, Children: []Route{
			{Path: "", Name: "reviewer-dashboard"},
			{Path: ":appId", Name: "application-review"},
			{Path: "compare", Name: "application-compare"},
		}},
		{Path: "/vulnerability", Meta: Meta{RequiresAuth: true, Roles: reviewers}, Children: []Route{
			{Path: "", Name: "heatmap"},
			{Path: "compare", Name: "region-comparison"},
			{Path: "indicators", Name: "indicator-explorer"},
			{Path: "data-sources", Name: "data-source-status", Meta: Meta{Roles: admins}},
		}},

		{Path: "/reports", Meta: Meta{RequiresAuth: true, Roles: admins}, Children: []Route{
			{Path: "", Name: "report-generator"},
		}},
		{Path: "/admin", Meta: Meta{RequiresAuth: true, Roles: admins}, Children: []Route{
			{Path: "", Name: "admin-dashboard"},
			{Path: "users", Name: "user-management"},
			{Path: "config", Name: "system-config"},
		}},
	}
}

// NewPortalTable returns the Table for PortalRoutes.
func NewPortalTable() *Table {
	t, err := NewTable(PortalRoutes())
	if err != nil {
		panic(err)
	}
	return t
}
