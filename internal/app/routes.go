package app

import "strings"

// Client routes
const (
	RouteAuth       = "/auth"
	RouteWelcome    = "/welcome"
	RouteDashboard  = "/"
	RouteInbox      = "/inbox"
	RouteAddExpense = "/add-expense"
	RouteAdmin      = "/admin"
	RouteApprovals  = "/approvals"
)

// Page identifies the view a route renders
type Page string

const (
	PageAuth       Page = "auth"
	PageWelcome    Page = "welcome"
	PageDashboard  Page = "dashboard"
	PageInbox      Page = "inbox"
	PageAddExpense Page = "add_expense"
	PageAdmin      Page = "admin"
	PageApprovals  Page = "approvals"
	PageNotFound   Page = "not_found"
)

var publicPages = map[string]Page{
	RouteAuth:    PageAuth,
	RouteWelcome: PageWelcome,
}

var protectedPages = map[string]Page{
	RouteDashboard:  PageDashboard,
	RouteInbox:      PageInbox,
	RouteAddExpense: PageAddExpense,
	RouteAdmin:      PageAdmin,
	RouteApprovals:  PageApprovals,
}

// Decision is the outcome of routing one path
type Decision struct {
	Page Page
	// Redirect is set when the visitor must be sent elsewhere
	Redirect string
	// Waiting is true while the authorization context has not settled
	Waiting bool
}

// Route decides what a path renders for the given authorization context.
// Protected paths wait for a settled context, send signed-out visitors to
// RouteAuth, and send non-admins away from RouteAdmin.
func Route(path string, auth AuthContext) Decision {
	path = normalizePath(path)

	if page, ok := publicPages[path]; ok {
		return Decision{Page: page}
	}
	if !auth.Settled {
		return Decision{Waiting: true}
	}
	if !auth.Authenticated {
		return Decision{Page: PageAuth, Redirect: RouteAuth}
	}

	page, ok := protectedPages[path]
	if !ok {
		return Decision{Page: PageNotFound}
	}
	if page == PageAdmin && !auth.IsAdmin {
		return Decision{Page: PageDashboard, Redirect: RouteDashboard}
	}
	return Decision{Page: page}
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return RouteDashboard
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// NavItem is one entry of the navigation sidebar
type NavItem struct {
	Title string
	Path  string
}

// NavItems returns the navigation entries for auth. The admin entry is
// offered only to the literal admin role.
func NavItems(auth AuthContext) []NavItem {
	items := []NavItem{
		{Title: "Dashboard", Path: RouteDashboard},
		{Title: "Inbox", Path: RouteInbox},
	}
	if auth.IsAdmin {
		items = append(items, NavItem{Title: "Admin Panel", Path: RouteAdmin})
	}
	return items
}

// IsActive reports whether a navigation path is active for the current path
func IsActive(navPath, current string) bool {
	current = normalizePath(current)
	if navPath == RouteDashboard {
		return current == RouteDashboard
	}
	return current == navPath || strings.HasPrefix(current, navPath+"/")
}
