// Package guard decides whether a request may render a protected view.
package guard

import "github.com/hivedesk/portal/database/model"

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHrHome
	RedirectEmployeeHome
)

const (
	LoginPath        = "/login"
	HrHomePath       = "/hr-dashboard"
	EmployeeHomePath = "/employee-dashboard"
)

// Evaluate is pure and must run on every request; session state can change
// between requests. An empty requiredRole means any signed-in user.
func Evaluate(loggedIn bool, sessionRole model.Role, requiredRole model.Role) Decision {
	if !loggedIn {
		return RedirectLogin
	}
	if requiredRole != "" && sessionRole != requiredRole {
		return HomeFor(sessionRole)
	}
	return Allow
}

// HomeFor returns the redirect that sends a user to their own dashboard.
// Unknown and empty roles are treated as employee.
func HomeFor(role model.Role) Decision {
	if role == model.RoleHR {
		return RedirectHrHome
	}
	return RedirectEmployeeHome
}

// Path returns the destination of a redirect decision, or "" for Allow.
func (d Decision) Path() string {
	switch d {
	case RedirectLogin:
		return LoginPath
	case RedirectHrHome:
		return HrHomePath
	case RedirectEmployeeHome:
		return EmployeeHomePath
	}
	return ""
}

func (d Decision) String() string {
	switch d {
	case Allow:
		return "Allow"
	case RedirectLogin:
		return "RedirectLogin"
	case RedirectHrHome:
		return "RedirectHrHome"
	case RedirectEmployeeHome:
		return "RedirectEmployeeHome"
	}
	return "Unknown"
}
