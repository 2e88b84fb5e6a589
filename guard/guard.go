// Package guard decides whether a session may enter a destination that
// requires a role.
package guard

import (
	"fmt"

	"github.com/jrsteele09/go-brief-portal/auth"
	"github.com/jrsteele09/go-brief-portal/model"
)

const (
	LoginPath     = "/login"
	AdminHome     = "/admin"
	DashboardHome = "/dashboard"
)

type Outcome int

const (
	Suspend Outcome = iota // Session still resolving, decide later
	Admit
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Suspend:
		return "suspend"
	case Admit:
		return "admit"
	case Redirect:
		return "redirect"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Session is what the gate needs to know about the caller.
type Session struct {
	Loading bool
	User    *model.User
}

// SessionFrom reads the gate's input out of an auth snapshot.
func SessionFrom(s auth.Snapshot) Session {
	return Session{Loading: s.Loading, User: s.User}
}

type Decision struct {
	Outcome  Outcome
	Location string // Set when Outcome is Redirect
}

// HomeFor is the landing page of role.
func HomeFor(role model.RoleType) string {
	if role == model.RoleAdmin {
		return AdminHome
	}
	return DashboardHome
}

// Evaluate decides one navigation. An empty required role admits any signed
// in user. A signed in user with the wrong role goes to their own home, not
// to login, so they cannot be bounced back and forth.
func Evaluate(session Session, required model.RoleType) Decision {
	switch {
	case session.Loading:
		return Decision{Outcome: Suspend}
	case session.User == nil:
		return Decision{Outcome: Redirect, Location: LoginPath}
	case required == "" || session.User.Role == required:
		return Decision{Outcome: Admit}
	default:
		return Decision{Outcome: Redirect, Location: HomeFor(session.User.Role)}
	}
}
