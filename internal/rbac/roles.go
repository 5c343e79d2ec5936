package rbac

// Role names. Keep these stable; they are embedded in issued access tokens.
const (
	RoleUser      = "user"
	RoleScheduler = "scheduler" // service accounts that trigger moment broadcasts
	RoleAdmin     = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func Valid(role string) bool {
	switch role {
	case RoleUser, RoleScheduler, RoleAdmin:
		return true
	}
	return false
}

// Resolver assigns a role to a phone at token issue.
type Resolver struct {
	admins     map[string]struct{}
	schedulers map[string]struct{}
}

func NewResolver(admins, schedulers []string) *Resolver {
	r := &Resolver{
		admins:     make(map[string]struct{}, len(admins)),
		schedulers: make(map[string]struct{}, len(schedulers)),
	}
	for _, p := range admins {
		r.admins[p] = struct{}{}
	}
	for _, p := range schedulers {
		r.schedulers[p] = struct{}{}
	}
	return r
}

func (r *Resolver) RoleFor(phone string) string {
	if _, ok := r.admins[phone]; ok {
		return RoleAdmin
	}
	if _, ok := r.schedulers[phone]; ok {
		return RoleScheduler
	}
	return RoleUser
}
