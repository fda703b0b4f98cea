package types

// Actor is whoever issued the current request: a stored user or an
// anonymous visitor.
type Actor struct {
	User          User
	Authenticated bool
}

// Anonymous is the actor of a request without a valid session.
var Anonymous = Actor{}

// ActorFor wraps a stored user as an authenticated actor.
func ActorFor(user User) Actor {
	return Actor{User: user, Authenticated: true}
}

func (a Actor) IsAuthenticated() bool {
	return a.Authenticated
}

func (a Actor) IsAdmin() bool {
	return a.Authenticated && a.User.IsAdmin
}
