package models

// Viewer describes who is asking for content. It is resolved once per request
// and passed explicitly into every core operation.
type Viewer struct {
	Authenticated bool
	IsStaff       bool
	UserID        *uint
	Username      string
}

// Anonymous returns the viewer used for requests without a session.
func Anonymous() Viewer {
	return Viewer{}
}

// ViewerFor builds an authenticated viewer from a stored user.
func ViewerFor(u *User) Viewer {
	if u == nil {
		return Anonymous()
	}
	id := u.ID
	return Viewer{
		Authenticated: true,
		IsStaff:       u.IsStaff,
		UserID:        &id,
		Username:      u.Username,
	}
}

// Is reports whether the viewer is the user with the given id.
func (v Viewer) Is(userID uint) bool {
	return v.UserID != nil && *v.UserID == userID
}

// ID returns the viewer's user id, or zero for anonymous viewers.
func (v Viewer) ID() uint {
	if v.UserID == nil {
		return 0
	}
	return *v.UserID
}
