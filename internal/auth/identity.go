package auth

import "context"

// IdentityResolver maps a session's stored user id back to a full user with
// roles. Only the id is ever written to the session.
type IdentityResolver struct {
	Users UserStore
}

func (r *IdentityResolver) Serialize(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

// Deserialize returns nil without error when the user no longer exists.
func (r *IdentityResolver) Deserialize(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, nil
	}
	return r.Users.FindByID(ctx, id)
}
