package entities

// Caller is the identity on whose behalf a catalog operation runs. An empty
// UserID means the caller is anonymous.
type Caller struct {
	UserID      string
	AuditUserID int
	Permissions map[string]struct{}
}

// NewCaller builds a caller holding the given permission codes
func NewCaller(userID string, auditUserID int, perms ...string) *Caller {
	c := &Caller{
		UserID:      userID,
		AuditUserID: auditUserID,
		Permissions: make(map[string]struct{}, len(perms)),
	}
	for _, p := range perms {
		c.Permissions[p] = struct{}{}
	}
	return c
}

// Anonymous returns a caller without identity or permissions
func Anonymous() *Caller {
	return &Caller{}
}

// IsAuthenticated reports whether the caller carries an identity
func (c *Caller) IsAuthenticated() bool {
	return c != nil && c.UserID != ""
}

// HasPerms reports whether the caller holds every permission in required.
// An empty requirement is always satisfied.
func (c *Caller) HasPerms(required []string) bool {
	for _, p := range required {
		if c == nil {
			return false
		}
		if _, ok := c.Permissions[p]; !ok {
			return false
		}
	}
	return true
}
