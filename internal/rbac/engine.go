package rbac

// EffectivePermissions resolves the permission set an actor actually holds.
// When the actor carries an explicit override list it fully replaces the
// role's default set; operators editing a user's permission matrix persist
// the complete resulting list, not a delta.
func EffectivePermissions(actor Actor) (PermissionSet, error) {
	if actor.Overrides != nil {
		set := make(PermissionSet, len(actor.Overrides))
		for _, p := range actor.Overrides {
			if p == "" {
				continue
			}
			set[p] = struct{}{}
		}
		return set, nil
	}
	return PermissionsForRole(actor.Role)
}

// Authorize reports whether the actor holds the required permission. It has
// no side effects and performs no caching; an actor with an unrecognised role
// is denied (session resolution parses roles against the enumeration, so
// this is unreachable for well-formed sessions).
func Authorize(actor Actor, required string) bool {
	set, err := EffectivePermissions(actor)
	if err != nil {
		return false
	}
	return set.Has(required)
}
