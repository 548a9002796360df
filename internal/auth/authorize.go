package auth

// Requirement declares what an operation demands from the caller: the roles
// allowed to run it and, optionally, the brand scope it targets.
type Requirement struct {
	Roles   []Role
	BrandID string // requested brand; empty means the caller's own scope
}

// Authorize is the single policy evaluator every operation goes through.
// It returns the effective brand id the operation must be scoped to: for
// administrators this is the requested brand (possibly empty, meaning all),
// for brand users it is always their own brand.
func Authorize(p Principal, req Requirement) (string, error) {
	if p.UserID == "" {
		return "", ErrUnauthorized
	}
	if len(req.Roles) > 0 {
		allowed := false
		for _, role := range req.Roles {
			if p.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", ErrForbidden
		}
	}

	if p.Role == RoleAdmin {
		return req.BrandID, nil
	}

	// Brand users are pinned to their own tenant. Naming a different brand
	// explicitly is a hard failure, not a silent narrowing.
	if req.BrandID != "" && req.BrandID != p.BrandID {
		return "", ErrForbidden
	}
	return p.BrandID, nil
}
