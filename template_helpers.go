package users

import (
	"maps"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-users/middleware/csrf"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns a map of helper functions and data that can be used
// with go-template's WithGlobalData option for authentication-related template functionality.
//
// Usage:
//
//	renderer, err := template.NewRenderer(
//	    template.WithBaseDir("./templates"),
//	    template.WithGlobalData(users.TemplateHelpers()),
//	)
//
// In templates, you can then use:
//
//	{% if current_user %}
//	{% if current_user|has_role:"administrator" %}
//	{% if current_user|has_any_role:"editor,administrator" %}
//	{{ csrf_field }}
//	{{ csrf_token }}
func TemplateHelpers() map[string]any {
	helpers := map[string]any{
		// Authentication helper functions
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"has_any_role":     hasAnyRole,
		"has_all_roles":    hasAllRoles,
		"role_names":       roleNames,

		// Role constants for easy template access
		"roles": map[string]string{
			"administrator": RoleAdministrator,
		},
	}

	// add CSRF template helpers
	maps.Copy(helpers, csrf.CSRFTemplateHelpers())

	return helpers
}

// TemplateHelpersWithUser returns template helpers with a specific user set as current_user.
// This is useful when you want to inject the current user directly into the global context.
//
// Usage:
//
//	currentUser := getCurrentUser(ctx)
//	renderer, err := template.NewRenderer(
//	    template.WithBaseDir("./templates"),
//	    template.WithGlobalData(users.TemplateHelpersWithUser(currentUser)),
//	)
func TemplateHelpersWithUser(user *User) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateUserKey] = user
	return helpers
}

// TemplateHelpersWithRouter returns template helpers with user data extracted from router context.
// This is useful for automatically injecting the current user from JWT middleware context.
// It also includes CSRF token helpers when a CSRF token is available in the context.
//
// Usage:
//
//	// In your route handler
//	globalData := users.TemplateHelpersWithRouter(ctx, users.TemplateUserKey)
//	// Merge with request-specific data and render template
func TemplateHelpersWithRouter(ctx router.Context, userKey string) map[string]any {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	helpers := TemplateHelpers()

	// Try to get user from router context
	if user := ctx.Locals(userKey); user != nil {
		helpers[TemplateUserKey] = user
	}

	// Merge CSRF helpers with router context for actual token values
	for key, value := range csrf.CSRFTemplateHelpersWithRouter(ctx, csrf.DefaultContextKey) {
		helpers[key] = value
	}

	return helpers
}

// MergeTemplateData merges the request scoped template helpers into view data
// before rendering. Keys in data win over helper defaults so handlers can
// override current_user or the csrf fields when they need to.
//
// Usage:
//
//	return ctx.Render("profile", users.MergeTemplateData(ctx, router.ViewContext{
//	    "title": "Profile",
//	}))
func MergeTemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	merged := router.ViewContext{}

	for key, value := range TemplateHelpersWithRouter(ctx, TemplateUserKey) {
		merged[key] = value
	}

	for key, value := range data {
		merged[key] = value
	}

	return merged
}

// GetTemplateUser is a convenience function to extract user data from router context
// for template usage. It returns the user object and a boolean indicating if it was found.
//
// Usage:
//
//	if user, ok := users.GetTemplateUser(ctx, users.TemplateUserKey); ok {
//		// Use user in template data
//		data["user"] = user
//	}
func GetTemplateUser(ctx router.Context, userKey string) (any, bool) {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	user := ctx.Locals(userKey)
	return user, user != nil
}

// isAuthenticated checks if the provided user object is not nil
func isAuthenticated(user any) bool {
	if user == nil {
		return false
	}

	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return true
	case AuthClaims:
		return u != nil && u.UserID() != ""
	case Session:
		return u != nil && u.GetUserID() != ""
	case map[string]any:
		// Handle JSON-converted user objects
		return len(u) > 0
	default:
		return false
	}
}

// hasRole checks if the user holds the named role
func hasRole(user any, role string) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return u.HasRole(role)
	case User:
		return u.HasRole(role)
	case AuthClaims:
		if u == nil {
			return false
		}
		return u.HasRole(role)
	case RoleCapableSession:
		if u == nil {
			return false
		}
		return u.HasRole(role)
	case map[string]any:
		// Handle JSON-converted user objects
		return jsonUserHasRole(u, role)
	default:
		return false
	}
}

// hasAnyRole checks if the user holds at least one of the named roles
func hasAnyRole(user any, roles ...string) bool {
	for _, role := range roles {
		if hasRole(user, role) {
			return true
		}
	}
	return false
}

// hasAllRoles checks if the user holds every one of the named roles
func hasAllRoles(user any, roles ...string) bool {
	if len(roles) == 0 {
		return false
	}

	for _, role := range roles {
		if !hasRole(user, role) {
			return false
		}
	}
	return true
}

// roleNames lists the role names carried by the user object
func roleNames(user any) []string {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return nil
		}
		return u.RoleNames()
	case User:
		return u.RoleNames()
	case AuthClaims:
		if u == nil {
			return nil
		}
		return u.Roles()
	case *SessionObject:
		if u == nil {
			return nil
		}
		return u.GetRoles()
	case map[string]any:
		return jsonUserRoles(u)
	default:
		return nil
	}
}

// jsonUserHasRole resolves role membership for JSON converted user objects.
// Roles show up either as plain names or as role objects with a name field.
func jsonUserHasRole(user map[string]any, role string) bool {
	for _, name := range jsonUserRoles(user) {
		if name == role {
			return true
		}
	}
	return false
}

func jsonUserRoles(user map[string]any) []string {
	raw, exists := user["roles"]
	if !exists {
		return nil
	}

	switch entries := raw.(type) {
	case []string:
		return entries
	case []any:
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			switch v := entry.(type) {
			case string:
				names = append(names, v)
			case map[string]any:
				if name, ok := v["name"].(string); ok {
					names = append(names, name)
				}
			}
		}
		return names
	}

	return nil
}
