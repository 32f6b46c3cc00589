package users

import (
	"context"
	"errors"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestLoginRequestValidate(t *testing.T) {
	valid := LoginRequest{Identifier: "pepe@example.com", Password: "secret"}
	require.NoError(t, valid.Validate())

	missing := LoginRequest{}
	err := missing.Validate()
	require.Error(t, err)

	fields := FormatValidationErrorToMap(err)
	assert.Contains(t, fields, "identifier")
	assert.Contains(t, fields, "password")
}

func TestRegistrationCreatePayloadValidate(t *testing.T) {
	valid := RegistrationCreatePayload{
		FirstName:       "Pepe",
		LastName:        "Rone",
		Email:           "pepe.rone@example.com",
		Password:        "secret-password",
		ConfirmPassword: "secret-password",
	}
	require.NoError(t, valid.Validate())

	t.Run("missing required fields", func(t *testing.T) {
		err := RegistrationCreatePayload{}.Validate()
		require.Error(t, err)

		fields := FormatValidationErrorToMap(err)
		assert.Contains(t, fields, "first_name")
		assert.Contains(t, fields, "last_name")
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "password")
	})

	t.Run("short password", func(t *testing.T) {
		payload := valid
		payload.Password = "short"
		payload.ConfirmPassword = "short"

		err := payload.Validate()
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrorToMap(err), "password")
	})

	t.Run("password confirmation mismatch", func(t *testing.T) {
		payload := valid
		payload.ConfirmPassword = "different-password"

		err := payload.Validate()
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrorToMap(err), "confirm_password")
	})

	t.Run("invalid email", func(t *testing.T) {
		payload := valid
		payload.Email = "not-an-email"

		err := payload.Validate()
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrorToMap(err), "email")
	})

	t.Run("invalid phone number", func(t *testing.T) {
		payload := valid
		payload.Phone = "not-a-phone"

		err := payload.Validate()
		require.Error(t, err)
		assert.Contains(t, FormatValidationErrorToMap(err), "phone_number")
	})

	t.Run("international phone number", func(t *testing.T) {
		payload := valid
		payload.Phone = "+14155552671"
		require.NoError(t, payload.Validate())
	})
}

func TestUserUpdatePayloadValidate(t *testing.T) {
	require.NoError(t, UserUpdatePayload{}.Validate(), "all fields are optional")

	require.NoError(t, UserUpdatePayload{
		FirstName: strPtr("Pepe"),
		Email:     strPtr("pepe@example.com"),
	}.Validate())

	err := UserUpdatePayload{
		Username: strPtr("ab"),
		Email:    strPtr("nope"),
		Password: strPtr("short"),
	}.Validate()
	require.Error(t, err)

	fields := FormatValidationErrorToMap(err)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestPasswordResetConfirmPayloadValidate(t *testing.T) {
	valid := PasswordResetConfirmPayload{
		Token:           "reset-token",
		Password:        "secret-password",
		ConfirmPassword: "secret-password",
	}
	require.NoError(t, valid.Validate())

	mismatch := valid
	mismatch.ConfirmPassword = "different-password"

	err := mismatch.Validate()
	require.Error(t, err)
	assert.Contains(t, FormatValidationErrorToMap(err), "confirm_password")
}

func TestRoleCreatePayloadValidate(t *testing.T) {
	require.NoError(t, RoleCreatePayload{Name: "editor"}.Validate())

	err := RoleCreatePayload{}.Validate()
	require.Error(t, err)
	assert.Contains(t, FormatValidationErrorToMap(err), "name")
}

func TestRoleAssignmentPayloadValidate(t *testing.T) {
	require.NoError(t, RoleAssignmentPayload{UserID: "u-1", RoleID: "editor"}.Validate())

	err := RoleAssignmentPayload{UserID: "u-1"}.Validate()
	require.Error(t, err)
	assert.Contains(t, FormatValidationErrorToMap(err), "role_id")
}

func TestApplyUserFields(t *testing.T) {
	user := &User{
		FirstName: "Old",
		LastName:  "Name",
		Email:     "old@example.com",
		Metadata:  map[string]any{"existing": true},
	}

	changed := applyUserFields(user, &UserUpdatePayload{
		FirstName: strPtr("Pepe"),
		Email:     strPtr(" Pepe.Rone@Example.COM "),
		Phone:     strPtr("+14155552671"),
		Metadata:  map[string]any{"theme": "dark"},
	})

	assert.ElementsMatch(t, []string{"first_name", "email", "phone_number", "metadata"}, changed)
	assert.Equal(t, "Pepe", user.FirstName)
	assert.Equal(t, "Name", user.LastName, "absent fields stay untouched")
	assert.Equal(t, "pepe.rone@example.com", user.Email, "email is normalized")
	assert.Equal(t, "+14155552671", user.Phone)
	assert.Equal(t, true, user.Metadata["existing"], "metadata merges instead of replacing")
	assert.Equal(t, "dark", user.Metadata["theme"])

	assert.Empty(t, applyUserFields(user, &UserUpdatePayload{}))
}

func TestToUserRead(t *testing.T) {
	require.Nil(t, ToUserRead(nil))

	now := time.Now()
	user := &User{
		ID:         uuid.New(),
		FirstName:  "Pepe",
		LastName:   "Rone",
		Username:   "pepe.rone",
		Email:      "pepe@example.com",
		IsActive:   true,
		IsVerified: true,
		VerifiedAt: &now,
		Roles:      namedRoles("administrator", "member"),
		Metadata:   map[string]any{"theme": "dark"},
	}

	read := ToUserRead(user)
	require.NotNil(t, read)

	assert.Equal(t, user.ID.String(), read.ID)
	assert.Equal(t, "pepe.rone", read.Username)
	assert.Equal(t, StatusActive, read.Status)
	assert.Equal(t, &now, read.VerifiedAt)
	require.Len(t, read.Roles, 2)
	assert.Equal(t, "administrator", read.Roles[0].Name)
	assert.Equal(t, map[string]any{"theme": "dark"}, read.Metadata)

	bare := ToUserRead(&User{ID: uuid.New(), Email: "bare@example.com"})
	assert.Nil(t, bare.Roles)
	assert.Equal(t, StatusDeactivated, bare.Status)
}

func TestToRoleRead(t *testing.T) {
	require.Nil(t, ToRoleRead(nil))

	role := &Role{ID: uuid.New(), Name: "editor", Description: "can edit content"}
	read := ToRoleRead(role)

	assert.Equal(t, role.ID.String(), read.ID)
	assert.Equal(t, "editor", read.Name)
	assert.Equal(t, "can edit content", read.Description)
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, FormatValidationErrorToMap(nil))

	fieldErrs := validation.Errors{
		"email":    errors.New("must be a valid email address"),
		"password": errors.New("cannot be blank"),
	}
	out := FormatValidationErrorToMap(fieldErrs)
	assert.Equal(t, "must be a valid email address", out["email"])
	assert.Equal(t, "cannot be blank", out["password"])

	plain := FormatValidationErrorToMap(errors.New("boom"))
	assert.Equal(t, map[string]string{"error": "boom"}, plain)
}

func TestValidateStringEquals(t *testing.T) {
	rule := ValidateStringEquals("expected")

	assert.NoError(t, rule("expected"))
	assert.Error(t, rule("different"))
	assert.Error(t, rule(42), "non string values never match")
}

func TestValidatePhoneNumber(t *testing.T) {
	rule := ValidatePhoneNumber(defaultPhoneRegion)

	assert.NoError(t, rule(""), "empty values pass so the field stays optional")
	assert.NoError(t, rule((*string)(nil)))
	assert.NoError(t, rule("+14155552671"))
	assert.NoError(t, rule("415-555-2671"), "national format resolves against the region")
	assert.Error(t, rule("not-a-phone"))
	assert.Error(t, rule("+1999"))
}

func TestRequestUserID(t *testing.T) {
	t.Run("from standard context claims", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("Context").Return(WithClaimsContext(context.Background(), &JWTClaims{UID: "ctx-user"}))

		id, err := requestUserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ctx-user", id)
	})

	t.Run("from router claims", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.LocalsMock["user"] = &JWTClaims{UID: "router-user"}

		id, err := requestUserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "router-user", id)
	})

	t.Run("from router session", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.LocalsMock["user"] = &SessionObject{UserID: "session-user"}

		id, err := requestUserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "session-user", id)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())

		_, err := requestUserID(ctx)
		require.ErrorIs(t, err, ErrAuthRequired)
	})
}

func TestActorFromRequest(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.On("Context").Return(WithClaimsContext(context.Background(), &JWTClaims{UID: "actor-1"}))

	actor := actorFromRequest(ctx)
	assert.Equal(t, ActorRef{ID: "actor-1", Type: "user"}, actor)

	anon := router.NewMockContext()
	anon.On("Context").Return(context.Background())

	assert.Equal(t, ActorRef{Type: "unknown"}, actorFromRequest(anon))
}

func TestAuthControllerGroupsRequiresTokens(t *testing.T) {
	all := &AuthControllerGroups{}
	assert.True(t, all.requiresTokens())

	none := &AuthControllerGroups{
		DisableRegistration:  true,
		DisableVerification:  true,
		DisablePasswordReset: true,
	}
	assert.False(t, none.requiresTokens())

	partial := &AuthControllerGroups{
		DisableRegistration: true,
		DisableVerification: true,
	}
	assert.True(t, partial.requiresTokens())
}

func TestNewAuthControllerPanicsWithoutDependencies(t *testing.T) {
	require.Panics(t, func() {
		NewAuthController()
	}, "a controller without a repository manager cannot serve requests")

	require.Panics(t, func() {
		NewAuthController(func(c *AuthController) *AuthController {
			c.Repo = repoManagerStub{}
			return c
		})
	}, "a controller without an HTTP authenticator cannot serve requests")

	require.Panics(t, func() {
		NewAuthController(func(c *AuthController) *AuthController {
			c.Repo = repoManagerStub{}
			c.Auther = httpAuthenticatorStub{}
			return c
		})
	}, "token backed route groups require a token service")
}

func TestNewAuthControllerTokensOptionalWhenGroupsDisabled(t *testing.T) {
	controller := NewAuthController(func(c *AuthController) *AuthController {
		c.Repo = repoManagerStub{}
		c.Auther = httpAuthenticatorStub{}
		c.Groups = &AuthControllerGroups{
			DisableRegistration:  true,
			DisableVerification:  true,
			DisablePasswordReset: true,
		}
		return c
	})

	require.NotNil(t, controller)
	assert.Nil(t, controller.Tokens)
	assert.Equal(t, []string{RoleAdministrator}, controller.AdminRoles)
	assert.Equal(t, "/auth/login", controller.Routes.Login)
	assert.Equal(t, "/users/me", controller.Routes.CurrentUser)
}

type repoManagerStub struct{ RepositoryManager }

type httpAuthenticatorStub struct{ HTTPAuthenticator }
