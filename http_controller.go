package users

import (
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// RegisterUserRoutes mounts the JSON endpoints for authentication, account
// self service, and administration. Route groups can be switched off through
// AuthControllerGroups, admin groups are protected with a role guard built
// from AdminRoles. Authentication middleware is expected to be mounted
// upstream by the application.
func RegisterUserRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	routes := controller.Routes
	groups := controller.Groups

	if !groups.DisableAuth {
		app.Post(routes.Login, controller.LoginPost).SetName("sign-in.post")
		app.Post(routes.Logout, controller.LogOut).SetName("sign-out.post")
	}

	if !groups.DisableRegistration {
		app.Post(routes.Register, controller.RegistrationCreate).SetName("register.post")
	}

	if !groups.DisableVerification {
		app.Post(routes.Verify, controller.VerifyPost).SetName("verify.post")
	}

	if !groups.DisablePasswordReset {
		app.Post(routes.ForgotPassword, controller.ForgotPasswordPost).SetName("pwd-forgot.post")
		app.Post(routes.ResetPassword, controller.ResetPasswordPost).SetName("pwd-reset.post")
	}

	// the static segment has to be registered ahead of /users/:id so the
	// router resolves /users/me before the param route
	if !groups.DisableCurrentUser {
		app.Get(routes.CurrentUser, controller.CurrentUserGet).SetName("me.get")
		app.Patch(routes.CurrentUser, controller.CurrentUserPatch).SetName("me.patch")
	}

	guard := RolesAccepted(controller.AdminRoles...)

	if !groups.DisableUserManagement {
		app.Get(fmt.Sprintf("%s/:id", routes.Users), controller.UserGet, guard).
			SetName("users.get")
		app.Patch(fmt.Sprintf("%s/:id", routes.Users), controller.UserPatch, guard).
			SetName("users.patch")
		app.Delete(fmt.Sprintf("%s/:id", routes.Users), controller.UserDelete, guard).
			SetName("users.delete")
		app.Post(fmt.Sprintf("%s/:id/activate", routes.Users), controller.UserActivate, guard).
			SetName("users.activate.post")
		app.Post(fmt.Sprintf("%s/:id/deactivate", routes.Users), controller.UserDeactivate, guard).
			SetName("users.deactivate.post")
	}

	if !groups.DisableRoleManagement {
		app.Post(routes.Roles, controller.RoleCreate, guard).SetName("roles.post")
		app.Patch(fmt.Sprintf("%s/:id", routes.Roles), controller.RoleUpdate, guard).
			SetName("roles.patch")
		app.Delete(fmt.Sprintf("%s/:id", routes.Roles), controller.RoleDelete, guard).
			SetName("roles.delete")
		app.Put(fmt.Sprintf("%s/assign", routes.Roles), controller.RoleAssign, guard).
			SetName("roles.assign.put")
		app.Put(fmt.Sprintf("%s/revoke", routes.Roles), controller.RoleRevoke, guard).
			SetName("roles.revoke.put")
	}
}

type AuthControllerRoutes struct {
	Login          string
	Logout         string
	Register       string
	Verify         string
	ForgotPassword string
	ResetPassword  string
	CurrentUser    string
	Users          string
	Roles          string
}

// AuthControllerGroups switches route groups off, the zero value mounts
// everything.
type AuthControllerGroups struct {
	DisableAuth           bool
	DisableRegistration   bool
	DisableVerification   bool
	DisablePasswordReset  bool
	DisableCurrentUser    bool
	DisableUserManagement bool
	DisableRoleManagement bool
}

// requiresTokens reports whether any enabled route group mints or redeems
// scoped tokens.
func (g *AuthControllerGroups) requiresTokens() bool {
	return !g.DisableRegistration || !g.DisableVerification || !g.DisablePasswordReset
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Groups       *AuthControllerGroups
	Auther       HTTPAuthenticator
	Tokens       TokenService
	Hooks        Hooks
	Activity     ActivitySink
	FeatureGate  gate.FeatureGate
	AdminRoles   []string
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defaultLogger(),
		ErrorHandler: defaultControllerErrHandler,
		AdminRoles:   []string{RoleAdministrator},
		Routes: &AuthControllerRoutes{
			Login:          "/auth/login",
			Logout:         "/auth/logout",
			Register:       "/auth/register",
			Verify:         "/auth/verify",
			ForgotPassword: "/auth/forgot-password",
			ResetPassword:  "/auth/reset-password",
			CurrentUser:    "/users/me",
			Users:          "/users",
			Roles:          "/roles",
		},
		Groups: &AuthControllerGroups{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Routes == nil {
		c.Routes = &AuthControllerRoutes{}
	}

	if c.Groups == nil {
		c.Groups = &AuthControllerGroups{}
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Tokens == nil && c.Groups.requiresTokens() {
		panic("Missing TokenService in auth controller...")
	}

	return c
}

// WithLogger replaces the controller logger, nil values are ignored.
func (a *AuthController) WithLogger(logger Logger) *AuthController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession will return the password
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules. The identifier can be an email or a
// username so it only has to be present.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse login payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(payload.GetIdentifier())
		fmt.Println("=========================")
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), payload.GetIdentifier(), SelectUserRoles())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(user))
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
	})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Username, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber(defaultPhoneRegion))),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse registration payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Username:  payload.Username,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Tokens).
		WithHooks(a.Hooks).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithFeatureGate(a.FeatureGate)

	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, ToUserRead(res.User))
}

// VerificationConfirmPayload carries the token that finalizes a verification
type VerificationConfirmPayload struct {
	Token string `form:"token" json:"token"`
}

// Validate will validate the payload
func (r VerificationConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// VerifyPost finalizes account verification. The token is read from the
// query string first, then from the body.
func (a *AuthController) VerifyPost(ctx router.Context) error {
	payload := new(VerificationConfirmPayload)

	if token := ctx.Query("token", ""); token != "" {
		payload.Token = token
	} else if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse verification payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *FinalizeAccountVerificationResponse

	req := FinalizeAccountVerificationMessage{
		Token: payload.Token,
		OnResponse: func(resp *FinalizeAccountVerificationResponse) {
			res = resp
		},
	}

	verify := NewFinalizeAccountVerificationHandler(a.Repo, a.Tokens).
		WithHooks(a.Hooks).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithFeatureGate(a.FeatureGate)

	if err := verify.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("account verification error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(res.User))
}

// PasswordResetRequestPayload holds values for a password reset request
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

// ForgotPasswordPost kicks off the password reset flow. Unknown emails get
// the same response as known ones so the endpoint cannot be used to probe
// for accounts.
func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse password reset payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *InitializePasswordResetResponse

	req := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Tokens).
		WithHooks(a.Hooks).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithFeatureGate(a.FeatureGate)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= PWD RESET =======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("=========================")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
	})
}

// PasswordResetConfirmPayload holds values to finalize a password reset
type PasswordResetConfirmPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetConfirmPayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(10, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(PasswordResetConfirmPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse password reset payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := FinalizePasswordResetMesasge{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo, a.Tokens).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger).
		WithFeatureGate(a.FeatureGate)

	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset finalize error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
	})
}

func (a *AuthController) CurrentUserGet(ctx router.Context) error {
	id, err := requestUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), id, SelectUserRoles())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(user))
}

// UserUpdatePayload carries the self service account fields. Pointer fields
// distinguish absent values from zero values so a PATCH only touches what
// the caller sent.
type UserUpdatePayload struct {
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	Username       *string        `json:"username"`
	Email          *string        `json:"email"`
	Phone          *string        `json:"phone_number"`
	ProfilePicture *string        `json:"profile_picture"`
	Password       *string        `json:"password"`
	Metadata       map[string]any `json:"metadata"`
}

// Validate will validate the payload
func (r UserUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
		validation.Field(&r.Username, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber(defaultPhoneRegion))),
		validation.Field(&r.Password, validation.Length(10, 100)),
	)
}

func (a *AuthController) CurrentUserPatch(ctx router.Context) error {
	id, err := requestUserID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(UserUpdatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("update user parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse update payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("update user validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), id, SelectUserRoles())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	changed := applyUserFields(user, payload)

	updated, changed, err := a.saveUserUpdate(ctx, user, payload.Password, changed)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if len(changed) > 0 {
		a.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventUserUpdated,
			Actor:     actorFromRequest(ctx),
			UserID:    updated.ID.String(),
			Metadata: map[string]any{
				"fields": changed,
			},
		})
	}

	return ctx.JSON(http.StatusOK, ToUserRead(updated))
}

func (a *AuthController) UserGet(ctx router.Context) error {
	user, err := a.userFromParam(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(user))
}

// AdminUserUpdatePayload extends the self service fields with the account
// flags only administrators may touch.
type AdminUserUpdatePayload struct {
	UserUpdatePayload
	IsActive   *bool `json:"is_active"`
	IsVerified *bool `json:"is_verified"`
}

func (a *AuthController) UserPatch(ctx router.Context) error {
	user, err := a.userFromParam(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(AdminUserUpdatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("admin update user parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse update payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("admin update user validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	changed := applyUserFields(user, &payload.UserUpdatePayload)

	if payload.IsActive != nil {
		user.IsActive = *payload.IsActive
		changed = append(changed, "is_active")
	}

	if payload.IsVerified != nil {
		user.IsVerified = *payload.IsVerified
		if user.IsVerified && user.VerifiedAt == nil {
			now := time.Now()
			user.VerifiedAt = &now
		}
		changed = append(changed, "is_verified")
	}

	updated, changed, err := a.saveUserUpdate(ctx, user, payload.Password, changed)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if len(changed) > 0 {
		a.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventUserUpdated,
			Actor:     actorFromRequest(ctx),
			UserID:    updated.ID.String(),
			Metadata: map[string]any{
				"fields": changed,
			},
		})
	}

	return ctx.JSON(http.StatusOK, ToUserRead(updated))
}

func (a *AuthController) UserDelete(ctx router.Context) error {
	user, err := a.userFromParam(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if _, err := a.Repo.Users().SoftDelete(ctx.Context(), actorFromRequest(ctx), user); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Status(http.StatusNoContent).SendString("")
}

func (a *AuthController) UserActivate(ctx router.Context) error {
	user, err := a.userFromParam(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	// activating an active account stays a no op so the endpoint is idempotent
	if user.EnsureStatus() == StatusActive {
		return ctx.JSON(http.StatusOK, ToUserRead(user))
	}

	updated, err := a.Repo.Users().Activate(ctx.Context(), actorFromRequest(ctx), user)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(updated))
}

func (a *AuthController) UserDeactivate(ctx router.Context) error {
	user, err := a.userFromParam(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if user.EnsureStatus() == StatusDeactivated {
		return ctx.JSON(http.StatusOK, ToUserRead(user))
	}

	updated, err := a.Repo.Users().Deactivate(ctx.Context(), actorFromRequest(ctx), user)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(updated))
}

// RoleCreatePayload is the role creation payload
type RoleCreatePayload struct {
	Name        string `form:"name" json:"name"`
	Description string `form:"description" json:"description"`
}

// Validate will validate the payload
func (r RoleCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(1, 500)),
	)
}

func (a *AuthController) RoleCreate(ctx router.Context) error {
	payload := new(RoleCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("create role parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse role payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("create role validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	role, err := a.Repo.Roles().Create(ctx.Context(), &Role{
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, ToRoleRead(role))
}

// RoleUpdatePayload is the role update payload
type RoleUpdatePayload struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Validate will validate the payload
func (r RoleUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(1, 100)),
		validation.Field(&r.Description, validation.Length(1, 500)),
	)
}

func (a *AuthController) RoleUpdate(ctx router.Context) error {
	roleID, err := roleIDFromParam(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(RoleUpdatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("update role parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse role payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("update role validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	role, err := a.Repo.Roles().Get(ctx.Context(), roleID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if payload.Name != nil {
		role.Name = *payload.Name
	}

	if payload.Description != nil {
		role.Description = *payload.Description
	}

	updated, err := a.Repo.Roles().Update(ctx.Context(), role)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToRoleRead(updated))
}

func (a *AuthController) RoleDelete(ctx router.Context) error {
	roleID, err := roleIDFromParam(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Repo.Roles().Delete(ctx.Context(), roleID); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Status(http.StatusNoContent).SendString("")
}

// RoleAssignmentPayload identifies the user and role for assignment and
// revocation. Both fields accept IDs, the role also resolves by name and the
// user by email or username.
type RoleAssignmentPayload struct {
	UserID string `form:"user_id" json:"user_id"`
	RoleID string `form:"role_id" json:"role_id"`
}

// Validate will validate the payload
func (r RoleAssignmentPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.RoleID, validation.Required),
	)
}

func (a *AuthController) RoleAssign(ctx router.Context) error {
	payload := new(RoleAssignmentPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("assign role parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse role assignment payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("assign role validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *AssignRoleResponse

	req := AssignRoleMessage{
		UserID: payload.UserID,
		Role:   payload.RoleID,
		Actor:  actorFromRequest(ctx),
		OnResponse: func(resp *AssignRoleResponse) {
			res = resp
		},
	}

	assignRole := NewAssignRoleHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := assignRole.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("assign role error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(res.User))
}

func (a *AuthController) RoleRevoke(ctx router.Context) error {
	payload := new(RoleAssignmentPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("revoke role parse payload: ", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Unable to parse role assignment payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("revoke role validate payload: ", "error", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *RevokeRoleResponse

	req := RevokeRoleMessage{
		UserID: payload.UserID,
		Role:   payload.RoleID,
		Actor:  actorFromRequest(ctx),
		OnResponse: func(resp *RevokeRoleResponse) {
			res = resp
		},
	}

	revokeRole := NewRevokeRoleHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := revokeRole.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("revoke role error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ToUserRead(res.User))
}

// userFromParam loads the user addressed by the :id route segment.
func (a *AuthController) userFromParam(ctx router.Context) (*User, error) {
	id := ctx.Param("id", "")
	if id == "" {
		return nil, errors.New("missing user id", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	return a.Repo.Users().GetByID(ctx.Context(), id, SelectUserRoles())
}

func roleIDFromParam(ctx router.Context) (uuid.UUID, error) {
	roleID, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryBadInput, "Invalid role id").
			WithCode(errors.CodeBadRequest)
	}
	return roleID, nil
}

// requestUserID resolves the authenticated caller, from the standard context
// the middleware enrichers populate first, then from the router locals.
func requestUserID(ctx router.Context) (string, error) {
	if claims, ok := GetClaims(ctx.Context()); ok {
		return claims.UserID(), nil
	}

	if claims, ok := GetRouterClaims(ctx, ""); ok {
		return claims.UserID(), nil
	}

	if session, ok := GetRouterSession(ctx, ""); ok {
		return session.GetUserID(), nil
	}

	return "", ErrAuthRequired
}

// actorFromRequest identifies the caller for audit entries.
func actorFromRequest(ctx router.Context) ActorRef {
	if id, err := requestUserID(ctx); err == nil {
		return ActorRef{ID: id, Type: "user"}
	}
	return ActorRef{Type: "unknown"}
}

// applyUserFields copies the set fields onto the record and reports which
// columns changed. The password is excluded, it goes through the hash
// refresh path so the plain value never touches the model.
func applyUserFields(user *User, payload *UserUpdatePayload) []string {
	changed := []string{}

	if payload.FirstName != nil {
		user.FirstName = *payload.FirstName
		changed = append(changed, "first_name")
	}

	if payload.LastName != nil {
		user.LastName = *payload.LastName
		changed = append(changed, "last_name")
	}

	if payload.Username != nil {
		user.Username = *payload.Username
		changed = append(changed, "username")
	}

	if payload.Email != nil {
		user.Email = NormalizeEmail(*payload.Email)
		changed = append(changed, "email")
	}

	if payload.Phone != nil {
		user.Phone = *payload.Phone
		changed = append(changed, "phone_number")
	}

	if payload.ProfilePicture != nil {
		user.ProfilePicture = *payload.ProfilePicture
		changed = append(changed, "profile_picture")
	}

	if len(payload.Metadata) > 0 {
		for key, val := range payload.Metadata {
			user.AddMetadata(key, val)
		}
		changed = append(changed, "metadata")
	}

	return changed
}

// saveUserUpdate persists pending field changes and rehashes the password
// when one was provided.
func (a *AuthController) saveUserUpdate(ctx router.Context, user *User, password *string, changed []string) (*User, []string, error) {
	updated := user

	if len(changed) > 0 {
		record, err := a.Repo.Users().Update(ctx.Context(), user)
		if err != nil {
			return nil, nil, err
		}
		updated = record
	}

	if password != nil {
		hash, err := HashPassword(*password)
		if err != nil {
			return nil, nil, err
		}
		if err := a.Repo.Users().RefreshPasswordHash(ctx.Context(), updated, hash); err != nil {
			return nil, nil, err
		}
		changed = append(changed, "password_hash")
	}

	return updated, changed, nil
}

// recordActivity forwards audit events, sink failures are logged and
// swallowed.
func (a *AuthController) recordActivity(ctx router.Context, event ActivityEvent) {
	if a.Activity == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := a.Activity.Record(ctx.Context(), event); err != nil {
		a.Logger.Warn("activity sink error", "error", err, "event", string(event.EventType))
	}
}

// UserRead is the wire representation of an account. The password hash is
// never part of it.
type UserRead struct {
	ID             string         `json:"id"`
	FirstName      string         `json:"first_name,omitempty"`
	LastName       string         `json:"last_name,omitempty"`
	Username       string         `json:"username,omitempty"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone_number,omitempty"`
	ProfilePicture string         `json:"profile_picture,omitempty"`
	IsActive       bool           `json:"is_active"`
	IsVerified     bool           `json:"is_verified"`
	Status         AccountStatus  `json:"status"`
	Roles          []*RoleRead    `json:"roles,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	VerifiedAt     *time.Time     `json:"verified_at,omitempty"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

// RoleRead is the wire representation of a role.
type RoleRead struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToUserRead maps a user record to its wire representation.
func ToUserRead(user *User) *UserRead {
	if user == nil {
		return nil
	}

	read := &UserRead{
		ID:             user.ID.String(),
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Username:       user.Username,
		Email:          user.Email,
		Phone:          user.Phone,
		ProfilePicture: user.ProfilePicture,
		IsActive:       user.IsActive,
		IsVerified:     user.IsVerified,
		Status:         user.EnsureStatus(),
		Metadata:       user.Metadata,
		VerifiedAt:     user.VerifiedAt,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}

	for _, role := range user.Roles {
		if read.Roles == nil {
			read.Roles = make([]*RoleRead, 0, len(user.Roles))
		}
		read.Roles = append(read.Roles, ToRoleRead(role))
	}

	return read
}

// ToRoleRead maps a role record to its wire representation.
func ToRoleRead(role *Role) *RoleRead {
	if role == nil {
		return nil
	}

	return &RoleRead{
		ID:          role.ID.String(),
		Name:        role.Name,
		Description: role.Description,
	}
}

// FormatValidationErrorToMap flattens an ozzo validation error into a field
// to message map suitable for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fields validation.Errors
	if errors.As(err, &fields) {
		for name, fieldErr := range fields {
			if fieldErr != nil {
				out[name] = fieldErr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return fmt.Errorf("values must match")
		}
		return nil
	}
}

// defaultPhoneRegion applies when a phone number is not in international
// format.
const defaultPhoneRegion = "US"

// ValidatePhoneNumber parses and checks a phone number, empty values pass so
// optional fields stay optional.
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		raw, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}

		s, _ := raw.(string)
		if s == "" {
			return nil
		}

		parsed, err := phonenumbers.Parse(s, region)
		if err != nil {
			return err
		}

		if !phonenumbers.IsValidNumber(parsed) {
			return fmt.Errorf("must be a valid phone number")
		}

		return nil
	}
}

func defaultControllerErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	return c.JSON(richErr.Code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
