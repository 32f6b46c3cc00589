package users

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes give API consumers a stable, language independent way to branch
// on failures without matching message strings.
const (
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeLoginRejected      = "LOGIN_REJECTED"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeAccountInactive    = "ACCOUNT_INACTIVE"
	TextCodeAccountUnverified  = "ACCOUNT_UNVERIFIED"
	TextCodeEmailInUse         = "EMAIL_IN_USE"
	TextCodeSignupDisabled     = "SIGNUP_DISABLED"
	TextCodeVerifyDisabled     = "VERIFICATION_DISABLED"
	TextCodeResetDisabled      = "PASSWORD_RESET_DISABLED"
	TextCodeRoleNotFound       = "ROLE_NOT_FOUND"
	TextCodeRoleExists         = "ROLE_EXISTS"
	TextCodeRoleAssigned       = "ROLE_ALREADY_ASSIGNED"
	TextCodeRoleNotAssigned    = "ROLE_NOT_ASSIGNED"
	TextCodeAuthRequired       = "AUTH_REQUIRED"
	TextCodeInsufficientRole   = "INSUFFICIENT_ROLE"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenAudience      = "TOKEN_AUDIENCE_MISMATCH"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	TextCodeDataParseError     = "DATA_PARSE_ERROR"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeImmutableClaim     = "IMMUTABLE_CLAIM_MUTATION"
)

// ErrIdentityNotFound is returned when an account lookup comes back empty.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is the credential failure reported to clients.
// Unknown identifiers resolve to this same error so login responses never
// reveal which accounts exist.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrLoginRejected is returned when the pre login hook vetoes an otherwise
// valid authentication attempt.
var ErrLoginRejected = errors.New("login rejected", errors.CategoryAuth).
	WithTextCode(TextCodeLoginRejected).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts enforces the failed login cool down window.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrAccountInactive blocks deactivated accounts from authenticating.
var ErrAccountInactive = errors.New("account is not active", errors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeUnauthorized)

// ErrAccountUnverified blocks unverified accounts from logging in when the
// provider is configured to require verification first.
var ErrAccountUnverified = errors.New("account email is not verified", errors.CategoryAuth).
	WithTextCode(TextCodeAccountUnverified).
	WithCode(errors.CodeUnauthorized)

// ErrEmailConflict is returned when registering an email that already has an account.
var ErrEmailConflict = errors.New("email already associated with an account", errors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(errors.CodeConflict)

// ErrSignupDisabled is returned when the signup feature gate is off.
var ErrSignupDisabled = errors.New("signup is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(errors.CodeForbidden)

// ErrVerificationDisabled is returned when the account verification feature
// gate is off.
var ErrVerificationDisabled = errors.New("account verification is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeVerifyDisabled).
	WithCode(errors.CodeForbidden)

// ErrPasswordResetDisabled is returned when the password reset feature gate is off.
var ErrPasswordResetDisabled = errors.New("password reset is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeResetDisabled).
	WithCode(errors.CodeForbidden)

// ErrRoleNotFound is returned when a role lookup comes back empty.
var ErrRoleNotFound = errors.New("role not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRoleNotFound).
	WithCode(errors.CodeNotFound)

// ErrRoleExists is returned when creating a role whose name is taken.
var ErrRoleExists = errors.New("role already exists", errors.CategoryConflict).
	WithTextCode(TextCodeRoleExists).
	WithCode(errors.CodeConflict)

// ErrRoleAlreadyAssigned is returned when assigning a role the user already has.
var ErrRoleAlreadyAssigned = errors.New("user already has role", errors.CategoryConflict).
	WithTextCode(TextCodeRoleAssigned).
	WithCode(errors.CodeConflict)

// ErrRoleNotAssigned is returned when revoking a role the user does not have.
var ErrRoleNotAssigned = errors.New("user does not have role", errors.CategoryConflict).
	WithTextCode(TextCodeRoleNotAssigned).
	WithCode(errors.CodeConflict)

// ErrAuthRequired is returned by route guards when the request carries no
// authenticated identity at all.
var ErrAuthRequired = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeAuthRequired).
	WithCode(errors.CodeUnauthorized)

// ErrInsufficientRole is returned by route guards when the identity lacks the
// expected roles.
var ErrInsufficientRole = errors.New("insufficient role", errors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(errors.CodeForbidden)

// ErrTokenExpired is returned for tokens past their exp claim.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail parsing or signature checks.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenAudience is returned when a scoped token is presented outside its
// purpose, e.g. a verification token used to reset a password.
var ErrTokenAudience = errors.New("token audience mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeTokenAudience).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no session
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode the stored session payload
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString rejects empty passwords before they reach the hasher.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrImmutableClaimMutation is returned when a claims decorator rewrites a
// registered or identity claim instead of limiting itself to extensions.
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(errors.CodeInternal)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
