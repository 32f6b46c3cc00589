package users

import "context"

// Hooks are the extension points applications use to customize the account
// flows. Embed BaseHooks and override the methods you care about; every
// method is a no-op by default.
//
// Token delivery is intentionally a hook. This package mints verification
// and password reset tokens but never sends email, that stays application
// territory.
type Hooks interface {
	// PreLogin runs before credentials are checked. Returning false rejects
	// the attempt with ErrLoginRejected before any password comparison.
	PreLogin(ctx context.Context, payload LoginPayload) (bool, error)

	// PostLogin runs after a successful authentication, before the token or
	// session is issued.
	PostLogin(ctx context.Context, identity Identity) error

	// PreRegistration runs before a registration is persisted. The message is
	// mutable so implementations can normalize or enrich incoming data.
	PreRegistration(ctx context.Context, msg *RegisterUserMessage) error

	// PostRegistration runs after the user row exists.
	PostRegistration(ctx context.Context, user *User) error

	// PostVerification runs after an account verification is finalized.
	PostVerification(ctx context.Context, user *User) error

	// SendVerificationToken delivers a freshly minted verification token.
	SendVerificationToken(ctx context.Context, user *User, token string) error

	// SendPasswordResetToken delivers a freshly minted password reset token.
	SendPasswordResetToken(ctx context.Context, user *User, token string) error
}

// BaseHooks implements Hooks with no-ops so applications only override what
// they need.
type BaseHooks struct{}

// Verify interface compliance
var _ Hooks = (*BaseHooks)(nil)

func (BaseHooks) PreLogin(context.Context, LoginPayload) (bool, error) {
	return true, nil
}

func (BaseHooks) PostLogin(context.Context, Identity) error {
	return nil
}

func (BaseHooks) PreRegistration(context.Context, *RegisterUserMessage) error {
	return nil
}

func (BaseHooks) PostRegistration(context.Context, *User) error {
	return nil
}

func (BaseHooks) PostVerification(context.Context, *User) error {
	return nil
}

func (BaseHooks) SendVerificationToken(context.Context, *User, string) error {
	return nil
}

func (BaseHooks) SendPasswordResetToken(context.Context, *User, string) error {
	return nil
}

func normalizeHooks(h Hooks) Hooks {
	if h == nil {
		return BaseHooks{}
	}
	return h
}
