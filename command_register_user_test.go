package users_test

import (
	"context"
	"errors"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registrationHooks overrides only the hooks a given test needs.
type registrationHooks struct {
	users.BaseHooks
	preRegistration  func(ctx context.Context, msg *users.RegisterUserMessage) error
	postRegistration func(ctx context.Context, user *users.User) error
	sendVerification func(ctx context.Context, user *users.User, token string) error
}

func (h *registrationHooks) PreRegistration(ctx context.Context, msg *users.RegisterUserMessage) error {
	if h.preRegistration != nil {
		return h.preRegistration(ctx, msg)
	}
	return nil
}

func (h *registrationHooks) PostRegistration(ctx context.Context, user *users.User) error {
	if h.postRegistration != nil {
		return h.postRegistration(ctx, user)
	}
	return nil
}

func (h *registrationHooks) SendVerificationToken(ctx context.Context, user *users.User, token string) error {
	if h.sendVerification != nil {
		return h.sendVerification(ctx, user, token)
	}
	return nil
}

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("registers an unverified account", func(t *testing.T) {
		repo := newTestRepo(t)
		tokens := newTestTokenService()
		sink := &capturingSink{}

		var deliveredToken string
		hooks := &registrationHooks{
			sendVerification: func(_ context.Context, _ *users.User, token string) error {
				deliveredToken = token
				return nil
			},
		}

		handler := users.NewRegisterUserHandler(repo, tokens).
			WithHooks(hooks).
			WithActivitySink(sink)

		var resp *users.RegisterUserResponse
		err := handler.Execute(ctx, users.RegisterUserMessage{
			FirstName: "Pepe",
			LastName:  "Rone",
			Email:     "Pepe.Rone@Example.COM",
			Password:  testUserPassword,
			OnResponse: func(r *users.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		require.NotNil(t, resp.User)

		assert.Equal(t, "pepe.rone@example.com", resp.User.Email)
		assert.Equal(t, "pepe.rone", resp.User.Username, "username defaults to the email local part")
		assert.True(t, resp.User.IsActive)
		assert.False(t, resp.User.IsVerified)
		assert.NoError(t, users.ComparePasswordAndHash(testUserPassword, resp.User.PasswordHash))

		require.NotEmpty(t, resp.VerificationToken)
		assert.Equal(t, resp.VerificationToken, deliveredToken)

		claims, err := users.ValidateScopedToken(tokens, resp.VerificationToken, users.ScopeVerify)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID.String(), claims.UserID())

		persisted, err := repo.Users().GetByIdentifier(ctx, "pepe.rone@example.com")
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, persisted.ID)

		events := sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, users.ActivityEventUserRegistered, events[0].EventType)
		assert.Equal(t, users.StatusUnverified, events[0].ToStatus)
		assert.Equal(t, true, events[0].Metadata["verification_requested"])
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		repo := newTestRepo(t)
		seedTestUser(t, repo, "taken@example.com")

		handler := users.NewRegisterUserHandler(repo, newTestTokenService())

		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email:    "Taken@Example.com",
			Password: testUserPassword,
		})
		require.Error(t, err)
		requireTextCode(t, err, users.TextCodeEmailInUse)
	})

	t.Run("assigns the requested role", func(t *testing.T) {
		repo := newTestRepo(t)
		_, err := repo.Roles().Create(ctx, &users.Role{Name: "member"})
		require.NoError(t, err)

		handler := users.NewRegisterUserHandler(repo, newTestTokenService())

		var resp *users.RegisterUserResponse
		err = handler.Execute(ctx, users.RegisterUserMessage{
			Email:    "member@example.com",
			Password: testUserPassword,
			Role:     "member",
			OnResponse: func(r *users.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.User.HasRole("member"))

		roles, err := repo.Roles().ListForUser(ctx, resp.User.ID)
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, "member", roles[0].Name)
	})

	t.Run("unknown role fails the registration", func(t *testing.T) {
		repo := newTestRepo(t)
		handler := users.NewRegisterUserHandler(repo, newTestTokenService())

		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email:    "ghost.role@example.com",
			Password: testUserPassword,
			Role:     "ghost",
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "registration role does not exist")

		// The whole transaction rolls back, the account must not exist.
		_, err = repo.Users().GetByIdentifier(ctx, "ghost.role@example.com")
		require.Error(t, err)
	})

	t.Run("unsafe fields require the explicit flag", func(t *testing.T) {
		repo := newTestRepo(t)
		handler := users.NewRegisterUserHandler(repo, newTestTokenService())

		verified := true
		var resp *users.RegisterUserResponse
		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email:      "selfserve@example.com",
			Password:   testUserPassword,
			IsVerified: &verified,
			OnResponse: func(r *users.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		assert.False(t, resp.User.IsVerified, "self-service registration cannot mint verified accounts")
		assert.NotEmpty(t, resp.VerificationToken)
	})

	t.Run("trusted callers can pre-verify", func(t *testing.T) {
		repo := newTestRepo(t)
		handler := users.NewRegisterUserHandler(repo, newTestTokenService())

		verified := true
		var resp *users.RegisterUserResponse
		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email:             "imported@example.com",
			Password:          testUserPassword,
			IsVerified:        &verified,
			AllowUnsafeFields: true,
			OnResponse: func(r *users.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		assert.True(t, resp.User.IsVerified)
		assert.NotNil(t, resp.User.VerifiedAt)
		assert.Empty(t, resp.VerificationToken, "verified accounts get no verification token")
	})

	t.Run("failed delivery rolls the registration back", func(t *testing.T) {
		repo := newTestRepo(t)
		hooks := &registrationHooks{
			sendVerification: func(context.Context, *users.User, string) error {
				return errors.New("smtp unavailable")
			},
		}

		handler := users.NewRegisterUserHandler(repo, newTestTokenService()).WithHooks(hooks)

		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email:    "undeliverable@example.com",
			Password: testUserPassword,
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed to deliver verification token")

		_, err = repo.Users().GetByIdentifier(ctx, "undeliverable@example.com")
		require.Error(t, err, "the account should not survive a failed delivery")
	})

	t.Run("pre registration hook can reshape the message", func(t *testing.T) {
		repo := newTestRepo(t)
		hooks := &registrationHooks{
			preRegistration: func(_ context.Context, msg *users.RegisterUserMessage) error {
				msg.Username = "renamed"
				return nil
			},
		}

		handler := users.NewRegisterUserHandler(repo, newTestTokenService()).WithHooks(hooks)

		var resp *users.RegisterUserResponse
		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email:    "reshape@example.com",
			Password: testUserPassword,
			OnResponse: func(r *users.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "renamed", resp.User.Username)
	})

	t.Run("pre registration veto aborts before any writes", func(t *testing.T) {
		repo := newTestRepo(t)
		hooks := &registrationHooks{
			preRegistration: func(context.Context, *users.RegisterUserMessage) error {
				return errors.New("blocked by policy")
			},
		}

		handler := users.NewRegisterUserHandler(repo, newTestTokenService()).WithHooks(hooks)

		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email:    "vetoed@example.com",
			Password: testUserPassword,
		})
		require.Error(t, err)

		_, err = repo.Users().GetByIdentifier(ctx, "vetoed@example.com")
		require.Error(t, err)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		repo := newTestRepo(t)
		handler := users.NewRegisterUserHandler(repo, newTestTokenService())

		err := handler.Execute(ctx, users.RegisterUserMessage{
			Email: "nopassword@example.com",
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "invalid password")
	})
}
