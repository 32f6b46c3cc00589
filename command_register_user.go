package users

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Role      string         `json:"role"`
	Password  string         `json:"password"`
	Metadata  map[string]any `json:"metadata"`
	// IsActive and IsVerified are honored only when AllowUnsafeFields is set,
	// self-service registration must not mint pre-verified accounts.
	IsActive          *bool `json:"is_active"`
	IsVerified        *bool `json:"is_verified"`
	AllowUnsafeFields bool
	UseHashid         bool
	// OnResponse receives the created account and its verification token.
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User *User
	// VerificationToken is also handed to the SendVerificationToken hook,
	// it is surfaced here for queue based deliveries and tests.
	VerificationToken string
	TokenExpiresAt    time.Time
}

type RegisterUserHandler struct {
	repo        RepositoryManager
	tokens      TokenService
	hooks       Hooks
	activity    ActivitySink
	logger      Logger
	featureGate gate.FeatureGate
}

// NewRegisterUserHandler creates a handler with sane defaults. Registration
// always initiates account verification, so the token service is required.
func NewRegisterUserHandler(repo RepositoryManager, tokens TokenService) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		tokens:   tokens,
		hooks:    BaseHooks{},
		activity: noopActivitySink{},
		logger:   defaultLogger(),
	}
}

// WithHooks sets the lifecycle hooks invoked during registration.
func (h *RegisterUserHandler) WithHooks(hooks Hooks) *RegisterUserHandler {
	h.hooks = normalizeHooks(hooks)
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithFeatureGate wires a feature gate checked before any registration work.
func (h *RegisterUserHandler) WithFeatureGate(featureGate gate.FeatureGate) *RegisterUserHandler {
	h.featureGate = featureGate
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	if h.featureGate != nil {
		if err := requireFeatureGate(ctx, h.featureGate, gate.FeatureUsersSignup, ErrSignupDisabled); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := normalizeHooks(h.hooks).PreRegistration(ctx, &event); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "registration rejected by pre registration hook")
	}

	event.Email = NormalizeEmail(event.Email)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		if existing != nil {
			return ErrEmailConflict.Clone().
				WithMetadata(map[string]any{"email": event.Email})
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Phone = event.Phone
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = getUsername(event.Username, event.Email)
		user.Metadata = event.Metadata
		user.IsActive = true
		user.IsVerified = false
		if event.AllowUnsafeFields {
			if event.IsActive != nil {
				user.IsActive = *event.IsActive
			}
			if event.IsVerified != nil {
				user.IsVerified = *event.IsVerified
			}
			if user.IsVerified {
				now := time.Now()
				user.VerifiedAt = &now
			}
		}
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if event.Role != "" {
			role, err := h.repo.Roles().GetByNameTx(ctx, tx, event.Role)
			if err != nil {
				if goerrors.IsNotFound(err) {
					return goerrors.Wrap(err, goerrors.CategoryValidation, "registration role does not exist")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve registration role")
			}

			if err := h.repo.Roles().AssignToUserTx(ctx, tx, user.ID, role.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign registration role")
			}

			user.Roles = append(user.Roles, role)
		}

		if !user.IsVerified {
			token, expiresAt, err := MintVerificationToken(h.tokens, NewIdentityFromUser(user), ScopedTokenOptions{})
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint verification token")
			}

			resp.VerificationToken = token
			resp.TokenExpiresAt = expiresAt

			// Delivery runs inside the transaction, a failed delivery rolls the
			// registration back so the user can retry with the same email.
			if err := normalizeHooks(h.hooks).SendVerificationToken(ctx, user, token); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver verification token")
			}
		}

		if err := normalizeHooks(h.hooks).PostRegistration(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "post registration hook failed")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	resp.User = user

	h.recordActivity(ctx, user, resp.VerificationToken != "")

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, user *User, verificationRequested bool) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:   user.ID.String(),
		ToStatus: user.EnsureStatus(),
		Metadata: map[string]any{
			"email":                  user.Email,
			"verification_requested": verificationRequested,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during registration", "error", err)
	}
}

func (h *RegisterUserHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defaultLogger()
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
