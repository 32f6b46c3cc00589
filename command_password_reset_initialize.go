package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Customer email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetResponse reports Success for unknown emails too so
// callers cannot be used to probe which addresses have accounts.
type InitializePasswordResetResponse struct {
	Token     string
	ExpiresAt time.Time
	Success   bool
}

type InitializePasswordResetHandler struct {
	repo        RepositoryManager
	tokens      TokenService
	hooks       Hooks
	activity    ActivitySink
	logger      Logger
	featureGate gate.FeatureGate
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, tokens TokenService) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		hooks:    BaseHooks{},
		activity: noopActivitySink{},
		logger:   defaultLogger(),
	}
}

// WithHooks sets the delivery hooks invoked when a token is minted.
func (h *InitializePasswordResetHandler) WithHooks(hooks Hooks) *InitializePasswordResetHandler {
	h.hooks = normalizeHooks(hooks)
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithFeatureGate wires a feature gate checked before any reset work.
func (h *InitializePasswordResetHandler) WithFeatureGate(featureGate gate.FeatureGate) *InitializePasswordResetHandler {
	h.featureGate = featureGate
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if h.featureGate != nil {
		if err := requirePasswordResetGate(ctx, h.featureGate, false); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	user := &User{}
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	minted := false

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			// if the record is not found, is part of expected flow, not an application error
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		token, expiresAt, err := MintPasswordResetToken(h.tokens, NewIdentityFromUser(user), ScopedTokenOptions{})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint password reset token")
		}

		resp.Token = token
		resp.ExpiresAt = expiresAt

		if err := normalizeHooks(h.hooks).SendPasswordResetToken(ctx, user, token); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver password reset token")
		}

		minted = true

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if minted {
		h.recordActivity(ctx, user)
	}

	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID: user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during password reset request", "error", err)
	}
}

func (h *InitializePasswordResetHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defaultLogger()
}
