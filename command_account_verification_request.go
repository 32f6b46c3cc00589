package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type AccountVerificationMesage struct {
	Identifier string `json:"identifier" example:"pepe.rone@example.com" doc:"Email, username or user ID."`
	OnResponse func(a *AccountVerificationResponse)
}

func (e AccountVerificationMesage) Type() string { return "user.verification_request" }

// AccountVerificationResponse reports the outcome without distinguishing
// unknown accounts, callers should answer the same either way.
type AccountVerificationResponse struct {
	Token     string
	ExpiresAt time.Time
	Delivered bool
	Verified  bool
}

type AccountVerificationHandler struct {
	repo        RepositoryManager
	tokens      TokenService
	hooks       Hooks
	activity    ActivitySink
	logger      Logger
	featureGate gate.FeatureGate
}

// NewAccountVerificationHandler creates a handler with sane defaults.
func NewAccountVerificationHandler(repo RepositoryManager, tokens TokenService) *AccountVerificationHandler {
	return &AccountVerificationHandler{
		repo:     repo,
		tokens:   tokens,
		hooks:    BaseHooks{},
		activity: noopActivitySink{},
		logger:   defaultLogger(),
	}
}

// WithHooks sets the delivery hooks invoked when a token is minted.
func (h *AccountVerificationHandler) WithHooks(hooks Hooks) *AccountVerificationHandler {
	h.hooks = normalizeHooks(hooks)
	return h
}

// WithActivitySink sets the sink used to emit verification events.
func (h *AccountVerificationHandler) WithActivitySink(sink ActivitySink) *AccountVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *AccountVerificationHandler) WithLogger(logger Logger) *AccountVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithFeatureGate wires a feature gate checked before any verification work.
func (h *AccountVerificationHandler) WithFeatureGate(featureGate gate.FeatureGate) *AccountVerificationHandler {
	h.featureGate = featureGate
	return h
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMesage) error {
	if h.featureGate != nil {
		if err := requireVerificationGate(ctx, h.featureGate, false); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMesage) error {
	user := &User{}
	resp := &AccountVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.Identifier)
		if err != nil {
			// if the record is not found, is part of expected flow, not an application error
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification")
		}

		if user.IsVerified {
			resp.Verified = true
			return nil
		}

		token, expiresAt, err := MintVerificationToken(h.tokens, NewIdentityFromUser(user), ScopedTokenOptions{})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mint verification token")
		}

		resp.Token = token
		resp.ExpiresAt = expiresAt

		if err := normalizeHooks(h.hooks).SendVerificationToken(ctx, user, token); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver verification token")
		}

		resp.Delivered = true

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute account verification")
	}

	if resp.Delivered {
		h.recordActivity(ctx, user)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *AccountVerificationHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventVerificationRequested,
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
		h.getLogger().Warn("activity sink error during verification request", "error", err)
	}
}

func (h *AccountVerificationHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defaultLogger()
}
