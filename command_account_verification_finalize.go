package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/uptrace/bun"
)

type FinalizeAccountVerificationMessage struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiJ9..." doc:"Verification token from the delivery email."`
	// OnResponse receives the verified account when provided.
	OnResponse func(resp *FinalizeAccountVerificationResponse)
}

func (e FinalizeAccountVerificationMessage) Type() string { return "user.verification_finalize" }

type FinalizeAccountVerificationResponse struct {
	User *User
	// AlreadyVerified is set when the token was valid but the account had
	// been confirmed before, finalizing twice is not an error.
	AlreadyVerified bool
}

type FinalizeAccountVerificationHandler struct {
	repo        RepositoryManager
	tokens      TokenService
	hooks       Hooks
	activity    ActivitySink
	logger      Logger
	featureGate gate.FeatureGate
}

// NewFinalizeAccountVerificationHandler creates a handler with sane defaults.
func NewFinalizeAccountVerificationHandler(repo RepositoryManager, tokens TokenService) *FinalizeAccountVerificationHandler {
	return &FinalizeAccountVerificationHandler{
		repo:     repo,
		tokens:   tokens,
		hooks:    BaseHooks{},
		activity: noopActivitySink{},
		logger:   defaultLogger(),
	}
}

// WithHooks sets the hooks invoked once the account is verified.
func (h *FinalizeAccountVerificationHandler) WithHooks(hooks Hooks) *FinalizeAccountVerificationHandler {
	h.hooks = normalizeHooks(hooks)
	return h
}

// WithActivitySink sets the sink used to emit verification events.
func (h *FinalizeAccountVerificationHandler) WithActivitySink(sink ActivitySink) *FinalizeAccountVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizeAccountVerificationHandler) WithLogger(logger Logger) *FinalizeAccountVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithFeatureGate wires a feature gate checked before the token is validated.
// Finalize honors the finalize override so delivered tokens stay redeemable
// after the verification flag is turned off.
func (h *FinalizeAccountVerificationHandler) WithFeatureGate(featureGate gate.FeatureGate) *FinalizeAccountVerificationHandler {
	h.featureGate = featureGate
	return h
}

func (h *FinalizeAccountVerificationHandler) Execute(ctx context.Context, event FinalizeAccountVerificationMessage) error {
	if h.featureGate != nil {
		if err := requireVerificationGate(ctx, h.featureGate, true); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeAccountVerificationHandler) execute(ctx context.Context, event FinalizeAccountVerificationMessage) error {
	resp := &FinalizeAccountVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := ValidateScopedToken(h.tokens, event.Token, ScopeVerify)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryAuth, "invalid verification token")
	}

	var fromStatus AccountStatus

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, claims.UserID())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return goerrors.New("invalid or expired verification token", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account for verification")
		}

		if user.IsVerified {
			resp.User = user
			resp.AlreadyVerified = true
			return nil
		}

		fromStatus = user.EnsureStatus()

		verified, err := h.repo.Users().MarkVerifiedTx(ctx, tx, user.ID, time.Now())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
		}

		verified.Roles = user.Roles
		resp.User = verified

		if err := normalizeHooks(h.hooks).PostVerification(ctx, verified); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "post verification hook failed")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize account verification")
	}

	if !resp.AlreadyVerified {
		h.recordActivity(ctx, resp.User, fromStatus)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *FinalizeAccountVerificationHandler) recordActivity(ctx context.Context, user *User, fromStatus AccountStatus) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventVerificationSuccess,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		FromStatus: fromStatus,
		ToStatus:   user.EnsureStatus(),
		Metadata: map[string]any{
			"email": user.Email,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during verification", "error", err)
	}
}

func (h *FinalizeAccountVerificationHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defaultLogger()
}
