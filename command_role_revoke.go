package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RevokeRoleMessage struct {
	UserID string `json:"user_id" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"User ID, email or username."`
	Role   string `json:"role" example:"admin" doc:"Role name or role ID."`
	// Actor identifies who performed the change for the audit trail.
	Actor      ActorRef
	OnResponse func(resp *RevokeRoleResponse)
}

func (e RevokeRoleMessage) Type() string { return "user.role_revoke" }

type RevokeRoleResponse struct {
	User *User
	Role *Role
}

type RevokeRoleHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewRevokeRoleHandler creates a handler with sane defaults.
func NewRevokeRoleHandler(repo RepositoryManager) *RevokeRoleHandler {
	return &RevokeRoleHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defaultLogger(),
	}
}

// WithActivitySink sets the sink used to emit role change events.
func (h *RevokeRoleHandler) WithActivitySink(sink ActivitySink) *RevokeRoleHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RevokeRoleHandler) WithLogger(logger Logger) *RevokeRoleHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RevokeRoleHandler) Execute(ctx context.Context, event RevokeRoleMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role revocation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RevokeRoleHandler) execute(ctx context.Context, event RevokeRoleMessage) error {
	resp := &RevokeRoleResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID, SelectUserRoles())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound.Clone().
					WithMetadata(map[string]any{"user_id": event.UserID})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for role revocation")
		}

		role, err := resolveRoleTx(ctx, tx, h.repo.Roles(), event.Role)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve role")
		}

		if err := h.repo.Roles().RevokeFromUserTx(ctx, tx, user.ID, role.ID); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke role")
		}

		user.Roles = removeRole(user.Roles, role.ID)
		resp.User = user
		resp.Role = role

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "role revocation transaction failed")
	}

	h.recordActivity(ctx, event.Actor, resp.User, resp.Role)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RevokeRoleHandler) recordActivity(ctx context.Context, actor ActorRef, user *User, role *Role) {
	if user == nil || role == nil {
		return
	}

	if actor == (ActorRef{}) {
		actor = ActorRef{Type: "system"}
	}

	event := ActivityEvent{
		EventType: ActivityEventRoleRevoked,
		Actor:     actor,
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"role_id":   role.ID.String(),
			"role_name": role.Name,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during role revocation", "error", err)
	}
}

func (h *RevokeRoleHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defaultLogger()
}

func removeRole(roles []*Role, id uuid.UUID) []*Role {
	out := make([]*Role, 0, len(roles))
	for _, r := range roles {
		if r != nil && r.ID == id {
			continue
		}
		out = append(out, r)
	}
	return out
}
