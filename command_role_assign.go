package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AssignRoleMessage struct {
	UserID string `json:"user_id" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"User ID, email or username."`
	Role   string `json:"role" example:"admin" doc:"Role name or role ID."`
	// Actor identifies who performed the change for the audit trail.
	Actor      ActorRef
	OnResponse func(resp *AssignRoleResponse)
}

func (e AssignRoleMessage) Type() string { return "user.role_assign" }

type AssignRoleResponse struct {
	User *User
	Role *Role
}

type AssignRoleHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewAssignRoleHandler creates a handler with sane defaults.
func NewAssignRoleHandler(repo RepositoryManager) *AssignRoleHandler {
	return &AssignRoleHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defaultLogger(),
	}
}

// WithActivitySink sets the sink used to emit role change events.
func (h *AssignRoleHandler) WithActivitySink(sink ActivitySink) *AssignRoleHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *AssignRoleHandler) WithLogger(logger Logger) *AssignRoleHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AssignRoleHandler) Execute(ctx context.Context, event AssignRoleMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role assignment",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AssignRoleHandler) execute(ctx context.Context, event AssignRoleMessage) error {
	resp := &AssignRoleResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID, SelectUserRoles())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound.Clone().
					WithMetadata(map[string]any{"user_id": event.UserID})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for role assignment")
		}

		role, err := resolveRoleTx(ctx, tx, h.repo.Roles(), event.Role)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve role")
		}

		if err := h.repo.Roles().AssignToUserTx(ctx, tx, user.ID, role.ID); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign role")
		}

		user.Roles = append(user.Roles, role)
		resp.User = user
		resp.Role = role

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "role assignment transaction failed")
	}

	h.recordActivity(ctx, event.Actor, resp.User, resp.Role)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *AssignRoleHandler) recordActivity(ctx context.Context, actor ActorRef, user *User, role *Role) {
	if user == nil || role == nil {
		return
	}

	if actor == (ActorRef{}) {
		actor = ActorRef{Type: "system"}
	}

	event := ActivityEvent{
		EventType: ActivityEventRoleAssigned,
		Actor:     actor,
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"role_id":   role.ID.String(),
			"role_name": role.Name,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during role assignment", "error", err)
	}
}

func (h *AssignRoleHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defaultLogger()
}

// resolveRoleTx accepts either a role ID or a role name.
func resolveRoleTx(ctx context.Context, tx bun.IDB, roles Roles, identifier string) (*Role, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return roles.GetTx(ctx, tx, id)
	}
	return roles.GetByNameTx(ctx, tx, identifier)
}
