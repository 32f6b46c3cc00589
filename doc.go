// Package users is a pluggable user management and authentication add-on for
// go-router applications: registration, email verification, login (JWT or
// server-side sessions), password reset, and role based authorization, backed
// by Bun models.
//
// Flows and hooks:
//   - Registration, verification, and password reset are implemented as
//     command handlers (RegisterUserHandler, FinalizeAccountVerificationHandler,
//     InitializePasswordResetHandler, ...). Each flow exposes Hooks so embedding
//     applications can veto logins, deliver verification and reset tokens, or
//     run follow-up business logic without forking the library.
//   - Verification and password reset use short-lived scoped JWTs whose aud
//     claim binds them to a single purpose (ScopeVerify, ScopePasswordReset).
//
// Accounts and roles:
//   - Users carry IsActive and IsVerified flags plus a many-to-many Roles
//     relation. AccountLifecycle centralizes the transitions between the
//     derived states (unverified, active, deactivated) with hooks, actor
//     attribution, and activity events.
//   - Role assignment is data driven. Guards (RolesAccepted, RolesRequired)
//     protect routes based on the role names carried by the session or token.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther, the
//     lifecycle machine, and every command flow. Sinks run best-effort (errors
//     are logged) so you can forward to a database or queue without blocking
//     authentication.
package users
