// Package http provides HTTP handlers and middleware for the smart-home
// admin API.
//
// Every request carries the admin account scope in the `X-Admin-ID` header;
// the RequireAdminScope middleware rejects requests without it. The router
// exposes the following endpoints:
//   - GET /security/posture: returns the account's security posture, creating
//     the default one on first read.
//   - PUT /security/posture: updates the armed and/or sensitive-protection
//     flags. Body: {"system_armed","sensitive_devices_protected"}, both
//     optional but at least one required.
//   - POST /security/schedules, DELETE /security/schedules/{id}: manage the
//     account's device access schedules exchanging the `scheduleDTO` payload
//     defined in security_handler.go.
//   - GET /security/access?device_id=&user_id=&at=: evaluates whether the
//     device access is permitted at the given instant (defaults to now).
//   - GET /simulations, POST /simulations, GET /simulations/{id}: simulated
//     emergency event management exchanging the `eventDTO` payload defined in
//     simulation_handler.go.
//   - POST /simulations/{id}/run, /complete, /cancel: lifecycle moves.
//     Illegal moves answer 409 with error_code INVALID_TRANSITION; writes
//     that lose a concurrent race twice answer 409 with WRITE_CONFLICT.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
