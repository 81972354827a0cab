// Package http provides HTTP handlers and middleware for the hall-pass API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     Response: {"token","user_id","role","expires_at"} with the token also
//     surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token extracted
//     from the Authorization header or session cookie. Returns 204 No Content
//     and clears the cookie.
//   - GET /board: the public hallway display of active passes with their
//     remaining seconds. No session required. An optional `token` query
//     parameter identifies a kiosk so its name and room appear as a banner.
//   - POST /passes: requests a pass. Body: {"destination_id","period_id",
//     "kiosk_token"}. GET /passes lists the caller's own passes.
//   - GET /passes/queue: open passes visible to the calling approver, with an
//     optional `period_id` query parameter narrowing the list to students
//     enrolled in that period.
//   - GET /passes/{id}: one pass with timer and approvers. POST
//     /passes/{id}/approve, /deny, /cancel, /extend and /archive drive the
//     lifecycle; extend takes {"add_minutes","reason"} and GET
//     /passes/{id}/overrides returns the extension ledger.
//   - GET /users, POST /users, PUT /users/{id}: administrator controlled
//     account management exchanging the `userDTO` payload.
//   - GET /destinations, POST /destinations, PUT /destinations/{id}:
//     destination catalog. Listing is available to any authenticated
//     principal while mutations require admin privileges.
//   - GET /periods, POST /periods, PUT /periods/{id}: schedule periods.
//     GET and POST /periods/{id}/enrollments manage rosters; DELETE
//     /enrollments/{id} removes one binding.
//   - GET /kiosks, POST /kiosks, PUT /kiosks/{id}, POST /kiosks/{id}/rotate:
//     kiosk stations and token rotation, admin only.
//   - GET /settings, PUT /settings/{key}: runtime policy flags, admin only.
//   - GET /audit: the event log, admin only.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
