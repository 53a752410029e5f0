// Package api implements the HTTP API for Ashara Core.
//
// This package provides:
//   - account registration, login, refresh and logout endpoints
//   - bearer token authentication and admin/client role gates
//   - a session audit trail, listed for admins
//   - Prometheus metrics and a dependency-aware health endpoint
//   - the middleware stack (request ID, logging, recovery, metrics, CORS, body limit)
//
// The server follows the same lifecycle as the infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Errors
//
// Every error response uses the envelope {"status","code","message"}.
// Authentication failures are 401, role mismatches 403. Messages for auth
// failures name the cause ("token expired", "token invalidated", ...);
// internal failures are logged and reported without detail.
package api
