// Package api provides the HTTP REST API for the school auth service.
//
// The server follows the same lifecycle pattern as the infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
//
// # Routes
//
//	POST /register            create a student account
//	POST /token               password login, returns a bearer token
//	GET  /me                  current user (any authenticated role)
//	GET  /student-area        student or admin
//	GET  /users               admin
//	PUT  /users/{id}/role     admin
//	GET  /audit-logs          admin
//	GET  /health              liveness plus database ping
//	GET  /metrics             Prometheus exposition
//
// # Security
//
// Bearer tokens are resolved on every request and role gates use the role
// stored in the database, so a promotion or demotion takes effect without
// reissuing tokens. Authentication failures are always reported before
// authorization failures (401 before 403).
package api
