// Package http implements the HTTP handlers of the bankcap API.
//
// Handlers stay thin: they decode the request, call a service and render the
// response with chi/render. Service errors are turned into RFC 7807 problem
// documents by internal/errors.
//
//	POST /api/runs               trigger a run (202, or 429 when at capacity)
//	GET  /api/runs               list runs, newest first
//	GET  /api/runs/{id}          one run
//	GET  /api/runs/{id}/results  query results of a succeeded run
//	GET  /api/health             liveness
//	GET  /api/health/ready       readiness
package http
