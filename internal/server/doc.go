// ABOUTME: Package documentation for the server package
// ABOUTME: HTTP boundary and process orchestration for the support bridge

// Package server hosts the webhook endpoints that feed the bridge and owns
// process-level concerns: listening, the periodic expiry sweep, and graceful
// shutdown. Handlers acknowledge every webhook with 200 regardless of routing
// outcome so the upstream platforms never retry into duplicate work.
package server
