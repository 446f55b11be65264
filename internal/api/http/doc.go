// Package http provides the REST handlers of the observable server.
//
// Endpoints:
//   - Objects: create, inspect, set properties, release, restore, delete
//   - Archives: list stored property dictionaries
//   - Topics: publish values, derive topics from JavaScript expressions
//   - Webhooks: forward matching topic messages to external URLs
//   - Health and metrics
//
// Errors are answered as {"success": false, "error": "..."} with a status
// chosen from the sentinel error.
package http
