// Package server assembles the observable service: it opens the archive,
// builds the managed registry, topic hub and webhook registry, and mounts
// the REST and WebSocket routes on a gin engine.
package server
