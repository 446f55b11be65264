// Package objects manages property objects created through the API.
//
// Each object is registered in a managed.Context for as long as it is
// live, archived on every change while registered, and mirrored onto the
// topic hub so that "objects/<uuid>/<property>" carries its values.
// Releasing an object keeps the archive so it can be restored later.
package objects
