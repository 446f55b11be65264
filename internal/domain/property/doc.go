// Package property provides managed objects with named properties.
//
// An Object has a UUID identity (so it satisfies managed.Object), a set of
// properties declared with DefineProperty, and a stream of Change values
// published whenever Set alters a property. ReadFromDict and WriteToDict
// convert the object to and from a plain dictionary for archiving; reading
// is tolerant of missing and unknown keys so older archives keep loading.
//
// Restore identity with ReadFromDict before registering the object in a
// managed.Context; the context keys registrations by UUID.
package property
