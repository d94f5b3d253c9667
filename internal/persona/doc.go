// Package persona manages the named configuration bundles that select the
// bot's behaviour in a meeting.
//
// A persona is, at minimum, a system prompt; it may also carry a voice ID.
// Personas live in the SQLite store and are resolved once per session:
// either an explicitly requested name (which must exist) or a uniformly
// random pick from the available set.
package persona
