// Package auth decides whether the shared browser profile holds a usable
// sign-in and whether a user-controlled browser is in the way of a new one.
//
// The credential is the cookie state exported after an interactive login.
// It is valid while the file is younger than the configured maximum age and
// every required cookie is present and unexpired. Gate.Watch keeps a parsed
// copy in memory and drops it when the file changes.
package auth
