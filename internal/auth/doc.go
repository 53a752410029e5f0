// Package auth provides authentication and authorisation for Ashara Core.
//
// Accounts have one of two roles, admin or client. A session is a pair of
// HS256 JWTs signed with separate secrets:
//   - an access token valid for one hour, presented as a bearer token
//   - a refresh token valid for seven days, exchanged for a new pair
//
// Each user has at most one live refresh token. Issuing a new one replaces
// the stored value, and a refresh only succeeds when the presented token
// matches it, so superseded tokens are rejected even before they expire.
// Refresh rotation uses a conditional update against the previously stored
// value; two concurrent refreshes with the same token cannot both win.
//
// Logout adds the access token to a per-user blacklist and clears the
// refresh token. Blacklisted tokens are rejected until they expire; the
// blacklist itself is never pruned.
//
// Tokens are stored as SHA-256 digests. Passwords are Argon2id, with bcrypt
// hashes from older accounts still accepted and upgraded on login.
package auth
