// Package auth holds the credential and identity primitives: bcrypt password
// hashing, signed access tokens, and resolution of a token to a live actor.
package auth
