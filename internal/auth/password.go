// Package auth holds the credential comparison used by the login handler. The protocol this server implements
// compares plaintext passwords; there is no hashing, salting, or token issuance here.
package auth

// ComparePassword reports whether the plaintext password submitted at login matches the plaintext password stored
// for the account.
func ComparePassword(submitted, stored string) bool {
	return submitted == stored
}
