// Package model defines the data structures used throughout the application.
package model

// GoogleSentinelPassword is stored in users.password for accounts created
// through Google sign-in. It is not a bcrypt hash, so it can never verify
// against a local login attempt.
const GoogleSentinelPassword = "google-auth"

// User is a registered account.
//
// Password holds the bcrypt hash for local accounts and
// GoogleSentinelPassword for accounts created through Google sign-in. It is
// never rendered: the json tag is "-" and templates only read names and Photo.
type User struct {
	ID        int64  `json:"id"        db:"id"`
	FirstName string `json:"firstname" db:"firstname"`
	LastName  string `json:"lastname"  db:"lastname"`
	Email     string `json:"email"     db:"email"`
	Password  string `json:"-"         db:"password"`
	Photo     string `json:"photo"     db:"photo"` // empty when the user has none
}

// IsOAuth reports whether the account was created through Google sign-in.
func (u *User) IsOAuth() bool {
	return u.Password == GoogleSentinelPassword
}

// DisplayName is the name shown in the page header.
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return u.Email
	}
	return u.FirstName
}
