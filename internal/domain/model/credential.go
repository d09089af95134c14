package model

import "time"

// Credential is one user's connection to an Accurate Online database. OwnerID
// identifies the app user that created it; Host is discovered from the API
// token and never supplied by the user.
type Credential struct {
	ID              string
	OwnerID         string
	AppKey          string
	SignatureSecret string
	APIToken        string
	RefreshToken    string
	Host            string // Plain host, e.g. "zeus.accurate.id"; no scheme or path.
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TokenGrant is the result of an OAuth code exchange or refresh.
type TokenGrant struct {
	APIToken     string
	RefreshToken string
	Expiry       time.Time
}
