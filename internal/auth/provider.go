// Package auth provides authentication functionality.
package auth

// Provider defines the interface for authenticating connections. This server
// never issues credentials; it only verifies tokens minted by the web
// frontend and extracts the caller's identity from them.
type Provider interface {
	// ValidateToken validates a JWT token and returns the claims.
	ValidateToken(token string) (*Claims, error)
}

// Claims is the verified identity carried by a token.
type Claims struct {
	// UserID is the authenticated user's id.
	UserID int32 `json:"userId"`

	// Username is the authenticated user's display name.
	Username string `json:"username"`
}
