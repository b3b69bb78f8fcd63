package echo

import (
	"time"

	"github.com/glowmart/storefront-bff/domain"
	"github.com/glowmart/storefront-bff/services"
)

// UserView is the wire shape of a user. Credential material never leaves
// the server.
type UserView struct {
	ID                string    `json:"id"`
	Provider          string    `json:"provider"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name,omitempty"`
	LastName          string    `json:"last_name,omitempty"`
	ShopifyCustomerID string    `json:"shopify_customer_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func userView(u *domain.User) UserView {
	return UserView{
		ID:                u.ID,
		Provider:          string(u.Provider),
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ShopifyCustomerID: u.ShopifyCustomerID,
		CreatedAt:         u.CreatedAt,
	}
}

type AuthResponse struct {
	User      UserView            `json:"user"`
	IsNewUser bool                `json:"is_new_user"`
	Tokens    *services.TokenPair `json:"tokens"`
}

func authResponse(result *services.AuthResult) AuthResponse {
	return AuthResponse{
		User:      userView(result.User),
		IsNewUser: result.IsNewUser,
		Tokens:    result.Tokens,
	}
}
