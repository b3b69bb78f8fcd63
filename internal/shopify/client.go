package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
)

const defaultAPIVersion = "2025-04"

// ProvisionedCustomer is the result of CreateCustomer: the (created or
// found-existing) customer id plus a freshly minted access token.
type ProvisionedCustomer struct {
	CustomerID string
	Token      domain.CustomerToken
}

// Client issues the customer-facing operations this service needs against
// Shopify: customerCreate, customerAccessTokenCreate and
// customerAccessTokenRenew on the Storefront API, plus a customer-by-email
// lookup on the Admin API for duplicate-email resolution. It is stateless
// and performs no retries; retry policy belongs to callers.
type Client struct {
	shopDomain      string // e.g. "glowmart.myshopify.com"
	apiVersion      string
	storefrontToken string
	adminToken      string
	httpClient      *http.Client

	// Overridable in tests; normally derived from shopDomain.
	storefrontEndpoint string
	adminEndpoint      string
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides both GraphQL endpoints. Used by tests to point
// the client at a local server.
func WithEndpoints(storefront, admin string) Option {
	return func(c *Client) {
		c.storefrontEndpoint = storefront
		c.adminEndpoint = admin
	}
}

// NewClient builds a Shopify client for the given shop. shopName is the
// bare shop handle ("glowmart"), not the full domain.
func NewClient(shopName, apiVersion, storefrontToken, adminToken string, opts ...Option) (*Client, error) {
	if shopName == "" {
		return nil, apperrors.NewConfigurationError("SHOPIFY_SHOP_NAME")
	}
	if storefrontToken == "" {
		return nil, apperrors.NewConfigurationError("SHOPIFY_STOREFRONT_TOKEN")
	}
	if adminToken == "" {
		return nil, apperrors.NewConfigurationError("SHOPIFY_ADMIN_TOKEN")
	}
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	c := &Client{
		shopDomain:      fmt.Sprintf("%s.myshopify.com", shopName),
		apiVersion:      apiVersion,
		storefrontToken: storefrontToken,
		adminToken:      adminToken,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
	}
	c.storefrontEndpoint = fmt.Sprintf("https://%s/api/%s/graphql.json", c.shopDomain, apiVersion)
	c.adminEndpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.shopDomain, apiVersion)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) storefrontHeaders() map[string]string {
	return map[string]string{"X-Shopify-Storefront-Access-Token": c.storefrontToken}
}

func (c *Client) adminHeaders() map[string]string {
	return map[string]string{"X-Shopify-Access-Token": c.adminToken}
}

type accessTokenPayload struct {
	CustomerAccessToken *struct {
		AccessToken string `json:"accessToken"`
		ExpiresAt   string `json:"expiresAt"`
	} `json:"customerAccessToken"`
	CustomerUserErrors []UserError `json:"customerUserErrors"`
}

func (p *accessTokenPayload) toToken(op string) (domain.CustomerToken, error) {
	if len(p.CustomerUserErrors) > 0 {
		return domain.CustomerToken{}, apperrors.NewCommerceAuthError(op, joinUserErrors(p.CustomerUserErrors)...)
	}
	if p.CustomerAccessToken == nil || p.CustomerAccessToken.AccessToken == "" {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError(op, fmt.Errorf("empty token payload"))
	}
	expiresAt, err := time.Parse(time.RFC3339, p.CustomerAccessToken.ExpiresAt)
	if err != nil {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError(op, fmt.Errorf("bad expiresAt %q: %w", p.CustomerAccessToken.ExpiresAt, err))
	}
	return domain.CustomerToken{
		AccessToken: p.CustomerAccessToken.AccessToken,
		ExpiresAt:   expiresAt,
	}, nil
}

const createAccessTokenMutation = `
mutation customerAccessTokenCreate($input: CustomerAccessTokenCreateInput!) {
  customerAccessTokenCreate(input: $input) {
    customerAccessToken { accessToken expiresAt }
    customerUserErrors { field code message }
  }
}`

// CreateAccessToken exchanges email+password for a fresh customer access
// token. Credential rejections (wrong password, disabled account, any
// userErrors list) come back as CommerceAuthError; transport failures as
// CommerceUnavailableError.
func (c *Client) CreateAccessToken(ctx context.Context, email, password string) (domain.CustomerToken, error) {
	const op = "customerAccessTokenCreate"

	type payload struct {
		Result accessTokenPayload `json:"customerAccessTokenCreate"`
	}
	resp, err := postGraphQL[payload](ctx, c.httpClient, c.storefrontEndpoint, c.storefrontHeaders(), createAccessTokenMutation, map[string]any{
		"input": map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError(op, err)
	}
	if len(resp.Errors) > 0 {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError(op, fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}
	return resp.Data.Result.toToken(op)
}

const renewAccessTokenMutation = `
mutation customerAccessTokenRenew($customerAccessToken: String!) {
  customerAccessTokenRenew(customerAccessToken: $customerAccessToken) {
    customerAccessToken { accessToken expiresAt }
    userErrors { field message }
  }
}`

// RenewAccessToken exchanges a near-expiry (but not hard-invalidated)
// token for a fresh one. A token the platform refuses to renew yields a
// CommerceAuthError so the caller can fall back to password reauth.
func (c *Client) RenewAccessToken(ctx context.Context, accessToken string) (domain.CustomerToken, error) {
	const op = "customerAccessTokenRenew"

	type renewPayload struct {
		CustomerAccessToken *struct {
			AccessToken string `json:"accessToken"`
			ExpiresAt   string `json:"expiresAt"`
		} `json:"customerAccessToken"`
		UserErrors []UserError `json:"userErrors"`
	}
	type payload struct {
		Result renewPayload `json:"customerAccessTokenRenew"`
	}

	resp, err := postGraphQL[payload](ctx, c.httpClient, c.storefrontEndpoint, c.storefrontHeaders(), renewAccessTokenMutation, map[string]any{
		"customerAccessToken": accessToken,
	})
	if err != nil {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError(op, err)
	}
	if len(resp.Errors) > 0 {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError(op, fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}

	result := resp.Data.Result
	normalized := accessTokenPayload{
		CustomerAccessToken: result.CustomerAccessToken,
		CustomerUserErrors:  result.UserErrors,
	}
	return normalized.toToken(op)
}

const createCustomerMutation = `
mutation customerCreate($input: CustomerCreateInput!) {
  customerCreate(input: $input) {
    customer { id email }
    customerUserErrors { field code message }
  }
}`

// CreateCustomer creates a Shopify customer account and mints its first
// access token. If the platform reports the email as already taken, the
// existing customer is resolved by admin lookup instead of surfacing the
// duplicate error; callers always receive either a created or found
// customer. The access token is minted with the supplied password either
// way.
func (c *Client) CreateCustomer(ctx context.Context, email, password, firstName, lastName string) (*ProvisionedCustomer, error) {
	const op = "customerCreate"

	input := map[string]any{"email": email, "password": password}
	if firstName != "" {
		input["firstName"] = firstName
	}
	if lastName != "" {
		input["lastName"] = lastName
	}

	type createPayload struct {
		Customer *struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"customer"`
		CustomerUserErrors []UserError `json:"customerUserErrors"`
	}
	type payload struct {
		Result createPayload `json:"customerCreate"`
	}

	resp, err := postGraphQL[payload](ctx, c.httpClient, c.storefrontEndpoint, c.storefrontHeaders(), createCustomerMutation, map[string]any{"input": input})
	if err != nil {
		return nil, apperrors.NewCommerceUnavailableError(op, err)
	}
	if len(resp.Errors) > 0 {
		return nil, apperrors.NewCommerceUnavailableError(op, fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}

	result := resp.Data.Result
	customerID := ""
	switch {
	case result.Customer != nil && result.Customer.ID != "":
		customerID = result.Customer.ID
	case hasEmailTakenError(result.CustomerUserErrors):
		log.Ctx(ctx).Info().Str("email", email).Msg("customer email already taken, resolving existing customer")
		existingID, lookupErr := c.findCustomerIDByEmail(ctx, email)
		if lookupErr != nil {
			return nil, lookupErr
		}
		customerID = existingID
	case len(result.CustomerUserErrors) > 0:
		return nil, apperrors.NewCommerceAuthError(op, joinUserErrors(result.CustomerUserErrors)...)
	default:
		return nil, apperrors.NewCommerceUnavailableError(op, fmt.Errorf("empty customer payload"))
	}

	token, err := c.CreateAccessToken(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &ProvisionedCustomer{CustomerID: customerID, Token: token}, nil
}

// hasEmailTakenError reports whether the user-error list contains the
// "email has already been taken" rejection.
func hasEmailTakenError(errs []UserError) bool {
	for _, e := range errs {
		onEmail := false
		for _, f := range e.Field {
			if f == "email" {
				onEmail = true
			}
		}
		if e.Code == "TAKEN" || (onEmail && strings.Contains(strings.ToLower(e.Message), "taken")) {
			return true
		}
	}
	return false
}

const customerByEmailQuery = `
query customerByEmail($query: String!) {
  customers(first: 1, query: $query) {
    edges { node { id email } }
  }
}`

// findCustomerIDByEmail resolves an existing customer through the Admin
// API. The Storefront API has no customer search, so this is the one place
// the admin token is needed.
func (c *Client) findCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	const op = "customers"

	type payload struct {
		Customers struct {
			Edges []struct {
				Node struct {
					ID    string `json:"id"`
					Email string `json:"email"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"customers"`
	}

	resp, err := postGraphQL[payload](ctx, c.httpClient, c.adminEndpoint, c.adminHeaders(), customerByEmailQuery, map[string]any{
		"query": fmt.Sprintf("email:%s", email),
	})
	if err != nil {
		return "", apperrors.NewCommerceUnavailableError(op, err)
	}
	if len(resp.Errors) > 0 {
		return "", apperrors.NewCommerceUnavailableError(op, fmt.Errorf("graphql: %s", resp.Errors[0].Message))
	}
	if len(resp.Data.Customers.Edges) == 0 {
		// The platform said the email is taken but the lookup found
		// nothing; treat as a platform inconsistency, not a credential
		// problem.
		return "", apperrors.NewCommerceUnavailableError(op, fmt.Errorf("email reported taken but no customer found for %s", email))
	}
	return resp.Data.Customers.Edges[0].Node.ID, nil
}
