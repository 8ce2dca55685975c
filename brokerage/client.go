package brokerage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Payload shapes for the brokerage aggregator API. Only the fields the sync
// engine consumes are declared.

type Balance struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type AccountMeta struct {
	Type string `json:"type"`
}

type Account struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Number          string       `json:"number"`
	InstitutionName string       `json:"institution_name"`
	Meta            *AccountMeta `json:"meta"`
	Balance         *Balance     `json:"balance"`
}

type symbolCurrency struct {
	Code string `json:"code"`
}

// SymbolInfo wraps the aggregator's inconsistent symbol field: depending on
// the upstream broker, Symbol is either a plain string or a nested object
// carrying its own "symbol" code.
type SymbolInfo struct {
	Symbol      json.RawMessage `json:"symbol"`
	Description string          `json:"description"`
	Currency    *symbolCurrency `json:"currency"`
}

type Position struct {
	Symbol *SymbolInfo `json:"symbol"`
	Units  float64     `json:"units"`
	Price  float64     `json:"price"`
}

// AccountHoldings is one account plus its open positions.
type AccountHoldings struct {
	Account   *Account   `json:"account"`
	Positions []Position `json:"positions"`
}

type RegisteredUser struct {
	UserID     string `json:"userId"`
	UserSecret string `json:"userSecret"`
}

type Authorization struct {
	ID              string `json:"id"`
	InstitutionName string `json:"institution_name"`
	CreatedDate     string `json:"created_date"`
	Disabled        bool   `json:"disabled"`
	DisabledDate    string `json:"disabled_date"`
}

// API is the aggregator surface the rest of the app depends on.
type API interface {
	RegisterUser(userID string) (RegisteredUser, error)
	ListUserHoldings(userID, userSecret string) ([]AccountHoldings, error)
	ConnectionPortalURL(userID, userSecret, redirectURI string) (string, error)
	ListAuthorizations(userID, userSecret string) ([]Authorization, error)
	RemoveAuthorization(userID, userSecret, authorizationID string) error
}

// ResolveSymbol normalizes a position's symbol to a plain ticker string,
// peeling the nested-object form and falling back to the free-text
// description. Empty means the position has no resolvable identity.
func ResolveSymbol(p Position) string {
	if p.Symbol == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(p.Symbol.Symbol, &s); err == nil && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}

	var nested struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(p.Symbol.Symbol, &nested); err == nil && strings.TrimSpace(nested.Symbol) != "" {
		return strings.TrimSpace(nested.Symbol)
	}

	return strings.TrimSpace(p.Symbol.Description)
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL     string
	clientID    string
	consumerKey string
	httpClient  *http.Client
}

func NewClient(baseURL, clientID, consumerKey string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientID:    clientID,
		consumerKey: consumerKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(method, path string, query url.Values, body, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("clientId", c.clientID)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.consumerKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brokerage API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Detail != "" {
			return fmt.Errorf("brokerage API: %s (status %d)", apiErr.Detail, resp.StatusCode)
		}
		return fmt.Errorf("brokerage API returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode brokerage API response: %w", err)
		}
	}
	return nil
}

func (c *Client) RegisterUser(userID string) (RegisteredUser, error) {
	var registered RegisteredUser
	err := c.do(http.MethodPost, "/api/v1/snapTrade/registerUser", nil,
		map[string]string{"userId": userID}, &registered)
	return registered, err
}

func (c *Client) ListUserHoldings(userID, userSecret string) ([]AccountHoldings, error) {
	query := url.Values{"userId": {userID}, "userSecret": {userSecret}}
	var holdings []AccountHoldings
	err := c.do(http.MethodGet, "/api/v1/holdings", query, nil, &holdings)
	return holdings, err
}

func (c *Client) ConnectionPortalURL(userID, userSecret, redirectURI string) (string, error) {
	query := url.Values{"userId": {userID}, "userSecret": {userSecret}}
	var out struct {
		RedirectURI string `json:"redirectURI"`
	}
	err := c.do(http.MethodPost, "/api/v1/snapTrade/login", query, map[string]interface{}{
		"immediateRedirect": true,
		"customRedirect":    redirectURI,
		"connectionType":    "read",
	}, &out)
	return out.RedirectURI, err
}

func (c *Client) ListAuthorizations(userID, userSecret string) ([]Authorization, error) {
	query := url.Values{"userId": {userID}, "userSecret": {userSecret}}
	var auths []Authorization
	err := c.do(http.MethodGet, "/api/v1/authorizations", query, nil, &auths)
	return auths, err
}

func (c *Client) RemoveAuthorization(userID, userSecret, authorizationID string) error {
	query := url.Values{"userId": {userID}, "userSecret": {userSecret}}
	return c.do(http.MethodDelete, "/api/v1/authorizations/"+url.PathEscape(authorizationID), query, nil, nil)
}
