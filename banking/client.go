package banking

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the open-banking aggregator (Yapily-style REST API with
// Basic auth and a Consent header carrying the user's consent token).
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type APIAccount struct {
	ID           string  `json:"id"`
	AccountType  string  `json:"accountType"`
	Currency     string  `json:"currency"`
	Balance      float64 `json:"balance"`
	AccountNames []struct {
		Name string `json:"name"`
	} `json:"accountNames"`
}

type APITransaction struct {
	ID                string `json:"id"`
	Description       string `json:"description"`
	BookingDate       string `json:"bookingDate"`
	Date              string `json:"date"`
	TransactionAmount struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"transactionAmount"`
}

// API is the aggregator surface the banking service depends on.
type API interface {
	CreateConsentURL(userUUID, institutionID, callbackURL string) (string, error)
	Accounts(consentToken string) ([]APIAccount, error)
	Transactions(consentToken, accountID string) ([]APITransaction, error)
}

func (c *Client) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.apiKey+":"+c.apiSecret))
}

func (c *Client) get(path, consentToken string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.basicAuth())
	req.Header.Set("Consent", consentToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("open-banking API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open-banking API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateConsentURL starts an account-auth request and returns the institution
// authorisation URL the user must visit to grant consent.
func (c *Client) CreateConsentURL(userUUID, institutionID, callbackURL string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"userUuid":      userUUID,
		"institutionId": institutionID,
		"callback":      callbackURL,
		"featureScope":  []string{"ACCOUNT", "TRANSACTIONS"},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/account-auth-requests", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.basicAuth())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("open-banking API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("could not create consent URL (status %d)", resp.StatusCode)
	}

	var out struct {
		Data struct {
			AuthorisationURL string `json:"authorisationUrl"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Data.AuthorisationURL == "" {
		return "", fmt.Errorf("no authorisation URL in consent response")
	}
	return out.Data.AuthorisationURL, nil
}

func (c *Client) Accounts(consentToken string) ([]APIAccount, error) {
	var out struct {
		Data []APIAccount `json:"data"`
	}
	if err := c.get("/accounts", consentToken, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Transactions(consentToken, accountID string) ([]APITransaction, error) {
	var out struct {
		Data []APITransaction `json:"data"`
	}
	path := "/accounts/" + url.PathEscape(accountID) + "/transactions"
	if err := c.get(path, consentToken, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
