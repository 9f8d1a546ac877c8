// Package client provides a Go client for the walletgate API.
package client

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/wallet"
)

// Client talks to a walletgate server on behalf of one wallet.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Address    string
	Token      string
	TokenExp   time.Time
}

// Credentials holds the wallet keypair and its derived address.
type Credentials struct {
	Address    string
	PrivateKey *secp256k1.PrivateKey
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GenerateCredentials creates a fresh wallet keypair.
func GenerateCredentials() (*Credentials, error) {
	key, err := wallet.NewKey()
	if err != nil {
		return nil, err
	}
	return &Credentials{
		Address:    wallet.AddressOf(key.PubKey()),
		PrivateKey: key,
	}, nil
}

// CredentialsFromKey restores credentials from a hex-encoded private key.
func CredentialsFromKey(privKeyHex string) (*Credentials, error) {
	raw, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	return &Credentials{
		Address:    wallet.AddressOf(key.PubKey()),
		PrivateKey: key,
	}, nil
}

// ExportKey returns the hex-encoded private key for persistence.
func (creds *Credentials) ExportKey() string {
	return hex.EncodeToString(creds.PrivateKey.Serialize())
}

// GetChallenge fetches the server's fixed sign-in message.
func (c *Client) GetChallenge() (string, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/api/challenge")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Challenge string `json:"challenge"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", errors.New(result.Error)
	}
	return result.Challenge, nil
}

// Login signs the server challenge and stores the issued bearer token.
func (c *Client) Login(creds *Credentials) error {
	challenge, err := c.GetChallenge()
	if err != nil {
		return fmt.Errorf("get challenge: %w", err)
	}

	body, _ := json.Marshal(map[string]string{
		"address":   creds.Address,
		"message":   challenge,
		"signature": wallet.Sign(creds.PrivateKey, challenge),
	})
	resp, err := c.HTTPClient.Post(c.BaseURL+"/api/validate-wallet", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Token     string    `json:"token"`
		Address   string    `json:"address"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	c.Address = result.Address
	c.Token = result.Token
	c.TokenExp = result.ExpiresAt
	return nil
}

// IsAuthenticated reports whether the client holds an unexpired token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != "" && time.Now().Before(c.TokenExp)
}

// Wallet returns the resolved asset view of the authenticated wallet.
func (c *Client) Wallet() (address string, assets []string, err error) {
	var result struct {
		Address string   `json:"address"`
		Assets  []string `json:"assets"`
	}
	if err := c.doJSON(http.MethodGet, "/api/wallets", nil, &result); err != nil {
		return "", nil, err
	}
	return result.Address, result.Assets, nil
}

func (c *Client) ListContent() ([]model.Content, error) {
	var result struct {
		Content []model.Content `json:"content"`
	}
	if err := c.doJSON(http.MethodGet, "/api/content", nil, &result); err != nil {
		return nil, err
	}
	return result.Content, nil
}

func (c *Client) GetContent(id string) (model.Content, error) {
	var result struct {
		Content model.Content `json:"content"`
	}
	if err := c.doJSON(http.MethodGet, "/api/content/"+url.PathEscape(id), nil, &result); err != nil {
		return model.Content{}, err
	}
	return result.Content, nil
}

func (c *Client) CreateContent(title, description, token string, isPublic bool) (model.Content, error) {
	var result struct {
		Content model.Content `json:"content"`
	}
	body := map[string]any{"title": title, "description": description, "token": token, "isPublic": isPublic}
	if err := c.doJSON(http.MethodPost, "/api/content", body, &result); err != nil {
		return model.Content{}, err
	}
	return result.Content, nil
}

func (c *Client) UpdateContent(id, title, description string, isPublic bool) (model.Content, error) {
	var result struct {
		Content model.Content `json:"content"`
	}
	body := map[string]any{"title": title, "description": description, "isPublic": isPublic}
	if err := c.doJSON(http.MethodPut, "/api/content/"+url.PathEscape(id), body, &result); err != nil {
		return model.Content{}, err
	}
	return result.Content, nil
}

func (c *Client) ListPosts(contentID string) ([]model.Post, error) {
	var result struct {
		Posts []model.Post `json:"posts"`
	}
	path := "/api/posts?contentId=" + url.QueryEscape(contentID)
	if err := c.doJSON(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Posts, nil
}

func (c *Client) GetPost(id string) (model.PostDetail, error) {
	var result struct {
		Post model.PostDetail `json:"post"`
	}
	if err := c.doJSON(http.MethodGet, "/api/posts/"+url.PathEscape(id), nil, &result); err != nil {
		return model.PostDetail{}, err
	}
	return result.Post, nil
}

func (c *Client) CreatePost(contentID, title, text string) (model.Post, error) {
	var result struct {
		Post model.Post `json:"post"`
	}
	body := map[string]any{"contentId": contentID, "title": title, "text": text}
	if err := c.doJSON(http.MethodPost, "/api/posts", body, &result); err != nil {
		return model.Post{}, err
	}
	return result.Post, nil
}

func (c *Client) UpdatePost(id, title, text string) (model.Post, error) {
	var result struct {
		Post model.Post `json:"post"`
	}
	body := map[string]any{"title": title, "text": text}
	if err := c.doJSON(http.MethodPut, "/api/posts/"+url.PathEscape(id), body, &result); err != nil {
		return model.Post{}, err
	}
	return result.Post, nil
}

func (c *Client) DeletePost(id string) error {
	return c.doJSON(http.MethodDelete, "/api/posts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListComments(contentID, postID string) ([]model.Comment, error) {
	var result struct {
		Comments []model.Comment `json:"comments"`
	}
	path := "/api/comments?contentId=" + url.QueryEscape(contentID) + "&postId=" + url.QueryEscape(postID)
	if err := c.doJSON(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Comments, nil
}

func (c *Client) CreateComment(postID, comment string) (model.Comment, error) {
	var result struct {
		Comment model.Comment `json:"comment"`
	}
	body := map[string]any{"postId": postID, "comment": comment}
	if err := c.doJSON(http.MethodPost, "/api/comments", body, &result); err != nil {
		return model.Comment{}, err
	}
	return result.Comment, nil
}

func (c *Client) UpdateComment(id, comment string) (model.Comment, error) {
	var result struct {
		Comment model.Comment `json:"comment"`
	}
	if err := c.doJSON(http.MethodPut, "/api/comments/"+url.PathEscape(id), map[string]any{"comment": comment}, &result); err != nil {
		return model.Comment{}, err
	}
	return result.Comment, nil
}

func (c *Client) DeleteComment(id string) error {
	return c.doJSON(http.MethodDelete, "/api/comments/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Version() (string, error) {
	var result struct {
		Version string `json:"version"`
	}
	if err := c.doJSON(http.MethodGet, "/api/version", nil, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

func (c *Client) Stats() (model.Stats, error) {
	var stats model.Stats
	if err := c.doJSON(http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return model.Stats{}, err
	}
	return stats, nil
}

// doJSON performs an authenticated request and decodes the response into
// out. Non-2xx responses surface the server's error message.
func (c *Client) doJSON(method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Address", c.Address)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s (%d): %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s (%d): %s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
