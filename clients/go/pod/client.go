// Package pod provides a client for the pod agent communication protocol.
package pod

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Client is a pod API client. Every authenticated request is signed with
// the client's Ed25519 key; the public key is the agent's identity.
type Client struct {
	BaseURL    string
	ConfigDir  string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	HTTPClient *http.Client
}

// NewClient creates a new pod client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("POD_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".pod")
	}

	c := &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadKey()
	return c
}

// LoadKey loads the signing key from disk.
func (c *Client) LoadKey() error {
	keyData, err := os.ReadFile(filepath.Join(c.ConfigDir, "private.key"))
	if err != nil {
		return err
	}

	seed, err := base64.StdEncoding.DecodeString(string(keyData))
	if err != nil {
		return err
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("invalid key seed length %d", len(seed))
	}

	c.PrivateKey = ed25519.NewKeyFromSeed(seed)
	c.PublicKey = c.PrivateKey.Public().(ed25519.PublicKey)
	return nil
}

// SaveKey saves the signing key to disk.
func (c *Client) SaveKey() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	keyData := base64.StdEncoding.EncodeToString(c.PrivateKey.Seed())
	return os.WriteFile(filepath.Join(c.ConfigDir, "private.key"), []byte(keyData), 0600)
}

// GenerateKeypair generates a new Ed25519 keypair.
func (c *Client) GenerateKeypair() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	c.PublicKey = pub
	c.PrivateKey = priv
	return nil
}

// Identity returns the public key in the URL-safe base64 form the API uses.
func (c *Client) Identity() string {
	return base64.URLEncoding.EncodeToString(c.PublicKey)
}

// signRequest creates authentication headers for a request.
func (c *Client) signRequest(body []byte) http.Header {
	hash := sha256.Sum256(body)
	hashHex := hex.EncodeToString(hash[:])

	nonceBytes := make([]byte, 12) // 24 hex chars for adequate entropy
	rand.Read(nonceBytes)
	nonce := hex.EncodeToString(nonceBytes)

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	payload := fmt.Sprintf("%s|%s|%s", hashHex, nonce, timestamp)
	sig := ed25519.Sign(c.PrivateKey, []byte(payload))

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Pod-Key", c.Identity())
	headers.Set("X-Pod-Nonce", nonce)
	headers.Set("X-Pod-Timestamp", timestamp)
	headers.Set("X-Pod-Signature", base64.StdEncoding.EncodeToString(sig))
	return headers
}

// doRequest performs an HTTP request.
func (c *Client) doRequest(method, path string, body []byte, signed bool) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	if signed {
		req.Header = c.signRequest(body)
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("pod error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// AddressResponse is the common response carrying a derived account address.
type AddressResponse struct {
	Address string `json:"address"`
}

// RegisterAgent registers the client's key as an agent. Generates and saves
// a keypair if none is loaded.
func (c *Client) RegisterAgent(capabilities uint64, metadataURI string) (*AddressResponse, error) {
	if c.PrivateKey == nil {
		if err := c.GenerateKeypair(); err != nil {
			return nil, err
		}
		if err := c.SaveKey(); err != nil {
			return nil, err
		}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"capabilities": capabilities,
		"metadata_uri": metadataURI,
	})
	respBody, err := c.doRequest("POST", "/agents", body, true)
	if err != nil {
		return nil, err
	}

	var resp AddressResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAgent fetches an agent account by its owner key.
func (c *Client) GetAgent(ownerKeyB64 string) (json.RawMessage, error) {
	return c.doRequest("GET", "/agents/"+ownerKeyB64, nil, false)
}

// SendMessage encrypts a payload for the recipient, records its hash on the
// ledger, and returns the message address together with the ciphertext for
// off-chain delivery.
func (c *Client) SendMessage(recipientKeyB64, payload string, messageType uint8) (*AddressResponse, string, error) {
	ciphertext, err := EncryptPayload(payload, recipientKeyB64)
	if err != nil {
		return nil, "", err
	}

	body, _ := json.Marshal(map[string]interface{}{
		"recipient":    recipientKeyB64,
		"payload_hash": PayloadHash(ciphertext),
		"message_type": messageType,
	})
	respBody, err := c.doRequest("POST", "/messages", body, true)
	if err != nil {
		return nil, "", err
	}

	var resp AddressResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, "", err
	}
	return &resp, ciphertext, nil
}

// UpdateMessageStatus moves a message to the given delivery status.
func (c *Client) UpdateMessageStatus(messageAddress, status string) error {
	body, _ := json.Marshal(map[string]string{"status": status})
	_, err := c.doRequest("PATCH", "/messages/"+messageAddress+"/status", body, true)
	return err
}

// GetMessage fetches a message account by address.
func (c *Client) GetMessage(address string) (json.RawMessage, error) {
	return c.doRequest("GET", "/messages/"+address, nil, false)
}

// CreateChannel creates a channel. enrollCreator selects the variant that
// adds the creator as the first participant.
func (c *Client) CreateChannel(name, description, visibility string, maxParticipants uint32, feePerMessage uint64, enrollCreator bool) (*AddressResponse, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"name":             name,
		"description":      description,
		"visibility":       visibility,
		"max_participants": maxParticipants,
		"fee_per_message":  feePerMessage,
		"enroll_creator":   enrollCreator,
	})
	respBody, err := c.doRequest("POST", "/channels", body, true)
	if err != nil {
		return nil, err
	}

	var resp AddressResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetChannel fetches a channel account by address.
func (c *Client) GetChannel(address string) (json.RawMessage, error) {
	return c.doRequest("GET", "/channels/"+address, nil, false)
}

// JoinChannel joins a channel.
func (c *Client) JoinChannel(address string) error {
	_, err := c.doRequest("POST", "/channels/"+address+"/join", []byte("{}"), true)
	return err
}

// LeaveChannel leaves a channel.
func (c *Client) LeaveChannel(address string) error {
	_, err := c.doRequest("POST", "/channels/"+address+"/leave", []byte("{}"), true)
	return err
}

// Invite issues a channel invitation to another key.
func (c *Client) Invite(channelAddress, inviteeKeyB64 string, nonce uint64) (*AddressResponse, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"invitee": inviteeKeyB64,
		"nonce":   nonce,
	})
	respBody, err := c.doRequest("POST", "/channels/"+channelAddress+"/invitations", body, true)
	if err != nil {
		return nil, err
	}

	var resp AddressResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Broadcast posts a message to a channel. The nonce must be unique per
// sender and channel.
func (c *Client) Broadcast(channelAddress, content string, messageType uint8, nonce uint64) (*AddressResponse, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"content":      content,
		"message_type": messageType,
		"nonce":        nonce,
	})
	respBody, err := c.doRequest("POST", "/channels/"+channelAddress+"/messages", body, true)
	if err != nil {
		return nil, err
	}

	var resp AddressResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deposit adds funds to the caller's escrow for a channel.
func (c *Client) Deposit(channelAddress string, amount uint64) error {
	body, _ := json.Marshal(map[string]uint64{"amount": amount})
	_, err := c.doRequest("POST", "/channels/"+channelAddress+"/escrow/deposit", body, true)
	return err
}

// Withdraw removes funds from the caller's escrow for a channel.
func (c *Client) Withdraw(channelAddress string, amount uint64) error {
	body, _ := json.Marshal(map[string]uint64{"amount": amount})
	_, err := c.doRequest("POST", "/channels/"+channelAddress+"/escrow/withdraw", body, true)
	return err
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Region    string                 `json:"region,omitempty"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil, false)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
