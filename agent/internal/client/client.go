package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Command mirrors the server's queued-instruction record, trimmed to the
// fields an agent acts on.
type Command struct {
	ID      string `json:"ID"`
	Type    string `json:"Type"`
	Payload string `json:"Payload"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client talks to the fleet backend on behalf of one device.
type Client struct {
	BaseURL  string
	Token    string
	DeviceID string
	HTTP     *http.Client
}

func New(baseURL, token, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		Token:    token,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: %s (status %d)", method, path, env.Error, resp.StatusCode)
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// Heartbeat reports liveness plus the hardware profile and returns any
// commands the server drained for this device.
func (c *Client) Heartbeat(ctx context.Context, profile any) ([]Command, error) {
	req := map[string]any{}
	if profile != nil {
		req["hardware_profile"] = profile
	}
	var data struct {
		Commands []Command `json:"commands"`
	}
	err := c.do(ctx, http.MethodPost, "/api/devices/"+c.DeviceID+"/heartbeat", req, &data)
	if err != nil {
		return nil, err
	}
	return data.Commands, nil
}

func (c *Client) ReportResult(ctx context.Context, commandID string, success bool, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	body := map[string]any{
		"command_id": commandID,
		"success":    success,
		"result":     json.RawMessage(raw),
	}
	return c.do(ctx, http.MethodPost, "/api/devices/"+c.DeviceID+"/command-result", body, nil)
}

// ReportOutcome pushes deployment progress for this device.
func (c *Client) ReportOutcome(ctx context.Context, deploymentID, status string, progress int, errMsg string) error {
	body := map[string]any{"status": status, "progress": progress}
	if errMsg != "" {
		body["error"] = errMsg
	}
	path := "/api/deployments/" + deploymentID + "/devices/" + c.DeviceID + "/outcome"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// Download fetches an artifact into dir and verifies its sha256 against
// wantHash before handing the staged path back. A mismatched file is removed.
func (c *Client) Download(ctx context.Context, url, dir, wantHash string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	dst := filepath.Join(dir, filepath.Base(req.URL.Path))
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	_, cpErr := io.Copy(io.MultiWriter(f, h), resp.Body)
	closeErr := f.Close()
	if cpErr != nil {
		_ = os.Remove(dst)
		return "", cpErr
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return "", closeErr
	}
	got := hex.EncodeToString(h.Sum(nil))
	if wantHash != "" && got != wantHash {
		_ = os.Remove(dst)
		return "", fmt.Errorf("checksum mismatch for %s: got %s want %s", dst, got, wantHash)
	}
	return dst, nil
}
