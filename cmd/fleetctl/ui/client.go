package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Session holds the authenticated HTTP connection to the fleet backend.
type Session struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewSession() *Session {
	return &Session{HTTP: &http.Client{Timeout: 15 * time.Second}}
}

type DeviceEntry struct {
	ID             string
	MACAddress     string
	Hostname       string
	Status         string
	CurrentImageID string
	LastContact    *time.Time
}

type DeploymentEntry struct {
	ID       string
	ImageID  string
	Method   string
	Status   string
	Progress int
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *Session) call(method, path string, body any, out any) error {
	var buf *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(raw)
	} else {
		buf = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.BaseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// Login exchanges credentials for an operator token and pins it on the
// session for every later call.
func (s *Session) Login(baseURL, username, password string) error {
	s.BaseURL = baseURL
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	creds := map[string]string{"username": username, "password": password}
	if err := s.call(http.MethodPost, "/login", creds, &tok); err != nil {
		return err
	}
	s.Token = tok.AccessToken
	return nil
}

func (s *Session) ListDevices() ([]DeviceEntry, error) {
	var devices []DeviceEntry
	if err := s.call(http.MethodGet, "/api/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (s *Session) ListDeployments() ([]DeploymentEntry, error) {
	var deps []DeploymentEntry
	if err := s.call(http.MethodGet, "/api/deployments", nil, &deps); err != nil {
		return nil, err
	}
	return deps, nil
}

func (s *Session) CancelDeployment(id string) error {
	return s.call(http.MethodPost, "/api/deployments/"+id+"/cancel", nil, nil)
}

func (s *Session) PingDevice(deviceID string) error {
	body := map[string]any{"device_id": deviceID, "type": "ping"}
	return s.call(http.MethodPost, "/api/commands", body, nil)
}
