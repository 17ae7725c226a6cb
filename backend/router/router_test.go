package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"vdi-fleet/backend/app/builder"
	"vdi-fleet/backend/app/controllers"
	"vdi-fleet/backend/app/db"
	jwtutil "vdi-fleet/backend/app/jwt"
	"vdi-fleet/backend/app/middleware"
	"vdi-fleet/backend/app/models"
	"vdi-fleet/backend/app/presence"
	"vdi-fleet/backend/app/pxe"
	"vdi-fleet/backend/app/repo"
	"vdi-fleet/backend/app/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	gdb, err := db.Connect(db.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "fleet.db")})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{}, &models.Device{}, &models.Image{}, &models.BuildJob{},
		&models.Deployment{}, &models.DeploymentTarget{}, &models.DeviceReservation{},
		&models.Command{},
	))

	devices := repo.NewDeviceRepository(gdb)
	images := repo.NewImageRepository(gdb)
	jobs := repo.NewBuildJobRepository(gdb)
	deployments := repo.NewDeploymentRepository(gdb)
	commands := repo.NewCommandRepository(gdb)
	users := repo.NewUserRepository(gdb)

	boot := pxe.NewGenerator(t.TempDir())
	dhcp := pxe.NewReservations(filepath.Join(t.TempDir(), "vdi-devices.conf"))
	tracker := presence.NewTracker(nil, time.Minute)
	log := zerolog.Nop()

	deviceSvc := services.NewDeviceService(devices, deployments, commands, boot, dhcp, tracker)
	buildSvc := services.NewBuildService(jobs, images, builder.NewLocal(t.TempDir()), log)
	deploySvc := services.NewDeploymentService(deployments, devices, images, commands, boot, "http://fleet/images", log)
	beatSvc := services.NewHeartbeatService(devices, commands, deploySvc, tracker, time.Minute, log)
	userSvc := services.NewUserService(users)
	require.NoError(t, userSvc.EnsureAdmin("admin", "admin123"))

	signer := &jwtutil.Signer{Secret: []byte("test-secret"), Issuer: "vdi-fleet", ExpMin: 60}
	mw := &middleware.Auth{Signer: signer}

	h := NewRouter(
		controllers.NewHTTPController(),
		controllers.NewAuthController(userSvc, signer),
		controllers.NewDeviceController(deviceSvc),
		controllers.NewImageController(buildSvc),
		controllers.NewDeploymentController(deploySvc),
		controllers.NewHeartbeatController(beatSvc),
		controllers.NewCommandController(beatSvc),
		mw,
		"",
	)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/login", "", map[string]string{
		"username": "admin", "password": "admin123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func TestLoginAndAuthGate(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/login", "", map[string]string{
		"username": "admin", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)

	token := login(t, srv)
	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/devices", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestDeviceRegistrationOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/devices", token, map[string]string{
		"mac_address": "AA-BB-CC-DD-EE-FF", "hostname": "tc-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dev models.Device
	require.NoError(t, json.Unmarshal(env.Data, &dev))
	assert.Equal(t, "aabbccddeeff", dev.ID)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", dev.MACAddress)

	// duplicate spelled differently
	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/devices", token, map[string]string{
		"mac_address": "aa:bb:cc:dd:ee:ff",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/devices", token, map[string]string{
		"mac_address": "nonsense",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/devices/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeviceTokenBoundToDevice(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/devices", admin, map[string]string{
		"mac_address": "aa:bb:cc:dd:ee:01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/devices", admin, map[string]string{
		"mac_address": "aa:bb:cc:dd:ee:02",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/devices/aabbccddee01/token", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))

	// the token heartbeats its own device
	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/devices/aabbccddee01/heartbeat", tok.AccessToken, map[string]any{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	// but not another one
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/devices/aabbccddee02/heartbeat", tok.AccessToken, map[string]any{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// and cannot reach operator surfaces as admin
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/deployments", tok.AccessToken, map[string]any{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOnlineListingOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/devices", admin, map[string]string{
		"mac_address": "aa:bb:cc:dd:ee:01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/devices/aabbccddee01/token", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/devices/aabbccddee01/heartbeat", tok.AccessToken, map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// single-device check
	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/online?device=aabbccddee01", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one struct {
		Online bool `json:"online"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &one))
	assert.True(t, one.Online)

	// without a device parameter the whole fleet is listed
	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/online", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fleet struct {
		Devices []string `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fleet))
	assert.Equal(t, []string{"aabbccddee01"}, fleet.Devices)
}
