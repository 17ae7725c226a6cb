package router

import (
	"net/http"

	"vdi-fleet/backend/app/controllers"
	"vdi-fleet/backend/app/middleware"
)

// NewRouter builds the route table. Mutating fleet operations are admin
// only; reads require any operator token; the heartbeat surface accepts
// device tokens bound to the path's device id. The artifact tree is served
// read-only for network-boot and agent fetches.
func NewRouter(
	httpCtrl *controllers.HTTPController,
	authCtrl *controllers.AuthController,
	deviceCtrl *controllers.DeviceController,
	imageCtrl *controllers.ImageController,
	deployCtrl *controllers.DeploymentController,
	heartbeatCtrl *controllers.HeartbeatController,
	cmdCtrl *controllers.CommandController,
	mw *middleware.Auth,
	artifactDir string,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", httpCtrl.Ping)
	mux.HandleFunc("POST /login", authCtrl.Login)

	// devices
	mux.Handle("POST /api/devices", mw.RequireAuth(http.HandlerFunc(deviceCtrl.Register)))
	mux.Handle("GET /api/devices", mw.RequireAuth(http.HandlerFunc(deviceCtrl.List)))
	mux.Handle("GET /api/devices/stale", mw.RequireAuth(http.HandlerFunc(deviceCtrl.Stale)))
	mux.Handle("GET /api/devices/{id}", mw.RequireAuth(http.HandlerFunc(deviceCtrl.Get)))
	mux.Handle("PATCH /api/devices/{id}", mw.RequireAuth(http.HandlerFunc(deviceCtrl.Update)))
	mux.Handle("DELETE /api/devices/{id}", mw.RequireAdmin(http.HandlerFunc(deviceCtrl.Delete)))
	mux.Handle("POST /api/devices/{id}/token", mw.RequireAdmin(http.HandlerFunc(authCtrl.DeviceToken)))

	// device-facing channel
	mux.Handle("POST /api/devices/{id}/heartbeat", mw.RequireDevice(http.HandlerFunc(heartbeatCtrl.Heartbeat)))
	mux.Handle("POST /api/devices/{id}/command-result", mw.RequireDevice(http.HandlerFunc(heartbeatCtrl.CommandResult)))

	// image builds
	mux.Handle("POST /api/images/builds", mw.RequireAdmin(http.HandlerFunc(imageCtrl.Submit)))
	mux.Handle("GET /api/images/builds", mw.RequireAuth(http.HandlerFunc(imageCtrl.ListJobs)))
	mux.Handle("GET /api/images/builds/{id}", mw.RequireAuth(http.HandlerFunc(imageCtrl.GetJob)))
	mux.Handle("POST /api/images/builds/{id}/cancel", mw.RequireAdmin(http.HandlerFunc(imageCtrl.CancelJob)))
	mux.Handle("GET /api/images", mw.RequireAuth(http.HandlerFunc(imageCtrl.List)))
	mux.Handle("GET /api/images/{id}", mw.RequireAuth(http.HandlerFunc(imageCtrl.Get)))
	mux.Handle("DELETE /api/images/{id}", mw.RequireAdmin(http.HandlerFunc(imageCtrl.Delete)))

	// deployments
	mux.Handle("POST /api/deployments", mw.RequireAdmin(http.HandlerFunc(deployCtrl.Deploy)))
	mux.Handle("GET /api/deployments", mw.RequireAuth(http.HandlerFunc(deployCtrl.List)))
	mux.Handle("GET /api/deployments/{id}", mw.RequireAuth(http.HandlerFunc(deployCtrl.Get)))
	mux.Handle("POST /api/deployments/{id}/cancel", mw.RequireAdmin(http.HandlerFunc(deployCtrl.Cancel)))
	mux.Handle("POST /api/deployments/{id}/rollback", mw.RequireAdmin(http.HandlerFunc(deployCtrl.Rollback)))
	mux.Handle("POST /api/deployments/{id}/devices/{deviceID}/outcome", mw.RequireDevice(http.HandlerFunc(deployCtrl.Outcome)))

	// commands
	mux.Handle("POST /api/commands", mw.RequireAdmin(http.HandlerFunc(cmdCtrl.Enqueue)))
	mux.Handle("GET /api/commands", mw.RequireAuth(http.HandlerFunc(cmdCtrl.List)))
	mux.Handle("POST /api/commands/{id}/resend", mw.RequireAdmin(http.HandlerFunc(cmdCtrl.Resend)))
	mux.Handle("GET /api/online", mw.RequireAuth(http.HandlerFunc(cmdCtrl.Online)))

	// static artifact transport for boot and push delivery
	if artifactDir != "" {
		mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(artifactDir))))
	}

	return mux
}
