package controllers

import (
	"net/http"
	"time"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/dto"
	jwtutil "vdi-fleet/backend/app/jwt"
	"vdi-fleet/backend/app/services"
)

type AuthController struct {
	Users  *services.UserService
	Signer *jwtutil.Signer
}

func NewAuthController(users *services.UserService, signer *jwtutil.Signer) *AuthController {
	return &AuthController{Users: users, Signer: signer}
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decode(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		respondErr(w, apperr.InvalidInput("missing credentials"))
		return
	}
	u, err := c.Users.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		respond(w, http.StatusUnauthorized, dto.Fail("invalid credentials"))
		return
	}
	token, err := c.Signer.Sign(u.ID, u.Username, u.Role)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, dto.TokenResponse{AccessToken: token})
}

// DeviceToken issues an agent credential bound to one device id. Admin
// only; handed to the device during enrollment.
func (c *AuthController) DeviceToken(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	token, err := c.Signer.SignDevice(deviceID, 365*24*time.Hour)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, dto.TokenResponse{AccessToken: token})
}
