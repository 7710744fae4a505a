package rest

import (
	"net/http"
	"strings"

	"github.com/rbroggi/parcelhub/internal/core/model"
)

type authHandler struct {
	responder
	decoder
	auth        authUsecase
	frontendURL string
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetPasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

type loginData struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         model.User `json:"user"`
}

func (h *authHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *authHandler) setTokenCookies(w http.ResponseWriter, tokens model.TokenPair) {
	if tokens.AccessToken != "" {
		h.setCookie(w, accessTokenCookie, tokens.AccessToken, 0)
	}
	if tokens.RefreshToken != "" {
		h.setCookie(w, refreshTokenCookie, tokens.RefreshToken, 0)
	}
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, res.Tokens)
	h.ok(w, http.StatusOK, "User logged in successfully", loginData{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.User,
	})
}

// refresh reads the refresh token from its cookie, falling back to the body.
func (h *authHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req refreshRequest
		if err := h.decode(r, &req, true); err != nil {
			h.writeError(w, r, err)
			return
		}
		token = req.RefreshToken
	}
	pair, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, *pair)
	h.ok(w, http.StatusOK, "New access token retrieved successfully", pair)
}

func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, accessTokenCookie, "", -1)
	h.setCookie(w, refreshTokenCookie, "", -1)
	h.ok(w, http.StatusOK, "User logged out successfully", nil)
}

func (h *authHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), principal(r), req.OldPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "Password changed successfully", nil)
}

// federatedRedirect sends the browser to the provider. The redirect parameter comes back as state.
func (h *authHandler) federatedRedirect(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("redirect")
	if state == "" {
		state = "/"
	}
	url, err := h.auth.FederatedLoginURL(state)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *authHandler) federatedCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.auth.FederatedLogin(r.Context(), q.Get("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, res.Tokens)
	http.Redirect(w, r, h.callbackTarget(q.Get("state")), http.StatusFound)
}

// callbackTarget keeps redirects on the frontend: the state is only used as a path.
func (h *authHandler) callbackTarget(state string) string {
	path := strings.TrimLeft(state, "/")
	if strings.Contains(path, "://") || strings.HasPrefix(state, "//") {
		path = ""
	}
	return strings.TrimRight(h.frontendURL, "/") + "/" + path
}

