package auth

import (
	"encoding/json"
	"net"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Handler exposes the auth flows over HTTP.
type Handler struct {
	svc     *Service
	cookies CookieConfig
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, cookies CookieConfig, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, cookies: cookies, logger: logger}
}

// RegisterRequest request body for register endpoint.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	email, err := h.svc.Register(r.Context(), RegisterInput(req))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully, OTP sent to email",
		"email":   email,
	})
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP verified successfully!")
}

type EmailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ResendOTP(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP resent successfully")
}

// LoginRequest login payload.
type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		CaptchaToken: req.RecaptchaToken,
		RemoteIP:     remoteIP(r),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.cookies.set(w, sess.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Login successful",
		"accessToken": sess.AccessToken,
		"user":        sess.User,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Refresh(r.Context(), refreshCookie(r))
	if err != nil {
		if AsError(err).Kind == KindForbidden {
			h.cookies.clear(w)
		}
		writeError(w, h.logger, err)
		return
	}
	h.cookies.set(w, sess.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": sess.AccessToken})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), refreshCookie(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.cookies.clear(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// Me must be mounted behind RequireAuth.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, newError(KindUnauthenticated, "Invalid or expired token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Token valid", "user": id})
}

type ForgotPasswordRequest struct {
	Email        string `json:"email"`
	CaptchaToken string `json:"captchaToken"`
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.svc.ForgotPassword(r.Context(), ForgotPasswordInput{
		Email:        req.Email,
		CaptchaToken: req.CaptchaToken,
		RemoteIP:     remoteIP(r),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP sent to email")
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.svc.ResetPassword(r.Context(), ResetPasswordInput{Email: req.Email, Code: req.OTP, NewPassword: req.NewPassword})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset successful")
}

type GoogleRequest struct {
	IDToken string `json:"idToken"`
}

func (h *Handler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.cookies.set(w, sess.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Google Login Successful",
		"token":   sess.AccessToken,
		"user":    sess.User,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

type errorBody struct {
	Message         string `json:"message"`
	CaptchaRequired bool   `json:"captchaRequired,omitempty"`
}

func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	e := AsError(err)
	if e.Kind == KindUnexpected {
		logger.Errorw("request failed", "err", e.Err)
	}
	writeJSON(w, StatusCode(e.Kind), errorBody{Message: e.Message, CaptchaRequired: e.CaptchaRequired})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
