package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/propspace/authcore"
	"github.com/propspace/authcore/jwt"
)

type apiHandler struct {
	engine *authcore.Engine
	log    *zap.Logger
}

func newAPIHandler(engine *authcore.Engine, log *zap.Logger) *apiHandler {
	return &apiHandler{engine: engine, log: log}
}

func (h *apiHandler) registerRoutes(e *echo.Echo) {
	v1 := e.Group("/v1")
	v1.POST("/otp/send", h.sendOTP)
	v1.POST("/otp/verify", h.verifyOTP)
	v1.POST("/recovery/verify", h.recoveryVerify)
	v1.POST("/recovery/reset", h.recoveryReset)
	v1.POST("/recovery/abandon", h.recoveryAbandon)
	v1.POST("/signup", h.signup)
	v1.POST("/login", h.login)
	v1.POST("/admin/approvals", h.setApproval)
}

type errorBody struct {
	Error      string   `json:"error"`
	RetryAfter int      `json:"retry_after_seconds,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

func (h *apiHandler) sendOTP(c echo.Context) error {
	var req struct {
		Email   string `json:"email"`
		Purpose string `json:"purpose"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	purpose, err := authcore.ParseOTPPurpose(req.Purpose)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_purpose"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	ctx = authcore.WithUserAgent(ctx, c.Request().UserAgent())
	if err := h.engine.IssueOTP(ctx, req.Email, purpose); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *apiHandler) verifyOTP(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	res, err := h.engine.VerifyOTP(ctx, req.Email, req.OTP)
	if err != nil {
		return h.writeError(c, err)
	}
	body := map[string]string{
		"purpose": res.Purpose.String(),
	}
	if res.AccountID != "" {
		body["account_id"] = res.AccountID
	}
	return c.JSON(http.StatusOK, body)
}

func (h *apiHandler) recoveryVerify(c echo.Context) error {
	var req struct {
		Email  string `json:"email"`
		Mobile string `json:"mobile"`
		OTP    string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	token, err := h.engine.SubmitVerification(ctx, req.Email, req.Mobile, req.OTP)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"reset_token": token,
	})
}

func (h *apiHandler) recoveryReset(c echo.Context) error {
	var req struct {
		ResetToken      string `json:"reset_token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	if err := h.engine.SubmitNewPassword(ctx, req.ResetToken, req.NewPassword, req.ConfirmPassword); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *apiHandler) recoveryAbandon(c echo.Context) error {
	var req struct {
		ResetToken string `json:"reset_token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	if err := h.engine.AbandonReset(ctx, req.ResetToken); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *apiHandler) signup(c echo.Context) error {
	var req struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Mobile          string `json:"mobile"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		Role            string `json:"role"`
		OTP             string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	res, err := h.engine.CompleteSignup(ctx, authcore.SignupRequest{
		Name:            req.Name,
		Email:           req.Email,
		Mobile:          req.Mobile,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            authcore.Role(req.Role),
		OTP:             req.OTP,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"account_id":       res.AccountID,
		"role":             string(res.Role),
		"approval_pending": res.Approval == authcore.ApprovalPending,
	})
}

func (h *apiHandler) login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	ctx = authcore.WithUserAgent(ctx, c.Request().UserAgent())
	res, err := h.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": res.AccessToken,
		"account_id":   res.AccountID,
		"role":         string(res.Role),
	})
}

func (h *apiHandler) setApproval(c echo.Context) error {
	claims, err := h.bearerClaims(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	}

	var req struct {
		AccountID string `json:"account_id"`
		Decision  string `json:"decision"` // "granted" or "rejected"
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_request"})
	}

	var status authcore.ApprovalStatus
	switch req.Decision {
	case "granted":
		status = authcore.ApprovalGranted
	case "rejected":
		status = authcore.ApprovalRejected
	default:
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_decision"})
	}

	ctx := authcore.WithClientIP(c.Request().Context(), c.RealIP())
	updated, err := h.engine.SetAdminApproval(ctx, claims.UID, req.AccountID, status)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"account_id": updated.AccountID,
		"decision":   req.Decision,
	})
}

func (h *apiHandler) bearerClaims(c echo.Context) (*jwt.AccessClaims, error) {
	auth := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return nil, errors.New("missing bearer token")
	}
	return h.engine.ParseAccessToken(strings.TrimPrefix(auth, prefix))
}

// writeError maps engine sentinels onto HTTP status codes. Retry hints go in
// both the Retry-After header and the body; policy violations are itemized.
func (h *apiHandler) writeError(c echo.Context, err error) error {
	body := errorBody{}

	if ra, ok := authcore.RetryAfterHint(err); ok {
		secs := int(ra.Seconds())
		if secs < 1 {
			secs = 1
		}
		body.RetryAfter = secs
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	}

	var weak *authcore.WeakPasswordError
	if errors.As(err, &weak) {
		body.Error = "weak_password"
		for _, v := range weak.Violations {
			body.Violations = append(body.Violations, string(v))
		}
		return c.JSON(http.StatusUnprocessableEntity, body)
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, authcore.ErrInvalidEmail),
		errors.Is(err, authcore.ErrInvalidMobile),
		errors.Is(err, authcore.ErrInvalidPurpose),
		errors.Is(err, authcore.ErrAccountRoleInvalid),
		errors.Is(err, authcore.ErrPasswordMismatch):
		status = http.StatusBadRequest
		body.Error = "invalid_request"
	case errors.Is(err, authcore.ErrOTPRateLimited),
		errors.Is(err, authcore.ErrLoginRateLimited),
		errors.Is(err, authcore.ErrResetRateLimited):
		status = http.StatusTooManyRequests
		body.Error = "rate_limited"
	case errors.Is(err, authcore.ErrOTPNotFound),
		errors.Is(err, authcore.ErrOTPExpired),
		errors.Is(err, authcore.ErrOTPMismatch),
		errors.Is(err, authcore.ErrOTPAttemptsExceeded):
		status = http.StatusUnauthorized
		body.Error = "otp_invalid"
	case errors.Is(err, authcore.ErrVerificationFailed):
		status = http.StatusUnauthorized
		body.Error = "verification_failed"
	case errors.Is(err, authcore.ErrResetStateInvalid):
		status = http.StatusConflict
		body.Error = "reset_state_invalid"
	case errors.Is(err, authcore.ErrResetAttemptsExceeded):
		status = http.StatusUnauthorized
		body.Error = "reset_attempts_exceeded"
	case errors.Is(err, authcore.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Error = "invalid_credentials"
	case errors.Is(err, authcore.ErrApprovalPending):
		status = http.StatusForbidden
		body.Error = "approval_pending"
	case errors.Is(err, authcore.ErrApprovalRejected):
		status = http.StatusForbidden
		body.Error = "approval_rejected"
	case errors.Is(err, authcore.ErrUnauthorized):
		status = http.StatusForbidden
		body.Error = "forbidden"
	case errors.Is(err, authcore.ErrAccountExists):
		status = http.StatusConflict
		body.Error = "account_exists"
	case errors.Is(err, authcore.ErrAccountNotFound):
		status = http.StatusNotFound
		body.Error = "account_not_found"
	case errors.Is(err, authcore.ErrDeliveryFailed):
		status = http.StatusBadGateway
		body.Error = "delivery_failed"
	default:
		h.log.Error("internal error", zap.Error(err))
		body.Error = "internal"
	}

	return c.JSON(status, body)
}
