package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate-backend-go/internal/core"
	"authgate-backend-go/internal/models"
	"authgate-backend-go/internal/phone"
)

// PhoneHandler handles the phone OTP verification flow endpoints. Each form
// instance on the client drives exactly one flow.
type PhoneHandler struct {
	auth   core.AuthService
	flows  *core.FlowRegistry
	logger *zap.Logger
}

// NewPhoneHandler creates a new PhoneHandler.
func NewPhoneHandler(auth core.AuthService, flows *core.FlowRegistry, logger *zap.Logger) *PhoneHandler {
	return &PhoneHandler{auth: auth, flows: flows, logger: logger}
}

// StartFlow handles POST /api/v1/auth/phone/start.
func (h *PhoneHandler) StartFlow(c *gin.Context) {
	var req models.StartFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	f := h.flows.StartFlow(core.Purpose(req.Purpose))
	c.JSON(http.StatusCreated, FlowResponse{FlowID: f.ID, State: string(f.State())})
}

// SendCode handles POST /api/v1/auth/phone/send.
func (h *PhoneHandler) SendCode(c *gin.Context) {
	var req models.SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Please enter your phone number", Details: err.Error()})
		return
	}

	f, err := h.flows.SendCode(c.Request.Context(), req.FlowID, req.Phone, req.CaptchaToken)
	if err != nil {
		h.logger.Warn("send code failed", zap.String("flow", req.FlowID), zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, FlowResponse{
		FlowID:         f.ID,
		State:          string(f.State()),
		VerificationID: f.VerificationID(),
	})
}

// VerifyCode handles POST /api/v1/auth/phone/verify.
func (h *PhoneHandler) VerifyCode(c *gin.Context) {
	var req models.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Please enter the verification code", Details: err.Error()})
		return
	}

	sess, err := h.flows.Verify(c.Request.Context(), req.FlowID, req.Code, req.Phone)
	if err != nil {
		h.logger.Warn("code verification failed", zap.String("flow", req.FlowID), zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{User: sess.User, Token: sess.Token})
}

// ChangeNumber handles POST /api/v1/auth/phone/change-number.
func (h *PhoneHandler) ChangeNumber(c *gin.Context) {
	var req models.FlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if err := h.flows.ChangeNumber(req.FlowID); err != nil {
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, FlowResponse{FlowID: req.FlowID, State: string(core.StateIdle)})
}

// SwitchMethod handles POST /api/v1/auth/phone/switch-method: the client
// switched the email/phone tab, so any pending challenge must be discarded.
func (h *PhoneHandler) SwitchMethod(c *gin.Context) {
	var req models.FlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if err := h.flows.SwitchMethod(req.FlowID); err != nil {
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, FlowResponse{FlowID: req.FlowID, State: string(core.StateIdle)})
}

// Abandon handles POST /api/v1/auth/phone/abandon (navigation away). Always
// succeeds; abandoning an unknown flow is a no-op.
func (h *PhoneHandler) Abandon(c *gin.Context) {
	var req models.FlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	h.flows.Abandon(req.FlowID)
	c.JSON(http.StatusOK, gin.H{"message": "Flow abandoned"})
}

// Exists handles GET /api/v1/auth/phone/exists?phone=...
func (h *PhoneHandler) Exists(c *gin.Context) {
	raw := c.Query("phone")
	if raw == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Please enter your phone number"})
		return
	}
	canonical := phone.Normalize(raw)

	exists, err := h.auth.CheckExistingPhone(c.Request.Context(), canonical)
	if err != nil {
		h.logger.Error("phone lookup failed", zap.String("phone", canonical), zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, PhoneExistsResponse{Phone: canonical, Exists: exists})
}
