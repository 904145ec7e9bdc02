package models

// SignUpRequest represents the request body for email/password sign-up.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// SignInRequest represents the request body for email/password sign-in.
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// StartFlowRequest opens a verification flow for one form instance.
// Purpose is "signin" or "signup".
type StartFlowRequest struct {
	Purpose string `json:"purpose" binding:"required,oneof=signin signup"`
}

// SendCodeRequest requests OTP delivery for the flow's phone number.
// CaptchaToken carries the bot-check widget response in production mode;
// it is ignored by the mock provider.
type SendCodeRequest struct {
	FlowID       string `json:"flowId" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	CaptchaToken string `json:"captchaToken,omitempty"`
}

// VerifyCodeRequest submits the received OTP for the flow.
type VerifyCodeRequest struct {
	FlowID string `json:"flowId" binding:"required"`
	Code   string `json:"code" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
}

// FlowRequest addresses an existing verification flow (change-number,
// switch-method, abandon).
type FlowRequest struct {
	FlowID string `json:"flowId" binding:"required"`
}
