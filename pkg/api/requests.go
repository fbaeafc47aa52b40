package api

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	OrgName  string `json:"org_name" binding:"required"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateAnalysisRequest is the body of POST /analyses.
type CreateAnalysisRequest struct {
	ProblemDescription string `json:"problem_description" binding:"required,min=20,max=8000"`
	BusinessType       string `json:"business_type" binding:"required,oneof=b2b_saas b2c_saas marketplace ecommerce retail fintech healthtech other"`
	Depth              string `json:"depth" binding:"omitempty,oneof=fast standard deep"`
}

// RefineRequest is the body of POST /analyses/:id/refine.
type RefineRequest struct {
	Message string `json:"message" binding:"required"`
}

// BillingWebhookRequest is the body of POST /webhooks/billing.
type BillingWebhookRequest struct {
	OrgID      string `json:"org_id" binding:"required"`
	NewPlan    string `json:"new_plan" binding:"required"`
	CycleStart string `json:"cycle_start" binding:"required"`
}
