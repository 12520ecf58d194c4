package core

type CreateTenantRequest struct {
	Name        string
	CallbackURL string
}

// SetCallbackRequest replaces a tenant's callback URL. An empty URL clears it.
type SetCallbackRequest struct {
	TenantID    string
	CallbackURL string
}

type RequestAuthCodeRequest struct {
	TenantID    string
	PhoneNumber string
}

type SubmitAuthCodeRequest struct {
	TenantID string
	Code     string
}

type SetAuthorizationRequest struct {
	TenantID   string
	Authorized bool
	LastError  string
}

type DispatcherStatus struct {
	TenantID string
	Running  bool
	Worker   *DispatchStatus
}

type ReconcileResult struct {
	Started []string
	Stopped []string
	Failed  map[string]string
}
