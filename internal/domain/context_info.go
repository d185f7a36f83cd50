package domain

// ContextInfo carries the tenancy of the request that started an operation.
type ContextInfo struct {
	TenantID      string `json:"tenantId,omitempty"`
	ApplicationID string `json:"applicationId,omitempty"`
	Author        string `json:"author,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

const (
	HeaderTenantID       = "X-Tenant-Id"
	HeaderApplicationID  = "X-Application-Id"
	HeaderAuthor         = "X-Author"
	HeaderAcceptLanguage = "Accept-Language"
)
