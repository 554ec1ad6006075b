package models

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// request body for the account creation endpoints
type CreateAccountRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	DisplayName string   `json:"displayName"`
	StoreIDs    []string `json:"storeIds"`
}

// user payload echoed back on successful account creation
type AccountUser struct {
	UID           string   `json:"uid"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"displayName"`
	Role          Role     `json:"role"`
	OwnedStores   []string `json:"ownedStores,omitempty"`
	ManagedStores []string `json:"managedStores,omitempty"`
}

type CreateAccountResponse struct {
	Success bool        `json:"success"`
	User    AccountUser `json:"user"`
}

// envelope for the HTTP-triggered bootstrap operations
type BootstrapResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
