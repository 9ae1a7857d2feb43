package auth

// APIAuthRequest is the payload posted to the remote directory's login endpoint.
type APIAuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APILookupRequest is the payload posted to the remote directory's lookup endpoint.
type APILookupRequest struct {
	Username string `json:"username"`
}

// APIUserResponse is returned by both remote endpoints.
type APIUserResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Message  string `json:"message,omitempty"`
}
