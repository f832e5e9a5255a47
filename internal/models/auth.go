package models

// AuthRequest is the login payload sent to the cloud service.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

// AuthResponse represents the expected structure of the authentication response.
type AuthResponse struct {
	Token string `json:"token"`
}
