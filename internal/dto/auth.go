package dto

// TokenInfoResponse 当前服务 Token 信息
type TokenInfoResponse struct {
	Subject   string `json:"subject"`
	Role      string `json:"role"`
	TokenID   string `json:"token_id"`
	ExpiresAt string `json:"expires_at"`
}
