package models

import "time"

// User is a gateway account mapped to one supply-chain role.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Organization string     `json:"organization"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

type RegisterRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Organization string `json:"organization"`
	Role         string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// TraceCodeRecord is the off-chain copy of an issued QR payload, kept so
// printed labels can be re-fetched without a ledger query.
type TraceCodeRecord struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	LotID     string    `json:"lot_id"`
	Payload   string    `json:"payload"`
	IssuedBy  string    `json:"issued_by"`
	CreatedAt time.Time `json:"created_at"`
}

type TraceCodeRequest struct {
	UnitID string `json:"unit_id"`
}

type ShipmentRequest struct {
	ShipmentID     string            `json:"shipment_id"`
	Products       []string          `json:"products"`
	TargetOrg      string            `json:"target_org"`
	TransporterOrg string            `json:"transporter_org"`
	Properties     map[string]string `json:"properties,omitempty"`
}
