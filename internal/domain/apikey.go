package domain

import "time"

// Limits describes the throttling attached to an API key.
type Limits struct {
	RateLimit  float64 `dynamodbav:"rate_limit" json:"rate_limit"`
	BurstLimit int32   `dynamodbav:"burst_limit" json:"burst_limit"`
	DailyQuota int32   `dynamodbav:"daily_quota" json:"daily_quota"`
}

// APIKeyRecord is a single item in the API key metadata table.
type APIKeyRecord struct {
	UserID      string `dynamodbav:"user_id"`
	UserEmail   string `dynamodbav:"user_email"`
	APIKey      string `dynamodbav:"api_key"`
	APIKeyID    string `dynamodbav:"api_key_id,omitempty"`
	UsagePlanID string `dynamodbav:"usage_plan_id,omitempty"`
	Limits      Limits `dynamodbav:"limits"`
	CreatedAt   string `dynamodbav:"created_at,omitempty"`
	ExpiresAt   string `dynamodbav:"expires_at,omitempty"`
	IsActive    *bool  `dynamodbav:"is_active,omitempty"`
}

// Usable reports whether the record may authenticate a request at now.
// Records without is_active are treated as active.
func (r APIKeyRecord) Usable(now time.Time) bool {
	if r.UserID == "" || r.UserEmail == "" {
		return false
	}
	if r.IsActive != nil && !*r.IsActive {
		return false
	}
	if r.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339Nano, r.ExpiresAt); err == nil && now.After(exp) {
			return false
		}
	}
	return true
}

// Identity returns the owner of the key.
func (r APIKeyRecord) Identity() Identity {
	return Identity{UserID: r.UserID, Email: r.UserEmail}
}
