package domain

import "time"

// CertificateStatus tracks whether a provider certificate is still valid.
type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateExpired CertificateStatus = "expired"
)

// Certificate is a provider's professional credential with an expiry date.
type Certificate struct {
	ID             string
	ProviderID     string
	Name           string
	ExpiresAt      time.Time
	Status         CertificateStatus
	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
