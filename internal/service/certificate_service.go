package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/events"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

const certificateBatchSize = 500

// CertificateSweepReport summarises one sweep.
type CertificateSweepReport struct {
	Reminders int `json:"reminders"`
	Expired   int `json:"expired"`
	Failed    int `json:"failed"`
}

// CertificateService reminds providers of expiring certificates and penalises
// expired ones.
type CertificateService struct {
	penalty      *PenaltyService
	certificates repository.CertificateRepository
	reminderDays int
}

// NewCertificateService constructs the service.
func NewCertificateService(penalty *PenaltyService, certificates repository.CertificateRepository, reminderDays int) *CertificateService {
	if reminderDays <= 0 {
		reminderDays = 7
	}
	return &CertificateService{penalty: penalty, certificates: certificates, reminderDays: reminderDays}
}

// Sweep sends each reminder once and records PROVIDER_EXPIRED_CERTIFICATE once
// per certificate. It is safe to run repeatedly or from several replicas.
func (s *CertificateService) Sweep(ctx context.Context) (CertificateSweepReport, error) {
	var report CertificateSweepReport
	now := s.penalty.now()
	logger := s.penalty.logger

	expiring, err := s.certificates.ListExpiringBetween(ctx, now, now.AddDate(0, 0, s.reminderDays), certificateBatchSize)
	if err != nil {
		return report, apperrors.FromStore(err, "certificate", nil)
	}
	for _, cert := range expiring {
		claimed, err := s.certificates.MarkReminderSent(ctx, cert.ID, now)
		if err != nil {
			return report, apperrors.FromStore(err, "certificate", nil)
		}
		if !claimed {
			continue
		}
		report.Reminders++
		s.penalty.publish(ctx, events.New(events.EventCertificateExpiring, domain.ProviderRef(cert.ProviderID), events.SystemActor,
			events.CertificatePayload{CertificateID: cert.ID, Name: cert.Name, ExpiresAt: cert.ExpiresAt}))
	}

	expired, err := s.certificates.ListExpired(ctx, now, certificateBatchSize)
	if err != nil {
		return report, apperrors.FromStore(err, "certificate", nil)
	}
	var errs []error
	for _, cert := range expired {
		violationID, err := s.expire(ctx, cert)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("certificate %s: %w", cert.ID, err))
			logger.Error("expire certificate failed", zap.String("certificate_id", cert.ID), zap.Error(err))
			continue
		}
		report.Expired++
		s.penalty.publish(ctx, events.New(events.EventCertificateExpired, domain.ProviderRef(cert.ProviderID), events.SystemActor,
			events.CertificatePayload{CertificateID: cert.ID, Name: cert.Name, ExpiresAt: cert.ExpiresAt, ViolationID: violationID}))
	}

	logger.Info("certificate sweep finished",
		zap.Int("reminders", report.Reminders),
		zap.Int("expired", report.Expired),
		zap.Int("failed", report.Failed))
	return report, errors.Join(errs...)
}

// expire records the violation first and flips the certificate afterwards.
// The idempotency key makes a retry after a partial failure safe. When the
// violation type is inactive or missing the certificate is still flipped.
func (s *CertificateService) expire(ctx context.Context, cert domain.Certificate) (*string, error) {
	key := "certificate:" + cert.ID
	details := fmt.Sprintf("Certificate %q expired on %s", cert.Name, cert.ExpiresAt.UTC().Format(time.DateOnly))
	var violationID *string
	violation, err := s.penalty.RecordViolation(ctx, RecordViolationInput{
		Account:        domain.ProviderRef(cert.ProviderID),
		Code:           domain.CodeProviderExpiredCert,
		Details:        &details,
		DetectedBy:     domain.DetectedBySystem,
		IdempotencyKey: &key,
	})
	switch {
	case err == nil:
		violationID = &violation.ID
	case apperrors.HasCode(err, apperrors.CodeConflict):
	case apperrors.HasCode(err, apperrors.CodeViolationTypeNotFound):
		// Deactivated type: the certificate still expires, unpenalised.
		s.penalty.logger.Warn("expired certificate not penalised",
			zap.String("certificate_id", cert.ID),
			zap.String("provider_id", cert.ProviderID),
			zap.String("code", domain.CodeProviderExpiredCert))
	default:
		return nil, err
	}
	if _, err := s.certificates.MarkExpired(ctx, cert.ID); err != nil {
		return nil, apperrors.FromStore(err, "certificate", nil)
	}
	return violationID, nil
}
