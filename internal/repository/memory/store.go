// Package memory holds an in-process implementation of the repository
// interfaces. It backs tests and single-node runs without Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/repository"
)

// Store keeps every table in maps guarded by one mutex. WithinTx serializes
// units of work and restores a snapshot when fn fails, which gives the same
// all-or-nothing behaviour the Postgres transaction provides.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	now  func() time.Time

	accounts     map[domain.AccountRef]domain.Account
	types        map[string]domain.ViolationType
	violations   map[string]domain.Violation
	adjustments  []domain.Adjustment
	appointments map[string]domain.Appointment
	ratings      map[string]domain.Rating
	certificates map[string]domain.Certificate

	// FailWith, when set, is returned by every store call. Used to simulate an unreachable store.
	FailWith error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:          time.Now,
		accounts:     map[domain.AccountRef]domain.Account{},
		types:        map[string]domain.ViolationType{},
		violations:   map[string]domain.Violation{},
		appointments: map[string]domain.Appointment{},
		ratings:      map[string]domain.Rating{},
		certificates: map[string]domain.Certificate{},
	}
}

// SetClock overrides the timestamp source used for created_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutAccount inserts or replaces an account row.
func (s *Store) PutAccount(account domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Ref] = account
}

// AddAccount inserts a fresh account at the maximum balance.
func (s *Store) AddAccount(ref domain.AccountRef) {
	s.PutAccount(domain.Account{Ref: ref, PenaltyPoints: domain.MaxPenaltyPoints})
}

// PutAppointment inserts or replaces an appointment.
func (s *Store) PutAppointment(appt domain.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[appt.ID] = appt
}

// PutRating inserts or replaces a rating.
func (s *Store) PutRating(rating domain.Rating) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = s.now()
	}
	s.ratings[rating.ID] = rating
}

// PutCertificate inserts or replaces a certificate.
func (s *Store) PutCertificate(cert domain.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certificates[cert.ID] = cert
}

// Certificate returns a copy of a stored certificate.
func (s *Store) Certificate(id string) (domain.Certificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certificates[id]
	return cert, ok
}

// AllAdjustments returns a copy of the ledger in insertion order.
func (s *Store) AllAdjustments() []domain.Adjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Adjustment(nil), s.adjustments...)
}

// Accounts returns the account repository view.
func (s *Store) Accounts() repository.AccountRepository { return accountStore{s} }

// ViolationTypes returns the catalog repository view.
func (s *Store) ViolationTypes() repository.ViolationTypeRepository { return violationTypeStore{s} }

// Violations returns the violation repository view.
func (s *Store) Violations() repository.ViolationRepository { return violationStore{s} }

// Adjustments returns the ledger repository view.
func (s *Store) Adjustments() repository.AdjustmentRepository { return adjustmentStore{s} }

// Appointments returns the appointment repository view.
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentStore{s} }

// Ratings returns the rating repository view.
func (s *Store) Ratings() repository.RatingRepository { return ratingStore{s} }

// Certificates returns the certificate repository view.
func (s *Store) Certificates() repository.CertificateRepository { return certificateStore{s} }

// WithinTx implements repository.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, stores repository.TxStores) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := s.fail(); err != nil {
		return err
	}
	snap := s.snapshot()
	err := fn(ctx, repository.TxStores{
		Accounts:    s.Accounts(),
		Violations:  s.Violations(),
		Adjustments: s.Adjustments(),
	})
	if err != nil {
		s.restore(snap)
	}
	return err
}

type snapshot struct {
	accounts    map[domain.AccountRef]domain.Account
	violations  map[string]domain.Violation
	adjustments []domain.Adjustment
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		accounts:    make(map[domain.AccountRef]domain.Account, len(s.accounts)),
		violations:  make(map[string]domain.Violation, len(s.violations)),
		adjustments: append([]domain.Adjustment(nil), s.adjustments...),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.violations {
		snap.violations[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.violations = snap.violations
	s.adjustments = snap.adjustments
}

func (s *Store) fail() error {
	return s.FailWith
}

type accountStore struct{ s *Store }

func (a accountStore) Get(_ context.Context, ref domain.AccountRef) (*domain.Account, error) {
	if err := a.s.fail(); err != nil {
		return nil, err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	account, ok := a.s.accounts[ref]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &account, nil
}

func (a accountStore) GetForUpdate(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	return a.Get(ctx, ref)
}

func (a accountStore) Update(_ context.Context, account *domain.Account) error {
	if err := a.s.fail(); err != nil {
		return err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.accounts[account.Ref]; !ok {
		return pgx.ErrNoRows
	}
	account.UpdatedAt = a.s.now()
	a.s.accounts[account.Ref] = *account
	return nil
}

func (a accountStore) ListIDsBelowMax(_ context.Context, kind domain.AccountKind) ([]string, error) {
	return a.s.accountIDs(kind, func(acc domain.Account) bool {
		return acc.PenaltyPoints < domain.MaxPenaltyPoints
	})
}

func (a accountStore) ListIDsWithExpiredSuspension(_ context.Context, kind domain.AccountKind, now time.Time) ([]string, error) {
	return a.s.accountIDs(kind, func(acc domain.Account) bool {
		return acc.AdminSuspended && acc.SuspendedUntil != nil && !acc.SuspendedUntil.After(now)
	})
}

func (a accountStore) CountSuspended(_ context.Context, kind domain.AccountKind) (int, error) {
	ids, err := a.s.accountIDs(kind, func(acc domain.Account) bool { return acc.IsSuspended })
	return len(ids), err
}

func (s *Store) accountIDs(kind domain.AccountKind, match func(domain.Account) bool) ([]string, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for ref, acc := range s.accounts {
		if ref.Kind == kind && match(acc) {
			ids = append(ids, ref.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type violationTypeStore struct{ s *Store }

func (v violationTypeStore) GetByCode(_ context.Context, code string) (*domain.ViolationType, error) {
	if err := v.s.fail(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	vt, ok := v.s.types[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &vt, nil
}

func (v violationTypeStore) List(_ context.Context, filter repository.ViolationTypeFilter) ([]domain.ViolationType, error) {
	if err := v.s.fail(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var result []domain.ViolationType
	for _, vt := range v.s.types {
		if filter.Category != nil && vt.Category != *filter.Category {
			continue
		}
		if filter.ActiveOnly && !vt.IsActive {
			continue
		}
		result = append(result, vt)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		if result[i].PointCost != result[j].PointCost {
			return result[i].PointCost < result[j].PointCost
		}
		return result[i].Code < result[j].Code
	})
	return result, nil
}

func (v violationTypeStore) Upsert(_ context.Context, vt *domain.ViolationType) error {
	if err := v.s.fail(); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	now := v.s.now()
	if existing, ok := v.s.types[vt.Code]; ok {
		vt.CreatedAt = existing.CreatedAt
	} else {
		vt.CreatedAt = now
	}
	vt.UpdatedAt = now
	v.s.types[vt.Code] = *vt
	return nil
}

type violationStore struct{ s *Store }

func (v violationStore) Create(_ context.Context, violation *domain.Violation) error {
	if err := v.s.fail(); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if violation.IdempotencyKey != nil {
		for _, existing := range v.s.violations {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *violation.IdempotencyKey {
				return repository.ErrDuplicate
			}
		}
	}
	violation.ID = uuid.NewString()
	violation.CreatedAt = v.s.now()
	violation.UpdatedAt = violation.CreatedAt
	violation.EvidenceURLs = append([]string(nil), violation.EvidenceURLs...)
	v.s.violations[violation.ID] = *violation
	return nil
}

func (v violationStore) Update(_ context.Context, violation *domain.Violation) error {
	if err := v.s.fail(); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	existing, ok := v.s.violations[violation.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Status = violation.Status
	existing.AppealStatus = violation.AppealStatus
	existing.AppealReason = violation.AppealReason
	existing.AppealedAt = violation.AppealedAt
	existing.ReviewedBy = violation.ReviewedBy
	existing.ReviewedAt = violation.ReviewedAt
	existing.ReviewNotes = violation.ReviewNotes
	existing.ReversalReason = violation.ReversalReason
	existing.UpdatedAt = v.s.now()
	v.s.violations[violation.ID] = existing
	violation.UpdatedAt = existing.UpdatedAt
	return nil
}

func (v violationStore) GetByID(_ context.Context, id string) (*domain.Violation, error) {
	if err := v.s.fail(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	violation, ok := v.s.violations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &violation, nil
}

func (v violationStore) GetForUpdate(ctx context.Context, id string) (*domain.Violation, error) {
	return v.GetByID(ctx, id)
}

func (v violationStore) List(_ context.Context, filter repository.ViolationFilter) ([]domain.Violation, error) {
	matched, err := v.match(filter)
	if err != nil {
		return nil, err
	}
	return page(matched, filter.Limit, filter.Offset), nil
}

func (v violationStore) Count(_ context.Context, filter repository.ViolationFilter) (int, error) {
	matched, err := v.match(filter)
	return len(matched), err
}

func (v violationStore) CountByCodeSince(_ context.Context, since time.Time, limit int) ([]repository.CodeCount, error) {
	if err := v.s.fail(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	counts := map[string]int{}
	for _, violation := range v.s.violations {
		if !violation.CreatedAt.Before(since) {
			counts[violation.ViolationCode]++
		}
	}
	v.s.mu.Unlock()

	result := make([]repository.CodeCount, 0, len(counts))
	for code, count := range counts {
		result = append(result, repository.CodeCount{Code: code, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Code < result[j].Code
	})
	if limit <= 0 {
		limit = 5
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (v violationStore) match(filter repository.ViolationFilter) ([]domain.Violation, error) {
	if err := v.s.fail(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var result []domain.Violation
	for _, violation := range v.s.violations {
		if filter.Account != nil && violation.Account != *filter.Account {
			continue
		}
		if filter.Code != nil && violation.ViolationCode != *filter.Code {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, violation.Status) {
			continue
		}
		if filter.AppealStatus != nil && violation.AppealStatus != *filter.AppealStatus {
			continue
		}
		if filter.CreatedFrom != nil && violation.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && violation.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		result = append(result, violation)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return strings.Compare(result[i].ID, result[j].ID) > 0
	})
	return result, nil
}

func containsStatus(statuses []domain.ViolationStatus, status domain.ViolationStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

type adjustmentStore struct{ s *Store }

func (a adjustmentStore) Create(_ context.Context, adjustment *domain.Adjustment) error {
	if err := a.s.fail(); err != nil {
		return err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	adjustment.ID = uuid.NewString()
	adjustment.CreatedAt = a.s.now()
	a.s.adjustments = append(a.s.adjustments, *adjustment)
	return nil
}

func (a adjustmentStore) List(_ context.Context, filter repository.AdjustmentFilter) ([]domain.Adjustment, error) {
	if err := a.s.fail(); err != nil {
		return nil, err
	}
	a.s.mu.Lock()
	var result []domain.Adjustment
	// newest first, matching the SQL ordering
	for i := len(a.s.adjustments) - 1; i >= 0; i-- {
		adj := a.s.adjustments[i]
		if filter.Account != nil && adj.Account != *filter.Account {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, adj.Type) {
			continue
		}
		if filter.ViolationID != nil && (adj.RelatedViolationID == nil || *adj.RelatedViolationID != *filter.ViolationID) {
			continue
		}
		if filter.CreatedFrom != nil && adj.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && adj.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		result = append(result, adj)
	}
	a.s.mu.Unlock()
	return page(result, filter.Limit, filter.Offset), nil
}

func (a adjustmentStore) Summarize(_ context.Context, ref domain.AccountRef, adjustmentType domain.AdjustmentType) (repository.AdjustmentSummary, error) {
	if err := a.s.fail(); err != nil {
		return repository.AdjustmentSummary{}, err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var summary repository.AdjustmentSummary
	for _, adj := range a.s.adjustments {
		if adj.Account != ref || adj.Type != adjustmentType {
			continue
		}
		summary.Count++
		summary.TotalPoints += adj.PointsAdjusted
		if summary.LastAt == nil || adj.CreatedAt.After(*summary.LastAt) {
			at := adj.CreatedAt
			summary.LastAt = &at
		}
	}
	return summary, nil
}

func containsType(types []domain.AdjustmentType, t domain.AdjustmentType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

type appointmentStore struct{ s *Store }

func (a appointmentStore) GetByID(_ context.Context, id string) (*domain.Appointment, error) {
	if err := a.s.fail(); err != nil {
		return nil, err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	appt, ok := a.s.appointments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &appt, nil
}

func (a appointmentStore) CountActiveByCustomer(_ context.Context, customerID string) (int, error) {
	return a.count(func(appt domain.Appointment) bool {
		return appt.CustomerID == customerID
	})
}

func (a appointmentStore) CountActiveByProviderOn(_ context.Context, providerID string, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	return a.count(func(appt domain.Appointment) bool {
		return appt.ProviderID == providerID && !appt.ScheduledAt.Before(start) && appt.ScheduledAt.Before(end)
	})
}

func (a appointmentStore) count(match func(domain.Appointment) bool) (int, error) {
	if err := a.s.fail(); err != nil {
		return 0, err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	count := 0
	for _, appt := range a.s.appointments {
		if appt.Status.IsActiveCommitment() && match(appt) {
			count++
		}
	}
	return count, nil
}

type ratingStore struct{ s *Store }

func (r ratingStore) GetByID(_ context.Context, id string) (*domain.Rating, error) {
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rating, ok := r.s.ratings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &rating, nil
}

func (r ratingStore) ListRecentForProvider(_ context.Context, providerID string, limit int) ([]domain.Rating, error) {
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	var result []domain.Rating
	for _, rating := range r.s.ratings {
		if rating.ProviderID == providerID && rating.RatedBy == domain.AccountKindCustomer {
			result = append(result, rating)
		}
	}
	r.s.mu.Unlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit <= 0 {
		limit = 3
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type certificateStore struct{ s *Store }

func (c certificateStore) ListExpiringBetween(_ context.Context, from, to time.Time, limit int) ([]domain.Certificate, error) {
	return c.list(limit, func(cert domain.Certificate) bool {
		return cert.Status == domain.CertificateActive && cert.ReminderSentAt == nil &&
			!cert.ExpiresAt.Before(from) && cert.ExpiresAt.Before(to)
	})
}

func (c certificateStore) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Certificate, error) {
	return c.list(limit, func(cert domain.Certificate) bool {
		return cert.Status == domain.CertificateActive && !cert.ExpiresAt.After(now)
	})
}

func (c certificateStore) MarkExpired(_ context.Context, id string) (bool, error) {
	return c.update(id, func(cert *domain.Certificate) bool {
		if cert.Status != domain.CertificateActive {
			return false
		}
		cert.Status = domain.CertificateExpired
		return true
	})
}

func (c certificateStore) MarkReminderSent(_ context.Context, id string, at time.Time) (bool, error) {
	return c.update(id, func(cert *domain.Certificate) bool {
		if cert.ReminderSentAt != nil {
			return false
		}
		cert.ReminderSentAt = &at
		return true
	})
}

func (c certificateStore) list(limit int, match func(domain.Certificate) bool) ([]domain.Certificate, error) {
	if err := c.s.fail(); err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	var result []domain.Certificate
	for _, cert := range c.s.certificates {
		if match(cert) {
			result = append(result, cert)
		}
	}
	c.s.mu.Unlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (c certificateStore) update(id string, mutate func(*domain.Certificate) bool) (bool, error) {
	if err := c.s.fail(); err != nil {
		return false, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cert, ok := c.s.certificates[id]
	if !ok {
		return false, nil
	}
	if !mutate(&cert) {
		return false, nil
	}
	cert.UpdatedAt = c.s.now()
	c.s.certificates[id] = cert
	return true, nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
