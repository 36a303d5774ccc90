package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/events"
	"github.com/edupay/institute-ledger-api/internal/ledger"
	"github.com/edupay/institute-ledger-api/internal/models"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
)

type instituteRepository interface {
	Create(ctx context.Context, institute *models.Institute) error
	FindByID(ctx context.Context, id string) (*models.Institute, error)
	ListAdmins(ctx context.Context, instituteID string) ([]models.InstituteAdmin, error)
	AddAdmin(ctx context.Context, admin *models.InstituteAdmin) error
	WithdrawAtomic(ctx context.Context, instituteID string, amount int64, paidTo string) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, instituteID string) ([]models.Withdrawal, error)
	Summary(ctx context.Context, instituteID string) (*models.InstituteSummary, error)
}

// CreateInstituteRequest describes institute registration.
type CreateInstituteRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
	Fees  int64  `json:"fees" validate:"gte=0"`
}

// AddAdminRequest grants a principal admin privilege on an institute.
type AddAdminRequest struct {
	Principal string `json:"principal" validate:"required"`
	Role      string `json:"role"`
}

// WithdrawRequest moves funds out of the institute balance.
type WithdrawRequest struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	PaidTo string `json:"paid_to" validate:"required"`
}

// InstituteService orchestrates institute lifecycle, role management and
// balance withdrawals.
type InstituteService struct {
	repo      instituteRepository
	auth      authorizer
	cache     *CacheService
	sink      events.Sink
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstituteService constructs InstituteService.
func NewInstituteService(repo instituteRepository, policy authz.Policy, cache *CacheService, sink events.Sink, validate *validator.Validate, logger *zap.Logger) *InstituteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &InstituteService{
		repo:      repo,
		auth:      newAuthorizer(repo, policy),
		cache:     cache,
		sink:      sink,
		validator: validate,
		logger:    logger,
	}
}

// Create registers a new institute owned by the caller. The balance starts at
// zero and a fresh capability token is minted for machine integrations.
func (s *InstituteService) Create(ctx context.Context, owner string, req CreateInstituteRequest) (*models.Institute, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institute payload")
	}
	capability, err := generateCapabilityToken()
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint capability token")
	}
	institute := &models.Institute{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Fees:       req.Fees,
		Balance:    ledger.Zero(),
		OwnerID:    owner,
		Capability: capability,
	}
	if err := s.repo.Create(ctx, institute); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institute")
	}
	s.publish(ctx, events.Event{Type: events.TypeInstituteCreated, InstituteID: institute.ID, EntityID: institute.ID})
	// The capability token is returned exactly once, at creation.
	return institute, capability, nil
}

// Get returns an institute by ID.
func (s *InstituteService) Get(ctx context.Context, id string) (*models.Institute, error) {
	institute, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}
	return institute, nil
}

// AddAdmin inserts a principal into the institute's role table. Only the
// owner (or capability holder) may extend the table; admins cannot grant
// adminship to others.
func (s *InstituteService) AddAdmin(ctx context.Context, instituteID string, actor authz.Actor, req AddAdminRequest) (*models.InstituteAdmin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admin payload")
	}
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Owner()); err != nil {
		return nil, err
	}
	admin := &models.InstituteAdmin{InstituteID: instituteID, Principal: req.Principal, Role: req.Role}
	if err := s.repo.AddAdmin(ctx, admin); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add institute admin")
	}
	s.publish(ctx, events.Event{Type: events.TypeAdminAdded, InstituteID: instituteID, EntityID: req.Principal})
	return admin, nil
}

// ListAdmins returns the institute's role table to any admin-level caller.
func (s *InstituteService) ListAdmins(ctx context.Context, instituteID string, actor authz.Actor) ([]models.InstituteAdmin, error) {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}
	admins, err := s.repo.ListAdmins(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institute admins")
	}
	return admins, nil
}

// Withdraw pays out part of the institute balance. Owner privilege is
// required; the balance check and the payout record are one transaction.
func (s *InstituteService) Withdraw(ctx context.Context, instituteID string, actor authz.Actor, req WithdrawRequest) (*models.Withdrawal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Owner()); err != nil {
		return nil, err
	}
	withdrawal, err := s.repo.WithdrawAtomic(ctx, instituteID, req.Amount, req.PaidTo)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "institute balance does not cover the withdrawal")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw")
	}
	s.invalidateSummary(ctx, instituteID)
	s.publish(ctx, events.Event{Type: events.TypeBalanceWithdrawn, InstituteID: instituteID, EntityID: withdrawal.ID, Payload: withdrawal})
	return withdrawal, nil
}

// ListWithdrawals returns the payout log to admin-level callers.
func (s *InstituteService) ListWithdrawals(ctx context.Context, instituteID string, actor authz.Actor) ([]models.Withdrawal, error) {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.ListWithdrawals(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list withdrawals")
	}
	return withdrawals, nil
}

// Summary returns the institute dashboard figures, served from cache when
// available.
func (s *InstituteService) Summary(ctx context.Context, instituteID string, actor authz.Actor) (*models.InstituteSummary, error) {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}
	cacheKey := summaryCacheKey(instituteID)
	var cached models.InstituteSummary
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}
	summary, err := s.repo.Summary(ctx, instituteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary")
	}
	if err := s.cache.Set(ctx, cacheKey, summary, 0); err != nil {
		s.logger.Warn("failed to cache institute summary", zap.String("institute_id", instituteID), zap.Error(err))
	}
	return summary, nil
}

func (s *InstituteService) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = time.Now().UTC()
	if err := s.sink.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (s *InstituteService) invalidateSummary(ctx context.Context, instituteID string) {
	if err := s.cache.Invalidate(ctx, summaryCacheKey(instituteID)); err != nil {
		s.logger.Warn("failed to invalidate summary cache", zap.String("institute_id", instituteID), zap.Error(err))
	}
}

func summaryCacheKey(instituteID string) string {
	return fmt.Sprintf("institute:%s:summary", instituteID)
}

func generateCapabilityToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
