package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/models"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
)

type instituteAuthzReader interface {
	FindByID(ctx context.Context, id string) (*models.Institute, error)
	ListAdmins(ctx context.Context, instituteID string) ([]models.InstituteAdmin, error)
}

// authorizer loads an institute's authorization subject and evaluates the
// configured policy against it. All privileged institute operations funnel
// through require, so the privilege decision lives in exactly one place.
type authorizer struct {
	institutes instituteAuthzReader
	policy     authz.Policy
}

func newAuthorizer(institutes instituteAuthzReader, policy authz.Policy) authorizer {
	if policy == nil {
		policy = authz.Default()
	}
	return authorizer{institutes: institutes, policy: policy}
}

// require loads the institute and checks the actor against the level. It
// returns the loaded institute on success so callers avoid a second fetch.
func (a authorizer) require(ctx context.Context, instituteID string, actor authz.Actor, lvl authz.Level) (*models.Institute, error) {
	institute, err := a.institutes.FindByID(ctx, instituteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}
	admins, err := a.institutes.ListAdmins(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute admins")
	}
	if !a.policy.Authorize(institute.AuthzSubject(admins), actor, lvl) {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "")
	}
	return institute, nil
}
