package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/edupay/institute-ledger-api/internal/authz"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
	"github.com/edupay/institute-ledger-api/pkg/storage"
)

// ExportArtifact describes an archived statement export. The token is
// the download credential and is only returned here.
type ExportArtifact struct {
	File      string    `json:"file"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService archives rendered statements and serves them back
// through signed download tokens.
type ExportService struct {
	statements *StatementService
	archive    *storage.Archive
	signer     *storage.TokenSigner
	logger     *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(statements *StatementService, archive *storage.Archive, signer *storage.TokenSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		statements: statements,
		archive:    archive,
		signer:     signer,
		logger:     logger,
	}
}

// Archive renders the institute statement, stores it and returns a
// signed download token. Authorization is enforced by the render.
func (s *ExportService) Archive(ctx context.Context, instituteID string, actor authz.Actor, format StatementFormat) (*ExportArtifact, error) {
	payload, _, err := s.statements.Export(ctx, instituteID, actor, format)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s/statement-%s.%s", instituteID, time.Now().UTC().Format("20060102T150405"), format)
	if _, err := s.archive.Save(name, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive statement export")
	}

	token, expiresAt, err := s.signer.Generate(instituteID, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export token")
	}

	s.logger.Info("statement export archived",
		zap.String("institute_id", instituteID),
		zap.String("file", name),
	)
	return &ExportArtifact{File: name, Token: token, ExpiresAt: expiresAt}, nil
}

// Open resolves a download token to the archived file. The signature is
// the sole credential; no session is required.
func (s *ExportService) Open(token string) (io.ReadCloser, string, string, error) {
	_, name, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired export token")
	}

	file, err := s.archive.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open archived export")
	}

	contentType := "application/octet-stream"
	switch path.Ext(name) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	return file, contentType, path.Base(name), nil
}

// SweepLoop periodically removes archived exports older than the token
// TTL. Blocks until ctx is done.
func (s *ExportService) SweepLoop(ctx context.Context, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.archive.Sweep(maxAge)
			if err != nil {
				s.logger.Warn("export archive sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("export archive swept", zap.Int("removed", removed))
			}
		}
	}
}
