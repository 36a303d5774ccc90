package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/institute-ledger-api/internal/authz"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
	"github.com/edupay/institute-ledger-api/pkg/storage"
)

func newExportFixture(t *testing.T) *ExportService {
	t.Helper()
	statements, _ := newStatementFixture()
	archive, err := storage.NewArchive(t.TempDir())
	require.NoError(t, err)
	return NewExportService(statements, archive, storage.NewTokenSigner("secret", time.Hour), nil)
}

func TestExportServiceArchiveAndDownload(t *testing.T) {
	svc := newExportFixture(t)

	artifact, err := svc.Archive(context.Background(), "inst-1", authz.Actor{Principal: "owner-1"}, FormatCSV)
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Token)
	assert.True(t, strings.HasPrefix(artifact.File, "inst-1/statement-"))
	assert.True(t, artifact.ExpiresAt.After(time.Now()))

	reader, contentType, filename, err := svc.Open(artifact.Token)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "text/csv", contentType)
	assert.True(t, strings.HasSuffix(filename, ".csv"))

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "Date,Kind,Counterparty,Direction,Amount"))
}

func TestExportServiceArchiveRequiresPrivilege(t *testing.T) {
	svc := newExportFixture(t)

	_, err := svc.Archive(context.Background(), "inst-1", authz.Actor{Principal: "stranger"}, FormatCSV)
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)
}

func TestExportServiceOpenRejectsBadToken(t *testing.T) {
	svc := newExportFixture(t)

	_, _, _, err := svc.Open("not.a.real.token")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
