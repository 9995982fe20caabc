package carevault

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestService_ExportPatientsCSV(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)

	_, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := svc.ExportPatientsCSV(ctx, admin, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"patient_id", "name", "contact", "diagnosis", "date_added"},
		{"1", "John Doe", "123-456-7890", "Fever and flu", "2024-03-10 12:00:00"},
	}, rows)
	assert.Equal(t, ActionExportData, store.lastLog().Action)
}

func TestService_ExportLogsCSV(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)

	_, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := svc.Export(ctx, admin, ExportLogs, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, logCSVHeader, rows[0])
	assert.Equal(t, "ADD_PATIENT", rows[1][4])
	assert.Equal(t, "2024-03-10 12:00:00", rows[1][5])
	assert.Equal(t, "Exported audit logs", store.lastLog().Details)

	_, err = svc.Export(ctx, admin, ExportKind("users"), &buf)
	assert.True(t, IsValidationError(err))
}

func TestService_UploadEncryptedExport(t *testing.T) {
	ctx := context.Background()
	svc, _, c, _ := newTestService(t)

	_, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)

	uploader := &mockUploader{}
	uploader.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return containsAll(key, "exports/2024-03-10/", "patients_export_20240310_120000.csv.enc")
	}), EncryptedExportContentType).Return("s3://bucket/key", nil)

	location, err := svc.UploadEncryptedExport(ctx, admin, ExportPatients, uploader)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/key", location)
	uploader.AssertExpectations(t)

	assert.NotContains(t, string(uploader.body), "John Doe")

	var plain bytes.Buffer
	require.NoError(t, c.DecryptExport(bytes.NewReader(uploader.body), &plain))
	assert.Contains(t, plain.String(), "John Doe")

	var partial bytes.Buffer
	truncated := uploader.body[:len(uploader.body)-1]
	assert.ErrorIs(t, c.DecryptExport(bytes.NewReader(truncated), &partial), ErrDecryptionFailed)
	assert.Zero(t, partial.Len(), "a truncated export yields no plaintext")

	_, err = svc.UploadEncryptedExport(ctx, admin, ExportPatients, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	failing := &mockUploader{}
	failing.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket missing"))
	_, err = svc.UploadEncryptedExport(ctx, admin, ExportLogs, failing)
	assert.ErrorContains(t, err, "bucket missing")
}

func TestExportFileName(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 30, 5, 0, time.UTC)
	assert.Equal(t, "patients_export_20240310_123005.csv", ExportFileName(ExportPatients, at))
	assert.Equal(t, "audit_logs_export_20240310_123005.csv", ExportFileName(ExportLogs, at))

	kind, err := ParseExportKind("logs")
	require.NoError(t, err)
	assert.Equal(t, ExportLogs, kind)
	_, err = ParseExportKind("secrets")
	assert.Error(t, err)
}
