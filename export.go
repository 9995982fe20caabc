package carevault

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ExportTimeLayout formats date_added and timestamp columns in CSV exports.
const ExportTimeLayout = "2006-01-02 15:04:05"

// EncryptedExportContentType is the content type of uploaded export objects.
const EncryptedExportContentType = "application/octet-stream"

// ExportKind selects what an export contains.
type ExportKind string

const (
	ExportPatients ExportKind = "patients"
	ExportLogs     ExportKind = "logs"
)

var (
	patientCSVHeader = []string{"patient_id", "name", "contact", "diagnosis", "date_added"}
	logCSVHeader     = []string{"log_id", "user_id", "username", "role", "action", "timestamp", "details"}
)

// ParseExportKind validates s as an ExportKind.
func ParseExportKind(s string) (ExportKind, error) {
	switch k := ExportKind(s); k {
	case ExportPatients, ExportLogs:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown export %q", ErrValidation, s)
	}
}

// ExportFileName returns the download name of an export taken at t, e.g.
// "patients_export_20240310_120000.csv".
func ExportFileName(kind ExportKind, t time.Time) string {
	prefix := "patients_export"
	if kind == ExportLogs {
		prefix = "audit_logs_export"
	}
	return fmt.Sprintf("%s_%s.csv", prefix, t.Format("20060102_150405"))
}

// Export writes the requested CSV to w and returns the number of data rows.
func (s *Service) Export(ctx context.Context, p Principal, kind ExportKind, w io.Writer) (int, error) {
	switch kind {
	case ExportPatients:
		return s.ExportPatientsCSV(ctx, p, w)
	case ExportLogs:
		return s.ExportLogsCSV(ctx, p, w)
	default:
		return 0, fmt.Errorf("%w: unknown export %q", ErrValidation, kind)
	}
}

// ExportPatientsCSV writes every patient, as p may see them, to w.
func (s *Service) ExportPatientsCSV(ctx context.Context, p Principal, w io.Writer) (int, error) {
	var n int
	err := s.track(ctx, p, "export_patients", func() error {
		if err := s.authorize(ctx, p, ActionExportData); err != nil {
			return err
		}

		recs, err := s.patients.ListPatients(ctx)
		if err != nil {
			return err
		}
		views := s.disclose(ctx, p, recs, p.Role)

		cw := csv.NewWriter(w)
		if err := cw.Write(patientCSVHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, v := range views {
			if err := cw.Write([]string{
				strconv.FormatInt(v.PatientID, 10),
				v.Name,
				v.Contact,
				v.Diagnosis,
				v.DateAdded.Format(ExportTimeLayout),
			}); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("failed to flush csv: %w", err)
		}

		n = len(views)
		return s.record(ctx, p, ActionExportData, fmt.Sprintf("Exported %d patient records", n))
	})
	return n, err
}

// ExportLogsCSV writes the latest ExportLogLimit audit entries to w.
func (s *Service) ExportLogsCSV(ctx context.Context, p Principal, w io.Writer) (int, error) {
	var n int
	err := s.track(ctx, p, "export_logs", func() error {
		if err := s.authorize(ctx, p, ActionExportData); err != nil {
			return err
		}

		entries, err := s.logs.ListLogs(ctx, ExportLogLimit)
		if err != nil {
			return err
		}

		cw := csv.NewWriter(w)
		if err := cw.Write(logCSVHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, e := range entries {
			if err := cw.Write([]string{
				strconv.FormatInt(e.ID, 10),
				strconv.FormatInt(e.UserID, 10),
				e.Username,
				string(e.Role),
				string(e.Action),
				e.Timestamp.Format(ExportTimeLayout),
				e.Details,
			}); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("failed to flush csv: %w", err)
		}

		n = len(entries)
		return s.record(ctx, p, ActionExportData, "Exported audit logs")
	})
	return n, err
}

// UploadEncryptedExport builds the requested export, encrypts it as a stream under
// the field key and hands it to uploader. It returns the object location.
func (s *Service) UploadEncryptedExport(ctx context.Context, p Principal, kind ExportKind, uploader ObjectUploader) (string, error) {
	if uploader == nil {
		return "", fmt.Errorf("%w: no export uploader configured", ErrInvalidConfiguration)
	}

	var buf bytes.Buffer
	if _, err := s.Export(ctx, p, kind, &buf); err != nil {
		return "", err
	}

	now := s.now().UTC()
	key := fmt.Sprintf("exports/%s/%s/%s.enc", now.Format("2006-01-02"), uuid.NewString(), ExportFileName(kind, now))

	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		pw.CloseWithError(s.cipher.fields.EncryptStream(&buf, pw))
	}()

	location, err := uploader.Upload(ctx, key, pr, EncryptedExportContentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}
	s.logger.Info("Encrypted export uploaded", "kind", string(kind), "location", location)
	return location, nil
}

// DecryptExport reverses UploadEncryptedExport's encryption. Nothing is written
// to w unless the whole export authenticates, including its final frame.
func (c *Cipher) DecryptExport(r io.Reader, w io.Writer) error {
	var plain bytes.Buffer
	if err := c.fields.DecryptStream(r, &plain); err != nil {
		return fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	_, err := plain.WriteTo(w)
	return err
}
