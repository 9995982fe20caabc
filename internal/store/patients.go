package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hengadev/carevault"
)

// CreatePatient inserts rec and returns it with its id and date_added set.
func (s *Store) CreatePatient(ctx context.Context, rec carevault.PatientRecord) (carevault.PatientRecord, error) {
	added := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (name, contact, diagnosis, date_added)
		VALUES (?, ?, ?, ?)
	`, rec.Name, rec.Contact, rec.Diagnosis, added)
	if err != nil {
		return carevault.PatientRecord{}, fmt.Errorf("failed to insert patient: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return carevault.PatientRecord{}, fmt.Errorf("failed to read patient id: %w", err)
	}

	rec.ID = id
	rec.DateAdded, err = parseTime(added)
	if err != nil {
		return carevault.PatientRecord{}, err
	}
	return rec, nil
}

func (s *Store) GetPatient(ctx context.Context, id int64) (carevault.PatientRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT patient_id, name, contact, diagnosis, date_added
		FROM patients
		WHERE patient_id = ?
	`, id)

	rec, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return carevault.PatientRecord{}, carevault.NewPatientNotFoundError(id)
	}
	if err != nil {
		return carevault.PatientRecord{}, fmt.Errorf("failed to get patient %d: %w", id, err)
	}
	return rec, nil
}

// ListPatients returns every patient, highest id first.
func (s *Store) ListPatients(ctx context.Context) ([]carevault.PatientRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, name, contact, diagnosis, date_added
		FROM patients
		ORDER BY patient_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var recs []carevault.PatientRecord
	for rows.Next() {
		rec, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpdatePatient replaces all three encrypted fields of rec.ID.
func (s *Store) UpdatePatient(ctx context.Context, rec carevault.PatientRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE patients
		SET name = ?, contact = ?, diagnosis = ?
		WHERE patient_id = ?
	`, rec.Name, rec.Contact, rec.Diagnosis, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update patient %d: %w", rec.ID, err)
	}
	return expectOneRow(res, rec.ID)
}

func (s *Store) DeletePatient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE patient_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (s *Store) CountPatients(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(row scanner) (carevault.PatientRecord, error) {
	var rec carevault.PatientRecord
	var added string
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Contact, &rec.Diagnosis, &added); err != nil {
		return carevault.PatientRecord{}, err
	}
	t, err := parseTime(added)
	if err != nil {
		return carevault.PatientRecord{}, err
	}
	rec.DateAdded = t
	return rec, nil
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return carevault.NewPatientNotFoundError(id)
	}
	return nil
}
