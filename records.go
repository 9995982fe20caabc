package carevault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hengadev/errsx"

	"github.com/hengadev/carevault/internal/monitoring"
)

// Dashboard and analytics windows, in days.
const (
	DashboardActivityDays = 7
	AnalyticsActivityDays = 30
)

// PatientInput is the plaintext form of a new patient. Consent must be given.
type PatientInput struct {
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Diagnosis string `json:"diagnosis"`
	Consent   bool   `json:"consent"`
}

// PatientUpdate replaces a patient's fields. Diagnosis is ignored for
// receptionists, whose edits keep the stored diagnosis.
type PatientUpdate struct {
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Diagnosis string `json:"diagnosis"`
}

// Service runs the record operations of the application. Every operation is
// checked with Authorize, and every successful one is written to the audit log.
type Service struct {
	patients PatientStore
	audit    AuditSink
	logs     AuditReader
	cipher   *Cipher
	engine   *Engine

	hook    monitoring.ObservabilityHook
	logger  *monitoring.StructuredLogger
	metrics monitoring.MetricsCollector
	now     func() time.Time
}

type ServiceOption func(s *Service)

func WithServiceLogger(logger *monitoring.StructuredLogger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithServiceMetrics(collector monitoring.MetricsCollector) ServiceOption {
	return func(s *Service) {
		if collector != nil {
			s.metrics = collector
		}
	}
}

// WithServiceHook adds hook to the service's logging and metrics hooks.
func WithServiceHook(hook monitoring.ObservabilityHook) ServiceOption {
	return func(s *Service) {
		if hook != nil {
			s.hook = hook
		}
	}
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(patients PatientStore, audit AuditSink, logs AuditReader, cipher *Cipher, options ...ServiceOption) (*Service, error) {
	if patients == nil || audit == nil || logs == nil {
		return nil, fmt.Errorf("%w: service requires patient, audit and log stores", ErrInvalidConfiguration)
	}

	s := &Service{
		patients: patients,
		audit:    audit,
		logs:     logs,
		cipher:   cipher,
		hook:     &monitoring.NoOpObservabilityHook{},
		logger:   monitoring.NewNopLogger(),
		metrics:  &monitoring.NoOpMetricsCollector{},
		now:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	engine, err := NewEngine(cipher, WithEngineMetrics(s.metrics))
	if err != nil {
		return nil, err
	}
	s.engine = engine
	s.logger = s.logger.WithComponent("records")
	s.hook = monitoring.NewCompositeObservabilityHook(
		monitoring.NewLoggingObservabilityHook(s.logger),
		monitoring.NewMetricsObservabilityHook(s.metrics),
		s.hook,
	)
	return s, nil
}

// Engine returns the disclosure engine the service uses.
func (s *Service) Engine() *Engine {
	return s.engine
}

// AddPatient encrypts and stores a new patient and returns it as p sees it.
func (s *Service) AddPatient(ctx context.Context, p Principal, in PatientInput) (DisclosureView, error) {
	var view DisclosureView
	err := s.track(ctx, p, "add_patient", func() error {
		if err := s.authorize(ctx, p, ActionAddPatient); err != nil {
			return err
		}
		if err := validatePatientFields(in.Name, in.Contact, in.Diagnosis, true, in.Consent, true); err != nil {
			return err
		}

		rec, err := s.seal(in.Name, in.Contact, in.Diagnosis)
		if err != nil {
			return err
		}
		created, err := s.patients.CreatePatient(ctx, rec)
		if err != nil {
			return err
		}

		if err := s.record(ctx, p, ActionAddPatient, fmt.Sprintf("Added patient ID: %d", created.ID)); err != nil {
			return err
		}
		view = s.disclose(ctx, p, []PatientRecord{created}, p.Role)[0]
		return nil
	})
	return view, err
}

// UpdatePatient replaces the fields of patient id. Admins replace all three.
// Receptionists replace name and contact; the stored diagnosis is decrypted and
// encrypted again unchanged. An undecryptable stored diagnosis aborts the edit
// rather than overwriting it with the decryption error marker.
func (s *Service) UpdatePatient(ctx context.Context, p Principal, id int64, upd PatientUpdate) error {
	return s.track(ctx, p, "update_patient", func() error {
		if err := s.authorize(ctx, p, ActionUpdatePatient); err != nil {
			return err
		}

		existing, err := s.patients.GetPatient(ctx, id)
		if err != nil {
			return err
		}

		diagnosis := upd.Diagnosis
		keepDiagnosis := p.Role != RoleAdmin
		if keepDiagnosis {
			diagnosis, err = s.cipher.Open(existing.Diagnosis)
			if err != nil {
				s.reportFaults(ctx, p, DisclosureView{PatientID: id, Faults: []Field{FieldDiagnosis}})
				return fmt.Errorf("stored diagnosis of patient %d: %w", id, err)
			}
		}
		if err := validatePatientFields(upd.Name, upd.Contact, diagnosis, !keepDiagnosis, true, false); err != nil {
			return err
		}

		rec, err := s.seal(upd.Name, upd.Contact, diagnosis)
		if err != nil {
			return err
		}
		rec.ID = existing.ID
		rec.DateAdded = existing.DateAdded
		if err := s.patients.UpdatePatient(ctx, rec); err != nil {
			return err
		}

		return s.record(ctx, p, ActionUpdatePatient, fmt.Sprintf("Updated patient ID: %d", id))
	})
}

// DeletePatient permanently removes patient id.
func (s *Service) DeletePatient(ctx context.Context, p Principal, id int64) error {
	return s.track(ctx, p, "delete_patient", func() error {
		if err := s.authorize(ctx, p, ActionDeletePatient); err != nil {
			return err
		}
		if err := s.patients.DeletePatient(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, p, ActionDeletePatient, fmt.Sprintf("Deleted patient ID: %d", id))
	})
}

// ListPatients returns every patient as p may see them. An admin may ask for the
// anonymized (doctor) view instead of the raw one; the flag is ignored for other
// roles.
func (s *Service) ListPatients(ctx context.Context, p Principal, anonymized bool) ([]DisclosureView, error) {
	var views []DisclosureView
	err := s.track(ctx, p, "list_patients", func() error {
		if err := s.authorize(ctx, p, ActionViewPatients); err != nil {
			return err
		}

		recs, err := s.patients.ListPatients(ctx)
		if err != nil {
			return err
		}

		shape, mode := p.Role, string(p.Role)
		if p.Role == RoleAdmin && anonymized {
			shape, mode = RoleDoctor, "anonymized"
		}
		views = s.disclose(ctx, p, recs, shape)

		return s.record(ctx, p, ActionViewPatients, fmt.Sprintf("Viewed %d patient records (%s mode)", len(recs), mode))
	})
	return views, err
}

// ListEditable returns the patients p may pick from when editing. Receptionists
// see their masked view. The listing itself is not audited; the edit is.
func (s *Service) ListEditable(ctx context.Context, p Principal) ([]DisclosureView, error) {
	if err := s.authorize(ctx, p, ActionUpdatePatient); err != nil {
		return nil, err
	}
	recs, err := s.patients.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	return s.disclose(ctx, p, recs, p.Role), nil
}

// ViewLogs returns the latest audit entries, optionally only those for action.
func (s *Service) ViewLogs(ctx context.Context, p Principal, action Action, limit int) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := s.track(ctx, p, "view_logs", func() error {
		if err := s.authorize(ctx, p, ActionViewLogs); err != nil {
			return err
		}

		var err error
		limit = clampLogLimit(limit)
		if action == "" {
			entries, err = s.logs.ListLogs(ctx, limit)
		} else {
			entries, err = s.logs.ListLogsByAction(ctx, action, limit)
		}
		if err != nil {
			return err
		}

		return s.record(ctx, p, ActionViewLogs, fmt.Sprintf("Viewed %d audit logs", len(entries)))
	})
	return entries, err
}

// Dashboard returns the overview every role lands on. Daily activity is only
// filled in for admins.
func (s *Service) Dashboard(ctx context.Context, p Principal) (Analytics, error) {
	if err := s.authorize(ctx, p, ActionViewDashboard); err != nil {
		return Analytics{}, err
	}
	days := 0
	if p.Role == RoleAdmin {
		days = DashboardActivityDays
	}
	return s.analytics(ctx, days)
}

// Analytics returns activity statistics with the last AnalyticsActivityDays days.
func (s *Service) Analytics(ctx context.Context, p Principal) (Analytics, error) {
	if err := s.authorize(ctx, p, ActionViewAnalytics); err != nil {
		return Analytics{}, err
	}
	return s.analytics(ctx, AnalyticsActivityDays)
}

func (s *Service) analytics(ctx context.Context, days int) (Analytics, error) {
	now := s.now()

	count, err := s.patients.CountPatients(ctx)
	if err != nil {
		return Analytics{}, err
	}
	s.metrics.SetGauge(monitoring.MetricPatients, float64(count), nil)

	stats, err := s.logs.ActivityStats(ctx, now)
	if err != nil {
		return Analytics{}, err
	}

	out := Analytics{PatientCount: count, Stats: stats}
	if days > 0 {
		if out.Daily, err = s.logs.DailyActivity(ctx, days, now); err != nil {
			return Analytics{}, err
		}
	}
	return out, nil
}

func (s *Service) authorize(ctx context.Context, p Principal, action Action) error {
	if err := Authorize(p.Role, action); err != nil {
		s.hook.OnAccessDenied(ctx, string(p.Role), string(action))
		return err
	}
	return nil
}

// disclose shapes recs for p and audits any decryption faults.
func (s *Service) disclose(ctx context.Context, p Principal, recs []PatientRecord, shape Role) []DisclosureView {
	views := s.engine.DiscloseAllAs(p, recs, shape)
	for _, v := range views {
		if v.HasFaults() {
			s.reportFaults(ctx, p, v)
		}
	}
	return views
}

func (s *Service) reportFaults(ctx context.Context, p Principal, v DisclosureView) {
	fields := make([]string, len(v.Faults))
	for i, f := range v.Faults {
		fields[i] = string(f)
		s.hook.OnDecryptFault(ctx, v.PatientID, string(f))
	}

	details := fmt.Sprintf("Decryption failed for patient ID: %d (%s)", v.PatientID, strings.Join(fields, ", "))
	if err := s.record(ctx, p, ActionDecryptError, details); err != nil {
		s.logger.WithError(err).Error("Failed to audit decryption fault", "patient_id", v.PatientID)
	}
}

// record appends an audit entry for p.
func (s *Service) record(ctx context.Context, p Principal, action Action, details string) error {
	entry := AuditEntry{
		UserID:    p.UserID,
		Role:      p.Role,
		Action:    action,
		Details:   details,
		Timestamp: s.now(),
	}
	if err := s.audit.AppendLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry %s: %w", action, err)
	}
	s.metrics.IncrementCounter(monitoring.MetricAuditWrites, map[string]string{"action": string(action)})
	s.logger.Audit(p.UserID, string(p.Role), string(action), details)
	return nil
}

// seal encrypts the three sensitive fields into a new record.
func (s *Service) seal(name, contact, diagnosis string) (PatientRecord, error) {
	var rec PatientRecord
	var err error
	if rec.Name, err = s.cipher.Encrypt(strings.TrimSpace(name)); err != nil {
		return PatientRecord{}, err
	}
	if rec.Contact, err = s.cipher.Encrypt(strings.TrimSpace(contact)); err != nil {
		return PatientRecord{}, err
	}
	if rec.Diagnosis, err = s.cipher.Encrypt(strings.TrimSpace(diagnosis)); err != nil {
		return PatientRecord{}, err
	}
	return rec, nil
}

func (s *Service) track(ctx context.Context, p Principal, operation string, op func() error) error {
	return monitoring.Track(ctx, s.hook, operation, map[string]any{
		"user_id": p.UserID,
		"role":    string(p.Role),
	}, op)
}

// validatePatientFields checks the plaintext fields before they are encrypted.
// Blank values are rejected, as is the decryption error marker, which must never
// be stored as data.
func validatePatientFields(name, contact, diagnosis string, diagnosisRequired, consent, consentRequired bool) error {
	errs := make(errsx.Map)

	checks := []struct {
		field    Field
		value    string
		required bool
	}{
		{FieldName, name, true},
		{FieldContact, contact, true},
		{FieldDiagnosis, diagnosis, diagnosisRequired},
	}
	for _, c := range checks {
		value := strings.TrimSpace(c.value)
		switch {
		case value == DecryptionErrorMarker:
			errs.Set(string(c.field), NewFieldValidationError(c.field, "must not be the decryption error marker"))
		case value == "" && c.required:
			errs.Set(string(c.field), NewFieldValidationError(c.field, "is required"))
		}
	}
	if consentRequired && !consent {
		errs.Set("consent", fmt.Errorf("%w: patient consent is required", ErrValidation))
	}

	if errs.IsEmpty() {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errs.AsError())
}
