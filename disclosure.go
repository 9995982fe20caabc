package carevault

import (
	"fmt"
	"time"

	"github.com/hengadev/carevault/internal/monitoring"
)

// Field names a sensitive patient attribute.
type Field string

const (
	FieldName      Field = "name"
	FieldContact   Field = "contact"
	FieldDiagnosis Field = "diagnosis"
)

// PatientRecord is a stored patient. Name, Contact and Diagnosis hold ciphertext
// produced by Cipher.Encrypt (or the empty string).
type PatientRecord struct {
	ID        int64
	Name      string
	Contact   string
	Diagnosis string
	DateAdded time.Time
}

// DisclosureView is what a principal is allowed to see of a PatientRecord. Every
// string in it is safe to display.
type DisclosureView struct {
	PatientID int64     `json:"patient_id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Diagnosis string    `json:"diagnosis"`
	DateAdded time.Time `json:"date_added"`

	// Role is the role whose policy shaped the view; UserID is who asked.
	Role   Role  `json:"role"`
	UserID int64 `json:"-"`

	// Faults lists the fields whose ciphertext could not be opened. Those fields
	// hold DecryptionErrorMarker.
	Faults []Field `json:"faults,omitempty"`
}

// HasFaults reports whether any field failed to decrypt.
func (v DisclosureView) HasFaults() bool {
	return len(v.Faults) > 0
}

// Engine applies the role disclosure policy to patient records. It holds no state
// besides the cipher and is safe for concurrent use.
type Engine struct {
	cipher  *Cipher
	metrics monitoring.MetricsCollector
}

type EngineOption func(e *Engine)

// WithEngineMetrics reports disclosure counts to collector. Decryption faults are
// left to the caller, which finds them in DisclosureView.Faults.
func WithEngineMetrics(collector monitoring.MetricsCollector) EngineOption {
	return func(e *Engine) {
		if collector != nil {
			e.metrics = collector
		}
	}
}

func NewEngine(cipher *Cipher, options ...EngineOption) (*Engine, error) {
	if cipher == nil {
		return nil, fmt.Errorf("%w: engine requires a cipher", ErrInvalidConfiguration)
	}
	e := &Engine{
		cipher:  cipher,
		metrics: &monitoring.NoOpMetricsCollector{},
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Disclose returns the view of rec that p's role permits.
func (e *Engine) Disclose(p Principal, rec PatientRecord) DisclosureView {
	return e.disclose(p, rec, p.Role)
}

// DiscloseAs returns rec shaped by the policy of role as. Only admins may look
// through another role's eyes; any other principal gets its own view.
func (e *Engine) DiscloseAs(p Principal, rec PatientRecord, as Role) DisclosureView {
	if p.Role != RoleAdmin {
		as = p.Role
	}
	return e.disclose(p, rec, as)
}

// DiscloseAll applies Disclose to each record, preserving order.
func (e *Engine) DiscloseAll(p Principal, recs []PatientRecord) []DisclosureView {
	return e.DiscloseAllAs(p, recs, p.Role)
}

// DiscloseAllAs applies DiscloseAs to each record, preserving order.
func (e *Engine) DiscloseAllAs(p Principal, recs []PatientRecord, as Role) []DisclosureView {
	views := make([]DisclosureView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, e.DiscloseAs(p, rec, as))
	}
	return views
}

func (e *Engine) disclose(p Principal, rec PatientRecord, shape Role) DisclosureView {
	view := DisclosureView{
		PatientID: rec.ID,
		DateAdded: rec.DateAdded,
		Role:      shape,
		UserID:    p.UserID,
	}

	switch shape {
	case RoleAdmin:
		view.Name = e.open(&view, FieldName, rec.Name, identity)
		view.Contact = e.open(&view, FieldContact, rec.Contact, identity)
		view.Diagnosis = e.open(&view, FieldDiagnosis, rec.Diagnosis, identity)

	case RoleDoctor:
		view.Name = AnonymizeName(rec.ID)
		view.Contact = e.open(&view, FieldContact, rec.Contact, MaskContact)
		if rec.Diagnosis == "" {
			view.Diagnosis = RestrictedMarker
		} else {
			view.Diagnosis = e.open(&view, FieldDiagnosis, rec.Diagnosis, CategorizeDiagnosis)
		}

	case RoleReceptionist:
		view.Name = AnonymizeName(rec.ID)
		view.Contact = e.open(&view, FieldContact, rec.Contact, MaskContact)
		view.Diagnosis = RestrictedMarker

	default:
		view.Name = RestrictedMarker
		view.Contact = RestrictedMarker
		view.Diagnosis = RestrictedMarker
	}

	e.metrics.IncrementCounter(monitoring.MetricDisclosures, map[string]string{"role": roleTag(shape)})
	return view
}

// open decrypts ciphertext and applies transform to the plaintext. On failure the
// field is recorded as a fault and the marker is returned untransformed.
func (e *Engine) open(view *DisclosureView, field Field, ciphertext string, transform func(string) string) string {
	plaintext, err := e.cipher.Open(ciphertext)
	if err != nil {
		view.Faults = append(view.Faults, field)
		return DecryptionErrorMarker
	}
	return transform(plaintext)
}

func identity(s string) string { return s }

func roleTag(r Role) string {
	return monitoring.RoleLabel(string(r))
}
