package carevault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/carevault/internal/monitoring"
)

func encryptRecord(t *testing.T, c *Cipher, id int64, name, contact, diagnosis string) PatientRecord {
	t.Helper()

	rec := PatientRecord{ID: id, DateAdded: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
	var err error
	rec.Name, err = c.Encrypt(name)
	require.NoError(t, err)
	rec.Contact, err = c.Encrypt(contact)
	require.NoError(t, err)
	rec.Diagnosis, err = c.Encrypt(diagnosis)
	require.NoError(t, err)
	return rec
}

func TestEngine_JohnDoeScenario(t *testing.T) {
	c := NewTestCipher(t)
	engine := NewTestEngine(t, c)
	rec := encryptRecord(t, c, 1, "John Doe", "123-456-7890", "Fever and flu")

	tests := []struct {
		role      Role
		name      string
		contact   string
		diagnosis string
	}{
		{RoleAdmin, "John Doe", "123-456-7890", "Fever and flu"},
		{RoleDoctor, "ANON_1", "XXX-XXX-7890", "Respiratory Condition"},
		{RoleReceptionist, "ANON_1", "XXX-XXX-7890", "[Restricted]"},
		{Role("janitor"), "[Restricted]", "[Restricted]", "[Restricted]"},
		{Role(""), "[Restricted]", "[Restricted]", "[Restricted]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			view := engine.Disclose(Principal{UserID: 42, Role: tt.role}, rec)

			assert.Equal(t, tt.name, view.Name)
			assert.Equal(t, tt.contact, view.Contact)
			assert.Equal(t, tt.diagnosis, view.Diagnosis)
			assert.Equal(t, rec.ID, view.PatientID)
			assert.Equal(t, rec.DateAdded, view.DateAdded)
			assert.Equal(t, tt.role, view.Role)
			assert.Equal(t, int64(42), view.UserID)
			assert.False(t, view.HasFaults())
		})
	}
}

func TestEngine_DoctorNameIgnoresCiphertext(t *testing.T) {
	c := NewTestCipher(t)
	engine := NewTestEngine(t, c)
	doctor := Principal{UserID: 2, Role: RoleDoctor}

	for _, name := range []string{"John Doe", "", "garbage-not-ciphertext"} {
		rec := encryptRecord(t, c, 7, "x", "5551234", "Heart murmur")
		rec.Name = name

		view := engine.Disclose(doctor, rec)
		assert.Equal(t, "ANON_7", view.Name)
		assert.Empty(t, view.Faults)
	}
}

func TestEngine_EmptyFields(t *testing.T) {
	c := NewTestCipher(t)
	engine := NewTestEngine(t, c)
	rec := PatientRecord{ID: 3}

	admin := engine.Disclose(Principal{Role: RoleAdmin}, rec)
	assert.Equal(t, "", admin.Name)
	assert.Equal(t, "", admin.Contact)
	assert.Equal(t, "", admin.Diagnosis)

	doctor := engine.Disclose(Principal{Role: RoleDoctor}, rec)
	assert.Equal(t, RedactedContact, doctor.Contact)
	assert.Equal(t, RestrictedMarker, doctor.Diagnosis)

	receptionist := engine.Disclose(Principal{Role: RoleReceptionist}, rec)
	assert.Equal(t, RedactedContact, receptionist.Contact)
	assert.Equal(t, RestrictedMarker, receptionist.Diagnosis)
}

func TestEngine_DoctorCategories(t *testing.T) {
	c := NewTestCipher(t)
	engine := NewTestEngine(t, c)
	doctor := Principal{UserID: 2, Role: RoleDoctor}

	tests := map[string]string{
		"Diabetes type 2":     CategoryMetabolic,
		"High blood pressure": CategoryCardiovascular,
		"Fractured wrist":     CategoryInjury,
		"Migraine":            CategoryGeneral,
	}
	for diagnosis, expected := range tests {
		t.Run(diagnosis, func(t *testing.T) {
			rec := encryptRecord(t, c, 9, "Jane Roe", "987-654-3210", diagnosis)
			view := engine.Disclose(doctor, rec)
			assert.Equal(t, expected, view.Diagnosis)
			assert.Equal(t, "XXX-XXX-3210", view.Contact)
		})
	}
}

func TestEngine_DecryptFaults(t *testing.T) {
	c := NewTestCipher(t)
	other := NewTestCipher(t)
	metrics := monitoring.NewInMemoryMetricsCollector()
	engine, err := NewEngine(c, WithEngineMetrics(metrics))
	require.NoError(t, err)

	rec := encryptRecord(t, c, 5, "John Doe", "123-456-7890", "Fever and flu")
	foreign := encryptRecord(t, other, 5, "John Doe", "123-456-7890", "Fever and flu")
	rec.Contact = foreign.Contact
	rec.Diagnosis = foreign.Diagnosis

	t.Run("admin", func(t *testing.T) {
		view := engine.Disclose(Principal{Role: RoleAdmin}, rec)
		assert.Equal(t, "John Doe", view.Name)
		assert.Equal(t, DecryptionErrorMarker, view.Contact)
		assert.Equal(t, DecryptionErrorMarker, view.Diagnosis)
		assert.Equal(t, []Field{FieldContact, FieldDiagnosis}, view.Faults)
	})

	t.Run("doctor never transforms the marker", func(t *testing.T) {
		view := engine.Disclose(Principal{Role: RoleDoctor}, rec)
		assert.Equal(t, "ANON_5", view.Name)
		assert.Equal(t, DecryptionErrorMarker, view.Contact)
		assert.Equal(t, DecryptionErrorMarker, view.Diagnosis)
		assert.NotEqual(t, "XXX-XXX-ror]", view.Contact)
		assert.Equal(t, []Field{FieldContact, FieldDiagnosis}, view.Faults)
	})

	t.Run("receptionist does not touch the diagnosis", func(t *testing.T) {
		view := engine.Disclose(Principal{Role: RoleReceptionist}, rec)
		assert.Equal(t, DecryptionErrorMarker, view.Contact)
		assert.Equal(t, RestrictedMarker, view.Diagnosis)
		assert.Equal(t, []Field{FieldContact}, view.Faults)
	})

	t.Run("unknown role decrypts nothing", func(t *testing.T) {
		view := engine.Disclose(Principal{Role: "visitor"}, rec)
		assert.Empty(t, view.Faults)
	})

	assert.Equal(t, int64(1), metrics.GetCounter(monitoring.MetricDisclosures, map[string]string{"role": "doctor"}))
	assert.Zero(t, metrics.GetCounter(monitoring.MetricDecryptFaults, map[string]string{"field": "contact"}))
	assert.Equal(t, int64(1), metrics.GetCounter(monitoring.MetricDisclosures, map[string]string{"role": "unknown"}))
}

func TestEngine_DiscloseAs(t *testing.T) {
	c := NewTestCipher(t)
	engine := NewTestEngine(t, c)
	rec := encryptRecord(t, c, 1, "John Doe", "123-456-7890", "Fever and flu")

	admin := Principal{UserID: 1, Role: RoleAdmin}
	anonymized := engine.DiscloseAs(admin, rec, RoleDoctor)
	assert.Equal(t, "ANON_1", anonymized.Name)
	assert.Equal(t, "Respiratory Condition", anonymized.Diagnosis)
	assert.Equal(t, RoleDoctor, anonymized.Role)

	receptionist := Principal{UserID: 3, Role: RoleReceptionist}
	escalation := engine.DiscloseAs(receptionist, rec, RoleAdmin)
	assert.Equal(t, "ANON_1", escalation.Name)
	assert.Equal(t, RestrictedMarker, escalation.Diagnosis)
	assert.Equal(t, RoleReceptionist, escalation.Role)
}

func TestEngine_DiscloseAll(t *testing.T) {
	c := NewTestCipher(t)
	engine := NewTestEngine(t, c)

	recs := []PatientRecord{
		encryptRecord(t, c, 1, "John Doe", "123-456-7890", "Fever and flu"),
		encryptRecord(t, c, 2, "Jane Roe", "555-000-1111", "Diabetes"),
	}

	views := engine.DiscloseAll(Principal{Role: RoleDoctor}, recs)
	require.Len(t, views, 2)
	assert.Equal(t, "ANON_1", views[0].Name)
	assert.Equal(t, "ANON_2", views[1].Name)
	assert.Equal(t, CategoryMetabolic, views[1].Diagnosis)

	assert.Empty(t, engine.DiscloseAll(Principal{Role: RoleAdmin}, nil))
}

// revealed scores v: 2 per raw field, 1 per masked or categorized field.
func revealed(v DisclosureView, plain map[Field]string) int {
	n := 0
	if v.Name == plain[FieldName] {
		n += 2
	}
	switch v.Contact {
	case plain[FieldContact]:
		n += 2
	case MaskContact(plain[FieldContact]):
		n++
	}
	switch v.Diagnosis {
	case plain[FieldDiagnosis]:
		n += 2
	case CategorizeDiagnosis(plain[FieldDiagnosis]):
		n++
	}
	return n
}

func TestEngine_MonotonicDisclosure(t *testing.T) {
	c := NewTestCipher(t)
	engine := NewTestEngine(t, c)

	samples := []map[Field]string{
		{FieldName: "John Doe", FieldContact: "123-456-7890", FieldDiagnosis: "Fever and flu"},
		{FieldName: "Jane Roe", FieldContact: "12", FieldDiagnosis: "Broken arm"},
		{FieldName: "A", FieldContact: "", FieldDiagnosis: "cardiac arrest"},
	}

	for i, plain := range samples {
		rec := encryptRecord(t, c, int64(i+1), plain[FieldName], plain[FieldContact], plain[FieldDiagnosis])

		admin := revealed(engine.Disclose(Principal{Role: RoleAdmin}, rec), plain)
		doctor := revealed(engine.Disclose(Principal{Role: RoleDoctor}, rec), plain)
		receptionist := revealed(engine.Disclose(Principal{Role: RoleReceptionist}, rec), plain)
		unknown := revealed(engine.Disclose(Principal{Role: "guest"}, rec), plain)

		assert.GreaterOrEqual(t, admin, doctor)
		assert.GreaterOrEqual(t, doctor, receptionist)
		assert.GreaterOrEqual(t, receptionist, unknown)
		assert.Zero(t, unknown)
	}
}

func TestNewEngine_RequiresCipher(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
