package carevault

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hengadev/errsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/carevault/internal/monitoring"
)

var (
	admin        = Principal{UserID: 1, Role: RoleAdmin}
	doctor       = Principal{UserID: 2, Role: RoleDoctor}
	receptionist = Principal{UserID: 3, Role: RoleReceptionist}
	stranger     = Principal{UserID: 4, Role: Role("janitor")}
)

func newTestService(t *testing.T) (*Service, *memoryStore, *Cipher, *monitoring.InMemoryMetricsCollector) {
	t.Helper()
	store := newMemoryStore()
	c := NewTestCipher(t)
	metrics := monitoring.NewInMemoryMetricsCollector()
	svc, err := NewService(store, store, store, c,
		WithServiceMetrics(metrics),
		WithServiceClock(func() time.Time { return store.now }))
	require.NoError(t, err)
	return svc, store, c, metrics
}

func johnDoe() PatientInput {
	return PatientInput{Name: "John Doe", Contact: "123-456-7890", Diagnosis: "Fever and flu", Consent: true}
}

func TestService_AddPatient(t *testing.T) {
	ctx := context.Background()
	svc, store, c, _ := newTestService(t)

	view, err := svc.AddPatient(ctx, receptionist, johnDoe())
	require.NoError(t, err)
	assert.Equal(t, "ANON_1", view.Name)
	assert.Equal(t, "XXX-XXX-7890", view.Contact)
	assert.Equal(t, RestrictedMarker, view.Diagnosis)

	stored, err := store.GetPatient(ctx, view.PatientID)
	require.NoError(t, err)
	assert.NotEqual(t, "John Doe", stored.Name, "fields are stored encrypted")
	assert.Equal(t, "John Doe", c.Decrypt(stored.Name))
	assert.Equal(t, "Fever and flu", c.Decrypt(stored.Diagnosis))

	last := store.lastLog()
	assert.Equal(t, ActionAddPatient, last.Action)
	assert.Equal(t, "Added patient ID: 1", last.Details)
	assert.Equal(t, receptionist.UserID, last.UserID)
	assert.Equal(t, RoleReceptionist, last.Role)
}

func TestService_AddPatientValidation(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)

	tests := []struct {
		name string
		in   PatientInput
		keys []string
	}{
		{"missing consent", PatientInput{Name: "A", Contact: "1234", Diagnosis: "Flu"}, []string{"consent"}},
		{"blank fields", PatientInput{Name: " ", Contact: "", Diagnosis: "", Consent: true}, []string{"name", "contact", "diagnosis"}},
		{"marker as data", PatientInput{Name: DecryptionErrorMarker, Contact: "1234", Diagnosis: "Flu", Consent: true}, []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddPatient(ctx, admin, tt.in)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var fields errsx.Map
			require.True(t, errors.As(err, &fields))
			assert.Len(t, fields, len(tt.keys))
			for _, key := range tt.keys {
				assert.Contains(t, fields, key)
			}
		})
	}

	count, err := store.CountPatients(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.actions())
}

func TestService_AccessDenied(t *testing.T) {
	ctx := context.Background()
	svc, store, _, metrics := newTestService(t)

	_, err := svc.AddPatient(ctx, doctor, johnDoe())
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.ListPatients(ctx, receptionist, false)
	assert.ErrorIs(t, err, ErrAccessDenied)

	assert.ErrorIs(t, svc.DeletePatient(ctx, receptionist, 1), ErrAccessDenied)
	assert.ErrorIs(t, svc.UpdatePatient(ctx, doctor, 1, PatientUpdate{}), ErrAccessDenied)

	_, err = svc.ViewLogs(ctx, doctor, "", 10)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.ExportPatientsCSV(ctx, receptionist, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.Dashboard(ctx, stranger)
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.Analytics(ctx, doctor)
	assert.ErrorIs(t, err, ErrAccessDenied)

	assert.Empty(t, store.actions(), "refused operations are not audited as performed")
	assert.Equal(t, int64(1), metrics.GetCounter(monitoring.MetricAccessDenied, map[string]string{"role": "doctor", "action": "ADD_PATIENT"}))
}

func TestService_ListPatients(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)

	_, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)
	_, err = svc.AddPatient(ctx, admin, PatientInput{Name: "Jane Roe", Contact: "555-000-1111", Diagnosis: "Diabetes", Consent: true})
	require.NoError(t, err)

	raw, err := svc.ListPatients(ctx, admin, false)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "Jane Roe", raw[0].Name)
	assert.Equal(t, "John Doe", raw[1].Name)
	assert.Equal(t, "Viewed 2 patient records (admin mode)", store.lastLog().Details)

	anonymized, err := svc.ListPatients(ctx, admin, true)
	require.NoError(t, err)
	assert.Equal(t, "ANON_2", anonymized[0].Name)
	assert.Equal(t, CategoryMetabolic, anonymized[0].Diagnosis)
	assert.Equal(t, "Viewed 2 patient records (anonymized mode)", store.lastLog().Details)

	doctorViews, err := svc.ListPatients(ctx, doctor, true)
	require.NoError(t, err)
	assert.Equal(t, "ANON_1", doctorViews[1].Name)
	assert.Equal(t, CategoryRespiratory, doctorViews[1].Diagnosis)
	assert.Equal(t, "Viewed 2 patient records (doctor mode)", store.lastLog().Details)

	editable, err := svc.ListEditable(ctx, receptionist)
	require.NoError(t, err)
	require.Len(t, editable, 2)
	assert.Equal(t, RestrictedMarker, editable[0].Diagnosis)
}

func TestService_DecryptFaultsAreAudited(t *testing.T) {
	ctx := context.Background()
	svc, store, _, metrics := newTestService(t)

	view, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)

	rec, err := store.GetPatient(ctx, view.PatientID)
	require.NoError(t, err)
	rec.Contact = "corrupted"
	require.NoError(t, store.UpdatePatient(ctx, rec))

	views, err := svc.ListPatients(ctx, doctor, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, DecryptionErrorMarker, views[0].Contact)
	assert.Equal(t, CategoryRespiratory, views[0].Diagnosis)

	actions := store.actions()
	assert.Contains(t, actions, ActionDecryptError)
	assert.Equal(t, ActionViewPatients, actions[len(actions)-1])

	fault, err := store.ListLogsByAction(ctx, ActionDecryptError, 1)
	require.NoError(t, err)
	require.Len(t, fault, 1)
	assert.Equal(t, "Decryption failed for patient ID: 1 (contact)", fault[0].Details)
	assert.Equal(t, doctor.UserID, fault[0].UserID)
	assert.NotContains(t, fault[0].Details, "corrupted")

	assert.Equal(t, int64(1), metrics.GetCounter(monitoring.MetricDecryptFaults, map[string]string{"field": "contact"}))
}

func TestService_UpdatePatient(t *testing.T) {
	ctx := context.Background()
	svc, store, c, _ := newTestService(t)

	view, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)
	id := view.PatientID

	t.Run("admin replaces every field", func(t *testing.T) {
		err := svc.UpdatePatient(ctx, admin, id, PatientUpdate{Name: "John Q. Doe", Contact: "111-222-3333", Diagnosis: "Broken leg"})
		require.NoError(t, err)

		rec, err := store.GetPatient(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "John Q. Doe", c.Decrypt(rec.Name))
		assert.Equal(t, "Broken leg", c.Decrypt(rec.Diagnosis))
		assert.Equal(t, "Updated patient ID: 1", store.lastLog().Details)
	})

	t.Run("receptionist keeps the diagnosis", func(t *testing.T) {
		before, err := store.GetPatient(ctx, id)
		require.NoError(t, err)

		err = svc.UpdatePatient(ctx, receptionist, id, PatientUpdate{Name: "J. Doe", Contact: "999-888-7777", Diagnosis: "ignored"})
		require.NoError(t, err)

		rec, err := store.GetPatient(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "J. Doe", c.Decrypt(rec.Name))
		assert.Equal(t, "999-888-7777", c.Decrypt(rec.Contact))
		assert.Equal(t, "Broken leg", c.Decrypt(rec.Diagnosis))
		assert.NotEqual(t, before.Diagnosis, rec.Diagnosis, "diagnosis is re-encrypted under a fresh nonce")
		assert.Equal(t, before.DateAdded, rec.DateAdded)
	})

	t.Run("receptionist edit refuses to store the marker", func(t *testing.T) {
		rec, err := store.GetPatient(ctx, id)
		require.NoError(t, err)
		rec.Diagnosis = "not-ciphertext"
		require.NoError(t, store.UpdatePatient(ctx, rec))

		err = svc.UpdatePatient(ctx, receptionist, id, PatientUpdate{Name: "J. Doe", Contact: "999-888-7777"})
		assert.ErrorIs(t, err, ErrDecryptionFailed)

		after, err := store.GetPatient(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "not-ciphertext", after.Diagnosis, "stored value is left untouched")
		assert.Equal(t, ActionDecryptError, store.lastLog().Action)
	})

	t.Run("validation", func(t *testing.T) {
		err := svc.UpdatePatient(ctx, admin, id, PatientUpdate{Name: "", Contact: "1234", Diagnosis: DecryptionErrorMarker})
		assert.True(t, IsValidationError(err))
	})

	t.Run("missing patient", func(t *testing.T) {
		err := svc.UpdatePatient(ctx, admin, 404, PatientUpdate{Name: "a", Contact: "b", Diagnosis: "c"})
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})
}

func TestService_DeletePatient(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)

	view, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)

	require.NoError(t, svc.DeletePatient(ctx, admin, view.PatientID))
	assert.Equal(t, "Deleted patient ID: 1", store.lastLog().Details)

	_, err = store.GetPatient(ctx, view.PatientID)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	assert.ErrorIs(t, svc.DeletePatient(ctx, admin, view.PatientID), ErrPatientNotFound)
}

func TestService_ViewLogs(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)

	_, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)
	_, err = svc.ListPatients(ctx, admin, false)
	require.NoError(t, err)

	entries, err := svc.ViewLogs(ctx, admin, "", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "Viewed 2 audit logs", store.lastLog().Details)

	adds, err := svc.ViewLogs(ctx, admin, ActionAddPatient, 10)
	require.NoError(t, err)
	require.Len(t, adds, 1)
	assert.Equal(t, ActionAddPatient, adds[0].Action)
}

func TestService_AuditFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newTestService(t)
	store.failAudit = errors.New("disk full")

	_, err := svc.ListPatients(ctx, admin, false)
	assert.ErrorContains(t, err, "disk full")
}

func TestService_DashboardAndAnalytics(t *testing.T) {
	ctx := context.Background()
	svc, _, _, metrics := newTestService(t)

	_, err := svc.AddPatient(ctx, admin, johnDoe())
	require.NoError(t, err)

	dash, err := svc.Dashboard(ctx, receptionist)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.PatientCount)
	assert.Empty(t, dash.Daily, "only admins get the activity chart")

	dash, err = svc.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.NotEmpty(t, dash.Daily)

	analytics, err := svc.Analytics(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, analytics.Stats.TotalLogs)
	assert.Equal(t, 1.0, metrics.GetGauge(monitoring.MetricPatients, nil))
}

func TestNewService_RequiresStores(t *testing.T) {
	_, err := NewService(nil, nil, nil, NewTestCipher(t))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	store := newMemoryStore()
	_, err = NewService(store, store, store, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
