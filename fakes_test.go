package carevault

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// memoryStore is an in-memory PatientStore, UserStore, AuditSink and AuditReader.
type memoryStore struct {
	mu       sync.Mutex
	patients map[int64]PatientRecord
	users    map[string]User
	logs     []AuditEntry
	nextID   int64
	now      time.Time

	failAudit error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		patients: make(map[int64]PatientRecord),
		users:    make(map[string]User),
		now:      time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) CreatePatient(_ context.Context, rec PatientRecord) (PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	rec.DateAdded = m.now
	m.patients[rec.ID] = rec
	return rec, nil
}

func (m *memoryStore) GetPatient(_ context.Context, id int64) (PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.patients[id]
	if !ok {
		return PatientRecord{}, NewPatientNotFoundError(id)
	}
	return rec, nil
}

func (m *memoryStore) ListPatients(context.Context) ([]PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PatientRecord, 0, len(m.patients))
	for _, rec := range m.patients {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdatePatient(_ context.Context, rec PatientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[rec.ID]; !ok {
		return NewPatientNotFoundError(rec.ID)
	}
	m.patients[rec.ID] = rec
	return nil
}

func (m *memoryStore) DeletePatient(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[id]; !ok {
		return NewPatientNotFoundError(id)
	}
	delete(m.patients, id)
	return nil
}

func (m *memoryStore) CountPatients(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.patients), nil
}

func (m *memoryStore) CreateUser(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return User{}, fmt.Errorf("%w: username taken", ErrValidation)
	}
	user.ID = int64(len(m.users) + 1)
	m.users[user.Username] = user
	return user, nil
}

func (m *memoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return user, nil
}

func (m *memoryStore) AppendLog(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit != nil {
		return m.failAudit
	}
	entry.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memoryStore) ListLogs(_ context.Context, limit int) ([]AuditEntry, error) {
	return m.filterLogs("", limit), nil
}

func (m *memoryStore) ListLogsByAction(_ context.Context, action Action, limit int) ([]AuditEntry, error) {
	return m.filterLogs(action, limit), nil
}

func (m *memoryStore) filterLogs(action Action, limit int) []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEntry
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if action == "" || m.logs[i].Action == action {
			out = append(out, m.logs[i])
		}
	}
	return out
}

func (m *memoryStore) ActivityStats(context.Context, time.Time) (ActivityStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ActivityStats{TotalLogs: len(m.logs), LogsToday: len(m.logs), MostActiveUser: MostActiveUserNone}, nil
}

func (m *memoryStore) DailyActivity(_ context.Context, days int, now time.Time) ([]DailyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.logs) == 0 {
		return nil, nil
	}
	return []DailyCount{{Date: now.Format("2006-01-02"), Count: len(m.logs)}}, nil
}

// actions returns the audited actions in write order.
func (m *memoryStore) actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, len(m.logs))
	for i, l := range m.logs {
		out[i] = l.Action
	}
	return out
}

func (m *memoryStore) lastLog() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[len(m.logs)-1]
}

// mockUploader records uploaded objects.
type mockUploader struct {
	mock.Mock
	body []byte
}

func (u *mockUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.body = data
	args := u.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
