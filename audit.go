package carevault

import "time"

// Audit log limits.
const (
	DefaultLogLimit = 100
	MaxLogLimit     = 500
	ExportLogLimit  = 1000

	// MostActiveUserNone is reported when the log has no attributable entries.
	MostActiveUserNone = "N/A"
)

// AuditEntry is one line of the append-only audit log. Details never contain
// plaintext patient data.
type AuditEntry struct {
	ID        int64     `json:"log_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Role      Role      `json:"role"`
	Action    Action    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityStats summarizes the audit log for the dashboard.
type ActivityStats struct {
	TotalLogs       int    `json:"total_logs"`
	LogsToday       int    `json:"logs_today"`
	MostActiveUser  string `json:"most_active_user"`
	MostActiveCount int    `json:"most_active_count"`
}

// DailyCount is the number of audit entries written on Date (YYYY-MM-DD).
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Analytics is the admin analytics page: totals plus per-day activity.
type Analytics struct {
	PatientCount int           `json:"patient_count"`
	Stats        ActivityStats `json:"stats"`
	Daily        []DailyCount  `json:"daily"`
}

// User is an application account. PasswordHash is a PHC-encoded Argon2id hash.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
}

// clampLogLimit caps a requested log page size at MaxLogLimit. Non-positive
// requests get DefaultLogLimit.
func clampLogLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLogLimit
	case limit > MaxLogLimit:
		return MaxLogLimit
	default:
		return limit
	}
}
