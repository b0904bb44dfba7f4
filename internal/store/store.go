// Package store persists dispatched payments in an embedded SQLite database
// and bounds concurrent database usage through a handle pool.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Service names the two upstream payment processors.
type Service string

const (
	ServiceDefault  Service = "default"
	ServiceFallback Service = "fallback"
)

// Payment is the durable record of one dispatch attempt.
type Payment struct {
	CorrelationID  string  `json:"correlationId"`
	Amount         float64 `json:"amount"`
	RequestedAt    string  `json:"requestedAt"`
	DefaultService bool    `json:"-"`
	Processed      bool    `json:"-"`
}

// HealthRow mirrors one row of the service_health_check table.
type HealthRow struct {
	Failing         bool
	MinResponseTime int
	LastCheck       string
}

// Handle is one leased database connection. A Handle is not safe for
// concurrent use; callers serialize through the Pool.
type Handle struct {
	db *sql.DB
}

// Open creates a Handle on the database file at path. WAL plus a busy
// timeout lets the writer queue and summary reads share the file.
func Open(path string) (*Handle, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir banco SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao conectar ao banco SQLite: %w", err)
	}
	return &Handle{db: db}, nil
}

// Close releases the underlying connection.
func (h *Handle) Close() error {
	return h.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	correlationId  TEXT     NOT NULL,
	amount         REAL     NOT NULL,
	requestedAt    DATETIME NOT NULL,
	defaultService INTEGER  NOT NULL,
	processed      INTEGER  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_requestedAt ON payments(requestedAt);

CREATE VIEW IF NOT EXISTS payments_default AS
	SELECT * FROM payments WHERE processed = 1 AND defaultService = 1;

CREATE VIEW IF NOT EXISTS payments_fallback AS
	SELECT * FROM payments WHERE processed = 1 AND defaultService = 0;

CREATE TABLE IF NOT EXISTS service_health_check (
	service         TEXT     PRIMARY KEY,
	failing         INTEGER  NOT NULL,
	minResponseTime INTEGER  NOT NULL,
	lastCheck       DATETIME NOT NULL
);

INSERT OR IGNORE INTO service_health_check (service, failing, minResponseTime, lastCheck)
	VALUES ('default', 0, 0, ''), ('fallback', 0, 0, '');
`

// Migrate creates the payments table, its two filtered views, the
// requestedAt index and the health mirror. Idempotent; run once on boot.
func (h *Handle) Migrate() error {
	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("erro ao criar schema: %w", err)
	}
	return nil
}

// InsertPayment appends one dispatch record. No retry on failure.
func (h *Handle) InsertPayment(p Payment) error {
	_, err := h.db.Exec(
		`INSERT INTO payments (correlationId, amount, requestedAt, defaultService, processed)
		 VALUES (?, ?, ?, ?, ?)`,
		p.CorrelationID, p.Amount, p.RequestedAt, boolToInt(p.DefaultService), boolToInt(p.Processed),
	)
	if err != nil {
		return fmt.Errorf("erro ao inserir pagamento %s: %w", p.CorrelationID, err)
	}
	return nil
}

// rangePredicate compares requestedAt against [from, to] as epoch seconds,
// endpoints inclusive. Unparseable bounds evaluate to NULL and match
// nothing. The cast keeps the comparison numeric.
const rangePredicate = `CAST(strftime('%s', requestedAt) AS INTEGER)
	BETWEEN CAST(strftime('%s', ?) AS INTEGER) AND CAST(strftime('%s', ?) AS INTEGER)`

// TotalAmount sums processed amounts for svc inside [from, to], endpoints
// inclusive. Timestamps are compared as epoch seconds, never as strings.
func (h *Handle) TotalAmount(svc Service, from, to string) (float64, error) {
	var total float64
	q := `SELECT COALESCE(SUM(amount), 0) FROM ` + viewFor(svc) + ` WHERE ` + rangePredicate
	if err := h.db.QueryRow(q, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("erro ao somar pagamentos (%s): %w", svc, err)
	}
	return total, nil
}

// TotalCount counts processed payments for svc inside [from, to].
func (h *Handle) TotalCount(svc Service, from, to string) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM ` + viewFor(svc) + ` WHERE ` + rangePredicate
	if err := h.db.QueryRow(q, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("erro ao contar pagamentos (%s): %w", svc, err)
	}
	return count, nil
}

// PurgeAll deletes every payment record.
func (h *Handle) PurgeAll() error {
	if _, err := h.db.Exec(`DELETE FROM payments`); err != nil {
		return fmt.Errorf("erro ao limpar pagamentos: %w", err)
	}
	return nil
}

// SaveHealth persists the mirror row for svc.
func (h *Handle) SaveHealth(svc Service, row HealthRow) error {
	_, err := h.db.Exec(
		`INSERT OR REPLACE INTO service_health_check (service, failing, minResponseTime, lastCheck)
		 VALUES (?, ?, ?, ?)`,
		string(svc), boolToInt(row.Failing), row.MinResponseTime, row.LastCheck,
	)
	if err != nil {
		return fmt.Errorf("erro ao salvar health check (%s): %w", svc, err)
	}
	return nil
}

// LoadHealth reads the full health mirror, keyed by service.
func (h *Handle) LoadHealth() (map[Service]HealthRow, error) {
	rows, err := h.db.Query(`SELECT service, failing, minResponseTime, lastCheck FROM service_health_check`)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar health checks: %w", err)
	}
	defer rows.Close()

	out := make(map[Service]HealthRow, 2)
	for rows.Next() {
		var svc string
		var failing, minRT int
		var lastCheck string
		if err := rows.Scan(&svc, &failing, &minRT, &lastCheck); err != nil {
			return nil, fmt.Errorf("erro ao ler health check: %w", err)
		}
		out[Service(svc)] = HealthRow{
			Failing:         failing != 0,
			MinResponseTime: minRT,
			LastCheck:       lastCheck,
		}
	}
	return out, rows.Err()
}

func viewFor(svc Service) string {
	if svc == ServiceFallback {
		return "payments_fallback"
	}
	return "payments_default"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
