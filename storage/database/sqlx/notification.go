package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/notification"
)

type logSink struct {
	db *sqlx.DB
}

var _ notification.LogSink = (*logSink)(nil) // interface compliance check

func NewLogSink(db *sqlx.DB) *logSink {
	return &logSink{db: db}
}

type entryRow struct {
	ID           string          `db:"id"`
	Recipient    string          `db:"recipient"`
	Message      string          `db:"message"`
	Outcome      string          `db:"outcome"`
	CostUnits    decimal.Decimal `db:"cost_units"`
	ErrorMessage null.String     `db:"error_message"`
	MessageType  string          `db:"message_type"`
	ReferenceID  null.String     `db:"reference_id"`
	Initiator    string          `db:"initiator"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r entryRow) unmarshal() notification.Entry {
	return notification.Entry{
		ID:           r.ID,
		Recipient:    r.Recipient,
		Message:      r.Message,
		Outcome:      notification.Outcome(r.Outcome),
		CostUnits:    r.CostUnits,
		ErrorMessage: r.ErrorMessage,
		MessageType:  r.MessageType,
		ReferenceID:  r.ReferenceID,
		Initiator:    r.Initiator,
		CreatedAt:    r.CreatedAt,
	}
}

func (sink *logSink) AppendEntry(ctx context.Context, entry notification.Entry) (notification.Entry, error) {
	_, err := sink.db.ExecContext(ctx,
		`INSERT INTO notification_log
		   (id, recipient, message, outcome, cost_units, error_message, message_type, reference_id, initiator, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.Recipient, entry.Message, entry.Outcome, entry.CostUnits,
		entry.ErrorMessage, entry.MessageType, entry.ReferenceID, entry.Initiator, entry.CreatedAt,
	)
	if err != nil {
		return notification.Entry{}, errors.Wrap(err, "inserting notification log entry")
	}
	return entry, nil
}

func (sink *logSink) HasEntry(ctx context.Context, recipient, referenceID string) (bool, error) {
	var exists bool
	err := sink.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM notification_log WHERE recipient = $1 AND reference_id = $2)`,
		recipient, referenceID)
	if err != nil {
		return false, errors.Wrap(err, "checking notification log entry")
	}
	return exists, nil
}

func (sink *logSink) FilterEntries(ctx context.Context, filter notification.QueryFilter) ([]notification.Entry, error) {
	q := `SELECT * FROM notification_log WHERE true`
	var args []interface{}

	if filter.Recipient != "" {
		args = append(args, filter.Recipient)
		q += ` AND recipient = ?`
	}
	if filter.MessageType != "" {
		args = append(args, filter.MessageType)
		q += ` AND message_type = ?`
	}
	if filter.ReferenceID != "" {
		args = append(args, filter.ReferenceID)
		q += ` AND reference_id = ?`
	}
	if filter.Outcome != "" {
		args = append(args, string(filter.Outcome))
		q += ` AND outcome = ?`
	}
	q += ` ORDER BY ` + core.DBOrdering{Field: "created_at", Ascending: true}.String()

	var rows []entryRow
	if err := sink.db.SelectContext(ctx, &rows, sink.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering notification log entries")
	}

	entries := make([]notification.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.unmarshal())
	}
	return entries, nil
}

type contactRepository struct {
	db *sqlx.DB
}

var _ notification.ContactRepository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *sqlx.DB) *contactRepository {
	return &contactRepository{db: db}
}

type contactRow struct {
	ID        int       `db:"id"`
	StudentID int       `db:"student_id"`
	Name      string    `db:"name"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo *contactRepository) CreateContact(ctx context.Context, c notification.Contact) (notification.Contact, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO guardian_contact (student_id, name, phone, email, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.StudentID, c.Name, c.Phone, c.Email, time.Now().UTC(),
	).Scan(&c.ID)
	if err != nil {
		return notification.Contact{}, errors.Wrap(err, "inserting guardian contact")
	}
	return c, nil
}

func (repo *contactRepository) GetStudentContacts(ctx context.Context, studentIDs ...int) ([]notification.Contact, error) {
	var rows []contactRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM guardian_contact WHERE student_id = ANY($1) ORDER BY id`, pq.Array(studentIDs))
	if err != nil {
		return nil, errors.Wrap(err, "querying guardian contacts")
	}

	contacts := make([]notification.Contact, 0, len(rows))
	for _, row := range rows {
		contacts = append(contacts, notification.Contact{
			ID:        row.ID,
			StudentID: row.StudentID,
			Name:      row.Name,
			Phone:     row.Phone,
			Email:     row.Email,
		})
	}
	return contacts, nil
}
