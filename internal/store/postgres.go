package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every method
// runs unchanged inside or outside a transaction.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the durable persistence layer for the reservation workflow.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
}

var _ registration.Store = (*PostgresStore)(nil)

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, db: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// RunInTx runs fn inside a transaction. Nested calls become savepoints.
func (p *PostgresStore) RunInTx(ctx context.Context, fn func(tx registration.Store) error) error {
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: p.pool, db: tx})
	})
}

const eventColumns = `
	event_id, event_type, name, slug, venue, timezone, banner_image,
	registration_header, order_complete_text, registration_ended_text,
	starts_at, ends_at, form_start, form_end`

// scanEvent reads one row selected with eventColumns.
func scanEvent(row pgx.Row) (registration.Event, error) {
	var ev registration.Event
	err := row.Scan(
		&ev.ID, &ev.Type, &ev.Name, &ev.Slug, &ev.Venue, &ev.Timezone, &ev.BannerImage,
		&ev.RegistrationHeader, &ev.OrderCompleteText, &ev.RegistrationEndedText,
		&ev.StartsAt, &ev.EndsAt, &ev.FormStart, &ev.FormEnd,
	)
	return ev, err
}

// GetEvent returns the event or registration.ErrUnknownEvent.
func (p *PostgresStore) GetEvent(ctx context.Context, eventID string) (registration.Event, error) {
	ev, err := scanEvent(p.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id = $1`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return registration.Event{}, registration.ErrUnknownEvent
	}
	if err != nil {
		return registration.Event{}, fmt.Errorf("select event: %w", err)
	}
	return ev, nil
}

// GetEventBySlug returns the lowest-id event carrying slug.
func (p *PostgresStore) GetEventBySlug(ctx context.Context, slug string) (registration.Event, error) {
	if slug == "" {
		return registration.Event{}, registration.ErrUnknownEvent
	}
	ev, err := scanEvent(p.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE slug = $1 ORDER BY event_id LIMIT 1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return registration.Event{}, registration.ErrUnknownEvent
	}
	if err != nil {
		return registration.Event{}, fmt.Errorf("select event by slug: %w", err)
	}
	return ev, nil
}

// ListEvents returns every event ordered by id.
func (p *PostgresStore) ListEvents(ctx context.Context) ([]registration.Event, error) {
	rows, err := p.db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var out []registration.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetTicketTypes returns the event's ticket types ordered by id, each with
// the question form of its current version.
func (p *PostgresStore) GetTicketTypes(ctx context.Context, eventID string) ([]registration.TicketType, error) {
	rows, err := p.db.Query(ctx, `
		SELECT t.ticket_id, t.event_id, t.name, t.remaining_quantity, t.form_version, f.spec
		FROM ticket_types t
		LEFT JOIN question_forms f ON f.ticket_id = t.ticket_id AND f.version = t.form_version
		WHERE t.event_id = $1
		ORDER BY t.ticket_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("select ticket types: %w", err)
	}
	defer rows.Close()

	var out []registration.TicketType
	for rows.Next() {
		var t registration.TicketType
		var spec []byte
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.RemainingQuantity, &t.FormVersion, &spec); err != nil {
			return nil, fmt.Errorf("scan ticket type: %w", err)
		}
		if len(spec) > 0 {
			t.QuestionForm = json.RawMessage(spec)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DecrementInventory is a single conditional update: the row only changes
// when enough seats remain, so concurrent buyers cannot drive it negative.
func (p *PostgresStore) DecrementInventory(ctx context.Context, ticketID string, count int) (int, error) {
	var remaining int
	err := p.db.QueryRow(ctx, `
		UPDATE ticket_types
		SET remaining_quantity = remaining_quantity - $2
		WHERE ticket_id = $1 AND remaining_quantity >= $2
		RETURNING remaining_quantity
	`, ticketID, count).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("decrement inventory: %w", err)
	}

	// No row changed: either the ticket is missing or it is sold out.
	exists, err := p.exists(ctx, `SELECT EXISTS (SELECT 1 FROM ticket_types WHERE ticket_id = $1)`, ticketID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, registration.ErrUnknownTicket
	}
	return 0, registration.ErrInsufficientInventory
}

// IncrementInventory returns released seats to a ticket type.
func (p *PostgresStore) IncrementInventory(ctx context.Context, ticketID string, count int) (int, error) {
	var remaining int
	err := p.db.QueryRow(ctx, `
		UPDATE ticket_types
		SET remaining_quantity = remaining_quantity + $2
		WHERE ticket_id = $1
		RETURNING remaining_quantity
	`, ticketID, count).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, registration.ErrUnknownTicket
	}
	if err != nil {
		return 0, fmt.Errorf("increment inventory: %w", err)
	}
	return remaining, nil
}

// InsertReservation stores a new seat hold.
func (p *PostgresStore) InsertReservation(ctx context.Context, r registration.Reservation) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO reservations (attendee_id, temp_order_id, event_id, ticket_id, form_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.AttendeeID, r.TempOrderID, r.EventID, r.TicketID, r.FormVersion, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// FindReservation locks the matching row so a concurrent sweep skips it
// while an answer is being written.
func (p *PostgresStore) FindReservation(ctx context.Context, key registration.ReservationKey, createdAfter time.Time) (registration.Reservation, error) {
	var r registration.Reservation
	err := p.db.QueryRow(ctx, `
		SELECT attendee_id, temp_order_id, event_id, ticket_id, form_version, created_at
		FROM reservations
		WHERE attendee_id = $1
		  AND temp_order_id = $2
		  AND event_id = $3
		  AND ticket_id = $4
		  AND created_at > $5
		FOR UPDATE
	`, key.AttendeeID, key.TempOrderID, key.EventID, key.TicketID, createdAfter).Scan(
		&r.AttendeeID, &r.TempOrderID, &r.EventID, &r.TicketID, &r.FormVersion, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return registration.Reservation{}, registration.ErrNotFound
	}
	if err != nil {
		return registration.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	return r, nil
}

// DeleteReservation returns registration.ErrNotFound when nothing was deleted.
func (p *PostgresStore) DeleteReservation(ctx context.Context, attendeeID string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM reservations WHERE attendee_id = $1`, attendeeID)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registration.ErrNotFound
	}
	return nil
}

// DeleteExpiredReservations skips rows locked by in-flight answers.
func (p *PostgresStore) DeleteExpiredReservations(ctx context.Context, ticketID string, cutoff time.Time, limit int) ([]registration.Reservation, error) {
	rows, err := p.db.Query(ctx, `
		DELETE FROM reservations
		WHERE attendee_id IN (
			SELECT attendee_id
			FROM reservations
			WHERE created_at <= $1
			  AND ($2::text = '' OR ticket_id = $2::text)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING attendee_id, temp_order_id, event_id, ticket_id, form_version, created_at
	`, cutoff, ticketID, limit)
	if err != nil {
		return nil, fmt.Errorf("delete expired reservations: %w", err)
	}
	defer rows.Close()

	var out []registration.Reservation
	for rows.Next() {
		var r registration.Reservation
		if err := rows.Scan(&r.AttendeeID, &r.TempOrderID, &r.EventID, &r.TicketID, &r.FormVersion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertAttendee maps a reference id conflict to registration.ErrDuplicateAttendee.
func (p *PostgresStore) InsertAttendee(ctx context.Context, rec registration.AttendeeRecord) error {
	answers, err := rec.CustomAnswers.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode custom answers: %w", err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO attendees (
			reference_id, order_id, event_id, ticket_id, form_version,
			first_name, last_name, full_name, email, contact_number,
			company_name, job_title, custom_questions, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, rec.ReferenceID, rec.OrderID, rec.EventID, rec.TicketID, rec.FormVersion,
		rec.FirstName, rec.LastName, rec.FullName, rec.Email, rec.ContactNumber,
		rec.CompanyName, rec.JobTitle, string(answers), rec.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return registration.ErrDuplicateAttendee
	}
	if err != nil {
		return fmt.Errorf("insert attendee: %w", err)
	}
	return nil
}

// AttendeeExists reports whether a record with this reference id exists.
func (p *PostgresStore) AttendeeExists(ctx context.Context, attendeeID string) (bool, error) {
	return p.exists(ctx, `SELECT EXISTS (SELECT 1 FROM attendees WHERE reference_id = $1)`, attendeeID)
}

// ListAttendees returns the event's records grouped by order, oldest first.
func (p *PostgresStore) ListAttendees(ctx context.Context, eventID string) ([]registration.AttendeeRecord, error) {
	rows, err := p.db.Query(ctx, `
		SELECT reference_id, order_id, event_id, ticket_id, form_version,
		       first_name, last_name, full_name, email, contact_number,
		       company_name, job_title, custom_questions, created_at
		FROM attendees
		WHERE event_id = $1
		ORDER BY order_id, created_at, reference_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("select attendees: %w", err)
	}
	defer rows.Close()

	var out []registration.AttendeeRecord
	for rows.Next() {
		var rec registration.AttendeeRecord
		var answers string
		err := rows.Scan(
			&rec.ReferenceID, &rec.OrderID, &rec.EventID, &rec.TicketID, &rec.FormVersion,
			&rec.FirstName, &rec.LastName, &rec.FullName, &rec.Email, &rec.ContactNumber,
			&rec.CompanyName, &rec.JobTitle, &answers, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		if rec.CustomAnswers, err = registration.ParseAnswers(answers); err != nil {
			return nil, fmt.Errorf("decode answers of %s: %w", rec.ReferenceID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetQuestionForm returns one stored form version or registration.ErrNotFound.
func (p *PostgresStore) GetQuestionForm(ctx context.Context, ticketID string, version int) (json.RawMessage, error) {
	var spec []byte
	err := p.db.QueryRow(ctx, `
		SELECT spec FROM question_forms WHERE ticket_id = $1 AND version = $2
	`, ticketID, version).Scan(&spec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, registration.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select question form: %w", err)
	}
	return json.RawMessage(spec), nil
}

// UpsertCatalog inserts or updates an event and its ticket types. A ticket
// whose question form changed gets a new form version; earlier versions
// stay so existing attendee records can still be exported.
func (p *PostgresStore) UpsertCatalog(ctx context.Context, ev registration.Event, tickets []registration.TicketType) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", registration.ErrInvalidRequest, ev.Type)
	}

	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO events (
				event_id, event_type, name, slug, venue, timezone, banner_image,
				registration_header, order_complete_text, registration_ended_text,
				starts_at, ends_at, form_start, form_end
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (event_id) DO UPDATE SET
				event_type = EXCLUDED.event_type,
				name = EXCLUDED.name,
				slug = EXCLUDED.slug,
				venue = EXCLUDED.venue,
				timezone = EXCLUDED.timezone,
				banner_image = EXCLUDED.banner_image,
				registration_header = EXCLUDED.registration_header,
				order_complete_text = EXCLUDED.order_complete_text,
				registration_ended_text = EXCLUDED.registration_ended_text,
				starts_at = EXCLUDED.starts_at,
				ends_at = EXCLUDED.ends_at,
				form_start = EXCLUDED.form_start,
				form_end = EXCLUDED.form_end,
				updated_at = now()
		`, ev.ID, string(ev.Type), ev.Name, ev.Slug, ev.Venue, ev.Timezone, ev.BannerImage,
			ev.RegistrationHeader, ev.OrderCompleteText, ev.RegistrationEndedText,
			ev.StartsAt, ev.EndsAt, ev.FormStart, ev.FormEnd)
		if err != nil {
			return fmt.Errorf("upsert event: %w", err)
		}

		for _, t := range tickets {
			if err := upsertTicket(ctx, tx, ev.ID, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertTicket(ctx context.Context, tx pgx.Tx, eventID string, t registration.TicketType) error {
	if t.RemainingQuantity < 0 {
		return fmt.Errorf("%w: quantity of ticket %s is negative", registration.ErrInvalidRequest, t.ID)
	}
	spec := string(t.QuestionForm)
	if spec == "" {
		spec = "{}"
	}

	var owner string
	var version int
	err := tx.QueryRow(ctx, `
		SELECT event_id, form_version FROM ticket_types WHERE ticket_id = $1 FOR UPDATE
	`, t.ID).Scan(&owner, &version)

	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ticket_types (ticket_id, event_id, name, remaining_quantity, form_version)
			VALUES ($1, $2, $3, $4, 1)
		`, t.ID, eventID, t.Name, t.RemainingQuantity); err != nil {
			return fmt.Errorf("insert ticket type: %w", err)
		}
		return insertForm(ctx, tx, t.ID, 1, spec)
	}
	if err != nil {
		return fmt.Errorf("select ticket type: %w", err)
	}
	if owner != eventID {
		return &registration.InvalidTicketError{TicketIDs: []string{t.ID}}
	}

	var same bool
	err = tx.QueryRow(ctx, `
		SELECT spec = $3::jsonb FROM question_forms WHERE ticket_id = $1 AND version = $2
	`, t.ID, version, spec).Scan(&same)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("compare question form: %w", err)
	}
	if !same {
		version++
		if err := insertForm(ctx, tx, t.ID, version, spec); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE ticket_types
		SET name = $2, remaining_quantity = $3, form_version = $4
		WHERE ticket_id = $1
	`, t.ID, t.Name, t.RemainingQuantity, version)
	if err != nil {
		return fmt.Errorf("update ticket type: %w", err)
	}
	return nil
}

func insertForm(ctx context.Context, tx pgx.Tx, ticketID string, version int, spec string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO question_forms (ticket_id, version, spec) VALUES ($1, $2, $3::jsonb)
	`, ticketID, version, spec)
	if err != nil {
		return fmt.Errorf("insert question form: %w", err)
	}
	return nil
}

func (p *PostgresStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := p.db.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists probe: %w", err)
	}
	return ok, nil
}
