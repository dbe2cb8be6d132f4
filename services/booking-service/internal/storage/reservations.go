package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/lexbook/libs/db"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/outbox"
)

const reservationColumns = `id::text, provider_id, requester_id, session_date, to_char(start_time, 'HH24:MI'),
	duration_minutes, total, status, expires_at, COALESCE(payment_session, ''), COALESCE(payment_url, ''), created_at`

// ReservationRepository stores reservations in Postgres. Overlap protection
// is the reservations_no_overlap exclusion constraint; every state change
// writes its outbox event in the same transaction.
type ReservationRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
	loc    *time.Location
}

func NewReservationRepository(pool *db.Pool, outboxRepo *outbox.Repository, loc *time.Location) *ReservationRepository {
	if loc == nil {
		loc = time.Local
	}
	return &ReservationRepository{pool: pool, outbox: outboxRepo, loc: loc}
}

func (r *ReservationRepository) CreateHold(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	start, end, err := res.Window()
	if err != nil {
		return model.Reservation{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lapsed holds still sit inside the exclusion constraint until flipped.
	if err := r.expireLapsed(ctx, tx, res.ProviderID); err != nil {
		return model.Reservation{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO reservations
			(id, provider_id, requester_id, session_date, start_time, duration_minutes, starts_at, ends_at, total, status, expires_at)
		VALUES ($1, $2, $3, $4::date, $5::time, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, res.ID, res.ProviderID, res.RequesterID, res.Date.Format(model.DateLayout), res.StartTime, res.DurationMinutes,
		start, end, res.Total, model.StatusPendingPayment, res.ExpiresAt).Scan(&res.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.Reservation{}, model.ErrSlotNoLongerAvailable
		}
		return model.Reservation{}, err
	}
	res.Status = model.StatusPendingPayment

	if err := r.insertEvent(ctx, tx, outbox.TypeHoldCreated, res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepository) AttachPayment(ctx context.Context, id, sessionID, url string) error {
	if uuid.Validate(id) != nil {
		return model.ErrReservationNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET payment_session = $2,
			payment_url = $3,
			updated_at = now()
		WHERE id = $1
	`, id, sessionID, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	if uuid.Validate(id) != nil {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	res, err := r.scanReservation(r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id))
	return res, notFound(err)
}

func (r *ReservationRepository) GetByPaymentSession(ctx context.Context, sessionID string) (model.Reservation, error) {
	res, err := r.scanReservation(r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE payment_session = $1
	`, sessionID))
	return res, notFound(err)
}

// Confirm marks the reservation paid. An expired hold is re-admitted only if
// its window is still free, which the exclusion constraint decides.
func (r *ReservationRepository) Confirm(ctx context.Context, id string) (model.Reservation, error) {
	if uuid.Validate(id) != nil {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := r.getForUpdate(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	switch current.Status {
	case model.StatusConfirmed:
		return current, tx.Commit(ctx)
	case model.StatusCancelled:
		return model.Reservation{}, model.ErrInvalidStatus
	}

	res, err := r.scanReservation(tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
			expires_at = NULL,
			updated_at = now()
		WHERE id = $1
		RETURNING `+reservationColumns, id, model.StatusConfirmed))
	if err != nil {
		if IsConflict(err) {
			return model.Reservation{}, model.ErrSlotNoLongerAvailable
		}
		return model.Reservation{}, err
	}
	if err := r.insertEvent(ctx, tx, outbox.TypeConfirmed, res); err != nil {
		return model.Reservation{}, err
	}
	return res, tx.Commit(ctx)
}

// Release moves a pending hold to expired or cancelled. Releasing into the
// status the reservation already has is a no-op.
func (r *ReservationRepository) Release(ctx context.Context, id, status string) (model.Reservation, error) {
	if status != model.StatusExpired && status != model.StatusCancelled {
		return model.Reservation{}, model.ErrInvalidStatus
	}
	if uuid.Validate(id) != nil {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := r.getForUpdate(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if current.Status == status {
		return current, tx.Commit(ctx)
	}
	if current.Status != model.StatusPendingPayment {
		return model.Reservation{}, model.ErrInvalidStatus
	}

	res, err := r.scanReservation(tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING `+reservationColumns, id, status))
	if err != nil {
		return model.Reservation{}, err
	}
	eventType := outbox.TypeHoldExpired
	if status == model.StatusCancelled {
		eventType = outbox.TypeHoldCancelled
	}
	if err := r.insertEvent(ctx, tx, eventType, res); err != nil {
		return model.Reservation{}, err
	}
	return res, tx.Commit(ctx)
}

func (r *ReservationRepository) RecordEvent(ctx context.Context, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ExpireDue releases up to limit lapsed holds, oldest first. Rows locked by
// another instance are skipped, so several reapers can run side by side.
func (r *ReservationRepository) ExpireDue(ctx context.Context, limit int) ([]model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE reservations
		SET status = 'expired',
			updated_at = now()
		WHERE id IN (
			SELECT id
			FROM reservations
			WHERE status = 'pending_payment' AND expires_at <= now()
			ORDER BY expires_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+reservationColumns, limit)
	if err != nil {
		return nil, err
	}
	expired, err := r.collect(rows)
	if err != nil {
		return nil, err
	}
	for _, res := range expired {
		if err := r.insertEvent(ctx, tx, outbox.TypeHoldExpired, res); err != nil {
			return nil, err
		}
	}
	return expired, tx.Commit(ctx)
}

// BusyIntervals lists confirmed reservations and live holds on date.
func (r *ReservationRepository) BusyIntervals(ctx context.Context, providerID string, date time.Time) ([]availability.BusyInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(start_time, 'HH24:MI:SS'), duration_minutes
		FROM reservations
		WHERE provider_id = $1
			AND session_date = $2::date
			AND (status = 'confirmed' OR (status = 'pending_payment' AND expires_at > now()))
		ORDER BY start_time
	`, providerID, date.In(r.loc).Format(model.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var busy []availability.BusyInterval
	for rows.Next() {
		var b availability.BusyInterval
		if err := rows.Scan(&b.StartTime, &b.DurationMinutes); err != nil {
			return nil, err
		}
		busy = append(busy, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return busy, nil
}

func (r *ReservationRepository) expireLapsed(ctx context.Context, tx pgx.Tx, providerID string) error {
	rows, err := tx.Query(ctx, `
		UPDATE reservations
		SET status = 'expired',
			updated_at = now()
		WHERE provider_id = $1
			AND status = 'pending_payment'
			AND expires_at <= now()
		RETURNING `+reservationColumns, providerID)
	if err != nil {
		return err
	}
	expired, err := r.collect(rows)
	if err != nil {
		return err
	}
	for _, res := range expired {
		if err := r.insertEvent(ctx, tx, outbox.TypeHoldExpired, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReservationRepository) getForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	res, err := r.scanReservation(tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, id))
	return res, notFound(err)
}

func (r *ReservationRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, res model.Reservation) error {
	evt, err := outbox.ReservationEvent(eventType, res, time.Now())
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("outbox insert %s: %w", eventType, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ReservationRepository) scanReservation(row rowScanner) (model.Reservation, error) {
	var res model.Reservation
	var date time.Time
	if err := row.Scan(
		&res.ID,
		&res.ProviderID,
		&res.RequesterID,
		&date,
		&res.StartTime,
		&res.DurationMinutes,
		&res.Total,
		&res.Status,
		&res.ExpiresAt,
		&res.PaymentSession,
		&res.PaymentURL,
		&res.CreatedAt,
	); err != nil {
		return model.Reservation{}, err
	}
	// DATE columns decode as UTC midnight; rebase onto the operating location.
	res.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
	return res, nil
}

func (r *ReservationRepository) collect(rows pgx.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := r.scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func notFound(err error) error {
	if IsNotFound(err) {
		return model.ErrReservationNotFound
	}
	return err
}

// IsConflict reports an exclusion constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
