package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/ward-api/internal/model"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/pkg/daterange"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

var (
	roomCols    = []string{"id", "corpus_id", "room_name", "capacity", "floor_number", "price", "created_at", "updated_at"}
	bookingCols = []string{"id", "room_id", "patient_id", "start_at", "end_at", "note", "status", "cancelled_at", "created_at", "updated_at"}
)

func roomRow(id uuid.UUID, capacity int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(roomCols).AddRow(id.String(), uuid.New().String(), "101", capacity, 1, []byte("120.50"), now, now)
}

func TestCorpusGet_NotFound(t *testing.T) {
	store, mock := setupMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM corpuses WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	corpus, err := store.Corpuses.Get(context.Background(), id)

	assert.Nil(t, corpus)
	assert.ErrorIs(t, err, repository.ErrCorpusNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorpusCreate_DuplicateNumber(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO corpuses`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := store.Corpuses.Create(context.Background(), &model.Corpus{CorpusNumber: 3})

	assert.ErrorIs(t, err, repository.ErrDuplicateCorpus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorpusDelete_InUse(t *testing.T) {
	store, mock := setupMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rooms WHERE corpus_id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := store.Corpuses.Delete(context.Background(), id)

	assert.ErrorIs(t, err, repository.ErrCorpusInUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomList_ByCorpus(t *testing.T) {
	store, mock := setupMockStore(t)
	corpusID := uuid.New()
	roomID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM rooms WHERE corpus_id = \$1 ORDER BY floor_number, room_name`).
		WithArgs(corpusID).
		WillReturnRows(roomRow(roomID, 3))

	rooms, err := store.Rooms.List(context.Background(), &model.RoomFilters{CorpusID: &corpusID})

	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].ID)
	assert.Equal(t, 3, rooms[0].Capacity)
	assert.Equal(t, "120.50", rooms[0].Price.StringFixed(2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomDelete_ActiveBookings(t *testing.T) {
	store, mock := setupMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM rooms WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(roomRow(id, 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE room_id = \$1 AND status = \$2`).
		WithArgs(id, "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := store.Rooms.Delete(context.Background(), id)

	assert.ErrorIs(t, err, repository.ErrRoomInUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRoomLock_CreateBookingAndEvent(t *testing.T) {
	store, mock := setupMockStore(t)
	ctx := context.Background()
	roomID := uuid.New()
	existing := uuid.New()
	jan := func(d int) time.Time { return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC) }

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM rooms WHERE id = \$1 FOR UPDATE`).
		WithArgs(roomID).
		WillReturnRows(roomRow(roomID, 2))
	mock.ExpectQuery(`SELECT .* FROM bookings\s+WHERE room_id = \$1 AND status = \$2`).
		WithArgs(roomID, "active").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(existing.String(), roomID.String(), uuid.New().String(), jan(1), jan(5), "", "active", nil, time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(sqlmock.AnyArg(), roomID, sqlmock.AnyArg(), "2025-01-03", "2025-01-10", "", "active", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var created *model.Booking
	err := store.Bookings.WithRoomLock(ctx, roomID, func(tx repository.RoomTx) error {
		assert.Equal(t, 2, tx.Room().Capacity)

		active, err := tx.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, daterange.MustParse("2025-01-05"), active[0].EndAt)

		created = &model.Booking{
			PatientID: uuid.New(),
			StartAt:   daterange.MustParse("2025-01-03"),
			EndAt:     daterange.MustParse("2025-01-10"),
		}
		if err := tx.Create(ctx, created); err != nil {
			return err
		}
		evt, err := model.NewBookingEvent(model.EventBookingCreated, created, 2, time.Now())
		require.NoError(t, err)
		return tx.AddEvent(ctx, evt)
	})

	require.NoError(t, err)
	assert.Equal(t, roomID, created.RoomID)
	assert.Equal(t, model.BookingStatusActive, created.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRoomLock_RoomMissing(t *testing.T) {
	store, mock := setupMockStore(t)
	roomID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(roomID).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := store.Bookings.WithRoomLock(context.Background(), roomID, func(repository.RoomTx) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRoomLock_CallbackErrorRollsBack(t *testing.T) {
	store, mock := setupMockStore(t)
	roomID := uuid.New()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(roomID).WillReturnRows(roomRow(roomID, 1))
	mock.ExpectRollback()

	err := store.Bookings.WithRoomLock(context.Background(), roomID, func(repository.RoomTx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomTxCancel_AlreadyCancelled(t *testing.T) {
	store, mock := setupMockStore(t)
	ctx := context.Background()
	roomID := uuid.New()
	bookingID := uuid.New()
	cancelledAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(roomID).WillReturnRows(roomRow(roomID, 1))
	mock.ExpectExec(`UPDATE bookings\s+SET status = \$1`).
		WithArgs("cancelled", sqlmock.AnyArg(), bookingID, roomID, "active").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM bookings WHERE id = \$1`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(bookingID.String(), roomID.String(), uuid.New().String(), "2025-01-01", "2025-01-02", "", "cancelled", cancelledAt, cancelledAt, cancelledAt))
	mock.ExpectRollback()

	err := store.Bookings.WithRoomLock(ctx, roomID, func(tx repository.RoomTx) error {
		return tx.Cancel(ctx, bookingID, time.Now())
	})

	assert.ErrorIs(t, err, repository.ErrBookingCancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveByRooms_Groups(t *testing.T) {
	store, mock := setupMockStore(t)
	roomA, roomB := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`WHERE room_id = ANY\(\$1::uuid\[\]\) AND status = \$2`).
		WithArgs(sqlmock.AnyArg(), "active").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(uuid.New().String(), roomA.String(), uuid.New().String(), "2025-01-01", "2025-01-02", "", "active", nil, now, now).
			AddRow(uuid.New().String(), roomA.String(), uuid.New().String(), "2025-01-03", "2025-01-04", "", "active", nil, now, now).
			AddRow(uuid.New().String(), roomB.String(), uuid.New().String(), "2025-01-01", "2025-01-09", "", "active", nil, now, now))

	grouped, err := store.Bookings.ListActiveByRooms(context.Background(), []uuid.UUID{roomA, roomB})

	require.NoError(t, err)
	assert.Len(t, grouped[roomA], 2)
	assert.Len(t, grouped[roomB], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveByRooms_EmptySkipsQuery(t *testing.T) {
	store, mock := setupMockStore(t)

	grouped, err := store.Bookings.ListActiveByRooms(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, grouped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxFetchPending(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()
	payload, _ := json.Marshal(map[string]string{"booking_id": "x"})

	cols := []string{"id", "event_type", "aggregate_id", "payload", "status", "error_message",
		"retry_count", "retry_at", "created_at", "updated_at", "processed_at"}
	mock.ExpectQuery(`FROM outbox_events\s+WHERE status = \$1 OR \(status = \$2 AND retry_at <= \$3\)`).
		WithArgs("pending", "retry", now, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.New().String(), model.EventBookingCreated, uuid.New().String(), payload, "pending", nil, 0, nil, now, now, nil))

	events, err := store.Outbox.FetchPending(context.Background(), 10, now)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingCreated, events[0].EventType)
	assert.JSONEq(t, `{"booking_id":"x"}`, string(events[0].Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkRetry_Missing(t *testing.T) {
	store, mock := setupMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE outbox_events`).
		WithArgs("retry", "timeout", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Outbox.MarkRetry(context.Background(), id, "timeout", time.Now())

	assert.ErrorIs(t, err, repository.ErrOutboxEventNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratorLoad(t *testing.T) {
	migrations, err := NewMigrator(nil).Load()

	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS bookings")
}

func TestMigratorUp_AppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	migrator := NewMigrator(sqlx.NewDb(db, "postgres"))

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version, name, applied_at FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "applied_at"}).
			AddRow(1, "001_create_ward_schema.sql", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS outbox_events`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(2, "002_create_outbox.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := migrator.Up(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
