package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/vainnor/atc-hours/ledger"
	"github.com/vainnor/atc-hours/models"
)

var start = time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
		conn.Close()
	})
	return NewStore(conn), mock
}

func TestCreateTables(t *testing.T) {
	store, mock := newMockStore(t)
	for range schema {
		mock.ExpectExec("CREATE (TABLE|UNIQUE INDEX|INDEX) IF NOT EXISTS").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := CreateTables(context.Background(), store.db); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
}

func TestCreateTablesError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS members").WillReturnError(errors.New("permission denied"))

	if err := CreateTables(context.Background(), store.db); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenSessions(t *testing.T) {
	store, mock := newMockStore(t)
	cdt := time.FixedZone("CDT", -5*3600)
	mock.ExpectQuery(regexp.QuoteMeta("FROM controller_sessions WHERE duration_ms = 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cid", "name", "callsign", "frequency", "start_time", "end_time"}).
			AddRow(1, 100, "Ada Lovelace", "MEM_TWR", "118.300", start.In(cdt), start.Add(time.Minute).In(cdt)))

	sessions, err := store.OpenSessions(context.Background())
	if err != nil {
		t.Fatalf("OpenSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.ID != 1 || s.Callsign != "MEM_TWR" || !s.IsOpen() {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.Start.Location() != time.UTC || !s.Start.Equal(start) {
		t.Fatalf("expected UTC start, got %s", s.Start)
	}
}

func TestCreateSession(t *testing.T) {
	store, mock := newMockStore(t)
	sess := &models.Session{CID: 100, Name: "Ada Lovelace", Callsign: "MEM_TWR", Frequency: "118.300", Start: start, End: start}

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (cid, callsign, start_time) WHERE duration_ms = 0 DO NOTHING")).
		WithArgs(100, "Ada Lovelace", "MEM_TWR", "118.300", start, start).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID != 42 {
		t.Fatalf("expected id 42, got %d", sess.ID)
	}
}

func TestCreateSessionConflict(t *testing.T) {
	store, mock := newMockStore(t)
	sess := &models.Session{CID: 100, Callsign: "MEM_TWR", Start: start, End: start}

	mock.ExpectQuery("INSERT INTO controller_sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := store.CreateSession(context.Background(), sess)
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestTouchSessionClosed(t *testing.T) {
	store, mock := newMockStore(t)
	end := start.Add(time.Minute)

	mock.ExpectExec(regexp.QuoteMeta("SET end_time = $1 WHERE id = $2 AND duration_ms = 0")).
		WithArgs(end, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.TouchSession(context.Background(), 7, end); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestCloseSessionAccruesInTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	sess := &models.Session{ID: 7, CID: 100, Callsign: "MEM_TWR", Start: start, End: start.Add(90 * time.Minute), Duration: 90 * time.Minute}
	acc := ledger.ForSession(sess)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET end_time = $1, duration_ms = $2 WHERE id = $3 AND duration_ms = 0")).
		WithArgs(sess.End, int64(5400000), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SET tower_hours = controller_hours.tower_hours + EXCLUDED.tower_hours")).
		WithArgs(100, 3, 2024, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cid", "month", "year", "delivery_hours", "ground_hours", "tower_hours", "tracon_hours", "center_hours"}).
			AddRow(1, 100, 3, 2024, 0.0, 0.0, 1.5, 0.0, 2.0))
	mock.ExpectCommit()

	entry, err := store.CloseSession(context.Background(), sess, acc)
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if entry.TowerHours != 1.5 || entry.Total() != 3.5 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestCloseSessionAlreadyClosed(t *testing.T) {
	store, mock := newMockStore(t)
	sess := &models.Session{ID: 7, CID: 100, Callsign: "MEM_TWR", Start: start, End: start.Add(time.Hour), Duration: time.Hour}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE controller_sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.CloseSession(context.Background(), sess, ledger.ForSession(sess))
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestCloseSessionCreatesEntryWithoutAccrual(t *testing.T) {
	tests := []struct {
		name     string
		callsign string
		duration time.Duration
	}{
		{"short tower stint", "MEM_TWR", 10 * time.Second},
		{"observer callsign", "MEM_OBS", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			sess := &models.Session{ID: 8, CID: 100, Callsign: tt.callsign, Start: start, End: start.Add(tt.duration), Duration: tt.duration}
			acc := ledger.ForSession(sess)
			if acc.Accrues() {
				t.Fatalf("%s for %s should change no bucket", tt.callsign, tt.duration)
			}

			mock.ExpectBegin()
			mock.ExpectExec("UPDATE controller_sessions").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO controller_hours (cid, month, year) VALUES ($1, $2, $3) ON CONFLICT (cid, month, year) DO NOTHING")).
				WithArgs(100, 3, 2024).
				WillReturnResult(sqlmock.NewResult(3, 1))
			mock.ExpectQuery(regexp.QuoteMeta("FROM controller_hours WHERE cid = $1")).
				WithArgs(100, 3, 2024).
				WillReturnRows(sqlmock.NewRows([]string{"id", "cid", "month", "year", "delivery_hours", "ground_hours", "tower_hours", "tracon_hours", "center_hours"}).
					AddRow(3, 100, 3, 2024, 0.0, 0.0, 0.0, 0.0, 0.0))
			mock.ExpectCommit()

			entry, err := store.CloseSession(context.Background(), sess, acc)
			if err != nil {
				t.Fatalf("CloseSession: %v", err)
			}
			if entry == nil || entry.CID != 100 || entry.Month != 3 || entry.Year != 2024 || entry.Total() != 0 {
				t.Fatalf("expected an all-zero entry for 03/2024, got %+v", entry)
			}
		})
	}
}

func TestCloseSessionAccrualFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	sess := &models.Session{ID: 7, CID: 100, Callsign: "MEM_CTR", Start: start, End: start.Add(time.Hour), Duration: time.Hour}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE controller_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO controller_hours").
		WillReturnError(errors.New("numeric field overflow"))
	mock.ExpectRollback()

	acc := ledger.Accrual{CID: 100, Month: 3, Year: 2024, Category: models.CategoryCenter, Hours: decimal.NewFromInt(1)}
	if _, err := store.CloseSession(context.Background(), sess, acc); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMemberNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM members WHERE cid = $1 AND active = true")).
		WithArgs(999).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "first_name", "last_name", "rating"}))

	_, err := store.Member(context.Background(), 999)
	if !errors.Is(err, models.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestMember(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM members").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "first_name", "last_name", "rating"}).AddRow(100, "Ada", "Lovelace", 4))

	m, err := store.Member(context.Background(), 100)
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if m.DisplayName() != "Ada Lovelace" || m.Rating != 4 {
		t.Fatalf("unexpected member %+v", m)
	}
}

func TestReplaceOnline(t *testing.T) {
	store, mock := newMockStore(t)
	rows := []models.OnlineController{
		{CID: 100, Name: "Ada Lovelace", Rating: "S3", Callsign: "MEM_TWR", Frequency: "118.300", Online: "5m", Since: start},
		{CID: 200, Name: "Grace Hopper", Rating: "C1", Callsign: "MEM_CTR", Frequency: "125.800", Online: "<1m", Since: start},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM online_controllers").WillReturnResult(sqlmock.NewResult(0, 3))
	for _, r := range rows {
		mock.ExpectExec("INSERT INTO online_controllers").
			WithArgs(r.CID, r.Name, r.Rating, r.Callsign, r.Frequency, r.Online, r.Since).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := store.ReplaceOnline(context.Background(), rows); err != nil {
		t.Fatalf("ReplaceOnline: %v", err)
	}
}

func TestReplaceOnlineInsertFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM online_controllers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO online_controllers").WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	err := store.ReplaceOnline(context.Background(), []models.OnlineController{{CID: 1, Callsign: "MEM_TWR"}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestOnlineControllersEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM online_controllers").
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "rating", "callsign", "frequency", "online", "since"}))

	online, err := store.OnlineControllers(context.Background())
	if err != nil {
		t.Fatalf("OnlineControllers: %v", err)
	}
	if online == nil || len(online) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", online)
	}
}
