package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldwatch/irrigation-hub/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testZone(id string, pin int) domain.ZoneConfig {
	return domain.ZoneConfig{
		ZoneID: id, Name: id, MinMoisture: 0.3, TargetMoisture: 0.5,
		PulseSec: 30, SoakMin: 20, StaleTimeoutMin: 60,
		MaxOpenSecPerDay: 180, MaxPulsesPerDay: 6, ValveGPIOPin: pin,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Zone CRUD ──────────────────────────────────────────────────────────────

func TestUpsertZone_InsertAndGet(t *testing.T) {
	db := newTestDB(t)

	z := testZone("z1", 4)
	if err := db.UpsertZone(z); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}

	got, err := db.GetZone("z1")
	if err != nil {
		t.Fatalf("GetZone() error: %v", err)
	}
	if got.Name != "z1" || got.ValveGPIOPin != 4 {
		t.Errorf("got %+v, want pin 4", got)
	}
}

func TestUpsertZone_Update(t *testing.T) {
	db := newTestDB(t)

	z := testZone("z1", 4)
	if err := db.UpsertZone(z); err != nil {
		t.Fatalf("first UpsertZone() error: %v", err)
	}

	z.Name = "renamed"
	z.TargetMoisture = 0.6
	if err := db.UpsertZone(z); err != nil {
		t.Fatalf("second UpsertZone() error: %v", err)
	}

	got, err := db.GetZone("z1")
	if err != nil {
		t.Fatalf("GetZone() error: %v", err)
	}
	if got.Name != "renamed" || got.TargetMoisture != 0.6 {
		t.Errorf("got %+v, want renamed/0.6", got)
	}
}

func TestGetZone_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetZone("ghost")
	if err != domain.ErrZoneNotFound {
		t.Errorf("GetZone(ghost) = %v, want ErrZoneNotFound", err)
	}
}

func TestListZones(t *testing.T) {
	db := newTestDB(t)

	for i, id := range []string{"z1", "z2", "z3"} {
		if err := db.UpsertZone(testZone(id, i+1)); err != nil {
			t.Fatalf("UpsertZone(%s) error: %v", id, err)
		}
	}

	zones, err := db.ListZones()
	if err != nil {
		t.Fatalf("ListZones() error: %v", err)
	}
	if len(zones) != 3 {
		t.Errorf("len(zones) = %d, want 3", len(zones))
	}
}

func TestDeleteZone(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	if err := db.DeleteZone("z1"); err != nil {
		t.Fatalf("DeleteZone() error: %v", err)
	}
	if _, err := db.GetZone("z1"); err != domain.ErrZoneNotFound {
		t.Errorf("GetZone() after delete = %v, want ErrZoneNotFound", err)
	}
}

func TestDeleteZone_NotFound(t *testing.T) {
	db := newTestDB(t)

	if err := db.DeleteZone("ghost"); err != domain.ErrZoneNotFound {
		t.Errorf("DeleteZone(ghost) = %v, want ErrZoneNotFound", err)
	}
}

func TestDeleteZone_BlockedBySensor(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	sensor := domain.SensorConfig{SensorID: "n1/a", NodeID: "n1", ZoneID: "z1", RawDry: 3000, RawWet: 1000}
	if err := db.UpsertSensor(sensor); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}

	if err := db.DeleteZone("z1"); err != domain.ErrZoneHasSensors {
		t.Errorf("DeleteZone() = %v, want ErrZoneHasSensors", err)
	}
}

// ─── Sensor CRUD ────────────────────────────────────────────────────────────

func TestUpsertSensor_InsertAndGet(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}

	sensor := domain.SensorConfig{SensorID: "n1/a", NodeID: "n1", ZoneID: "z1", RawDry: 3000, RawWet: 1000}
	if err := db.UpsertSensor(sensor); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}

	got, err := db.GetSensor("n1/a")
	if err != nil {
		t.Fatalf("GetSensor() error: %v", err)
	}
	if got.RawDry != 3000 || got.RawWet != 1000 {
		t.Errorf("got %+v", got)
	}
}

func TestListSensors_FilteredByZone(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	if err := db.UpsertZone(testZone("z2", 5)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	if err := db.UpsertSensor(domain.SensorConfig{SensorID: "n1/a", NodeID: "n1", ZoneID: "z1", RawDry: 3000, RawWet: 1000}); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}
	if err := db.UpsertSensor(domain.SensorConfig{SensorID: "n1/b", NodeID: "n1", ZoneID: "z2", RawDry: 3000, RawWet: 1000}); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}

	sensors, err := db.ListSensors("z1")
	if err != nil {
		t.Fatalf("ListSensors() error: %v", err)
	}
	if len(sensors) != 1 || sensors[0].SensorID != "n1/a" {
		t.Errorf("got %+v, want exactly n1/a", sensors)
	}
}

func TestDeleteSensor_NotFound(t *testing.T) {
	db := newTestDB(t)
	if err := db.DeleteSensor("ghost"); err != domain.ErrSensorNotFound {
		t.Errorf("DeleteSensor(ghost) = %v, want ErrSensorNotFound", err)
	}
}

// ─── Readings ───────────────────────────────────────────────────────────────

func TestInsertReadingAndLatestZoneMoisture(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	if err := db.UpsertSensor(domain.SensorConfig{SensorID: "n1/a", NodeID: "n1", ZoneID: "z1", RawDry: 3000, RawWet: 1000}); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}

	now := time.Now().Unix()
	if err := db.InsertReading(domain.Reading{TSUnixSeconds: now - 10, SensorID: "n1/a", RawADC: 2000, MoistureFraction: 0.4}); err != nil {
		t.Fatalf("InsertReading() error: %v", err)
	}
	if err := db.InsertReading(domain.Reading{TSUnixSeconds: now, SensorID: "n1/a", RawADC: 1800, MoistureFraction: 0.5}); err != nil {
		t.Fatalf("InsertReading() error: %v", err)
	}

	latest, err := db.LatestZoneMoisture("z1")
	if err != nil {
		t.Fatalf("LatestZoneMoisture() error: %v", err)
	}
	if latest == nil || latest.MoistureFraction != 0.5 {
		t.Errorf("got %+v, want the newer reading", latest)
	}
}

func TestLatestZoneMoisture_NoReadings(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}

	latest, err := db.LatestZoneMoisture("z1")
	if err != nil {
		t.Fatalf("LatestZoneMoisture() error: %v", err)
	}
	if latest != nil {
		t.Errorf("got %+v, want nil", latest)
	}
}

func TestAvgZoneMoistureLastN(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	if err := db.UpsertSensor(domain.SensorConfig{SensorID: "n1/a", NodeID: "n1", ZoneID: "z1", RawDry: 3000, RawWet: 1000}); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}

	now := time.Now().Unix()
	fractions := []float64{0.2, 0.4, 0.6}
	for i, f := range fractions {
		if err := db.InsertReading(domain.Reading{TSUnixSeconds: now + int64(i), SensorID: "n1/a", RawADC: 2000, MoistureFraction: f}); err != nil {
			t.Fatalf("InsertReading() error: %v", err)
		}
	}

	avg, ok, err := db.AvgZoneMoistureLastN("z1", 3)
	if err != nil {
		t.Fatalf("AvgZoneMoistureLastN() error: %v", err)
	}
	if !ok {
		t.Fatal("AvgZoneMoistureLastN() ok = false, want true")
	}
	want := (0.2 + 0.4 + 0.6) / 3
	if avg < want-0.0001 || avg > want+0.0001 {
		t.Errorf("avg = %v, want %v", avg, want)
	}
}

func TestAvgZoneMoistureLastN_NoReadings(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}

	_, ok, err := db.AvgZoneMoistureLastN("z1", 3)
	if err != nil {
		t.Fatalf("AvgZoneMoistureLastN() error: %v", err)
	}
	if ok {
		t.Error("ok should be false when zone has no readings")
	}
}

func TestPruneOldReadings(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	if err := db.UpsertSensor(domain.SensorConfig{SensorID: "n1/a", NodeID: "n1", ZoneID: "z1", RawDry: 3000, RawWet: 1000}); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}

	old := time.Now().Add(-100 * 24 * time.Hour).Unix()
	recent := time.Now().Unix()
	if err := db.InsertReading(domain.Reading{TSUnixSeconds: old, SensorID: "n1/a", RawADC: 2000, MoistureFraction: 0.4}); err != nil {
		t.Fatalf("InsertReading() error: %v", err)
	}
	if err := db.InsertReading(domain.Reading{TSUnixSeconds: recent, SensorID: "n1/a", RawADC: 2000, MoistureFraction: 0.4}); err != nil {
		t.Fatalf("InsertReading() error: %v", err)
	}

	cutoff := time.Now().Add(-90 * 24 * time.Hour).Unix()
	n, err := db.PruneOldReadings(cutoff)
	if err != nil {
		t.Fatalf("PruneOldReadings() error: %v", err)
	}
	if n != 1 {
		t.Errorf("rows deleted = %d, want 1", n)
	}

	readings, err := db.ListReadings("", "z1", 10, 0)
	if err != nil {
		t.Fatalf("ListReadings() error: %v", err)
	}
	if len(readings) != 1 {
		t.Errorf("len(readings) = %d, want 1 remaining", len(readings))
	}
}

// ─── Watering Events ────────────────────────────────────────────────────────

func TestInsertAndListWateringEvents(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().Unix()
	id, err := db.InsertWateringEvent(domain.WateringEvent{
		TSStart: now - 30, TSEnd: now, ZoneID: "z1",
		Reason: domain.ReasonScheduler, Result: domain.ResultOK,
	})
	if err != nil {
		t.Fatalf("InsertWateringEvent() error: %v", err)
	}
	if id == 0 {
		t.Error("InsertWateringEvent() returned id 0")
	}

	events, err := db.ListWateringEvents("z1", 10, 0)
	if err != nil {
		t.Fatalf("ListWateringEvents() error: %v", err)
	}
	if len(events) != 1 || events[0].Reason != domain.ReasonScheduler {
		t.Errorf("got %+v", events)
	}
}

// ─── Daily Counters ─────────────────────────────────────────────────────────

func TestDailyCounters_AddAndGet(t *testing.T) {
	db := newTestDB(t)
	day := "2026-07-30"

	if err := db.AddOpenSeconds(day, "z1", 30); err != nil {
		t.Fatalf("AddOpenSeconds() error: %v", err)
	}
	if err := db.AddPulse(day, "z1", 1); err != nil {
		t.Fatalf("AddPulse() error: %v", err)
	}
	if err := db.AddOpenSeconds(day, "z1", 15); err != nil {
		t.Fatalf("second AddOpenSeconds() error: %v", err)
	}

	c, err := db.GetDailyCounters(day, "z1")
	if err != nil {
		t.Fatalf("GetDailyCounters() error: %v", err)
	}
	if c.OpenSec != 45 || c.Pulses != 1 {
		t.Errorf("got %+v, want OpenSec=45 Pulses=1", c)
	}
}

func TestDailyCounters_ZeroWhenAbsent(t *testing.T) {
	db := newTestDB(t)

	c, err := db.GetDailyCounters("2026-07-30", "ghost")
	if err != nil {
		t.Fatalf("GetDailyCounters() error: %v", err)
	}
	if c.OpenSec != 0 || c.Pulses != 0 {
		t.Errorf("got %+v, want zeros", c)
	}
}

// ─── Backup/Restore ─────────────────────────────────────────────────────────

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	workingPath := filepath.Join(dir, "state.db")
	backupPath := filepath.Join(dir, "backup.db")

	db, err := Open(workingPath)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := db.UpsertZone(testZone("z1", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}
	if err := db.Backup(backupPath); err != nil {
		t.Fatalf("Backup() error: %v", err)
	}
	db.Close()

	if err := os.Remove(workingPath); err != nil {
		t.Fatalf("remove working file: %v", err)
	}

	if err := RestoreFromBackup(workingPath, backupPath); err != nil {
		t.Fatalf("RestoreFromBackup() error: %v", err)
	}

	restored, err := Open(workingPath)
	if err != nil {
		t.Fatalf("reopen restored db: %v", err)
	}
	defer restored.Close()

	got, err := restored.GetZone("z1")
	if err != nil {
		t.Fatalf("GetZone() after restore error: %v", err)
	}
	if got.ZoneID != "z1" {
		t.Errorf("got %+v", got)
	}
}

func TestRestoreFromBackup_SkipsWhenWorkingFilePresent(t *testing.T) {
	dir := t.TempDir()
	workingPath := filepath.Join(dir, "state.db")
	backupPath := filepath.Join(dir, "backup.db")

	db := newTestDBAt(t, workingPath)
	if err := db.UpsertZone(testZone("keep-me", 4)); err != nil {
		t.Fatalf("UpsertZone() error: %v", err)
	}

	if err := os.WriteFile(backupPath, []byte("not a real sqlite file but non-empty"), 0600); err != nil {
		t.Fatalf("write fake backup: %v", err)
	}

	if err := RestoreFromBackup(workingPath, backupPath); err != nil {
		t.Fatalf("RestoreFromBackup() error: %v", err)
	}

	got, err := db.GetZone("keep-me")
	if err != nil {
		t.Fatalf("GetZone() error: %v", err)
	}
	if got.ZoneID != "keep-me" {
		t.Errorf("working database should be untouched, got %+v", got)
	}
}

func newTestDBAt(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
