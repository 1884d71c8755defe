package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xhd0728/LuLeMe/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Skipf("skip: sqlite not available: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &models.Record{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
}

func newTestRecordService(t *testing.T) *RecordService {
	svc := NewRecordService(openTestDB(t))
	svc.now = fixedNow
	return svc
}

func TestRecordService_TapTodayUpserts(t *testing.T) {
	svc := newTestRecordService(t)

	for i := 0; i < 3; i++ {
		if err := svc.TapToday(1); err != nil {
			t.Fatalf("TapToday() error = %v", err)
		}
	}

	summary, _, err := svc.BuildSummary(1)
	if err != nil {
		t.Fatalf("BuildSummary() error = %v", err)
	}
	if summary.TodayCount != 3 {
		t.Errorf("TodayCount = %d, want 3", summary.TodayCount)
	}
	if summary.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", summary.TotalCount)
	}
}

func TestRecordService_TapTodayIsolatedPerUser(t *testing.T) {
	svc := newTestRecordService(t)

	if err := svc.TapToday(1); err != nil {
		t.Fatalf("TapToday(1) error = %v", err)
	}
	if err := svc.TapToday(2); err != nil {
		t.Fatalf("TapToday(2) error = %v", err)
	}
	if err := svc.TapToday(2); err != nil {
		t.Fatalf("TapToday(2) error = %v", err)
	}

	s1, _, _ := svc.BuildSummary(1)
	s2, _, _ := svc.BuildSummary(2)
	if s1.TodayCount != 1 {
		t.Errorf("user1 TodayCount = %d, want 1", s1.TodayCount)
	}
	if s2.TodayCount != 2 {
		t.Errorf("user2 TodayCount = %d, want 2", s2.TodayCount)
	}
}

func TestRecordService_ClearToday(t *testing.T) {
	svc := newTestRecordService(t)

	if err := svc.TapToday(1); err != nil {
		t.Fatalf("TapToday() error = %v", err)
	}
	if err := svc.ClearToday(1); err != nil {
		t.Fatalf("ClearToday() error = %v", err)
	}
	// 幂等：再删一次不报错
	if err := svc.ClearToday(1); err != nil {
		t.Fatalf("ClearToday() second call error = %v", err)
	}

	summary, _, err := svc.BuildSummary(1)
	if err != nil {
		t.Fatalf("BuildSummary() error = %v", err)
	}
	if summary.TodayCount != 0 {
		t.Errorf("TodayCount = %d, want 0", summary.TodayCount)
	}
}

func seedRecord(t *testing.T, svc *RecordService, userID uint, date string, count int) {
	t.Helper()
	rec := models.Record{UserID: userID, Date: date, Count: count}
	if err := svc.db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func TestRecordService_SummaryStreakAndLast7(t *testing.T) {
	svc := newTestRecordService(t)

	// 连续三天（含今天 6-15），6-11 断档
	seedRecord(t, svc, 1, "2025-06-15", 2)
	seedRecord(t, svc, 1, "2025-06-14", 1)
	seedRecord(t, svc, 1, "2025-06-13", 3)
	seedRecord(t, svc, 1, "2025-06-10", 5)

	summary, _, err := svc.BuildSummary(1)
	if err != nil {
		t.Fatalf("BuildSummary() error = %v", err)
	}
	if summary.CurrentStreak != 3 {
		t.Errorf("CurrentStreak = %d, want 3", summary.CurrentStreak)
	}
	// 近 7 天 = 6-09..6-15，包含 6-10 的 5 次
	if summary.Last7Count != 11 {
		t.Errorf("Last7Count = %d, want 11", summary.Last7Count)
	}
	if summary.MaxDayCount != 5 {
		t.Errorf("MaxDayCount = %d, want 5", summary.MaxDayCount)
	}
	if summary.TotalCount != 11 {
		t.Errorf("TotalCount = %d, want 11", summary.TotalCount)
	}
}

func TestRecordService_SummaryMonthScoped(t *testing.T) {
	svc := newTestRecordService(t)

	seedRecord(t, svc, 1, "2025-06-01", 2)
	seedRecord(t, svc, 1, "2025-05-31", 7)

	summary, monthRecords, err := svc.BuildSummary(1)
	if err != nil {
		t.Fatalf("BuildSummary() error = %v", err)
	}
	if summary.MonthCount != 2 {
		t.Errorf("MonthCount = %d, want 2", summary.MonthCount)
	}
	if summary.TotalCount != 9 {
		t.Errorf("TotalCount = %d, want 9", summary.TotalCount)
	}
	if len(monthRecords) != 1 || monthRecords["2025-06-01"] != 2 {
		t.Errorf("monthRecords = %v, want only 2025-06-01:2", monthRecords)
	}
}

func TestRecordService_MonthRecords(t *testing.T) {
	svc := newTestRecordService(t)

	seedRecord(t, svc, 1, "2025-06-01", 2)
	seedRecord(t, svc, 1, "2025-06-30", 1)
	seedRecord(t, svc, 1, "2025-07-01", 4)
	seedRecord(t, svc, 2, "2025-06-15", 9)

	records, err := svc.MonthRecords(1, 2025, 6)
	if err != nil {
		t.Fatalf("MonthRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}
	if records["2025-06-01"] != 2 || records["2025-06-30"] != 1 {
		t.Errorf("records = %v", records)
	}
}

func TestValidateMonth(t *testing.T) {
	tests := []struct {
		year, month int
		wantErr     bool
	}{
		{2025, 6, false},
		{2025, 1, false},
		{2025, 12, false},
		{2025, 0, true},
		{2025, 13, true},
		{100, 6, true},
	}
	for _, tt := range tests {
		err := ValidateMonth(tt.year, tt.month)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateMonth(%d, %d) error = %v, wantErr %v", tt.year, tt.month, err, tt.wantErr)
		}
	}
}
