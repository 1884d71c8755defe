package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/xhd0728/LuLeMe/internal/metrics"
	"github.com/xhd0728/LuLeMe/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// RecordService 封装每日打卡记录与统计汇总。
type RecordService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecordService(db *gorm.DB) *RecordService {
	return &RecordService{db: db, now: time.Now}
}

// TapToday 把今天的计数加一，不存在则插入。
func (s *RecordService) TapToday(userID uint) error {
	today := s.now().Format(dateLayout)
	rec := models.Record{UserID: userID, Date: today, Count: 1}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": s.now()}),
	}).Create(&rec).Error
	if err != nil {
		return err
	}
	metrics.DailyRecordsTotal.Inc()
	return nil
}

// ClearToday 删除今天的记录，幂等。
func (s *RecordService) ClearToday(userID uint) error {
	today := s.now().Format(dateLayout)
	return s.db.Where("user_id = ? AND date = ?", userID, today).Delete(&models.Record{}).Error
}

// MonthRecords 返回某月的记录映射 date -> count。
func (s *RecordService) MonthRecords(userID uint, year, month int) (map[string]int, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var recs []models.Record
	err := s.db.Where("user_id = ? AND date >= ? AND date < ?",
		userID, start.Format(dateLayout), end.Format(dateLayout)).Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(recs))
	for _, r := range recs {
		out[r.Date] = r.Count
	}
	return out, nil
}

// Summary 汇总统计，驱动前端首页与成就系统。
type Summary struct {
	Today         string        `json:"today"`
	TodayCount    int           `json:"today_count"`
	MonthCount    int           `json:"month_count"`
	TotalCount    int           `json:"total_count"`
	CurrentStreak int           `json:"current_streak"`
	Last7Count    int           `json:"last7_count"`
	MaxDayCount   int           `json:"max_day_count"`
	CurrentYear   int           `json:"current_year"`
	CurrentMonth  int           `json:"current_month"`
	Achievements  []Achievement `json:"achievements"`
}

// BuildSummary 拉取用户全部记录并计算汇总与成就，
// 同时返回当前月份的记录映射。
func (s *RecordService) BuildSummary(userID uint) (*Summary, map[string]int, error) {
	var recs []models.Record
	if err := s.db.Where("user_id = ?", userID).Find(&recs).Error; err != nil {
		return nil, nil, err
	}
	all := make(map[string]int, len(recs))
	for _, r := range recs {
		all[r.Date] = r.Count
	}

	now := s.now()
	todayStr := now.Format(dateLayout)
	monthPrefix := now.Format("2006-01")

	total, monthCount, maxDay := 0, 0, 0
	for d, c := range all {
		total += c
		if strings.HasPrefix(d, monthPrefix) {
			monthCount += c
		}
		if c > maxDay {
			maxDay = c
		}
	}
	streak := computeStreak(all, now)
	last7 := computeLast7(all, now)

	monthRecords := make(map[string]int)
	for d, c := range all {
		if strings.HasPrefix(d, monthPrefix) {
			monthRecords[d] = c
		}
	}

	summary := &Summary{
		Today:         todayStr,
		TodayCount:    all[todayStr],
		MonthCount:    monthCount,
		TotalCount:    total,
		CurrentStreak: streak,
		Last7Count:    last7,
		MaxDayCount:   maxDay,
		CurrentYear:   now.Year(),
		CurrentMonth:  int(now.Month()),
		Achievements:  computeAchievements(total, maxDay, streak, last7),
	}
	return summary, monthRecords, nil
}

// computeStreak 从今天往回数连续打卡天数。
func computeStreak(records map[string]int, now time.Time) int {
	streak := 0
	cursor := now
	for records[cursor.Format(dateLayout)] > 0 {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

// computeLast7 最近 7 天（含今天）的总次数。
func computeLast7(records map[string]int, now time.Time) int {
	total := 0
	cursor := now
	for i := 0; i < 7; i++ {
		total += records[cursor.Format(dateLayout)]
		cursor = cursor.AddDate(0, 0, -1)
	}
	return total
}

// ValidateMonth 校验 year/month 参数。
func ValidateMonth(year, month int) error {
	if year < 1970 || year > 9999 || month < 1 || month > 12 {
		return fmt.Errorf("invalid year/month: %d/%d", year, month)
	}
	return nil
}
