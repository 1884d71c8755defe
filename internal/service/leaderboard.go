package service

import (
	"time"

	"gorm.io/gorm"
)

// LeaderboardService 封装排行榜查询。
type LeaderboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{db: db, now: time.Now}
}

// BoardEntry 排行榜上的一行。
type BoardEntry struct {
	Username string `json:"username"`
	Total    int    `json:"total"`
	Rank     int    `json:"rank"`
}

type boardRow struct {
	Username string
	Total    *int
}

func toEntries(rows []boardRow) []BoardEntry {
	out := make([]BoardEntry, 0, len(rows))
	for i, r := range rows {
		total := 0
		if r.Total != nil {
			total = *r.Total
		}
		out = append(out, BoardEntry{Username: r.Username, Total: total, Rank: i + 1})
	}
	return out
}

// Leaderboard 返回总榜与当月榜，各取前 10，平分按注册先后。
type Leaderboard struct {
	Total    []BoardEntry `json:"total"`
	Month    []BoardEntry `json:"month"`
	MonthKey string       `json:"month_key"`
}

func (s *LeaderboardService) Top10() (*Leaderboard, error) {
	monthKey := s.now().Format("2006-01")

	var totalRows []boardRow
	err := s.db.Raw(`
		SELECT u.username, SUM(r.count) AS total
		FROM users u
		LEFT JOIN records r ON r.user_id = u.id
		GROUP BY u.id
		ORDER BY total DESC, u.created_at ASC
		LIMIT 10`).Scan(&totalRows).Error
	if err != nil {
		return nil, err
	}

	var monthRows []boardRow
	err = s.db.Raw(`
		SELECT u.username, SUM(r.count) AS total
		FROM users u
		LEFT JOIN records r ON r.user_id = u.id AND substr(r.date, 1, 7) = ?
		GROUP BY u.id
		ORDER BY total DESC, u.created_at ASC
		LIMIT 10`, monthKey).Scan(&monthRows).Error
	if err != nil {
		return nil, err
	}

	return &Leaderboard{
		Total:    toEntries(totalRows),
		Month:    toEntries(monthRows),
		MonthKey: monthKey,
	}, nil
}
