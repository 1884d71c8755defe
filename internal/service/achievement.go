package service

// Achievement 一枚成就徽章及其解锁进度。
type Achievement struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Target   int    `json:"target"`
	Progress int    `json:"progress"`
	Unlocked bool   `json:"unlocked"`
}

// 成就维度：total 累计、maxDay 单日最高、last7 近七天、streak 连续天数。
type achievementDef struct {
	id     string
	name   string
	desc   string
	target int
	metric func(total, maxDay, streak, last7 int) int
}

func byTotal(total, _, _, _ int) int   { return total }
func byMaxDay(_, maxDay, _, _ int) int { return maxDay }
func byStreak(_, _, streak, _ int) int { return streak }
func byLast7(_, _, _, last7 int) int   { return last7 }

var achievementDefs = []achievementDef{
	{"first_blood", "初次冲锋", "第一次动手，万事开头难", 1, byTotal},
	{"warm_up", "热身运动", "累计 5 次，小撸怡情", 5, byTotal},
	{"iron_hand", "铁手少年", "累计 20 次，手感渐入佳境", 20, byTotal},
	{"thunder_finger", "霹雳手指", "累计 50 次，手速如风", 50, byTotal},
	{"thousand_hand", "千手观音", "累计 100 次，众生平等", 100, byTotal},
	{"combo_2", "双杀达人", "单日达到 2 次，手还暖着呢", 2, byMaxDay},
	{"combo_3", "三连击", "单日达到 3 次，猛男本男", 3, byMaxDay},
	{"combo_5", "五连鞭", "单日达到 5 次，注意补水", 5, byMaxDay},
	{"combo_10", "爆肝铁人", "单日达到 10 次，手速超神", 10, byMaxDay},
	{"combo_20", "人体打桩机", "单日达到 20 次，求你歇歇", 20, byMaxDay},
	{"weekly_warrior", "周末狂欢", "7 天内累计 7 次，周末不能闲", 7, byLast7},
	{"weekly_overtime", "周末加班王", "近 7 天累计 14 次，手比班还勤", 14, byLast7},
	{"weekly_machine", "周更机器", "近 7 天累计 21 次，怀疑你是 AI", 21, byLast7},
	{"streak_3", "三天不洗手", "连续 3 天都撸，味道上头", 3, byStreak},
	{"streak_7", "一周不歇", "连续 7 天都撸，手腕小马达", 7, byStreak},
	{"streak_14", "半月狂魔", "连续 14 天，邻居都认识你", 14, byStreak},
	{"streak_30", "月度劳模", "连续 30 天，手劲持久", 30, byStreak},
	{"total_200", "手速王者", "总次数达到 200，传说中的单挑王", 200, byTotal},
	{"total_365", "人造日历", "总次数达到 365，比日历还准时", 365, byTotal},
}

// computeAchievements 由汇总指标推导全部成就的进度与解锁状态。
func computeAchievements(total, maxDay, streak, last7 int) []Achievement {
	out := make([]Achievement, 0, len(achievementDefs))
	for _, def := range achievementDefs {
		v := def.metric(total, maxDay, streak, last7)
		progress := v
		if progress > def.target {
			progress = def.target
		}
		out = append(out, Achievement{
			ID:       def.id,
			Name:     def.name,
			Desc:     def.desc,
			Target:   def.target,
			Progress: progress,
			Unlocked: v >= def.target,
		})
	}
	return out
}
