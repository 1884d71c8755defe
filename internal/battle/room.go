package battle

import (
	"sort"
	"sync"
	"time"
)

// Status 房间状态。
//
// 状态机：waiting → running → finished，不允许跳跃。
// running → finished 由时间驱动：每次访问房间前先做惰性检查，
// 到点即翻转，无需单独的定时器。
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

// MinPlayers 开始对战所需的最少人数。
const MinPlayers = 2

// Participant 房间内的一名玩家，按加入顺序保存。
type Participant struct {
	UserID   uint
	Username string
	Taps     int
	Ready    bool
	JoinedAt time.Time
}

// Room 一场对战。所有可变字段由 mu 保护，
// 不同房间互不竞争锁。
type Room struct {
	Code      string
	OwnerID   uint
	OwnerName string
	Duration  time.Duration
	CreatedAt time.Time

	mu           sync.RWMutex
	closed       bool
	status       Status
	startedAt    time.Time
	finishedAt   time.Time
	lastActive   time.Time
	participants []*Participant
	surrendered  map[uint]bool
	winnerID     uint
	endReason    string // ""、"draw"、"surrender"
}

func newRoom(code string, ownerID uint, ownerName string, duration time.Duration, now time.Time) *Room {
	return &Room{
		Code:       code,
		OwnerID:    ownerID,
		OwnerName:  ownerName,
		Duration:   duration,
		CreatedAt:  now,
		status:     StatusWaiting,
		lastActive: now,
		participants: []*Participant{
			{UserID: ownerID, Username: ownerName, JoinedAt: now},
		},
		surrendered: make(map[uint]bool),
	}
}

// refreshLocked 惰性结束检查：running 且时间窗已过则翻转为 finished。
// 调用方必须已持有写锁。
func (r *Room) refreshLocked(now time.Time) {
	if r.status == StatusRunning && !now.Before(r.startedAt.Add(r.Duration)) {
		r.status = StatusFinished
		r.finishedAt = r.startedAt.Add(r.Duration)
	}
}

func (r *Room) findLocked(userID uint) *Participant {
	for _, p := range r.participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// Join 仅在 waiting 阶段允许加入；同一用户重复加入视为幂等成功，
// 保留原有的加入顺序。
func (r *Room) Join(userID uint, username string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomNotFound
	}
	r.refreshLocked(now)
	if r.status != StatusWaiting {
		return ErrInvalidState
	}
	r.lastActive = now
	if r.findLocked(userID) != nil {
		return nil
	}
	r.participants = append(r.participants, &Participant{UserID: userID, Username: username, JoinedAt: now})
	return nil
}

// SetReady 修改准备标记，仅在 waiting 阶段有效。
func (r *Room) SetReady(userID uint, ready bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(now)
	if r.status != StatusWaiting {
		return ErrInvalidState
	}
	p := r.findLocked(userID)
	if p == nil {
		return ErrNotInRoom
	}
	p.Ready = ready
	r.lastActive = now
	return nil
}

// Start 房主将房间从 waiting 切换到 running。
func (r *Room) Start(callerID uint, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(now)
	if r.status != StatusWaiting {
		return ErrInvalidState
	}
	if callerID != r.OwnerID {
		return ErrForbidden
	}
	if len(r.participants) < MinPlayers {
		return ErrNotEnoughPlayers
	}
	r.status = StatusRunning
	r.startedAt = now
	r.lastActive = now
	return nil
}

// Tap 在 running 窗口内为调用者的计数加一，返回更新后的计数。
func (r *Room) Tap(userID uint, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(now)
	if r.status != StatusRunning {
		return 0, ErrInvalidState
	}
	p := r.findLocked(userID)
	if p == nil {
		return 0, ErrNotInRoom
	}
	p.Taps++
	r.lastActive = now
	return p.Taps, nil
}

// Leave 离开房间。返回值表示房间是否已无人、应当删除。
// 房主离开时，房主身份转让给最早加入的剩余玩家。
func (r *Room) Leave(userID uint, now time.Time) (empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(now)
	idx := -1
	for i, p := range r.participants {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrNotInRoom
	}
	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	delete(r.surrendered, userID)
	r.lastActive = now
	if len(r.participants) == 0 {
		// 在锁内标记解散，持有旧指针的并发 Join 不会复活房间
		r.closed = true
		return true, nil
	}
	if userID == r.OwnerID {
		next := r.participants[0]
		r.OwnerID = next.UserID
		r.OwnerName = next.Username
	}
	return false, nil
}

// Surrender 在 running 阶段投降。全员投降记为平局；
// 否则最早加入的未投降玩家获胜，对局提前结束。
func (r *Room) Surrender(userID uint, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(now)
	if r.status != StatusRunning {
		return ErrInvalidState
	}
	if r.findLocked(userID) == nil {
		return ErrNotInRoom
	}
	r.surrendered[userID] = true
	r.lastActive = now
	if len(r.surrendered) >= len(r.participants) {
		r.status = StatusFinished
		r.finishedAt = now
		r.endReason = "draw"
		return nil
	}
	for _, p := range r.participants {
		if !r.surrendered[p.UserID] {
			r.status = StatusFinished
			r.finishedAt = now
			r.winnerID = p.UserID
			r.endReason = "surrender"
			return nil
		}
	}
	return nil
}

// PlayerState 快照中的一名玩家。
type PlayerState struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Count    int    `json:"count"`
	Ready    bool   `json:"ready"`
	Rank     int    `json:"rank"`
}

// Snapshot 房间状态快照，排名按计数降序，平分时先加入者在前。
type Snapshot struct {
	Code        string        `json:"code"`
	OwnerID     uint          `json:"creator_id"`
	OwnerName   string        `json:"creator_name"`
	CreatedAt   time.Time     `json:"created_at"`
	Status      Status        `json:"status"`
	Started     bool          `json:"started"`
	Finished    bool          `json:"finished"`
	Remaining   int           `json:"remaining"`
	Players     []PlayerState `json:"players"`
	Surrendered []uint        `json:"surrendered,omitempty"`
	EndReason   string        `json:"end_reason,omitempty"`
	WinnerID    uint          `json:"winner_id,omitempty"`
}

// State 读取快照，同样先做惰性结束检查，
// 保证超时的 running 房间在下一次读取时就报告 finished。
func (r *Room) State(now time.Time) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(now)

	remaining := 0
	if r.status == StatusRunning {
		remaining = int(r.startedAt.Add(r.Duration).Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}

	players := make([]PlayerState, 0, len(r.participants))
	for _, p := range r.participants {
		players = append(players, PlayerState{UserID: p.UserID, Username: p.Username, Count: p.Taps, Ready: p.Ready})
	}
	// participants 本身就是加入顺序，稳定排序天然实现平分先到先排。
	sort.SliceStable(players, func(i, j int) bool { return players[i].Count > players[j].Count })
	for i := range players {
		players[i].Rank = i + 1
	}

	var surrendered []uint
	for _, p := range r.participants {
		if r.surrendered[p.UserID] {
			surrendered = append(surrendered, p.UserID)
		}
	}

	return Snapshot{
		Code:        r.Code,
		OwnerID:     r.OwnerID,
		OwnerName:   r.OwnerName,
		CreatedAt:   r.CreatedAt,
		Status:      r.status,
		Started:     r.status != StatusWaiting,
		Finished:    r.status == StatusFinished,
		Remaining:   remaining,
		Players:     players,
		Surrendered: surrendered,
		EndReason:   r.endReason,
		WinnerID:    r.winnerID,
	}
}

// expired 判断房间是否闲置超过 TTL，任何状态都适用。
func (r *Room) expired(now time.Time, ttl time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return now.Sub(r.lastActive) > ttl
}

// PlayerCount 当前参与人数。
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}
