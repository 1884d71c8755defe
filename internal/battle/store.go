package battle

import (
	"crypto/rand"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xhd0728/LuLeMe/internal/metrics"
)

// 去掉易混淆字符（I/O/0/1）的房间码字母表。
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeLength      = 6
	codeGenAttempts = 5
)

// Store 进程内的房间注册表。显式构造、显式注入，
// 进程启动时创建，停机时 Stop，方便测试中并行跑多个隔离实例。
type Store struct {
	duration   time.Duration
	ttl        time.Duration
	sweepEvery time.Duration

	mu    sync.RWMutex
	rooms map[string]*Room

	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStore 创建房间注册表。duration 为一局时长，ttl 为闲置回收阈值，
// sweepEvery 为后台清扫周期。
func NewStore(duration, ttl, sweepEvery time.Duration) *Store {
	return &Store{
		duration:   duration,
		ttl:        ttl,
		sweepEvery: sweepEvery,
		rooms:      make(map[string]*Room),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Run 启动后台清扫循环。配合惰性清扫，任何房间最多比 TTL
// 多活一个清扫周期。
func (s *Store) Run() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				if n := s.Sweep(s.now()); n > 0 {
					log.Info().Int("removed", n).Msg("battle sweep")
				}
			}
		}
	}()
}

// Stop 停止后台清扫，幂等。
func (s *Store) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()
}

func genCode() (string, error) {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// Create 生成唯一房间码并以调用者为房主建房。
// 房间码碰撞时做有限次重试，用尽后返回 Conflict。
func (s *Store) Create(ownerID uint, ownerName string) (Snapshot, error) {
	now := s.now()
	s.Sweep(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < codeGenAttempts; i++ {
		code, err := genCode()
		if err != nil {
			return Snapshot{}, err
		}
		if _, taken := s.rooms[code]; taken {
			continue
		}
		room := newRoom(code, ownerID, ownerName, s.duration, now)
		s.rooms[code] = room
		metrics.BattleRoomsActive.Set(float64(len(s.rooms)))
		log.Info().Str("code", code).Uint("owner_id", ownerID).Msg("battle room created")
		return room.State(now), nil
	}
	return Snapshot{}, ErrConflict
}

// get 查找房间；闲置超过 TTL 的房间顺手删除并视作不存在。
func (s *Store) get(code string) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	s.mu.RLock()
	room := s.rooms[code]
	s.mu.RUnlock()
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if room.expired(s.now(), s.ttl) {
		s.Delete(code)
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Delete 幂等删除。
func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; ok {
		delete(s.rooms, code)
		metrics.BattleRoomsActive.Set(float64(len(s.rooms)))
	}
}

// Sweep 移除所有闲置超过 TTL 的房间，与状态无关，返回删除数量。
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for code, room := range s.rooms {
		if room.expired(now, s.ttl) {
			delete(s.rooms, code)
			removed++
		}
	}
	if removed > 0 {
		metrics.BattleRoomsActive.Set(float64(len(s.rooms)))
	}
	return removed
}

// Count 当前房间数。
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Join 加入房间，重复加入幂等成功。
func (s *Store) Join(code string, userID uint, username string) (Snapshot, error) {
	room, err := s.get(code)
	if err != nil {
		return Snapshot{}, err
	}
	now := s.now()
	if err := room.Join(userID, username, now); err != nil {
		return Snapshot{}, err
	}
	return room.State(now), nil
}

// SetReady 更新准备标记。
func (s *Store) SetReady(code string, userID uint, ready bool) (Snapshot, error) {
	room, err := s.get(code)
	if err != nil {
		return Snapshot{}, err
	}
	now := s.now()
	if err := room.SetReady(userID, ready, now); err != nil {
		return Snapshot{}, err
	}
	return room.State(now), nil
}

// Start 房主开始对战。
func (s *Store) Start(code string, callerID uint) (Snapshot, error) {
	room, err := s.get(code)
	if err != nil {
		return Snapshot{}, err
	}
	now := s.now()
	if err := room.Start(callerID, now); err != nil {
		return Snapshot{}, err
	}
	log.Info().Str("code", room.Code).Uint("owner_id", callerID).Msg("battle started")
	return room.State(now), nil
}

// Tap 记录一次点击，返回调用者更新后的计数和房间快照。
func (s *Store) Tap(code string, userID uint) (int, Snapshot, error) {
	room, err := s.get(code)
	if err != nil {
		return 0, Snapshot{}, err
	}
	now := s.now()
	count, err := room.Tap(userID, now)
	if err != nil {
		return 0, Snapshot{}, err
	}
	metrics.BattleTapsTotal.Inc()
	return count, room.State(now), nil
}

// Leave 离开房间；房间清空时即刻删除。
func (s *Store) Leave(code string, userID uint) (Snapshot, bool, error) {
	room, err := s.get(code)
	if err != nil {
		return Snapshot{}, false, err
	}
	now := s.now()
	empty, err := room.Leave(userID, now)
	if err != nil {
		return Snapshot{}, false, err
	}
	if empty {
		s.Delete(room.Code)
		return Snapshot{}, true, nil
	}
	return room.State(now), false, nil
}

// Surrender 投降。
func (s *Store) Surrender(code string, userID uint) (Snapshot, error) {
	room, err := s.get(code)
	if err != nil {
		return Snapshot{}, err
	}
	now := s.now()
	if err := room.Surrender(userID, now); err != nil {
		return Snapshot{}, err
	}
	return room.State(now), nil
}

// State 只读快照，同时触发惰性结束检查。
func (s *Store) State(code string) (Snapshot, error) {
	room, err := s.get(code)
	if err != nil {
		return Snapshot{}, err
	}
	return room.State(s.now()), nil
}

// ListWaiting 列出所有等待中的房间，按创建时间倒序。
func (s *Store) ListWaiting() []Snapshot {
	now := s.now()
	s.Sweep(now)

	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.After(rooms[j].CreatedAt) })

	out := make([]Snapshot, 0, len(rooms))
	for _, room := range rooms {
		snap := room.State(now)
		if snap.Status == StatusWaiting {
			out = append(out, snap)
		}
	}
	return out
}
