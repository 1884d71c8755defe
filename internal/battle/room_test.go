package battle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRoom 建一个甲(1)为房主、乙(2)已加入的等待房间。
func setupRoom(t *testing.T) (*Store, *fakeClock, string) {
	t.Helper()
	clk := newFakeClock()
	s := newTestStore(clk)
	snap, err := s.Create(1, "甲")
	require.NoError(t, err)
	_, err = s.Join(snap.Code, 2, "乙")
	require.NoError(t, err)
	return s, clk, snap.Code
}

func TestRoom_StartSucceedsExactlyOnce(t *testing.T) {
	s, _, code := setupRoom(t)

	_, err := s.Start(code, 1)
	require.NoError(t, err)

	_, err = s.Start(code, 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRoom_StartByNonOwnerForbidden(t *testing.T) {
	s, _, code := setupRoom(t)

	_, err := s.Start(code, 2)
	assert.ErrorIs(t, err, ErrForbidden)

	// 房间仍处于 waiting，房主仍可开始
	_, err = s.Start(code, 1)
	assert.NoError(t, err)
}

func TestRoom_StartNeedsTwoPlayers(t *testing.T) {
	s := newTestStore(newFakeClock())
	snap, err := s.Create(1, "甲")
	require.NoError(t, err)

	_, err = s.Start(snap.Code, 1)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestRoom_JoinAfterStartInvalidState(t *testing.T) {
	s, _, code := setupRoom(t)
	_, err := s.Start(code, 1)
	require.NoError(t, err)

	_, err = s.Join(code, 3, "丙")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRoom_JoinTwiceIsIdempotent(t *testing.T) {
	s, _, code := setupRoom(t)

	snap, err := s.Join(code, 2, "乙")
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)

	// 重复加入不会重置加入顺序
	_, err = s.Start(code, 1)
	require.NoError(t, err)
	got, err := s.State(code)
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.Players[0].UserID)
}

func TestRoom_TapBeforeStartInvalidState(t *testing.T) {
	s, _, code := setupRoom(t)

	_, _, err := s.Tap(code, 2)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRoom_TapByOutsiderRejected(t *testing.T) {
	s, _, code := setupRoom(t)
	_, err := s.Start(code, 1)
	require.NoError(t, err)

	_, _, err = s.Tap(code, 99)
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestRoom_TapAfterWindowInvalidState(t *testing.T) {
	s, clk, code := setupRoom(t)
	_, err := s.Start(code, 1)
	require.NoError(t, err)

	clk.Advance(60 * time.Second)
	_, _, err = s.Tap(code, 2)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRoom_ReadyOnlyWhileWaiting(t *testing.T) {
	s, _, code := setupRoom(t)

	snap, err := s.SetReady(code, 2, true)
	require.NoError(t, err)
	for _, p := range snap.Players {
		if p.UserID == 2 {
			assert.True(t, p.Ready)
		}
	}

	_, err = s.SetReady(code, 99, true)
	assert.ErrorIs(t, err, ErrNotInRoom)

	_, err = s.Start(code, 1)
	require.NoError(t, err)
	_, err = s.SetReady(code, 2, false)
	assert.ErrorIs(t, err, ErrInvalidState)
}

// 规格场景：create → join → start → 乙点 5 下、甲点 3 下，
// 第 30 秒读状态应为 running、排名 [乙:5, 甲:3]、剩余约 30 秒。
func TestRoom_ScenarioMidRound(t *testing.T) {
	s, clk, code := setupRoom(t)
	_, err := s.Start(code, 1)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _, err := s.Tap(code, 2)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, _, err := s.Tap(code, 1)
		require.NoError(t, err)
	}

	clk.Advance(30 * time.Second)
	snap, err := s.State(code)
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 30, snap.Remaining)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, uint(2), snap.Players[0].UserID)
	assert.Equal(t, 5, snap.Players[0].Count)
	assert.Equal(t, 1, snap.Players[0].Rank)
	assert.Equal(t, uint(1), snap.Players[1].UserID)
	assert.Equal(t, 3, snap.Players[1].Count)
	assert.Equal(t, 2, snap.Players[1].Rank)
}

// 规格场景：第 61 秒读状态必须是 finished、剩余 0、排名不变，
// 即便没有任何显式的结束动作。
func TestRoom_ScenarioLazyFinish(t *testing.T) {
	s, clk, code := setupRoom(t)
	_, err := s.Start(code, 1)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _, err := s.Tap(code, 2)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, _, err := s.Tap(code, 1)
		require.NoError(t, err)
	}

	clk.Advance(61 * time.Second)
	snap, err := s.State(code)
	require.NoError(t, err)

	assert.Equal(t, StatusFinished, snap.Status)
	assert.True(t, snap.Finished)
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, 5, snap.Players[0].Count)
	assert.Equal(t, 3, snap.Players[1].Count)
}

func TestRoom_RankingTieBrokenByJoinOrder(t *testing.T) {
	clk := newFakeClock()
	s := newTestStore(clk)
	snap, err := s.Create(1, "甲")
	require.NoError(t, err)
	code := snap.Code
	clk.Advance(time.Second)
	_, err = s.Join(code, 2, "乙")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = s.Join(code, 3, "丙")
	require.NoError(t, err)
	_, err = s.Start(code, 1)
	require.NoError(t, err)

	// 丙与甲同分，甲先加入应排前；乙 0 分垫底
	for i := 0; i < 2; i++ {
		_, _, err := s.Tap(code, 1)
		require.NoError(t, err)
		_, _, err = s.Tap(code, 3)
		require.NoError(t, err)
	}

	got, err := s.State(code)
	require.NoError(t, err)
	require.Len(t, got.Players, 3)
	assert.Equal(t, uint(1), got.Players[0].UserID)
	assert.Equal(t, uint(3), got.Players[1].UserID)
	assert.Equal(t, uint(2), got.Players[2].UserID)
}

func TestRoom_RemainingZeroWhileWaiting(t *testing.T) {
	s, _, code := setupRoom(t)

	snap, err := s.State(code)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, snap.Status)
	assert.False(t, snap.Started)
	assert.Equal(t, 0, snap.Remaining)
}

func TestRoom_TapCountsFrozenAfterFinish(t *testing.T) {
	s, clk, code := setupRoom(t)
	_, err := s.Start(code, 1)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, _, err := s.Tap(code, 2)
		require.NoError(t, err)
	}

	clk.Advance(60 * time.Second)
	_, _, err = s.Tap(code, 2)
	assert.ErrorIs(t, err, ErrInvalidState)

	snap, err := s.State(code)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Players[0].Count)
}

func TestRoom_SurrenderPicksWinner(t *testing.T) {
	s, _, code := setupRoom(t)
	_, err := s.Start(code, 1)
	require.NoError(t, err)

	snap, err := s.Surrender(code, 1)
	require.NoError(t, err)

	assert.Equal(t, StatusFinished, snap.Status)
	assert.Equal(t, "surrender", snap.EndReason)
	assert.Equal(t, uint(2), snap.WinnerID)
	assert.Equal(t, []uint{1}, snap.Surrendered)
}

func TestRoom_SurrenderEndsRoundEarly(t *testing.T) {
	clk := newFakeClock()
	s := newTestStore(clk)
	first, err := s.Create(1, "甲")
	require.NoError(t, err)
	code := first.Code
	_, err = s.Join(code, 2, "乙")
	require.NoError(t, err)
	_, err = s.Join(code, 3, "丙")
	require.NoError(t, err)
	_, err = s.Start(code, 1)
	require.NoError(t, err)

	_, err = s.Surrender(code, 1)
	require.NoError(t, err)
	// 第一个投降就已经分出胜负并结束对局
	snap, err := s.State(code)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, snap.Status)

	_, err = s.Surrender(code, 2)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRoom_SurrenderBeforeStartInvalidState(t *testing.T) {
	s, _, code := setupRoom(t)

	_, err := s.Surrender(code, 2)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRoom_TwoPlayerBothSurrenderDraw(t *testing.T) {
	// 两人局里第一个投降即产生胜者，平局只会出现在
	// 同一时刻全员投降的单步判定里，这里直接驱动 Room 验证。
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newRoom("TEST01", 1, "甲", 60*time.Second, now)
	require.NoError(t, r.Join(2, "乙", now))
	require.NoError(t, r.Start(1, now))

	r.mu.Lock()
	r.surrendered[1] = true
	r.mu.Unlock()

	require.NoError(t, r.Surrender(2, now))
	snap := r.State(now)
	assert.Equal(t, "draw", snap.EndReason)
	assert.Equal(t, uint(0), snap.WinnerID)
}
