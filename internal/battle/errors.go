package battle

import "errors"

// 对战子系统的业务错误，handler 据此映射 HTTP 状态码。
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrConflict         = errors.New("conflict")
	ErrNotInRoom        = errors.New("not in room")
	ErrNotEnoughPlayers = errors.New("not enough players")
)
