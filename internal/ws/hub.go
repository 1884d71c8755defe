package ws

import (
	"encoding/json"
	"sync"

	"github.com/xhd0728/LuLeMe/internal/battle"
	"github.com/xhd0728/LuLeMe/internal/metrics"
)

// Hub 按房间码管理推送组。对战状态以快照形式推送，
// REST 轮询仍是权威数据源，推送只是尽力而为的加速通道。
// 最后一个连接断开时整组回收，不随历史房间数增长。
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*RoomHub
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*RoomHub)} }

// Register 把连接挂到房间的推送组上，必要时懒创建。
func (h *Hub) Register(code string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rh := h.rooms[code]
	if rh == nil {
		rh = newRoomHub(code)
		h.rooms[code] = rh
	}
	rh.add(c)
}

// Unregister 摘除连接；房间没有剩余连接时删掉整个推送组。
func (h *Hub) Unregister(code string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rh := h.rooms[code]
	if rh == nil {
		return
	}
	if rh.remove(c) == 0 {
		delete(h.rooms, code)
	}
}

func (h *Hub) Online(code string) int {
	h.mu.RLock()
	rh := h.rooms[code]
	h.mu.RUnlock()
	if rh == nil {
		return 0
	}
	return rh.Online()
}

// RoomCount 当前持有连接的房间数。
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// BroadcastState 把房间快照推给该房间的所有连接。
// 没有监听者时不创建 RoomHub，直接丢弃。
func (h *Hub) BroadcastState(code string, snap battle.Snapshot) {
	h.mu.RLock()
	rh := h.rooms[code]
	h.mu.RUnlock()
	if rh == nil {
		return
	}
	b, err := json.Marshal(stateEvent{Type: "state", State: snap})
	if err != nil {
		return
	}
	rh.broadcast(b)
}

type stateEvent struct {
	Type  string          `json:"type"`
	State battle.Snapshot `json:"state"`
}

// RoomHub 一个房间的推送组。
type RoomHub struct {
	code    string
	mu      sync.Mutex
	clients map[*Client]bool
}

func newRoomHub(code string) *RoomHub {
	return &RoomHub{code: code, clients: make(map[*Client]bool)}
}

func (rh *RoomHub) add(c *Client) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.clients[c] = true
	metrics.WsConnections.Inc()
}

// remove 返回剩余连接数，重复摘除同一连接是幂等的。
// send 只在这里关闭，且与摘除同处一个临界区，
// broadcast 不会再看到已关闭的通道。
func (rh *RoomHub) remove(c *Client) int {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	if rh.clients[c] {
		delete(rh.clients, c)
		close(c.send)
		metrics.WsConnections.Dec()
	}
	return len(rh.clients)
}

// broadcast 非阻塞推送，发不进去的慢连接丢掉这一帧，
// 下一次轮询或广播会带来更新的快照。
func (rh *RoomHub) broadcast(msg []byte) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	for c := range rh.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Online 返回房间在线连接数量，供 REST 接口复用。
func (rh *RoomHub) Online() int {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return len(rh.clients)
}
