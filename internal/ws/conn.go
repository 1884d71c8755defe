package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xhd0728/LuLeMe/internal/auth"
	"github.com/xhd0728/LuLeMe/internal/battle"
	"github.com/xhd0728/LuLeMe/internal/config"
)

// Client 一条对战观战连接，只接收快照推送。
type Client struct {
	hub    *Hub
	code   string
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 升级 WebSocket 并把连接挂到房间的推送 Hub 上。
// 连接建立后立即推一帧当前快照，后续由各写操作触发广播。
func Serve(h *Hub, store *battle.Store, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(strings.TrimSpace(c.Query("code")))
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "code 参数缺失"})
			return
		}

		token := auth.BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "未登录，请先登录"})
			return
		}
		claims, err := auth.ParseAccessToken(token, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "登录已过期，请重新登录"})
			return
		}

		snap, err := store.State(code)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "房间不存在或已过期"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{hub: h, code: code, conn: conn, send: make(chan []byte, 256), userID: claims.UserID}
		h.Register(code, client)

		if b, err := json.Marshal(stateEvent{Type: "state", State: snap}); err == nil {
			client.send <- b
		}

		go client.writePump()
		client.readPump()
	}
}

// readPump 只负责消费控制帧并感知断开，客户端不上行业务数据。
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.code, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
