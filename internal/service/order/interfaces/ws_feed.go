package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orderhub/internal/pkg/logger"
	"orderhub/internal/service/order/domain"
)

const writeTimeout = 5 * time.Second

// EventFeed 把订单生命周期事件实时推送给运维端 websocket 订阅者。
// 它实现 port.EventPublisher，通常与 Kafka 发布器组合使用；
// 推送失败只会踢掉对应的订阅者，不影响触发事件的订单操作。
type EventFeed struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewEventFeed() *EventFeed {
	return &EventFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 内网运维面板使用，不做 Origin 校验
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Serve 升级连接并挂入订阅表，连接关闭后自动摘除。
func (f *EventFeed) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	f.mu.Lock()
	f.clients[conn] = struct{}{}
	f.mu.Unlock()

	// 订阅是单向的，读循环只负责探测对端关闭
	go func() {
		defer f.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish 实现 port.EventPublisher，向所有订阅者广播事件。
func (f *EventFeed) Publish(_ context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	f.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for c := range f.clients {
		conns = append(conns, c)
	}
	f.mu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			f.drop(conn)
		}
	}
	return nil
}

func (f *EventFeed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	if _, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		_ = conn.Close()
	}
	f.mu.Unlock()
}

// Close 断开所有订阅者。
func (f *EventFeed) Close() {
	f.mu.Lock()
	for conn := range f.clients {
		_ = conn.Close()
	}
	f.clients = make(map[*websocket.Conn]struct{})
	f.mu.Unlock()
}
