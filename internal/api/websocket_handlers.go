// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Corphon/MySlides/internal/di"
	"github.com/Corphon/MySlides/internal/models"
	"github.com/Corphon/MySlides/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler 处理 WebSocket 相关的 HTTP 请求
type WebSocketHandler struct {
	presentationService *services.PresentationService
	progressService     *services.ProgressService
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler() *WebSocketHandler {
	container := di.GetContainer()

	return &WebSocketHandler{
		presentationService: container.Get("presentation").(*services.PresentationService),
		progressService:     container.Get("progress").(*services.ProgressService),
	}
}

// SessionWebSocket 处理会话 WebSocket 连接。
// 连接期间客户端会收到slide_image和progress两类推送
func (wh *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		log.Printf("WebSocket 连接失败：会话ID缺失")
		http.Error(c.Writer, "会话ID缺失", http.StatusBadRequest)
		return
	}

	if _, err := wh.presentationService.GetSession(sessionID); err != nil {
		http.Error(c.Writer, "会话不存在", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("会话 WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	// 创建客户端
	client := &WebSocketClient{
		conn:      &WebSocketConnWrapper{conn},
		sessionID: sessionID,
		send:      make(chan []byte, 256),
		closed:    0,
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	// 注册客户端
	select {
	case wsManager.register <- client:
	default:
		log.Printf("无法注册 WebSocket 客户端，注册通道已满")
		return
	}

	defer func() {
		done := make(chan bool, 1)
		go func() {
			wsManager.unregister <- client
			done <- true
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			log.Printf("WebSocket 客户端注销超时")
		}
	}()

	// 启动读写协程
	go wh.handleWebSocketWrites(client)
	go wh.handleWebSocketReads(client)

	// 发送连接确认消息
	wh.sendWelcomeMessage(client, sessionID)

	// 正在生成时立即补发当前进度，后续更新由全局进度监听器广播
	if tracker, exists := wh.progressService.GetTracker(sessionID); exists {
		subscriber := tracker.Subscribe()
		if update, ok := <-subscriber; ok {
			client.SendMessage(map[string]interface{}{
				"type":       "progress",
				"session_id": sessionID,
				"progress":   update.Progress,
				"message":    update.Message,
				"status":     update.Status,
			})
		}
		tracker.Unsubscribe(subscriber)
	}

	// 等待连接关闭
	<-c.Request.Context().Done()
	log.Printf("会话 %s 的 WebSocket 连接已关闭", sessionID)
}

// handleWebSocketReads 处理 WebSocket 读取
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer func() {
		if !client.IsClosed() {
			select {
			case wsManager.unregister <- client:
			case <-time.After(1 * time.Second):
				log.Printf("读取协程关闭时注销超时")
			}
		}
	}()

	// 设置读取超时和ping处理
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if client.IsClosed() {
			break
		}

		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket 读取错误: %v", err)
			}
			break
		}

		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("JSON解析失败: %v", err)
			continue
		}

		client.UpdatePing()

		wh.handleMessage(client, message)
	}
}

// handleWebSocketWrites 处理 WebSocket 写入
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
			func() {
				defer func() {
					if recover() != nil {
						// 通道已被关闭
					}
				}()
				close(client.send)
			}()
			client.conn.Close()
		} else {
			func() {
				defer func() {
					if recover() != nil {
						// 通道已被关闭
					}
				}()
				close(client.send)
			}()
			client.conn.Close()
		}
	}()

	for {
		select {
		case message, ok := <-client.send:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket 写入失败: %v", err)
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping 失败: %v", err)
				return
			}
			client.UpdatePing()

		case <-time.After(60 * time.Second):
			if client.IsClosed() {
				return
			}
		}
	}
}

// handleMessage 处理收到的 WebSocket 消息
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, message map[string]interface{}) {
	messageType, ok := message["type"].(string)
	if !ok {
		client.SendError("消息缺少type字段")
		return
	}

	switch messageType {
	case "ping":
		wh.handlePing(client)
	case "session_state":
		wh.handleSessionState(client)
	default:
		client.SendError("不支持的消息类型: " + messageType)
	}
}

// handlePing 响应客户端主动的ping
func (wh *WebSocketHandler) handlePing(client *WebSocketClient) {
	client.UpdatePing()
	client.SendMessage(map[string]interface{}{
		"type":      "pong",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleSessionState 按需推送会话当前状态
func (wh *WebSocketHandler) handleSessionState(client *WebSocketClient) {
	session, err := wh.presentationService.GetSession(client.sessionID)
	if err != nil {
		client.SendError("会话不存在")
		return
	}

	client.SendMessage(map[string]interface{}{
		"type":      "session_state",
		"session":   session,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// sendWelcomeMessage 发送连接确认消息
func (wh *WebSocketHandler) sendWelcomeMessage(client *WebSocketClient, sessionID string) {
	client.SendMessage(map[string]interface{}{
		"type":       "connected",
		"session_id": sessionID,
		"message":    "WebSocket 连接成功",
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// PushSlideImage 向会话的全部客户端推送单张幻灯片的配图结果。
// 注册为编排服务的监听器，后台配图完成时逐张调用
func PushSlideImage(update models.SlideImageUpdate) {
	wsManager.BroadcastToSession(update.SessionID, map[string]interface{}{
		"type":       "slide_image",
		"session_id": update.SessionID,
		"slide_id":   update.SlideID,
		"image_data": update.ImageData,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// PushProgress 向会话的全部客户端推送进度更新
func PushProgress(sessionID string, update services.ProgressUpdate) {
	wsManager.BroadcastToSession(sessionID, map[string]interface{}{
		"type":       "progress",
		"session_id": sessionID,
		"progress":   update.Progress,
		"message":    update.Message,
		"status":     update.Status,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}
