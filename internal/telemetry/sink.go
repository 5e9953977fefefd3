package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"kandle/internal/logger"
)

// 中文说明：
// 可选的遥测上报：生命周期事件序列化为结构化记录 POST 到收集端。
// 投递失败只打日志吞掉，绝不影响分析主流程。

// Event 一条生命周期事件。
type Event struct {
	Attempt string         `json:"attempt"`
	Name    string         `json:"name"`
	At      time.Time      `json:"at"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Sink 遥测上报器；nil 安全（禁用时直接传 nil）。
type Sink struct {
	endpoint string
	client   *http.Client
}

// NewSink 构造上报器；endpoint 为空返回 nil。
func NewSink(endpoint string, timeout time.Duration) *Sink {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Emit 上报一条事件；一切失败仅记 Debug 日志。
func (s *Sink) Emit(ctx context.Context, ev Event) {
	if s == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		logger.Debugf("[telemetry] 序列化失败: %v", err)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		logger.Debugf("[telemetry] 构造请求失败: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		logger.Debugf("[telemetry] 投递失败: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		logger.Debugf("[telemetry] 收集端返回 %d", resp.StatusCode)
	}
}
