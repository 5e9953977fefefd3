package logger

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// 中文说明：
// 轻量日志封装：支持设置全局级别，便于减少刷屏。
// 另提供 LogLLMPayload：将发往模型的完整请求体落盘（便于排查提示词问题）。

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current = LevelInfo

func SetLevel(s string) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		current = LevelDebug
	case "info":
		current = LevelInfo
	case "warn", "warning":
		current = LevelWarn
	case "error":
		current = LevelError
	default:
		current = LevelInfo
	}
}

func Debugf(format string, v ...any) {
	if current <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}
func Infof(format string, v ...any) {
	if current <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}
func Warnf(format string, v ...any) {
	if current <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}
func Errorf(format string, v ...any) {
	if current <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

var (
	llmMu   sync.Mutex
	llmPath string
)

// SetLLMLogPath 配置 LLM 请求体日志文件；为空时仅走 Debugf。
func SetLLMLogPath(path string) {
	llmMu.Lock()
	llmPath = strings.TrimSpace(path)
	llmMu.Unlock()
}

// LogLLMPayload 记录一次模型调用的请求体。写文件失败不影响主流程。
func LogLLMPayload(model, body string) {
	llmMu.Lock()
	path := llmPath
	llmMu.Unlock()
	if path == "" {
		Debugf("[AI] payload model=%s body=%s", model, body)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		Debugf("[AI] 打开 LLM 日志失败: %v", err)
		return
	}
	defer f.Close()
	line := time.Now().UTC().Format(time.RFC3339) + " model=" + model + " " + body + "\n"
	if _, err := f.WriteString(line); err != nil {
		Debugf("[AI] 写入 LLM 日志失败: %v", err)
	}
}
