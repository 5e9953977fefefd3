package provider

import (
	"context"
	"fmt"
	"strings"
)

// 中文说明：
// 模型提供方抽象：统一的请求载荷/结果与按厂商实现的 HTTP 客户端。
// 按规范仅发起单次请求，失败不做自动重试，由用户显式重新提交。

// ImagePayload 单张图片（data URL 形式）与可选说明文字。
type ImagePayload struct {
	DataURI     string
	Description string
}

// ChatPayload 一次模型调用的全部材料。
type ChatPayload struct {
	System       string
	User         string
	Images       []ImagePayload
	ExpectJSON   bool     // 请求结构化输出（声明响应 schema）
	EnableSearch bool     // 声明搜索增强工具（与 ExpectJSON 的 schema 互斥）
	Languages    []string // 结构化输出中多语言字段的语言代码
	MaxTokens    int
}

// GroundingSource 模型汇报的引用来源（URI + 标题）。
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ChatResult 模型回复文本与引用来源。
type ChatResult struct {
	Text    string
	Sources []GroundingSource
}

// ModelProvider 模型提供方统一接口
type ModelProvider interface {
	ID() string
	Enabled() bool
	SupportsVision() bool
	ExpectsJSON() bool
	SearchEnabled() bool
	Call(ctx context.Context, payload ChatPayload) (ChatResult, error)
}

// CallError 服务方返回非 2xx 时携带状态码，供上层按类别映射提示。
type CallError struct {
	Status int
	Msg    string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.Status, e.Msg)
}

func ensureCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// redactHeaders 打码敏感请求头，用于调试日志。
func redactHeaders(headers map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range headers {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "auth") || strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			if len(v) > 4 {
				out[k] = "****" + v[len(v)-4:]
			} else {
				out[k] = "****"
			}
			continue
		}
		out[k] = v
	}
	return out
}
