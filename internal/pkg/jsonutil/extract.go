package jsonutil

import (
	"encoding/json"
	"strings"
)

// 中文说明：
// 从模型自由文本输出中抽取 JSON 对象：取首个 '{' 与最后一个 '}' 之间的切片并解析。
// 这是对真实模型输出的最佳努力策略：前后常混有寒暄/思维链文字。
// 已知局限：若字符串值内含不配对的花括号，外层定位可能产生劣化切片；保持现状以兼容观测到的输出。

// NoObjectError 文本中找不到花括号包裹的对象（保留原文便于诊断）。
type NoObjectError struct {
	Raw string
}

func (e *NoObjectError) Error() string {
	return "未在输出中找到 JSON 对象"
}

// SyntaxError 定位到花括号切片但内容解析失败（保留原文与底层错误）。
type SyntaxError struct {
	Raw string
	Err error
}

func (e *SyntaxError) Error() string {
	return "JSON 对象解析失败: " + e.Err.Error()
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// ExtractObject 在字符串中定位首个 JSON 对象并解析校验。
// 返回的 RawMessage 即花括号（含）之间的切片。
func ExtractObject(raw string) (json.RawMessage, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &NoObjectError{Raw: raw}
	}
	slice := strings.TrimSpace(raw[start : end+1])
	var probe any
	if err := json.Unmarshal([]byte(slice), &probe); err != nil {
		return nil, &SyntaxError{Raw: raw, Err: err}
	}
	return json.RawMessage(slice), nil
}
