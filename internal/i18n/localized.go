package i18n

import (
	"encoding/json"
	"strings"
)

// 中文说明：
// 模型输出的多语言字段：既可能是普通字符串，也可能是按语言代码分键的对象。
// 统一解析为 map，读取时按目标语言取值，缺失时回退主语言。

const fallbackKey = "_"

// LocalizedText 多语言文本。普通字符串解析后存于保留键下。
type LocalizedText map[string]string

// UnmarshalJSON 接受 "..." 或 {"en":"...","zh":"..."} 两种形态。
func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*t = LocalizedText{fallbackKey: plain}
		return nil
	}
	var byLang map[string]string
	if err := json.Unmarshal(data, &byLang); err != nil {
		return err
	}
	*t = LocalizedText(byLang)
	return nil
}

// MarshalJSON 单值时还原为普通字符串。
func (t LocalizedText) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		if v, ok := t[fallbackKey]; ok {
			return json.Marshal(v)
		}
	}
	return json.Marshal(map[string]string(t))
}

// Resolve 取目标语言文本；缺失时回退主语言，再回退任意非空值。
func (t LocalizedText) Resolve(lang, primary string) string {
	if len(t) == 0 {
		return ""
	}
	if v := strings.TrimSpace(t[lang]); v != "" {
		return v
	}
	if v := strings.TrimSpace(t[primary]); v != "" {
		return v
	}
	if v := strings.TrimSpace(t[fallbackKey]); v != "" {
		return v
	}
	for _, v := range t {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Empty 是否没有任何非空文本。
func (t LocalizedText) Empty() bool {
	for _, v := range t {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Plain 构造单值文本（解析失败回显等场景）。
func Plain(s string) LocalizedText {
	return LocalizedText{fallbackKey: s}
}
