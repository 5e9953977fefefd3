package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kandle/internal/analysis/fault"
	"kandle/internal/gateway/provider"
	"kandle/internal/i18n"
)

// 中文说明：
// 模型结构化输出的类型化表示。摒弃逐属性探测：入站即解析为带可选字段的记录并校验必填项，
// 缺失或错译字段在此处显式处理，而不是散落在展示层。

// Signal 交易信号。模型偶有大小写/本地化输出，Normalize 统一归口。
type Signal string

const (
	SignalBuy     Signal = "Buy"
	SignalSell    Signal = "Sell"
	SignalNeutral Signal = "Neutral"
)

// PriceLevel 画线用的价位（标签 + 绝对价）。
type PriceLevel struct {
	Label i18n.LocalizedText `json:"label,omitempty"`
	Price float64            `json:"price"`
}

// Report 一次成功分析的结构化字段。
type Report struct {
	PatternName i18n.LocalizedText `json:"patternName"`
	Signal      Signal             `json:"signal"`
	Probability float64            `json:"probability"`
	EntryPrice  *float64           `json:"entryPrice,omitempty"`
	StopLoss    *float64           `json:"stopLoss,omitempty"`
	TakeProfit  *float64           `json:"takeProfit,omitempty"`
	Advice      i18n.LocalizedText `json:"advice,omitempty"`
	PriceLevels []PriceLevel       `json:"priceLevels,omitempty"`
}

// Citation 引用来源（URI + 标题）。
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Result 一次成功尝试的完整产物；整体原子替换旧结果。
type Result struct {
	ID        string     `json:"id"`
	Report    Report     `json:"report"`
	Citations []Citation `json:"citations,omitempty"`
	RawText   string     `json:"-"`
	At        time.Time  `json:"at"`
}

// ParseReport 解析抽取出的 JSON 对象并做入站校验。
// 解析失败归类 Parse；结构可解析但必填字段缺失同样视为 Parse（原文随错误回传）。
func ParseReport(raw json.RawMessage, rawText string) (Report, error) {
	var rep Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		return Report{}, fault.WithRaw(fault.Parse, rawText, err)
	}
	if rep.PatternName.Empty() {
		return Report{}, fault.WithRaw(fault.Parse, rawText, errors.New("缺少 patternName 字段"))
	}
	sig, err := normalizeSignal(string(rep.Signal))
	if err != nil {
		return Report{}, fault.WithRaw(fault.Parse, rawText, err)
	}
	rep.Signal = sig
	// 概率字段：模型可能给 0–1 或 0–100，统一为 0–100
	if rep.Probability > 0 && rep.Probability <= 1 {
		rep.Probability *= 100
	}
	if rep.Probability < 0 || rep.Probability > 100 {
		return Report{}, fault.WithRaw(fault.Parse, rawText, fmt.Errorf("probability 越界: %v", rep.Probability))
	}
	// 非法价位条目直接剔除，不影响其余字段
	levels := rep.PriceLevels[:0]
	for _, lv := range rep.PriceLevels {
		if lv.Price > 0 {
			levels = append(levels, lv)
		}
	}
	rep.PriceLevels = levels
	return rep, nil
}

func normalizeSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long", "买入":
		return SignalBuy, nil
	case "sell", "short", "卖出":
		return SignalSell, nil
	case "neutral", "hold", "wait", "观望", "":
		return SignalNeutral, nil
	default:
		return "", fmt.Errorf("无法识别的 signal: %q", s)
	}
}

// CitationsFromSources 将 grounding 元数据压缩为 {uri,title} 序列；非 web/畸形条目已在网关剔除。
func CitationsFromSources(sources []provider.GroundingSource) []Citation {
	if len(sources) == 0 {
		return nil
	}
	out := make([]Citation, 0, len(sources))
	for _, s := range sources {
		if strings.TrimSpace(s.URI) == "" {
			continue
		}
		out = append(out, Citation{URI: s.URI, Title: s.Title})
	}
	return out
}

// MessageKey 信号对应的 i18n 文案键。
func (s Signal) MessageKey() string {
	switch s {
	case SignalBuy:
		return "signal.buy"
	case SignalSell:
		return "signal.sell"
	default:
		return "signal.neutral"
	}
}
