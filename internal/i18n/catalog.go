package i18n

import "strings"

// 中文说明：
// 界面与错误提示文案目录。按语言代码取文案，缺失时回退主语言。
// 当前内置 en / zh 两种语言（与原型一致：主语言 + 次语言切换）。

// Catalog 文案目录。
type Catalog struct {
	Primary   string
	Secondary string
	messages  map[string]map[string]string
}

// NewCatalog 构造目录；未知语言代码照常接受（取文案时回退主语言）。
func NewCatalog(primary, secondary string) *Catalog {
	return &Catalog{
		Primary:   strings.TrimSpace(primary),
		Secondary: strings.TrimSpace(secondary),
		messages:  builtinMessages,
	}
}

// Languages 支持的语言序列（主语言在前）。
func (c *Catalog) Languages() []string {
	return []string{c.Primary, c.Secondary}
}

// Normalize 校正语言代码：非已知语言一律归为主语言。
func (c *Catalog) Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == c.Secondary {
		return c.Secondary
	}
	return c.Primary
}

// Message 取指定语言的文案；语言或键缺失时回退主语言，最后回退键名本身。
func (c *Catalog) Message(lang, key string) string {
	if m, ok := c.messages[lang]; ok {
		if v := m[key]; v != "" {
			return v
		}
	}
	if m, ok := c.messages[c.Primary]; ok {
		if v := m[key]; v != "" {
			return v
		}
	}
	return key
}

// All 返回一种语言的全部文案（含主语言回退），供前端一次性拉取。
func (c *Catalog) All(lang string) map[string]string {
	out := map[string]string{}
	for k, v := range c.messages[c.Primary] {
		out[k] = v
	}
	for k, v := range c.messages[lang] {
		out[k] = v
	}
	return out
}

var builtinMessages = map[string]map[string]string{
	"en": {
		"app.title":              "Candlestick Chart Analysis",
		"ui.pick_image":          "Choose or paste a chart image",
		"ui.user_context":        "Optional context (symbol, timeframe, notes)",
		"ui.analyze":             "Analyze",
		"ui.analyzing":           "Analyzing...",
		"ui.language":            "中文",
		"field.pattern":          "Pattern",
		"field.signal":           "Signal",
		"field.probability":      "Probability",
		"field.entry":            "Entry",
		"field.stop_loss":        "Stop loss",
		"field.take_profit":      "Take profit",
		"field.advice":           "Advice",
		"field.sources":          "Sources",
		"signal.buy":             "Buy",
		"signal.sell":            "Sell",
		"signal.neutral":         "Neutral",
		"error.decode":           "The selected file is empty or not a readable image.",
		"error.prompt_load":      "Analysis instructions could not be loaded. Check the prompt files.",
		"error.credential":       "Invalid API key. Check the configured model credentials.",
		"error.request_rejected": "The AI provider rejected the request.",
		"error.no_json":          "The model reply contained no JSON result.",
		"error.parse":            "The model reply contained malformed JSON.",
		"error.transport":        "Network error while contacting the AI provider.",
		"error.busy":             "An analysis is already in progress.",
	},
	"zh": {
		"app.title":              "K线图形态分析",
		"ui.pick_image":          "选择或粘贴一张K线图",
		"ui.user_context":        "可选补充语境（币种、周期、备注）",
		"ui.analyze":             "开始分析",
		"ui.analyzing":           "分析中...",
		"ui.language":            "English",
		"field.pattern":          "形态",
		"field.signal":           "信号",
		"field.probability":      "概率",
		"field.entry":            "入场价",
		"field.stop_loss":        "止损",
		"field.take_profit":      "止盈",
		"field.advice":           "建议",
		"field.sources":          "引用来源",
		"signal.buy":             "买入",
		"signal.sell":            "卖出",
		"signal.neutral":         "观望",
		"error.decode":           "所选文件为空或不是可读取的图片。",
		"error.prompt_load":      "分析指令加载失败，请检查提示词文件。",
		"error.credential":       "API Key 无效，请检查模型凭据配置。",
		"error.request_rejected": "AI 服务方拒绝了本次请求。",
		"error.no_json":          "模型回复中没有 JSON 结果。",
		"error.parse":            "模型回复中的 JSON 无法解析。",
		"error.transport":        "连接 AI 服务时发生网络错误。",
		"error.busy":             "已有一次分析在进行中。",
	},
}
