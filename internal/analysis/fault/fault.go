package fault

import "fmt"

// 中文说明：
// 一次分析尝试内的错误分类。所有错误在尝试边界被归并为 Fault，
// 由传输层按 Kind 映射到本地化提示文案；NoJSON/Parse 额外携带模型原文。

type Kind string

const (
	Decode          Kind = "decode"           // 图片为空/不可读/非图片
	PromptLoad      Kind = "prompt_load"      // 指令或知识片段缺失/为空
	Credential      Kind = "credential"       // API Key 无效
	RequestRejected Kind = "request_rejected" // 服务方 4xx 拒绝
	NoJSON          Kind = "no_json"          // 输出中无花括号对象
	Parse           Kind = "parse"            // 花括号切片解析失败
	Transport       Kind = "transport"        // 网络或未知失败
	Busy            Kind = "busy"             // 已有一次尝试在途
)

// Fault 归类后的尝试级错误。Raw 仅在抽取类错误时非空（用于回显诊断）。
type Fault struct {
	Kind Kind
	Raw  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Fault) Unwrap() error { return f.Err }

// New 构造不带原文的 Fault。
func New(kind Kind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

// WithRaw 构造携带模型原文的 Fault。
func WithRaw(kind Kind, raw string, err error) *Fault {
	return &Fault{Kind: kind, Raw: raw, Err: err}
}

// KindOf 返回错误的分类；非 Fault 一律视为 Transport。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if f, ok := err.(*Fault); ok {
		return f.Kind
	}
	return Transport
}

// MessageKey 每个分类对应的 i18n 文案键。
func (k Kind) MessageKey() string {
	switch k {
	case Decode:
		return "error.decode"
	case PromptLoad:
		return "error.prompt_load"
	case Credential:
		return "error.credential"
	case RequestRejected:
		return "error.request_rejected"
	case NoJSON:
		return "error.no_json"
	case Parse:
		return "error.parse"
	case Busy:
		return "error.busy"
	default:
		return "error.transport"
	}
}
