package ui

import (
	"errors"
	"time"

	"kandle/internal/analysis"
	"kandle/internal/analysis/fault"
	"kandle/internal/pkg/text"
	"kandle/internal/state"
)

// 中文说明：
// 状态 → 展示 DTO 的本地化渲染。目标语言缺失的字段回退主语言；
// 语言切换只需用缓存结果重渲染，绝不重新调用模型。

type renderedLevel struct {
	Label string  `json:"label,omitempty"`
	Price float64 `json:"price"`
}

type renderedResult struct {
	ID          string              `json:"id"`
	At          time.Time           `json:"at"`
	Pattern     string              `json:"pattern"`
	Signal      string              `json:"signal"`
	SignalText  string              `json:"signal_text"`
	Probability float64             `json:"probability"`
	EntryPrice  *float64            `json:"entry_price,omitempty"`
	StopLoss    *float64            `json:"stop_loss,omitempty"`
	TakeProfit  *float64            `json:"take_profit,omitempty"`
	Advice      string              `json:"advice,omitempty"`
	PriceLevels []renderedLevel     `json:"price_levels,omitempty"`
	Citations   []analysis.Citation `json:"citations,omitempty"`
}

type renderedFault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"`
}

type renderedState struct {
	Phase     string          `json:"phase"`
	Language  string          `json:"language"`
	HasImage  bool            `json:"has_image"`
	ImageMime string          `json:"image_mime,omitempty"`
	Result    *renderedResult `json:"result,omitempty"`
	Error     *renderedFault  `json:"error,omitempty"`
}

// renderState 渲染快照；lang 为空时使用快照中的当前语言。
func (s *Server) renderState(snap state.Snapshot, lang string) renderedState {
	if lang == "" {
		lang = snap.Language
	}
	lang = s.catalog.Normalize(lang)
	out := renderedState{
		Phase:    string(snap.Phase),
		Language: lang,
		HasImage: snap.SelectedImage != nil && !snap.SelectedImage.Empty(),
	}
	if out.HasImage {
		out.ImageMime = snap.SelectedImage.MimeType
	}
	if snap.LastResult != nil {
		out.Result = s.renderResult(snap.LastResult, lang)
	}
	if snap.LastFault != nil {
		out.Error = s.renderFault(snap.LastFault, lang)
	}
	return out
}

func (s *Server) renderResult(res *analysis.Result, lang string) *renderedResult {
	primary := s.catalog.Primary
	rep := res.Report
	out := &renderedResult{
		ID:          res.ID,
		At:          res.At,
		Pattern:     rep.PatternName.Resolve(lang, primary),
		Signal:      string(rep.Signal),
		SignalText:  s.catalog.Message(lang, rep.Signal.MessageKey()),
		Probability: rep.Probability,
		EntryPrice:  rep.EntryPrice,
		StopLoss:    rep.StopLoss,
		TakeProfit:  rep.TakeProfit,
		Advice:      rep.Advice.Resolve(lang, primary),
		Citations:   res.Citations,
	}
	for _, lv := range rep.PriceLevels {
		out.PriceLevels = append(out.PriceLevels, renderedLevel{
			Label: lv.Label.Resolve(lang, primary),
			Price: lv.Price,
		})
	}
	return out
}

func (s *Server) renderFault(f *fault.Fault, lang string) *renderedFault {
	out := &renderedFault{
		Kind:    string(f.Kind),
		Message: s.catalog.Message(lang, f.Kind.MessageKey()),
	}
	// 抽取类错误回显模型原文，便于用户自查
	if f.Kind == fault.NoJSON || f.Kind == fault.Parse {
		out.Raw = text.Truncate(f.Raw, 2000)
	}
	return out
}

func (s *Server) renderFaultAs(kind fault.Kind, err error, lang string) *renderedFault {
	var f *fault.Fault
	if errors.As(err, &f) {
		return s.renderFault(f, lang)
	}
	return s.renderFault(fault.New(kind, err), lang)
}
