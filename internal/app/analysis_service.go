package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"kandle/internal/analysis"
	"kandle/internal/analysis/fault"
	"kandle/internal/gateway/provider"
	"kandle/internal/i18n"
	"kandle/internal/imaging"
	"kandle/internal/logger"
	"kandle/internal/pkg/jsonutil"
	"kandle/internal/pkg/text"
	"kandle/internal/prompt"
	"kandle/internal/state"
	"kandle/internal/telemetry"
)

// AnalysisService 负责一次分析尝试的完整编排：
// 编码图片 → 拼接提示词 → 单次模型调用 → 抽取 JSON → 校验入库。
// 同一时刻最多一次尝试在途（单槽守卫），第二次提交直接拒绝。
type AnalysisService struct {
	providers []provider.ModelProvider
	prompts   *prompt.Manager
	store     *state.Store
	sink      *telemetry.Sink
	catalog   *i18n.Catalog

	maxImageBytes int64
	maxTokens     int
	timeout       time.Duration

	inflight sync.Mutex
}

// NewAnalysisService 构造服务（不触发任何 IO）。
func NewAnalysisService(
	providers []provider.ModelProvider,
	prompts *prompt.Manager,
	store *state.Store,
	sink *telemetry.Sink,
	catalog *i18n.Catalog,
	maxImageBytes int64,
	maxTokens int,
	timeout time.Duration,
) *AnalysisService {
	return &AnalysisService{
		providers:     providers,
		prompts:       prompts,
		store:         store,
		sink:          sink,
		catalog:       catalog,
		maxImageBytes: maxImageBytes,
		maxTokens:     maxTokens,
		timeout:       timeout,
	}
}

// WarmPrompt 预热提示词缓存（首次拼接并缓存）。
func (s *AnalysisService) WarmPrompt(ctx context.Context) error {
	_, err := s.prompts.Compose(ctx)
	return err
}

// Snapshot 当前应用状态。
func (s *AnalysisService) Snapshot() state.Snapshot {
	return s.store.Get()
}

// SetLanguage 切换界面语言；不触发新的模型调用。
func (s *AnalysisService) SetLanguage(lang string) state.Snapshot {
	return s.store.SetLanguage(s.catalog.Normalize(lang))
}

// SelectImage 编码并记录新选中的图片；旧结果与错误随之清空。
// 与 Analyze 共用单槽守卫：在途尝试期间不可更换图片，否则旧尝试完成时
// 会把结果挂在一张从未分析过的图片下面。
func (s *AnalysisService) SelectImage(ctx context.Context, r io.Reader) (imaging.EncodedImage, error) {
	if !s.inflight.TryLock() {
		return imaging.EncodedImage{}, fault.New(fault.Busy, errors.New("分析在途，暂不可更换图片"))
	}
	defer s.inflight.Unlock()

	img, err := imaging.Encode(r, s.maxImageBytes)
	if err != nil {
		return imaging.EncodedImage{}, err
	}
	s.store.SelectImage(img)
	s.emit(ctx, "", "image_selected", map[string]any{"mime": img.MimeType, "bytes": len(img.Data)})
	return img, nil
}

// Analyze 对当前选中的图片发起一次分析尝试。
// 成功写入结果并回到 Idle；任何失败归类为 Fault、记录后回到 Idle（控件重新可用）。
func (s *AnalysisService) Analyze(ctx context.Context, userContext string) (*analysis.Result, error) {
	if !s.inflight.TryLock() {
		// 在途尝试不受影响，状态不回写
		return nil, fault.New(fault.Busy, errors.New("已有一次分析在途"))
	}
	defer s.inflight.Unlock()

	snap := s.store.Get()
	if snap.SelectedImage == nil || snap.SelectedImage.Empty() {
		f := fault.New(fault.Decode, errors.New("尚未选择图片"))
		s.store.FinishFailure(f)
		return nil, f
	}
	img := *snap.SelectedImage

	attemptID := uuid.NewString()
	s.store.BeginAttempt()

	res, err := s.runAttempt(ctx, attemptID, img, userContext)
	if err != nil {
		f := asFault(err)
		s.store.FinishFailure(f)
		s.emit(ctx, attemptID, "analysis_failed", map[string]any{
			"kind": string(f.Kind),
			"raw":  text.Truncate(f.Raw, 500),
		})
		logger.Warnf("分析失败 attempt=%s kind=%s: %v", attemptID, f.Kind, f.Err)
		return nil, f
	}
	s.store.FinishSuccess(res)
	s.emit(ctx, attemptID, "analysis_succeeded", map[string]any{
		"signal":      string(res.Report.Signal),
		"probability": res.Report.Probability,
		"citations":   len(res.Citations),
	})
	logger.Infof("✓ 分析完成 attempt=%s signal=%s prob=%.0f", attemptID, res.Report.Signal, res.Report.Probability)
	return res, nil
}

func (s *AnalysisService) runAttempt(ctx context.Context, attemptID string, img imaging.EncodedImage, userContext string) (*analysis.Result, error) {
	base, err := s.prompts.Compose(ctx)
	if err != nil {
		return nil, err
	}
	userPrompt := prompt.WithUserContext(base, userContext)

	prov := s.pickProvider()
	if prov == nil {
		return nil, fault.New(fault.Transport, errors.New("没有已启用且支持图像的模型"))
	}

	payload := provider.ChatPayload{
		User:         userPrompt,
		Images:       []provider.ImagePayload{{DataURI: img.DataURI()}},
		ExpectJSON:   prov.ExpectsJSON(),
		EnableSearch: prov.SearchEnabled(),
		Languages:    s.catalog.Languages(),
		MaxTokens:    s.maxTokens,
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.emit(ctx, attemptID, "prompt_sent", map[string]any{
		"provider": prov.ID(),
		"search":   prov.SearchEnabled(),
		"chars":    len(userPrompt),
	})

	reply, err := prov.Call(callCtx, payload)
	if err != nil {
		return nil, classifyCallError(err)
	}

	raw, err := jsonutil.ExtractObject(reply.Text)
	if err != nil {
		return nil, extractionFault(err)
	}
	logger.Debugf("[analysis] 抽取到 JSON 对象:\n%s", jsonutil.Pretty(string(raw)))
	report, err := analysis.ParseReport(raw, reply.Text)
	if err != nil {
		return nil, err
	}
	return &analysis.Result{
		ID:        attemptID,
		Report:    report,
		Citations: analysis.CitationsFromSources(reply.Sources),
		RawText:   reply.Text,
		At:        time.Now().UTC(),
	}, nil
}

// pickProvider 选第一个已启用且支持图像的模型。
func (s *AnalysisService) pickProvider() provider.ModelProvider {
	for _, p := range s.providers {
		if p != nil && p.Enabled() && p.SupportsVision() {
			return p
		}
	}
	return nil
}

// classifyCallError 将模型调用错误映射到尝试级分类。
func classifyCallError(err error) *fault.Fault {
	var callErr *provider.CallError
	if errors.As(err, &callErr) {
		switch {
		case callErr.Status == 401 || callErr.Status == 403:
			return fault.New(fault.Credential, err)
		case callErr.Status >= 400 && callErr.Status < 500:
			return fault.New(fault.RequestRejected, err)
		}
	}
	return fault.New(fault.Transport, err)
}

// extractionFault 抽取错误映射：原文随 Fault 回传用于诊断展示。
func extractionFault(err error) *fault.Fault {
	var noObj *jsonutil.NoObjectError
	if errors.As(err, &noObj) {
		return fault.WithRaw(fault.NoJSON, noObj.Raw, err)
	}
	var syntax *jsonutil.SyntaxError
	if errors.As(err, &syntax) {
		return fault.WithRaw(fault.Parse, syntax.Raw, err)
	}
	return fault.New(fault.Transport, err)
}

func asFault(err error) *fault.Fault {
	var f *fault.Fault
	if errors.As(err, &f) {
		return f
	}
	return fault.New(fault.Transport, fmt.Errorf("未归类错误: %w", err))
}

func (s *AnalysisService) emit(ctx context.Context, attemptID, name string, fields map[string]any) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(ctx, telemetry.Event{Attempt: attemptID, Name: name, Fields: fields})
}
