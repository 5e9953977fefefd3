package state

import (
	"sync"

	"kandle/internal/analysis"
	"kandle/internal/analysis/fault"
	"kandle/internal/imaging"
)

// 中文说明：
// 进程内应用状态：选中图片、界面语言、最近结果/错误与尝试阶段。
// 单写者（互斥锁串行化），Update 按字段做 last-write-wins 合并，Get 返回只读快照。

// Phase 一次尝试的阶段机：Idle → ImageSelected → Submitting → Idle。
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseImageSelected Phase = "image_selected"
	PhaseSubmitting    Phase = "submitting"
)

// Snapshot 状态只读视图。
type Snapshot struct {
	SelectedImage *imaging.EncodedImage
	Language      string
	LastResult    *analysis.Result
	LastFault     *fault.Fault
	Phase         Phase
}

// Patch 合并更新：nil 字段表示不修改；Clear* 显式清空对应指针字段。
type Patch struct {
	SelectedImage *imaging.EncodedImage
	Language      *string
	LastResult    *analysis.Result
	LastFault     *fault.Fault
	Phase         *Phase

	ClearResult bool
	ClearFault  bool
	ClearImage  bool
}

// Store 单实例应用状态容器。
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore 初始状态：Idle + 主语言。
func NewStore(language string) *Store {
	return &Store{snap: Snapshot{Language: language, Phase: PhaseIdle}}
}

// Get 返回当前状态的拷贝。
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Update 合并给定字段，last-write-wins。
func (s *Store) Update(p Patch) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ClearImage {
		s.snap.SelectedImage = nil
	} else if p.SelectedImage != nil {
		img := *p.SelectedImage
		s.snap.SelectedImage = &img
	}
	if p.Language != nil {
		s.snap.Language = *p.Language
	}
	if p.ClearResult {
		s.snap.LastResult = nil
	} else if p.LastResult != nil {
		s.snap.LastResult = p.LastResult
	}
	if p.ClearFault {
		s.snap.LastFault = nil
	} else if p.LastFault != nil {
		s.snap.LastFault = p.LastFault
	}
	if p.Phase != nil {
		s.snap.Phase = *p.Phase
	}
	return s.snap
}

func phase(p Phase) *Phase { return &p }
func str(s string) *string { return &s }

// SelectImage 记录新选中的图片：清空旧结果与错误，阶段进入 ImageSelected。
func (s *Store) SelectImage(img imaging.EncodedImage) Snapshot {
	return s.Update(Patch{
		SelectedImage: &img,
		ClearResult:   true,
		ClearFault:    true,
		Phase:         phase(PhaseImageSelected),
	})
}

// BeginAttempt 进入 Submitting 并清空上一次的结果/错误。
func (s *Store) BeginAttempt() Snapshot {
	return s.Update(Patch{
		ClearResult: true,
		ClearFault:  true,
		Phase:       phase(PhaseSubmitting),
	})
}

// FinishSuccess 写入结果并回到 Idle。
func (s *Store) FinishSuccess(res *analysis.Result) Snapshot {
	return s.Update(Patch{
		LastResult: res,
		ClearFault: true,
		Phase:      phase(PhaseIdle),
	})
}

// FinishFailure 记录错误并回到 Idle（控制重新可用）。
func (s *Store) FinishFailure(f *fault.Fault) Snapshot {
	return s.Update(Patch{
		LastFault:   f,
		ClearResult: true,
		Phase:       phase(PhaseIdle),
	})
}

// SetLanguage 切换界面语言；不触发新的模型调用。
func (s *Store) SetLanguage(lang string) Snapshot {
	return s.Update(Patch{Language: str(lang)})
}
