package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"kandle/internal/analysis/fault"
	"kandle/internal/logger"
)

// 中文说明：
// 提示词管理器：基础指令文档 + 可选知识片段（JSON 规则、CSV 参考表）拼接成完整提示词。
// 首次拼接成功后进程内缓存，后续调用不再读盘；任一片段缺失或为空视为致命（PromptLoad）。

// Manager 负责加载与缓存提示词素材。
type Manager struct {
	dir      string
	baseFile string
	rules    []string
	refs     []string

	mu     sync.RWMutex
	cached string

	group singleflight.Group
}

// NewManager 构造管理器（不读盘）。
func NewManager(dir, baseFile string, ruleFiles, referenceFiles []string) *Manager {
	return &Manager{
		dir:      dir,
		baseFile: baseFile,
		rules:    append([]string(nil), ruleFiles...),
		refs:     append([]string(nil), referenceFiles...),
	}
}

// Compose 返回完整提示词文本；首次成功后缓存。
func (m *Manager) Compose(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.cached != "" {
		out := m.cached
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	// singleflight：并发的首次拼接只读盘一次
	v, err, _ := m.group.Do("compose", func() (any, error) {
		text, err := m.composeOnce()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cached = text
		m.mu.Unlock()
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cached 返回当前缓存（可能为空），仅用于状态展示。
func (m *Manager) Cached() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cached
}

func (m *Manager) composeOnce() (string, error) {
	base, err := m.readFragment(m.baseFile)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(base)
	for _, name := range m.rules {
		frag, err := m.readFragment(name)
		if err != nil {
			return "", err
		}
		b.WriteString("\n\n## 形态知识库（JSON）\n")
		b.WriteString(frag)
	}
	for _, name := range m.refs {
		frag, err := m.readFragment(name)
		if err != nil {
			return "", err
		}
		b.WriteString("\n\n## 参考数据表（CSV）\n")
		b.WriteString(frag)
	}
	out := b.String()
	logger.Infof("✓ 提示词拼接完成，长度=%d 字符（片段=%d）", len(out), 1+len(m.rules)+len(m.refs))
	return out, nil
}

func (m *Manager) readFragment(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fault.New(fault.PromptLoad, fmt.Errorf("片段文件名为空"))
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.dir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fault.New(fault.PromptLoad, fmt.Errorf("读取提示词片段 %s 失败: %w", name, err))
	}
	out := strings.TrimSpace(string(data))
	if out == "" {
		return "", fault.New(fault.PromptLoad, fmt.Errorf("提示词片段 %s 为空", name))
	}
	return out, nil
}

// userContextHeader 用户补充语境的固定标注格式。
const userContextHeader = "【用户提供的补充语境】"

// WithUserContext 将用户语境原样置于基础提示词之前；语境为空时原样返回。
func WithUserContext(base, userContext string) string {
	if strings.TrimSpace(userContext) == "" {
		return base
	}
	return userContextHeader + "\n" + userContext + "\n\n" + base
}
