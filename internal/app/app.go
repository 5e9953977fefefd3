package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	kcfg "kandle/internal/config"
	"kandle/internal/logger"
	httpui "kandle/internal/transport/http/ui"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg     *kcfg.Config
	service *AnalysisService
	httpSrv *httpui.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *kcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetLLMLogPath(cfg.App.LLMLog)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务并预热提示词缓存，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.httpSrv == nil {
		return fmt.Errorf("http server not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	// 预热提示词缓存；失败不阻断启动（首次分析时会再次尝试并以错误面板呈现）
	group.Go(func() error {
		if err := a.service.WarmPrompt(ctx); err != nil {
			logger.Warnf("提示词预热失败: %v", err)
		}
		return nil
	})

	group.Go(func() error {
		err := a.httpSrv.Start(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warnf("HTTP 服务停止: %v", err)
		}
		return err
	})

	return group.Wait()
}
