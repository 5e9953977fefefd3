package app

import (
	"context"
	"fmt"
	"time"

	kcfg "kandle/internal/config"
	"kandle/internal/gateway/provider"
	"kandle/internal/i18n"
	"kandle/internal/logger"
	"kandle/internal/prompt"
	"kandle/internal/state"
	"kandle/internal/telemetry"
	httpui "kandle/internal/transport/http/ui"
)

// AnalysisService 必须满足传输层声明的编排接口。
var _ httpui.AnalysisService = (*AnalysisService)(nil)

// AppBuilder 将配置装配为可运行的 App。
type AppBuilder struct {
	cfg *kcfg.Config
}

func NewAppBuilder(cfg *kcfg.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 按依赖顺序构建全部组件。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	catalog := i18n.NewCatalog(cfg.I18n.Primary, cfg.I18n.Secondary)

	providers := buildModelProviders(cfg.AI)
	if len(providers) == 0 {
		return nil, fmt.Errorf("未启用任何 AI 模型（请检查 ai.models 配置）")
	}

	pm := prompt.NewManager(cfg.Prompt.Dir, cfg.Prompt.BaseFile, cfg.Prompt.RuleFiles, cfg.Prompt.ReferenceFiles)

	store := state.NewStore(catalog.Primary)

	var sink *telemetry.Sink
	if cfg.Telemetry.Enabled {
		sink = telemetry.NewSink(cfg.Telemetry.Endpoint, time.Duration(cfg.Telemetry.TimeoutSeconds)*time.Second)
		logger.Infof("✓ 遥测上报已启用: %s", cfg.Telemetry.Endpoint)
	}

	service := NewAnalysisService(
		providers,
		pm,
		store,
		sink,
		catalog,
		cfg.Upload.MaxBytes,
		cfg.AI.MaxOutputTokens,
		time.Duration(cfg.AI.TimeoutSeconds)*time.Second,
	)

	httpSrv, err := httpui.NewServer(httpui.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Service: service,
		Catalog: catalog,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	return &App{cfg: cfg, service: service, httpSrv: httpSrv}, nil
}

// buildModelProviders 从配置构造模型提供方并打印启用清单。
func buildModelProviders(cfg kcfg.AIConfig) []provider.ModelProvider {
	var modelCfgs []provider.ModelCfg
	for _, m := range cfg.Models {
		modelCfgs = append(modelCfgs, provider.ModelCfg{
			ID:             m.ID,
			Provider:       m.Provider,
			Enabled:        m.Enabled,
			APIURL:         m.APIURL,
			APIKey:         m.APIKey,
			Model:          m.Model,
			Headers:        m.Headers,
			SupportsVision: m.SupportsVision,
			ExpectJSON:     m.ExpectJSON,
			EnableSearch:   m.EnableSearch,
		})
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	providers := provider.BuildProvidersFromConfig(modelCfgs, timeout)
	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		if p != nil && p.Enabled() {
			ids = append(ids, p.ID())
		}
	}
	if len(ids) > 0 {
		logger.Infof("✓ 已启用 %d 个 AI 模型: %v", len(ids), ids)
	} else {
		logger.Warnf("未启用任何 AI 模型（请检查 ai.models 配置）")
	}
	return providers
}

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *kcfg.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}
