package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kandle/internal/app"
	kcfg "kandle/internal/config"
	"kandle/internal/logger"
)

// 入口程序：
// 1) 加载 TOML 配置
// 2) 构建应用（模型提供方、提示词管理器、状态容器、HTTP 服务）
// 3) 运行至收到退出信号
func main() {
	// 从环境变量或默认路径读取配置文件路径
	cfgPath := os.Getenv("KANDLE_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.toml"
	}

	cfg, err := kcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.Infof("✓ 配置加载成功（环境=%s，监听=%s，语言=%s/%s）",
		cfg.App.Env, cfg.App.HTTPAddr, cfg.I18n.Primary, cfg.I18n.Secondary)

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("构建应用失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Kandle 启动完成。打开 http://localhost%s 上传K线图进行分析。按 Ctrl+C 退出。\n", cfg.App.HTTPAddr)
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("运行失败: %v", err)
	}
}
