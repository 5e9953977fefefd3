package ui

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"kandle/internal/analysis"
	"kandle/internal/i18n"
	"kandle/internal/imaging"
	"kandle/internal/logger"
	"kandle/internal/state"
	"kandle/internal/transport/web"
)

// 中文说明：
// 浏览器界面与 JSON API：上传/粘贴图片、发起分析、语言切换、状态查询。
// 页面与静态资源通过 go:embed 打进二进制，单文件即可部署。

// AnalysisService 本层依赖的编排能力（由 internal/app 提供实现）。
type AnalysisService interface {
	Snapshot() state.Snapshot
	SelectImage(ctx context.Context, r io.Reader) (imaging.EncodedImage, error)
	Analyze(ctx context.Context, userContext string) (*analysis.Result, error)
	SetLanguage(lang string) state.Snapshot
}

// ServerConfig Server 构造参数。
type ServerConfig struct {
	Addr    string
	Service AnalysisService
	Catalog *i18n.Catalog
}

// Server gin HTTP 服务。
type Server struct {
	addr    string
	engine  *gin.Engine
	service AnalysisService
	catalog *i18n.Catalog
}

// NewServer 构造并注册全部路由。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("nil analysis service")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("nil i18n catalog")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8090"
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{addr: addr, engine: engine, service: cfg.Service, catalog: cfg.Catalog}
	if err := s.mountAssets(); err != nil {
		return nil, err
	}
	s.registerRoutes()
	return s, nil
}

// Addr 监听地址。
func (s *Server) Addr() string { return s.addr }

// Handler 返回底层 HTTP 处理器（测试与外部装配用）。
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) mountAssets() error {
	tpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("解析内嵌模板失败: %w", err)
	}
	s.engine.SetHTMLTemplate(tpl)
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("内嵌静态资源失败: %w", err)
	}
	s.engine.StaticFS("/static", http.FS(static))
	return nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.engine.Group("/api")
	{
		api.POST("/image", s.handleImage)
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/language", s.handleLanguage)
		api.GET("/state", s.handleState)
		api.GET("/messages/:lang", s.handleMessages)
	}
}

// Start 启动监听，ctx 取消后优雅退出。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Infof("✓ HTTP 服务监听 %s", s.addr)
	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
