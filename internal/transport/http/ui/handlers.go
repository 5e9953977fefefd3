package ui

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kandle/internal/analysis/fault"
	"kandle/internal/logger"
)

type analyzeRequest struct {
	UserContext string `json:"user_context"`
}

type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.service.Snapshot()
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":    s.catalog.Message(snap.Language, "app.title"),
		"Language": snap.Language,
	})
}

// handleImage 接收上传或粘贴的图片；成功后旧结果/错误被清空。
func (s *Server) handleImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		s.respondFault(c, fault.New(fault.Decode, err))
		return
	}
	f, err := file.Open()
	if err != nil {
		s.respondFault(c, fault.New(fault.Decode, err))
		return
	}
	defer f.Close()
	if _, err := s.service.SelectImage(c.Request.Context(), f); err != nil {
		s.respondFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.renderState(s.service.Snapshot(), "")})
}

// handleAnalyze 对当前选中图片发起一次尝试；任何失败以本地化文案返回。
func (s *Server) handleAnalyze(c *gin.Context) {
	// 空请求体等价于无补充语境
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "bad_request", "message": err.Error()}})
		return
	}
	if _, err := s.service.Analyze(c.Request.Context(), strings.TrimSpace(req.UserContext)); err != nil {
		s.respondFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.renderState(s.service.Snapshot(), "")})
}

// handleLanguage 切换语言：仅回写状态，结果用新语言重新渲染，不触发模型调用。
func (s *Server) handleLanguage(c *gin.Context) {
	var req languageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "bad_request", "message": err.Error()}})
		return
	}
	snap := s.service.SetLanguage(req.Language)
	c.JSON(http.StatusOK, gin.H{"state": s.renderState(snap, "")})
}

func (s *Server) handleState(c *gin.Context) {
	lang := c.Query("lang")
	c.JSON(http.StatusOK, gin.H{"state": s.renderState(s.service.Snapshot(), lang)})
}

func (s *Server) handleMessages(c *gin.Context) {
	lang := s.catalog.Normalize(c.Param("lang"))
	c.JSON(http.StatusOK, gin.H{"language": lang, "messages": s.catalog.All(lang)})
}

// respondFault 将尝试级错误映射为 HTTP 状态与本地化文案。
func (s *Server) respondFault(c *gin.Context, err error) {
	kind := fault.KindOf(err)
	snap := s.service.Snapshot()
	logger.Debugf("[http] 请求失败 kind=%s: %v", kind, err)
	c.JSON(statusOf(kind), gin.H{
		"error": s.renderFaultAs(kind, err, snap.Language),
		"state": s.renderState(snap, ""),
	})
}

func statusOf(kind fault.Kind) int {
	switch kind {
	case fault.Decode:
		return http.StatusBadRequest
	case fault.Busy:
		return http.StatusConflict
	case fault.PromptLoad:
		return http.StatusInternalServerError
	default:
		// 凭据无效、请求被拒、抽取/解析失败、网络错误：上游问题
		return http.StatusBadGateway
	}
}
