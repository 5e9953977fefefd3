package ui_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kandle/internal/app"
	"kandle/internal/gateway/provider"
	"kandle/internal/i18n"
	"kandle/internal/prompt"
	"kandle/internal/state"
	"kandle/internal/transport/http/ui"
)

type stubProvider struct {
	text string
	err  error
}

func (p *stubProvider) ID() string           { return "stub" }
func (p *stubProvider) Enabled() bool        { return true }
func (p *stubProvider) SupportsVision() bool { return true }
func (p *stubProvider) ExpectsJSON() bool    { return true }
func (p *stubProvider) SearchEnabled() bool  { return false }
func (p *stubProvider) Call(ctx context.Context, payload provider.ChatPayload) (provider.ChatResult, error) {
	if p.err != nil {
		return provider.ChatResult{}, p.err
	}
	return provider.ChatResult{Text: p.text}, nil
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestServer(t *testing.T, prov provider.ModelProvider) *ui.Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.txt"), []byte("analyze the chart"), 0o644); err != nil {
		t.Fatal(err)
	}
	catalog := i18n.NewCatalog("en", "zh")
	svc := app.NewAnalysisService(
		[]provider.ModelProvider{prov},
		prompt.NewManager(dir, "base.txt", nil, nil),
		state.NewStore(catalog.Primary),
		nil, catalog,
		1<<20, 1024, 5*time.Second,
	)
	srv, err := ui.NewServer(ui.ServerConfig{Addr: ":0", Service: svc, Catalog: catalog})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func do(t *testing.T, srv *ui.Server, method, path, contentType string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	var out map[string]any
	if strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("响应不是 JSON: %v body=%s", err, w.Body.String())
		}
	}
	return w, out
}

func uploadPNG(t *testing.T, srv *ui.Server) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "chart.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(pngBytes); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return do(t, srv, http.MethodPost, "/api/image", mw.FormDataContentType(), buf.Bytes())
}

func stateOf(t *testing.T, out map[string]any) map[string]any {
	t.Helper()
	st, ok := out["state"].(map[string]any)
	if !ok {
		t.Fatalf("缺少 state: %v", out)
	}
	return st
}

const stubReply = `Here is the verdict:
{"patternName":{"en":"Hammer","zh":"锤子线"},"signal":"Buy","probability":0.7,
 "advice":{"en":"Wait for confirmation."},
 "priceLevels":[{"label":{"en":"Support"},"price":100}]}`

func TestAnalyzeFlowAndLanguageSwitch(t *testing.T) {
	srv := newTestServer(t, &stubProvider{text: stubReply})

	w, out := uploadPNG(t, srv)
	if w.Code != http.StatusOK {
		t.Fatalf("上传: code=%d body=%s", w.Code, w.Body.String())
	}
	st := stateOf(t, out)
	if st["has_image"] != true || st["phase"] != "image_selected" {
		t.Fatalf("state=%v", st)
	}

	w, out = do(t, srv, http.MethodPost, "/api/analyze", "application/json", []byte(`{"user_context":"BTC 4h"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("分析: code=%d body=%s", w.Code, w.Body.String())
	}
	st = stateOf(t, out)
	res, ok := st["result"].(map[string]any)
	if !ok {
		t.Fatalf("缺少 result: %v", st)
	}
	if res["pattern"] != "Hammer" || res["signal"] != "Buy" {
		t.Fatalf("result=%v", res)
	}
	if res["probability"] != 70.0 {
		t.Fatalf("概率未归一为百分比: %v", res["probability"])
	}

	// 语言切换：缓存结果重渲染，仅中文字段切换，缺失字段回退主语言
	w, out = do(t, srv, http.MethodPost, "/api/language", "application/json", []byte(`{"language":"zh"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("切换: code=%d", w.Code)
	}
	st = stateOf(t, out)
	if st["language"] != "zh" {
		t.Fatalf("state=%v", st)
	}
	res = st["result"].(map[string]any)
	if res["pattern"] != "锤子线" {
		t.Fatalf("中文形态名: %v", res["pattern"])
	}
	if res["advice"] != "Wait for confirmation." {
		t.Fatalf("缺失中文时应回退主语言: %v", res["advice"])
	}
}

func TestAnalyzeNoJSONReturns502WithRawEcho(t *testing.T) {
	raw := "I am unable to read this chart."
	srv := newTestServer(t, &stubProvider{text: raw})
	uploadPNG(t, srv)

	w, out := do(t, srv, http.MethodPost, "/api/analyze", "application/json", []byte(`{}`))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	errObj, ok := out["error"].(map[string]any)
	if !ok {
		t.Fatalf("缺少 error: %v", out)
	}
	if errObj["kind"] != "no_json" || errObj["raw"] != raw {
		t.Fatalf("error=%v", errObj)
	}
	if msg, _ := errObj["message"].(string); strings.TrimSpace(msg) == "" {
		t.Fatal("缺少本地化文案")
	}
}

func TestAnalyzeEmptyBodyIsAccepted(t *testing.T) {
	// 不带请求体的 POST /api/analyze 等价于无补充语境
	srv := newTestServer(t, &stubProvider{text: stubReply})
	uploadPNG(t, srv)

	w, out := do(t, srv, http.MethodPost, "/api/analyze", "application/json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	if _, ok := stateOf(t, out)["result"]; !ok {
		t.Fatalf("缺少 result: %v", out)
	}
}

func TestCredentialFaultReturns502Localized(t *testing.T) {
	srv := newTestServer(t, &stubProvider{err: &provider.CallError{Status: 401, Msg: "API key not valid"}})
	uploadPNG(t, srv)

	w, out := do(t, srv, http.MethodPost, "/api/analyze", "application/json", []byte(`{}`))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("code=%d", w.Code)
	}
	errObj := out["error"].(map[string]any)
	if errObj["kind"] != "credential" {
		t.Fatalf("error=%v", errObj)
	}
	st := stateOf(t, out)
	if st["phase"] != "idle" {
		t.Fatalf("失败后控件应恢复可用: %v", st)
	}
	if _, hasResult := st["result"]; hasResult {
		t.Fatalf("失败不应保留结果: %v", st)
	}
}

func TestAnalyzeWithoutImageIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubProvider{text: stubReply})
	w, out := do(t, srv, http.MethodPost, "/api/analyze", "application/json", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", w.Code)
	}
	errObj := out["error"].(map[string]any)
	if errObj["kind"] != "decode" {
		t.Fatalf("error=%v", errObj)
	}
}

func TestRejectNonImageUpload(t *testing.T) {
	srv := newTestServer(t, &stubProvider{text: stubReply})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "notes.txt")
	_, _ = fw.Write([]byte("just plain text, not an image"))
	_ = mw.Close()

	w, out := do(t, srv, http.MethodPost, "/api/image", mw.FormDataContentType(), buf.Bytes())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	if errObj := out["error"].(map[string]any); errObj["kind"] != "decode" {
		t.Fatalf("error=%v", errObj)
	}
}

func TestMessagesEndpointNormalizesLanguage(t *testing.T) {
	srv := newTestServer(t, &stubProvider{text: stubReply})
	w, out := do(t, srv, http.MethodGet, "/api/messages/fr", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	if out["language"] != "en" {
		t.Fatalf("未知语言应回退主语言: %v", out["language"])
	}
	msgs, ok := out["messages"].(map[string]any)
	if !ok {
		t.Fatalf("messages=%v", out["messages"])
	}
	if title, _ := msgs["app.title"].(string); strings.TrimSpace(title) == "" {
		t.Fatalf("缺少 app.title 文案: %v", msgs)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubProvider{text: stubReply})
	w, out := do(t, srv, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
}
