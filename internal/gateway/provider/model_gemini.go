package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kandle/internal/logger"
)

type GeminiClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

func (c *GeminiClient) Call(ctx context.Context, payload ChatPayload) (ChatResult, error) {
	ctx = ensureCtx(ctx)
	timeout := c.ensureTimeout()
	url := c.generateContentURL()

	bodyBytes := buildGeminiBodyBytes(c.Model, payload)
	logger.LogLLMPayload(c.Model, string(bodyBytes))

	httpc := &http.Client{Timeout: timeout}
	return c.doGenerateContent(ctx, httpc, url, bodyBytes)
}

func (c *GeminiClient) ensureTimeout() time.Duration {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c.Timeout
}

func (c *GeminiClient) generateContentURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	lower := strings.ToLower(base)
	if strings.Contains(lower, ":generatecontent") {
		return base
	}
	if strings.HasSuffix(lower, "/models") {
		return base + "/" + c.Model + ":generateContent"
	}
	if strings.Contains(lower, "/models/") {
		return base + ":generateContent"
	}
	if strings.HasSuffix(lower, "/v1beta") {
		return base + "/models/" + c.Model + ":generateContent"
	}
	return base + "/v1beta/models/" + c.Model + ":generateContent"
}

func buildGeminiBodyBytes(model string, payload ChatPayload) []byte {
	parts := buildGeminiParts(payload)
	body := map[string]any{
		"contents": []any{
			map[string]any{
				"role":  "user",
				"parts": parts,
			},
		},
		"generationConfig": map[string]any{
			"temperature":     0.4,
			"maxOutputTokens": geminiMaxTokens(payload.MaxTokens),
		},
	}
	if strings.TrimSpace(payload.System) != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": payload.System}},
		}
	}
	cfg := body["generationConfig"].(map[string]any)
	switch {
	case payload.EnableSearch:
		// 搜索增强：自由文本 + groundingMetadata，不可与响应 schema 同时声明
		body["tools"] = []any{map[string]any{"google_search": map[string]any{}}}
	case payload.ExpectJSON:
		cfg["responseMimeType"] = "application/json"
		cfg["responseSchema"] = buildGeminiResponseSchema(payload.Languages)
	}
	b, _ := json.Marshal(body)
	return b
}

// buildGeminiResponseSchema 声明结构化输出 schema：多语言字段为按语言代码分键的对象。
func buildGeminiResponseSchema(langs []string) map[string]any {
	if len(langs) == 0 {
		langs = []string{"en", "zh"}
	}
	localized := func() map[string]any {
		props := map[string]any{}
		for _, l := range langs {
			props[l] = map[string]any{"type": "STRING"}
		}
		return map[string]any{"type": "OBJECT", "properties": props}
	}
	number := map[string]any{"type": "NUMBER"}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"patternName": localized(),
			"signal":      map[string]any{"type": "STRING", "enum": []string{"Buy", "Sell", "Neutral"}},
			"probability": number,
			"entryPrice":  number,
			"stopLoss":    number,
			"takeProfit":  number,
			"advice":      localized(),
			"priceLevels": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"label": localized(),
						"price": number,
					},
					"required": []string{"price"},
				},
			},
		},
		"required": []string{"patternName", "signal", "probability", "advice"},
	}
}

func geminiMaxTokens(maxTokens int) int {
	if maxTokens <= 0 {
		return 4096
	}
	return maxTokens
}

func buildGeminiParts(payload ChatPayload) []map[string]any {
	parts := make([]map[string]any, 0, len(payload.Images)*2+1)
	parts = append(parts, map[string]any{"text": payload.User})
	for _, img := range payload.Images {
		if strings.TrimSpace(img.DataURI) == "" {
			continue
		}
		mediaType, data, ok := parseGeminiDataURI(img.DataURI)
		if !ok {
			logger.Warnf("[AI] Gemini: invalid image data uri, skipping")
			continue
		}
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{
				"mimeType": mediaType,
				"data":     data,
			},
		})
		if desc := strings.TrimSpace(img.Description); desc != "" {
			parts = append(parts, map[string]any{"text": desc})
		}
	}
	return parts
}

func parseGeminiDataURI(raw string) (mediaType, data string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "data:") {
		return "", "", false
	}
	comma := strings.Index(raw, ",")
	if comma < 0 {
		return "", "", false
	}
	meta := strings.TrimSpace(raw[len("data:"):comma])
	data = strings.TrimSpace(raw[comma+1:])
	if data == "" {
		return "", "", false
	}
	parts := strings.Split(meta, ";")
	if len(parts) == 0 {
		return "", "", false
	}
	mediaType = strings.TrimSpace(parts[0])
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	hasBase64 := false
	for _, part := range parts[1:] {
		if strings.EqualFold(strings.TrimSpace(part), "base64") {
			hasBase64 = true
			break
		}
	}
	if !hasBase64 {
		return "", "", false
	}
	return mediaType, data, true
}

// doGenerateContent 单次请求：失败直接上抛，不做重试（由用户显式重新提交）。
func (c *GeminiClient) doGenerateContent(ctx context.Context, httpc *http.Client, url string, body []byte) (ChatResult, error) {
	logger.Debugf("[AI] 请求: POST %s headers=%v body=%s", url, redactHeaders(c.headers()), string(body))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, err
	}
	for k, v := range c.headers() {
		req.Header.Set(k, v)
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return ChatResult{}, err
	}
	if resp.StatusCode/100 == 2 {
		return decodeGeminiContent(resp)
	}
	msg := parseGeminiError(resp)
	return ChatResult{}, &CallError{Status: resp.StatusCode, Msg: msg}
}

func decodeGeminiContent(resp *http.Response) (ChatResult, error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var r struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			GroundingMetadata struct {
				GroundingChunks []struct {
					Web struct {
						URI   string `json:"uri"`
						Title string `json:"title"`
					} `json:"web"`
				} `json:"groundingChunks"`
			} `json:"groundingMetadata"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return ChatResult{}, err
	}
	if len(r.Candidates) == 0 {
		return ChatResult{}, fmt.Errorf("empty candidates")
	}
	cand := r.Candidates[0]
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if strings.TrimSpace(part.Text) != "" {
			b.WriteString(part.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return ChatResult{}, fmt.Errorf("empty text content")
	}
	// 引用来源：仅保留 web 形态且 URI 非空的条目
	var sources []GroundingSource
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		uri := strings.TrimSpace(chunk.Web.URI)
		if uri == "" {
			continue
		}
		sources = append(sources, GroundingSource{URI: uri, Title: strings.TrimSpace(chunk.Web.Title)})
	}
	return ChatResult{Text: out, Sources: sources}, nil
}

func parseGeminiError(resp *http.Response) string {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eresp); err == nil && strings.TrimSpace(eresp.Error.Message) != "" {
		return eresp.Error.Message
	}
	return resp.Status
}

func (c *GeminiClient) headers() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" && !headerKeyExistsGemini(c.ExtraHeaders, "x-goog-api-key") {
		out["x-goog-api-key"] = c.APIKey
	}
	for k, v := range c.ExtraHeaders {
		out[k] = v
	}
	return out
}

func headerKeyExistsGemini(headers map[string]string, key string) bool {
	if len(headers) == 0 {
		return false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	for k := range headers {
		if strings.ToLower(strings.TrimSpace(k)) == key {
			return true
		}
	}
	return false
}

type GeminiModelProvider struct {
	id             string
	enabled        bool
	supportsVision bool
	expectJSON     bool
	enableSearch   bool
	client         interface {
		Call(ctx context.Context, payload ChatPayload) (ChatResult, error)
	}
}

func NewGeminiModelProvider(id string, enabled, supportsVision, expectJSON, enableSearch bool, client interface {
	Call(context.Context, ChatPayload) (ChatResult, error)
}) *GeminiModelProvider {
	return &GeminiModelProvider{
		id:             id,
		enabled:        enabled,
		supportsVision: supportsVision,
		expectJSON:     expectJSON,
		enableSearch:   enableSearch,
		client:         client,
	}
}

func (p *GeminiModelProvider) ID() string           { return p.id }
func (p *GeminiModelProvider) Enabled() bool        { return p.enabled }
func (p *GeminiModelProvider) SupportsVision() bool { return p.supportsVision }
func (p *GeminiModelProvider) ExpectsJSON() bool    { return p.expectJSON }
func (p *GeminiModelProvider) SearchEnabled() bool  { return p.enableSearch }
func (p *GeminiModelProvider) Call(ctx context.Context, payload ChatPayload) (ChatResult, error) {
	return p.client.Call(ctx, payload)
}
