package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testDataURI = "data:image/png;base64,aGVsbG8="

func geminiServer(t *testing.T, status int, reply string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if capture != nil {
			var m map[string]any
			if err := json.Unmarshal(body, &m); err != nil {
				t.Errorf("请求体不是 JSON: %v", err)
			}
			*capture = m
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
}

func TestGeminiCallBuildsInlineDataAndSchema(t *testing.T) {
	var got map[string]any
	reply := `{"candidates":[{"content":{"parts":[{"text":"{\"ok\":true}"}]}}]}`
	srv := geminiServer(t, 200, reply, &got)
	defer srv.Close()

	c := &GeminiClient{BaseURL: srv.URL, APIKey: "k", Model: "gemini-test"}
	res, err := c.Call(context.Background(), ChatPayload{
		User:       "analyze this",
		Images:     []ImagePayload{{DataURI: testDataURI}},
		ExpectJSON: true,
		Languages:  []string{"en", "zh"},
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Text != `{"ok":true}` {
		t.Fatalf("text=%q", res.Text)
	}

	raw, _ := json.Marshal(got)
	body := string(raw)
	if !strings.Contains(body, `"mimeType":"image/png"`) || !strings.Contains(body, `"data":"aGVsbG8="`) {
		t.Fatalf("inlineData 缺失: %s", body)
	}
	if !strings.Contains(body, `"responseMimeType":"application/json"`) {
		t.Fatalf("未声明结构化输出: %s", body)
	}
	if !strings.Contains(body, `"responseSchema"`) || !strings.Contains(body, `"patternName"`) {
		t.Fatalf("未声明响应 schema: %s", body)
	}
	if strings.Contains(body, "google_search") {
		t.Fatalf("未启用搜索时不应声明工具")
	}
}

func TestGeminiCallSearchToolReplacesSchema(t *testing.T) {
	var got map[string]any
	reply := `{"candidates":[{
		"content":{"parts":[{"text":"prose {\"a\":1} prose"}]},
		"groundingMetadata":{"groundingChunks":[
			{"web":{"uri":"https://src.example","title":"Src"}},
			{"web":{"uri":"","title":"dropped"}}
		]}
	}]}`
	srv := geminiServer(t, 200, reply, &got)
	defer srv.Close()

	c := &GeminiClient{BaseURL: srv.URL, APIKey: "k", Model: "gemini-test"}
	res, err := c.Call(context.Background(), ChatPayload{
		User:         "analyze",
		ExpectJSON:   true,
		EnableSearch: true,
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	raw, _ := json.Marshal(got)
	body := string(raw)
	if !strings.Contains(body, "google_search") {
		t.Fatalf("应声明搜索工具: %s", body)
	}
	if strings.Contains(body, "responseSchema") {
		t.Fatalf("搜索增强与响应 schema 互斥: %s", body)
	}
	if len(res.Sources) != 1 || res.Sources[0].URI != "https://src.example" {
		t.Fatalf("sources=%v", res.Sources)
	}
}

func TestGeminiCallErrorCarriesStatus(t *testing.T) {
	srv := geminiServer(t, 401, `{"error":{"message":"API key not valid"}}`, nil)
	defer srv.Close()

	c := &GeminiClient{BaseURL: srv.URL, APIKey: "bad", Model: "gemini-test"}
	_, err := c.Call(context.Background(), ChatPayload{User: "x"})
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("想要 CallError，得到 %v", err)
	}
	if callErr.Status != 401 || !strings.Contains(callErr.Msg, "API key not valid") {
		t.Fatalf("callErr=%+v", callErr)
	}
}

func TestGeminiGenerateContentURL(t *testing.T) {
	cases := map[string]string{
		"": "https://generativelanguage.googleapis.com/v1beta/models/m:generateContent",
		"https://host/v1beta":          "https://host/v1beta/models/m:generateContent",
		"https://host/v1beta/models":   "https://host/v1beta/models/m:generateContent",
		"https://host/v1beta/models/x": "https://host/v1beta/models/x:generateContent",
	}
	for base, want := range cases {
		c := &GeminiClient{BaseURL: base, Model: "m"}
		if got := c.generateContentURL(); got != want {
			t.Fatalf("base=%q: got %q want %q", base, got, want)
		}
	}
}

func TestParseGeminiDataURI(t *testing.T) {
	mt, data, ok := parseGeminiDataURI(testDataURI)
	if !ok || mt != "image/png" || data != "aGVsbG8=" {
		t.Fatalf("mt=%q data=%q ok=%v", mt, data, ok)
	}
	if _, _, ok := parseGeminiDataURI("data:image/png,notbase64"); ok {
		t.Fatalf("非 base64 应拒绝")
	}
	if _, _, ok := parseGeminiDataURI("https://not-a-data-uri"); ok {
		t.Fatalf("非 data: 前缀应拒绝")
	}
}
