package i18n

import (
	"encoding/json"
	"testing"
)

func TestLocalizedTextUnmarshalPlainString(t *testing.T) {
	var lt LocalizedText
	if err := json.Unmarshal([]byte(`"Hammer"`), &lt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := lt.Resolve("zh", "en"); got != "Hammer" {
		t.Fatalf("普通字符串应对任意语言可见，得到 %q", got)
	}
}

func TestLocalizedTextUnmarshalByLanguage(t *testing.T) {
	var lt LocalizedText
	if err := json.Unmarshal([]byte(`{"en":"Hammer","zh":"锤子线"}`), &lt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := lt.Resolve("zh", "en"); got != "锤子线" {
		t.Fatalf("got %q", got)
	}
	if got := lt.Resolve("en", "en"); got != "Hammer" {
		t.Fatalf("got %q", got)
	}
}

func TestLocalizedTextFallbackToPrimary(t *testing.T) {
	var lt LocalizedText
	if err := json.Unmarshal([]byte(`{"en":"Doji"}`), &lt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// 目标语言缺译时回退主语言
	if got := lt.Resolve("zh", "en"); got != "Doji" {
		t.Fatalf("想要主语言回退，得到 %q", got)
	}
}

func TestLocalizedTextEmpty(t *testing.T) {
	var lt LocalizedText
	if !lt.Empty() {
		t.Fatalf("零值应为空")
	}
	if got := lt.Resolve("en", "en"); got != "" {
		t.Fatalf("got %q", got)
	}
	if Plain(" ").Empty() != true {
		t.Fatalf("空白文本应视为空")
	}
}

func TestCatalogMessageFallback(t *testing.T) {
	c := NewCatalog("en", "zh")
	if got := c.Message("zh", "error.credential"); got == "" || got == "error.credential" {
		t.Fatalf("zh 文案缺失: %q", got)
	}
	// 未知语言回退主语言文案
	if got := c.Message("fr", "error.credential"); got != c.Message("en", "error.credential") {
		t.Fatalf("未知语言应回退主语言，得到 %q", got)
	}
	// 未知键回退键名
	if got := c.Message("en", "no.such.key"); got != "no.such.key" {
		t.Fatalf("got %q", got)
	}
}

func TestCatalogNormalize(t *testing.T) {
	c := NewCatalog("en", "zh")
	if c.Normalize("ZH") != "zh" {
		t.Fatalf("大小写归一失败")
	}
	if c.Normalize("ja") != "en" {
		t.Fatalf("未知语言应归为主语言")
	}
	if c.Normalize("") != "en" {
		t.Fatalf("空语言应归为主语言")
	}
}
