package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"kandle/internal/analysis/fault"
)

// 最小 PNG 头，足够 MIME 嗅探
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestEncodePNG(t *testing.T) {
	img, err := Encode(bytes.NewReader(pngHeader), 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if img.MimeType != "image/png" {
		t.Fatalf("mime=%s", img.MimeType)
	}
	decoded, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		t.Fatalf("base64 解码失败: %v", err)
	}
	if !bytes.Equal(decoded, pngHeader) {
		t.Fatalf("内容不一致")
	}
	if !strings.HasPrefix(img.DataURI(), "data:image/png;base64,") {
		t.Fatalf("data uri=%s", img.DataURI())
	}
}

func TestEncodeEmpty(t *testing.T) {
	_, err := Encode(bytes.NewReader(nil), 0)
	assertDecodeFault(t, err)
	_, err = Encode(nil, 0)
	assertDecodeFault(t, err)
}

func TestEncodeNotAnImage(t *testing.T) {
	_, err := Encode(strings.NewReader("plain text, not an image"), 0)
	assertDecodeFault(t, err)
}

func TestEncodeOversize(t *testing.T) {
	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 100)...)
	if _, err := Encode(bytes.NewReader(payload), int64(len(payload))); err != nil {
		t.Fatalf("恰好达到上限应通过: %v", err)
	}
	_, err := Encode(bytes.NewReader(payload), int64(len(payload))-1)
	assertDecodeFault(t, err)
}

func assertDecodeFault(t *testing.T, err error) {
	t.Helper()
	var f *fault.Fault
	if !errors.As(err, &f) || f.Kind != fault.Decode {
		t.Fatalf("想要 Decode fault，得到 %v", err)
	}
}
