package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"kandle/internal/analysis/fault"
)

// 中文说明：
// 将用户上传的图片读入并编码为 base64 + MIME 类型，供模型的 inlineData 使用。
// 空文件、读取失败、超限或非图片一律归类为 Decode 错误。

// EncodedImage 编码后的图片载荷；构造后不可变。
type EncodedImage struct {
	Data     string // base64（不含 data: 前缀）
	MimeType string
}

// DataURI 拼出 data URL 形式（模型网关按此格式接收图片）。
func (img EncodedImage) DataURI() string {
	return "data:" + img.MimeType + ";base64," + img.Data
}

// Empty 是否为零值。
func (img EncodedImage) Empty() bool {
	return img.Data == "" || img.MimeType == ""
}

// Encode 读取并编码一张图片；maxBytes<=0 表示不限制。
func Encode(r io.Reader, maxBytes int64) (EncodedImage, error) {
	if r == nil {
		return EncodedImage{}, fault.New(fault.Decode, errors.New("图片输入为空"))
	}
	var limited io.Reader = r
	if maxBytes > 0 {
		// 多读一个字节以区分“恰好达到上限”与“超限”
		limited = io.LimitReader(r, maxBytes+1)
	}
	raw, err := io.ReadAll(limited)
	if err != nil {
		return EncodedImage{}, fault.New(fault.Decode, fmt.Errorf("读取图片失败: %w", err))
	}
	if len(raw) == 0 {
		return EncodedImage{}, fault.New(fault.Decode, errors.New("图片内容为空"))
	}
	if maxBytes > 0 && int64(len(raw)) > maxBytes {
		return EncodedImage{}, fault.New(fault.Decode, fmt.Errorf("图片超过上限 %d 字节", maxBytes))
	}
	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return EncodedImage{}, fault.New(fault.Decode, fmt.Errorf("不支持的内容类型: %s", mt.String()))
	}
	return EncodedImage{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: mt.String(),
	}, nil
}
