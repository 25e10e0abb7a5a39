package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrNoJSONObject AI 回應中找不到 JSON 物件
var ErrNoJSONObject = errors.New("no JSON object found in content")

// ParseJSON 解析 JSON 字符串到結構體，拒絕尾端多餘資料
func ParseJSON(data string, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	for {
		t, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if t != nil {
			return fmt.Errorf("unexpected extra JSON data")
		}
	}
}

var (
	unquotedKeyPattern = regexp.MustCompile(`([{\[,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaRe    = regexp.MustCompile(`,\s*([}\]])`)
)

// QuoteJSONKeys 將未加雙引號的鍵補上雙引號
func QuoteJSONKeys(raw string) string {
	return unquotedKeyPattern.ReplaceAllString(raw, `$1"$2":`)
}

// ExtractJSONObject 去除 markdown fence 等雜訊：取第一個 { 到最後一個 }
func ExtractJSONObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSONObject
	}
	return content[start : end+1], nil
}

// ParseAIJSON 解析模型輸出的 JSON，失敗時嘗試修補常見格式問題後再解析一次
func ParseAIJSON(content string, v interface{}) error {
	obj, err := ExtractJSONObject(content)
	if err != nil {
		return err
	}
	if err := ParseJSON(obj, v); err == nil {
		return nil
	}
	repaired := trailingCommaRe.ReplaceAllString(QuoteJSONKeys(obj), "$1")
	if err := ParseJSON(repaired, v); err != nil {
		return fmt.Errorf("failed to parse AI JSON: %w", err)
	}
	return nil
}
