package recipe

import (
	"regexp"
	"strconv"
	"strings"
)

// BatchSizeResponse 使用者對總量估算的回覆；Ml 與 Grams 皆為 nil 表示無法解析修正值
type BatchSizeResponse struct {
	Confirmed bool     `json:"confirmed"`
	Ml        *float64 `json:"ml,omitempty"`
	Grams     *float64 `json:"grams,omitempty"`
}

// HasCorrection 是否帶有可用的數值修正
func (r BatchSizeResponse) HasCorrection() bool {
	return r.Ml != nil || r.Grams != nil
}

// BatchSize 將修正值轉為 BatchSize
func (r BatchSizeResponse) BatchSize() (BatchSize, bool) {
	switch {
	case r.Grams != nil:
		return BatchSize{Amount: *r.Grams, Unit: "g"}, true
	case r.Ml != nil:
		return BatchSize{Amount: *r.Ml, Unit: "ml"}, true
	}
	return BatchSize{}, false
}

// affirmatives 視為確認總量的回覆
var affirmatives = []string{
	"yes", "yeah", "yep", "yup", "ya", "y", "correct", "right", "that's right", "thats right",
	"looks good", "looks right", "sounds good", "sounds right", "ok", "okay", "sure",
	"confirm", "confirmed", "exactly", "perfect", "good", "fine", "that works",
}

var (
	volumeCorrection = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(liters?|litres?|milliliters?|millilitres?|ml|cups?|l)\b`)
	massCorrection   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(kilograms?|kilos?|kg|grams?|g|pounds?|lbs?|ounces?|oz)\b`)
	numberPattern    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	punctuation      = regexp.MustCompile(`[^a-z0-9' ]+`)
)

// IsAffirmative 回覆是否為確認語（完全相符或以確認語開頭）
func IsAffirmative(text string) bool {
	norm := strings.Join(strings.Fields(punctuation.ReplaceAllString(strings.ToLower(text), " ")), " ")
	if norm == "" {
		return false
	}
	for _, phrase := range affirmatives {
		if norm == phrase || strings.HasPrefix(norm, phrase+" ") {
			return true
		}
	}
	return false
}

// ParseBatchSizeResponse 解析使用者對總量估算的回覆；數值修正優先於確認語，容量與重量同時出現時取最先出現者
func ParseBatchSizeResponse(text string) BatchSizeResponse {
	vol := volumeCorrection.FindStringSubmatchIndex(text)
	mass := massCorrection.FindStringSubmatchIndex(text)
	if vol != nil && (mass == nil || vol[0] <= mass[0]) {
		if r, ok := volumeResponse(text, vol); ok {
			return r
		}
	}
	if mass != nil {
		if v, err := strconv.ParseFloat(text[mass[2]:mass[3]], 64); err == nil && v > 0 {
			grams := v * massFactor(strings.ToLower(text[mass[4]:mass[5]]))
			return BatchSizeResponse{Grams: &grams}
		}
	}
	if vol != nil {
		if r, ok := volumeResponse(text, vol); ok {
			return r
		}
	}
	if IsAffirmative(text) {
		return BatchSizeResponse{Confirmed: true}
	}
	return BatchSizeResponse{}
}

func volumeResponse(text string, m []int) (BatchSizeResponse, bool) {
	v, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
	if err != nil || v <= 0 {
		return BatchSizeResponse{}, false
	}
	ml := v * volumeFactor(strings.ToLower(text[m[4]:m[5]]))
	return BatchSizeResponse{Ml: &ml}, true
}

func volumeFactor(unit string) float64 {
	switch {
	case strings.HasPrefix(unit, "cup"):
		return volumeUnits["cup"]
	case unit == "ml" || strings.HasPrefix(unit, "milli"):
		return 1
	default:
		return 1000
	}
}

func massFactor(unit string) float64 {
	switch {
	case unit == "kg" || strings.HasPrefix(unit, "kilo"):
		return 1000
	case strings.HasPrefix(unit, "lb") || strings.HasPrefix(unit, "pound"):
		return massUnits["lb"]
	case unit == "oz" || strings.HasPrefix(unit, "ounce"):
		return massUnits["oz"]
	default:
		return 1
	}
}

var servingWords = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"a dozen": 12, "dozen": 12, "a couple": 2, "half": 0.5,
}

// ParseServings 解析份數（整數、小數或英文數字），無法解析或非正數時 ok 為 false
func ParseServings(text string) (float64, bool) {
	if m := numberPattern.FindString(text); m != "" {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil || v <= 0 {
			return 0, false
		}
		return v, true
	}

	lower := strings.ToLower(text)
	best, bestLen := 0.0, 0
	for word, v := range servingWords {
		if len(word) > bestLen && containsWord(lower, word) {
			best, bestLen = v, len(word)
		}
	}
	return best, bestLen > 0
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isLetter(text[idx-1])
		end := idx + len(word)
		after := end == len(text) || !isLetter(text[end])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			break
		}
		idx += next + 1
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
