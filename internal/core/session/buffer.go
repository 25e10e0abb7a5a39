package session

import (
	"encoding/json"
	"sort"
)

const (
	maxRecentFoods     = 5
	maxUserCorrections = 10
)

// 已知的緩衝欄位，其餘鍵保留在 Extra
var knownBufferKeys = map[string]bool{
	"flowState":             true,
	"recentFoods":           true,
	"lastTopic":             true,
	"userCorrections":       true,
	"activeRecipeContext":   true,
	"pending_clarification": true,
}

// Buffer 跨回合的對話上下文；未知鍵保存在 Extra 並原樣序列化
type Buffer struct {
	FlowState            *RecipeFlow           `json:"flowState,omitempty"`
	RecentFoods          []string              `json:"recentFoods,omitempty"`
	LastTopic            string                `json:"lastTopic,omitempty"`
	UserCorrections      []UserCorrection      `json:"userCorrections,omitempty"`
	ActiveRecipeContext  *ActiveRecipeContext  `json:"activeRecipeContext,omitempty"`
	PendingClarification *ClarificationContext `json:"pending_clarification,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type bufferFields Buffer

// MarshalJSON 合併已知欄位與 Extra
func (b Buffer) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(bufferFields(b))
	if err != nil {
		return nil, err
	}
	if len(b.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(b.Extra)+len(knownBufferKeys))
	for k, v := range b.Extra {
		if !knownBufferKeys[k] {
			merged[k] = v
		}
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON 解出已知欄位，其餘鍵放入 Extra
func (b *Buffer) UnmarshalJSON(data []byte) error {
	var fields bufferFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = Buffer(fields)
	for k, v := range raw {
		if knownBufferKeys[k] {
			continue
		}
		if b.Extra == nil {
			b.Extra = make(map[string]json.RawMessage)
		}
		b.Extra[k] = v
	}
	return nil
}

// Clone 深拷貝
func (b Buffer) Clone() Buffer {
	out := b
	if b.FlowState != nil {
		out.FlowState = b.FlowState.Clone()
	}
	if b.RecentFoods != nil {
		out.RecentFoods = append([]string(nil), b.RecentFoods...)
	}
	if b.UserCorrections != nil {
		out.UserCorrections = append([]UserCorrection(nil), b.UserCorrections...)
	}
	if b.ActiveRecipeContext != nil {
		a := *b.ActiveRecipeContext
		out.ActiveRecipeContext = &a
	}
	if b.PendingClarification != nil {
		c := *b.PendingClarification
		out.PendingClarification = &c
	}
	if b.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(b.Extra))
		for k, v := range b.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// ExtraKeys 依字母排序的擴充鍵
func (b Buffer) ExtraKeys() []string {
	keys := make([]string, 0, len(b.Extra))
	for k := range b.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BufferPatch 部分更新；零值欄位表示不變更
type BufferPatch struct {
	FlowState      *RecipeFlow
	ClearFlowState bool

	// RecentFoods 附加到既有清單後只保留最後五筆
	RecentFoods []string
	LastTopic   *string

	ActiveRecipeContext *ActiveRecipeContext
	ClearActiveRecipe   bool

	// Extra 中值為 nil 的鍵會被刪除
	Extra map[string]json.RawMessage
}

// Apply 合併部分更新
func (b *Buffer) Apply(p BufferPatch) {
	switch {
	case p.ClearFlowState:
		b.FlowState = nil
	case p.FlowState != nil:
		b.FlowState = p.FlowState
	}

	if len(p.RecentFoods) > 0 {
		b.RecentFoods = AppendRecentFoods(b.RecentFoods, p.RecentFoods...)
	}
	if p.LastTopic != nil {
		b.LastTopic = *p.LastTopic
	}

	switch {
	case p.ClearActiveRecipe:
		b.ActiveRecipeContext = nil
	case p.ActiveRecipeContext != nil:
		b.ActiveRecipeContext = p.ActiveRecipeContext
	}

	for k, v := range p.Extra {
		if knownBufferKeys[k] {
			continue
		}
		if v == nil {
			delete(b.Extra, k)
			continue
		}
		if b.Extra == nil {
			b.Extra = make(map[string]json.RawMessage)
		}
		b.Extra[k] = v
	}
}

// AppendRecentFoods 串接後只保留最後五筆，維持插入順序
func AppendRecentFoods(existing []string, foods ...string) []string {
	out := make([]string, 0, len(existing)+len(foods))
	out = append(out, existing...)
	out = append(out, foods...)
	if len(out) > maxRecentFoods {
		out = out[len(out)-maxRecentFoods:]
	}
	return out
}

// AddUserCorrection 附加修正紀錄，超過十筆時移除最舊的
func (b *Buffer) AddUserCorrection(c UserCorrection) {
	b.UserCorrections = append(b.UserCorrections, c)
	if len(b.UserCorrections) > maxUserCorrections {
		b.UserCorrections = append([]UserCorrection(nil), b.UserCorrections[len(b.UserCorrections)-maxUserCorrections:]...)
	}
}
