package service

import (
	"reflect"
	"sort"
	"strings"

	"github.com/haierkeys/fast-content-service/internal/domain"

	"github.com/bytedance/sonic"
)

const (
	fieldContent       = "content"
	fieldTags          = "tags"
	fieldRelationships = "relationships"
	fieldArguments     = "arguments"

	// internalFieldPrefix marks metadata keys excluded from comparison
	internalFieldPrefix = "_"
)

// changedFields lists the logical fields that differ between two metadata snapshots.
// previous is nil when no earlier version exists. Audit-only actions return nil.
// changedFields 计算两个元数据快照之间变更的字段，审计类操作返回 nil
func changedFields(action domain.HistoryAction, previous, current domain.Metadata, contentChanged bool) []string {
	if action.IsAuditOnly() {
		return nil
	}

	cur := normalizeMetadata(current)
	fields := make([]string, 0, len(cur))

	if action == domain.HistoryActionCreate || previous == nil {
		for key, value := range cur {
			if strings.HasPrefix(key, internalFieldPrefix) || isEmptyValue(value) {
				continue
			}
			fields = append(fields, key)
		}
	} else {
		prev := normalizeMetadata(previous)
		keys := make(map[string]struct{}, len(cur)+len(prev))
		for k := range cur {
			keys[k] = struct{}{}
		}
		for k := range prev {
			keys[k] = struct{}{}
		}
		for key := range keys {
			if strings.HasPrefix(key, internalFieldPrefix) {
				continue
			}
			if !fieldEqual(key, prev[key], cur[key]) {
				fields = append(fields, key)
			}
		}
	}

	if contentChanged && !containsString(fields, fieldContent) {
		fields = append(fields, fieldContent)
	}
	sort.Strings(fields)
	return fields
}

// normalizeMetadata round-trips through JSON so typed slices and maps compare structurally.
func normalizeMetadata(m domain.Metadata) map[string]any {
	out := map[string]any{}
	if len(m) == 0 {
		return out
	}
	raw, err := sonic.ConfigStd.Marshal(m)
	if err != nil {
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &out); err != nil {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func fieldEqual(key string, a, b any) bool {
	if isEmptyValue(a) && isEmptyValue(b) {
		return true
	}
	switch key {
	case fieldTags:
		return stringSetEqual(projectList(a, tagKey), projectList(b, tagKey))
	case fieldRelationships:
		return stringSetEqual(projectList(a, relationshipKey), projectList(b, relationshipKey))
	case fieldArguments:
		return stringSetEqual(projectList(a, canonicalKey), projectList(b, canonicalKey))
	}
	return reflect.DeepEqual(a, b)
}

// tagKey compares tags by name, ignoring ids.
func tagKey(v any) string {
	switch t := v.(type) {
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return name
		}
	case string:
		return t
	}
	return canonicalKey(v)
}

func relationshipKey(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return canonicalKey(v)
	}
	return canonicalKey([]any{m["target_type"], m["target_id"], m["relationship_type"], m["description"]})
}

func canonicalKey(v any) string {
	s, err := sonic.ConfigStd.MarshalToString(v)
	if err != nil {
		return ""
	}
	return s
}

func projectList(v any, key func(any) string) []string {
	list, ok := v.([]any)
	if !ok {
		if isEmptyValue(v) {
			return nil
		}
		return []string{key(v)}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, key(item))
	}
	return out
}

func stringSetEqual(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for s := range setA {
		if _, ok := setB[s]; !ok {
			return false
		}
	}
	return true
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
