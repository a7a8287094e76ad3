// Package diff wraps diffmatchpatch into a small patch codec.
// Package diff 将 diffmatchpatch 封装为简单的补丁编解码器
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// PatchSet is an ordered list of patch hunks.
// PatchSet 有序的补丁块列表
type PatchSet []diffmatchpatch.Patch

// Codec computes, serializes and applies patches. It holds no per-call state and is safe for concurrent use.
// Codec 计算、序列化和应用补丁，无调用状态，可并发使用
type Codec struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// New creates a codec with the library defaults.
// New 使用默认参数创建编解码器
func New() *Codec {
	return &Codec{dmp: diffmatchpatch.New()}
}

// MakePatch computes the patch that turns a into b.
// MakePatch 计算将 a 转换为 b 的补丁
func (c *Codec) MakePatch(a, b string) PatchSet {
	a = EnsureValidUTF8(a)
	b = EnsureValidUTF8(b)
	diffs := c.dmp.DiffMain(a, b, true)
	return c.dmp.PatchMake(a, diffs)
}

// PatchToText serializes a patch set into its storable text form.
// PatchToText 将补丁序列化为可存储文本
func (c *Codec) PatchToText(p PatchSet) string {
	return c.dmp.PatchToText(p)
}

// PatchFromText parses a serialized patch set.
// PatchFromText 解析序列化的补丁文本
func (c *Codec) PatchFromText(text string) (PatchSet, error) {
	if strings.TrimSpace(text) == "" {
		return PatchSet{}, nil
	}
	patches, err := c.dmp.PatchFromText(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse patch")
	}
	return patches, nil
}

// ApplyPatch applies p to text and reports which hunks applied cleanly.
// ApplyPatch 将补丁应用到文本，并返回每个补丁块是否成功
func (c *Codec) ApplyPatch(p PatchSet, text string) (string, []bool) {
	if len(p) == 0 {
		return text, []bool{}
	}
	return c.dmp.PatchApply(p, text)
}

// ReverseText computes the serialized reverse patch (current -> previous) in one step.
// ReverseText 一步计算序列化的反向补丁 (current -> previous)
func (c *Codec) ReverseText(current, previous string) string {
	return c.PatchToText(c.MakePatch(current, previous))
}

// AllApplied reports whether every hunk applied.
// AllApplied 判断是否所有补丁块都已应用
func AllApplied(results []bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// FailedHunks counts hunks that did not apply.
// FailedHunks 统计未成功应用的补丁块数量
func FailedHunks(results []bool) int {
	n := 0
	for _, ok := range results {
		if !ok {
			n++
		}
	}
	return n
}

// EnsureValidUTF8 replaces invalid byte sequences so the patch engine never sees them.
// EnsureValidUTF8 替换非法 UTF-8 字节序列
func EnsureValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
