package diff

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 补丁往返：make -> text -> parse -> apply 还原目标文本
func TestProperty_PatchRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	codec := New()

	properties.Property("apply(make(a,b), a) == b", prop.ForAll(
		func(a, b string) bool {
			text := codec.PatchToText(codec.MakePatch(a, b))
			parsed, err := codec.PatchFromText(text)
			if err != nil {
				return false
			}
			got, results := codec.ApplyPatch(parsed, a)
			return got == b && AllApplied(results)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	// 反向补丁：从新版本恢复旧版本
	properties.Property("reverse patch restores previous", prop.ForAll(
		func(prev, suffix string) bool {
			current := prev + "\n" + suffix
			parsed, err := codec.PatchFromText(codec.ReverseText(current, prev))
			if err != nil {
				return false
			}
			got, _ := codec.ApplyPatch(parsed, current)
			return got == prev
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestPatchFromText(t *testing.T) {
	codec := New()

	t.Run("empty text is an empty patch", func(t *testing.T) {
		p, err := codec.PatchFromText("  ")
		require.NoError(t, err)
		assert.Empty(t, p)

		got, results := codec.ApplyPatch(p, "unchanged")
		assert.Equal(t, "unchanged", got)
		assert.Empty(t, results)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := codec.PatchFromText("@@ this is not a patch @@\n+x")
		assert.Error(t, err)
	})

	t.Run("identical input yields empty patch", func(t *testing.T) {
		assert.Equal(t, "", codec.ReverseText("same", "same"))
	})
}

func TestApplyPatch_PartialFailure(t *testing.T) {
	codec := New()
	p := codec.MakePatch("alpha beta gamma", "alpha BETA gamma")

	got, results := codec.ApplyPatch(p, "0000000000000000000000000000")
	assert.False(t, AllApplied(results))
	assert.Equal(t, 1, FailedHunks(results))
	assert.Equal(t, "0000000000000000000000000000", got)
}

func TestEnsureValidUTF8(t *testing.T) {
	assert.Equal(t, "ok", EnsureValidUTF8("ok"))
	assert.Equal(t, "a�b", EnsureValidUTF8("a\xffb"))
}
