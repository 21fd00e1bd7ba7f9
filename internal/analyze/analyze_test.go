package analyze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sfcpreview/internal/sfc"
)

func analyzeSource(t *testing.T, source string) *Info {
	t.Helper()
	desc, err := sfc.Parse("Test.vue", source)
	require.NoError(t, err)
	info, err := NewScriptAnalyzer().Analyze(context.Background(), desc)
	require.NoError(t, err)
	return info
}

func TestTypeLiteralProps(t *testing.T) {
	info := analyzeSource(t, `<script setup lang="ts">
const props = defineProps<{
  label: string
  count?: number
  size: 'sm' | 'md' | 'lg'
  onClick?: () => void
  tags: string[]
}>()
</script>
<template><button><slot /></button></template>`)

	assert.True(t, info.HasSlot)
	assert.Equal(t, []Prop{
		{Name: "label", Type: TypeString, Required: true},
		{Name: "count", Type: TypeNumber},
		{Name: "size", Type: TypeEnum, Required: true, Values: []string{"sm", "md", "lg"}},
		{Name: "onClick", Type: TypeFunction},
		{Name: "tags", Type: TypeArray, Required: true},
	}, info.Props)
}

func TestRuntimeProps(t *testing.T) {
	info := analyzeSource(t, `<script setup>
defineProps({
  title: { type: String, required: true },
  items: { type: Array as PropType<string[]>, default: () => [] },
  dense: Boolean,
  'aria-label': [String],
})
</script>`)

	assert.False(t, info.HasSlot)
	assert.Equal(t, []Prop{
		{Name: "title", Type: TypeString, Required: true},
		{Name: "items", Type: TypeArray, Default: "() => []"},
		{Name: "dense", Type: TypeBoolean},
		{Name: "aria-label", Type: TypeString},
	}, info.Props)
}

func TestArrayProps(t *testing.T) {
	info := analyzeSource(t, `<script setup>defineProps(['a', "b"])</script>`)

	assert.Equal(t, []Prop{{Name: "a", Type: TypeAny}, {Name: "b", Type: TypeAny}}, info.Props)
}

func TestOptionsAPIProps(t *testing.T) {
	info := analyzeSource(t, `<script>
export default {
  name: 'Card',
  props: {
    heading: { type: String, required: true },
    elevation: Number,
  },
  data() { return { open: false } },
}
</script>`)

	assert.Equal(t, []Prop{
		{Name: "heading", Type: TypeString, Required: true},
		{Name: "elevation", Type: TypeNumber},
	}, info.Props)
}

func TestNoProps(t *testing.T) {
	info := analyzeSource(t, `<template><div /></template>`)

	assert.NotNil(t, info.Props)
	assert.Empty(t, info.Props)
}

func TestUnreadableDeclaration(t *testing.T) {
	desc, err := sfc.Parse("Test.vue", `<script setup>defineProps(propsFromElsewhere)</script>`)
	require.NoError(t, err)

	_, err = NewScriptAnalyzer().Analyze(context.Background(), desc)
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScriptAnalyzer().Analyze(ctx, &sfc.Descriptor{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefineComponentProps(t *testing.T) {
	info := analyzeSource(t, `<script lang="ts">
import { defineComponent } from 'vue'

export default defineComponent({
  // shown in the header
  props: {
    title: { type: String, required: false },
    count: [Number],
  },
})
</script>`)

	assert.Equal(t, []Prop{
		{Name: "title", Type: TypeString},
		{Name: "count", Type: TypeNumber},
	}, info.Props)
}

func TestScriptSetupWinsOverOptions(t *testing.T) {
	info := analyzeSource(t, `<script>
export default { props: ['ignored'] }
</script>
<script setup lang="ts">
defineProps<{ variant: 'solid' | 'ghost'; meta?: Record<string, string> }>()
</script>`)

	assert.Equal(t, []Prop{
		{Name: "variant", Type: TypeEnum, Required: true, Values: []string{"solid", "ghost"}},
		{Name: "meta", Type: TypeObject},
	}, info.Props)
}
