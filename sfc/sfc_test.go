package sfc

import (
	"errors"
	"strings"
	"testing"
)

const component = `<template>
  <view><template v-if="ok">nested</template></view>
</template>

<script setup lang="ts">
import { title } from './title'
definePage({ style: { navigationBarTitleText: title } })
const tag = '<div>'
</script>

<style scoped>
.a { color: red; }
</style>
`

func Test_Parse_Blocks(t *testing.T) {
	desc, errs := Parse(component)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if desc.Template == nil {
		t.Fatal("expected template block")
	}
	if !strings.Contains(desc.Template.Content, "nested</template></view>") {
		t.Errorf("nested template not kept inside outer block: %q", desc.Template.Content)
	}

	setup := desc.ScriptSetup
	if setup == nil {
		t.Fatal("expected script setup block")
	}
	if setup.Lang() != "ts" {
		t.Errorf("Lang() = %q, want ts", setup.Lang())
	}
	if component[setup.Start:setup.End] != setup.Content {
		t.Error("block offsets do not match content")
	}
	if !strings.Contains(setup.Content, "const tag = '<div>'") {
		t.Errorf("script content was tokenized: %q", setup.Content)
	}
	if desc.Script != nil {
		t.Error("expected no plain script block")
	}
	if len(desc.Styles) != 1 || !desc.Styles[0].Has("scoped") {
		t.Errorf("unexpected styles: %+v", desc.Styles)
	}
}

func Test_Parse_PlainScriptAndSetup(t *testing.T) {
	desc, errs := Parse("<script>export default {}</script>\n<script setup>const a = 1</script>")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if desc.Script == nil || desc.Script.Content != "export default {}" {
		t.Errorf("unexpected script: %+v", desc.Script)
	}
	if desc.ScriptSetup == nil || desc.ScriptSetup.Content != "const a = 1" {
		t.Errorf("unexpected script setup: %+v", desc.ScriptSetup)
	}
}

func Test_Parse_DuplicateScriptSetup(t *testing.T) {
	_, errs := Parse("<script setup>a()</script><script setup>b()</script>")
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func Test_Parse_UnclosedBlock(t *testing.T) {
	desc, errs := Parse("<script setup>definePage({})")
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnclosedBlock) {
		t.Fatalf("expected ErrUnclosedBlock, got %v", errs)
	}
	if desc.ScriptSetup != nil {
		t.Error("expected no script setup for unclosed block")
	}
}

func Test_Parse_CustomBlock(t *testing.T) {
	desc, errs := Parse("<i18n>{\"a\": 1}</i18n>")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(desc.Customs) != 1 || desc.Customs[0].Type != "i18n" {
		t.Errorf("unexpected custom blocks: %+v", desc.Customs)
	}
}

func Test_Parse_RawTextTagsInTemplate(t *testing.T) {
	src := "<template>\n <view>\n  <textarea v-model=\"x\" />\n  <title>{{ t }}</title>\n  <textarea>{{ y }}</textarea>\n </view>\n</template>\n<script setup lang=\"ts\">definePage({needLogin:true})</script>"
	desc, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if desc.Template == nil || !strings.Contains(desc.Template.Content, "</view>") {
		t.Fatalf("template block not recovered: %+v", desc.Template)
	}
	if desc.ScriptSetup == nil {
		t.Fatal("expected script setup block")
	}
	if desc.ScriptSetup.Content != "definePage({needLogin:true})" {
		t.Errorf("script setup content = %q", desc.ScriptSetup.Content)
	}
}
