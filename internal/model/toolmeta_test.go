package model

import (
	"testing"
)

func TestDecodeToolViewNoPayload(t *testing.T) {
	t.Parallel()

	if _, ok := DecodeToolView(nil); ok {
		t.Fatal("nil metadata decoded as tool payload")
	}
	if _, ok := DecodeToolView(map[string]any{MetaDegraded: true}); ok {
		t.Fatal("metadata without tool name decoded as tool payload")
	}
}

func TestDecodeToolViewGeneric(t *testing.T) {
	t.Parallel()

	view, ok := DecodeToolView(map[string]any{
		MetaToolName:   "unregistered_tool",
		MetaToolArgs:   map[string]any{"id": "x"},
		MetaToolResult: map[string]any{"status": "ok"},
	})
	if !ok {
		t.Fatal("payload not decoded")
	}
	if view.Name != "unregistered_tool" {
		t.Fatalf("name %q", view.Name)
	}
	if view.Summary != "ok" {
		t.Fatalf("summary %q", view.Summary)
	}
	if view.Args["id"] != "x" {
		t.Fatalf("args %v", view.Args)
	}
}

func TestDecodeToolViewRegisteredDecoder(t *testing.T) {
	RegisterToolViewDecoder("test_decoder_tool", func(args, result map[string]any) ToolView {
		return ToolView{Summary: "decoded: " + args["id"].(string)}
	})

	view, ok := DecodeToolView(map[string]any{
		MetaToolName:  "test_decoder_tool",
		MetaToolArgs:  map[string]any{"id": "abc"},
		MetaToolError: "boom",
	})
	if !ok {
		t.Fatal("payload not decoded")
	}
	if view.Summary != "decoded: abc" {
		t.Fatalf("summary %q", view.Summary)
	}
	if view.Err != "boom" {
		t.Fatalf("error %q", view.Err)
	}
}
