package model

import (
	"fmt"
)

// ToolView is the UI-facing rendering of the tool payload carried in an
// assistant message's metadata map. The write side stores an open map;
// the read side decodes it per tool name here instead of scattering
// type assertions through business logic.
type ToolView struct {
	Name    string         `json:"name"`
	Args    map[string]any `json:"args,omitempty"`
	Summary string         `json:"summary,omitempty"`
	Err     string         `json:"error,omitempty"`
}

// ToolViewDecoder turns one tool's raw metadata into its view.
type ToolViewDecoder func(args, result map[string]any) ToolView

var toolViewDecoders = map[string]ToolViewDecoder{}

// RegisterToolViewDecoder installs a read-side decoder for a tool name.
// Called from package init blocks; not safe for use after startup.
func RegisterToolViewDecoder(name string, decoder ToolViewDecoder) {
	toolViewDecoders[name] = decoder
}

// DecodeToolView extracts the tool payload from a message metadata map.
// Returns false when the message carries no tool payload.
func DecodeToolView(metadata map[string]any) (ToolView, bool) {
	name, ok := metadata[MetaToolName].(string)
	if !ok || name == "" {
		return ToolView{}, false
	}

	args, _ := metadata[MetaToolArgs].(map[string]any)
	result, _ := metadata[MetaToolResult].(map[string]any)

	var view ToolView
	if decoder, ok := toolViewDecoders[name]; ok {
		view = decoder(args, result)
	} else {
		view = ToolView{Summary: genericToolSummary(result)}
	}
	view.Name = name
	if view.Args == nil {
		view.Args = args
	}
	if errText, ok := metadata[MetaToolError].(string); ok {
		view.Err = errText
	}
	return view, true
}

func genericToolSummary(result map[string]any) string {
	if len(result) == 0 {
		return ""
	}
	if status, ok := result["status"].(string); ok {
		return status
	}
	return fmt.Sprintf("%d field(s)", len(result))
}
