// Package mcp converts tool definitions between the Model Context Protocol
// schema, the session's model.ToolDefinition and each vendor SDK's tool
// format.
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"playground/model"
)

// FromMCPTool converts an MCP tool to a function tool definition.
func FromMCPTool(tool mcptypes.Tool) model.ToolDefinition {
	return model.ToolDefinition{
		Type: model.ToolTypeFunction,
		Function: model.FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  inputSchemaToParameters(tool),
		},
	}
}

// FromMCPTools converts a list of MCP tools.
func FromMCPTools(tools []mcptypes.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	result := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		result[i] = FromMCPTool(t)
	}
	return result
}

// inputSchemaToParameters turns an MCP input schema into a JSON-schema map.
// A raw schema takes precedence over the structured one.
func inputSchemaToParameters(tool mcptypes.Tool) map[string]any {
	if len(tool.RawInputSchema) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(tool.RawInputSchema, &raw); err == nil {
			return raw
		}
	}

	schema := tool.InputSchema
	params := map[string]any{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if schema.Type == "" {
		params["type"] = "object"
	}
	if schema.Properties == nil {
		params["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	if schema.Defs != nil {
		params["$defs"] = schema.Defs
	}
	return params
}

// LoadToolsFile reads tool definitions from a JSON file. The file may hold an
// MCP tools/list result ({"tools": [...]}), a bare list of MCP tools, or a
// list of function tool definitions.
func LoadToolsFile(path string) ([]model.ToolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools file: %w", err)
	}
	return ParseTools(data)
}

// ParseTools decodes tool definitions in any of the formats LoadToolsFile
// accepts.
func ParseTools(data []byte) ([]model.ToolDefinition, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var result mcptypes.ListToolsResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("invalid tools list: %w", err)
		}
		return FromMCPTools(result.Tools), nil
	}

	var defs []model.ToolDefinition
	if err := json.Unmarshal(data, &defs); err == nil && allFunctionDefinitions(defs) {
		return defs, nil
	}

	var tools []mcptypes.Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("invalid tools file: %w", err)
	}
	for i, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool %d has no name", i)
		}
	}
	return FromMCPTools(tools), nil
}

func allFunctionDefinitions(defs []model.ToolDefinition) bool {
	if len(defs) == 0 {
		return false
	}
	for _, d := range defs {
		if d.Function.Name == "" {
			return false
		}
	}
	return true
}

// ConvertToolsToOllama converts tool definitions to Ollama API tool format
func ConvertToolsToOllama(defs []model.ToolDefinition) []api.Tool {
	if len(defs) == 0 {
		return nil
	}
	ollamaTools := make([]api.Tool, 0, len(defs))

	for _, def := range defs {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Function.Name,
				Description: def.Function.Description,
				Parameters:  convertParameters(def.Function.Parameters),
			},
		})
	}

	return ollamaTools
}

// convertParameters converts a JSON-schema map to Ollama ToolFunctionParameters
func convertParameters(schema map[string]any) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       "object",
		Properties: make(map[string]api.ToolProperty),
	}

	if t, ok := schema["type"].(string); ok && t != "" {
		params.Type = t
	}
	params.Required = stringList(schema["required"])

	if defs, ok := schema["$defs"]; ok {
		params.Defs = defs
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		for propName, propValue := range props {
			params.Properties[propName] = convertPropertyValue(propValue)
		}
	}

	return params
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// convertPropertyValue converts a property value from JSON-schema form to Ollama ToolProperty
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		// Not a map: round-trip through JSON
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// type can be string or []string
	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			toolProp.Type = api.PropertyType{t}
		case []string:
			toolProp.Type = api.PropertyType(t)
		case []any:
			toolProp.Type = api.PropertyType(stringList(t))
		}
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}

	if enumVal, ok := propMap["enum"]; ok {
		if enumSlice, ok := enumVal.([]any); ok {
			toolProp.Enum = enumSlice
		}
	}

	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}

	if anyOfVal, ok := propMap["anyOf"]; ok {
		if anyOfSlice, ok := anyOfVal.([]any); ok {
			anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
			for _, item := range anyOfSlice {
				anyOfProps = append(anyOfProps, convertPropertyValue(item))
			}
			toolProp.AnyOf = anyOfProps
		}
	}

	return toolProp
}

// ConvertToolsToOpenAIFormat converts tool definitions to OpenAI/OpenRouter format.
// rename, when non-nil, maps each tool name to the name sent upstream.
//
// OpenAI Tool structure:
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "get_weather",
//	    "description": "Get weather data",
//	    "parameters": {...}
//	  }
//	}
func ConvertToolsToOpenAIFormat(defs []model.ToolDefinition, rename func(string) string) []openai.ChatCompletionToolUnionParam {
	if len(defs) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(defs))

	for i, def := range defs {
		name := def.Function.Name
		if rename != nil {
			name = rename(name)
		}
		fn := openai.FunctionDefinitionParam{
			Name:       name,
			Parameters: openai.FunctionParameters(def.Function.Parameters),
		}
		if def.Function.Description != "" {
			fn.Description = openai.String(def.Function.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(fn)
	}

	return result
}

// ConvertToolsToAnthropicFormat converts tool definitions to Anthropic format.
//
// Anthropic Tool structure uses ToolUnionParam with input_schema; the schema
// type defaults to "object" when omitted.
func ConvertToolsToAnthropicFormat(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(defs))

	for i, def := range defs {
		schema := def.Function.Parameters
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
		}

		if required := stringList(schema["required"]); len(required) > 0 {
			inputSchema.Required = required
		}

		if defsVal, ok := schema["$defs"]; ok {
			inputSchema.ExtraFields = map[string]any{
				"$defs": defsVal,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, def.Function.Name)

		if def.Function.Description != "" {
			result[i].OfTool.Description = anthropic.String(def.Function.Description)
		}
	}

	return result
}
