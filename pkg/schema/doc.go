// Package schema validates tool call arguments against the parameter
// declarations carried by domain.ToolSpec.
//
// Parameters follow the JSON Schema subset used by OpenAI and MCP tool
// definitions: an object with "properties" and an optional "required" list.
// Each property may declare "type" ("string", "integer", "number",
// "boolean", "array", "object"), "items" for arrays and "enum".
//
//	s, err := schema.FromParameters(spec.Parameters)
//	if err != nil {
//	    return err
//	}
//	if err := schema.Validate(s, call.Args); err != nil {
//	    // err lists every failing field
//	}
//
// Arguments that the schema does not mention are left alone.
package schema
