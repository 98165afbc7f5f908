// Package tools implements the operations exposed to MCP clients: asking
// questions, managing sessions and authentication, and maintaining the
// notebook library.
//
// Each tool is a small struct over Services, decoding its JSON arguments,
// calling into the notebook core or the library, and rendering the result
// as indented JSON. Errors carry a remediation hint where the client can do
// something about them.
package tools
