// Package mcp exposes the Mermaid syntax checker as a Model Context Protocol
// (MCP) server using the mcp-go library.
//
// The server registers a single tool:
//
//	check(text string) string
//
// The tool returns an empty string when text renders as a Mermaid diagram and
// the renderer's error message otherwise. Failures never cross the protocol
// boundary as errors; every outcome, including a panic inside the checker, is
// reported as plain tool text.
//
// # Transports
//
// Two transports are supported:
//   - stdio: JSON-RPC 2.0 over stdin/stdout, the default when an AI assistant
//     launches the binary as a subprocess
//   - streamable HTTP: served at /mcp on host:port when started with --http
//
// Logs never go to stdout, which belongs to the stdio transport.
//
// # Usage
//
//	mermaid-inspector
//	mermaid-inspector --http --port 3000
//
// # References
//
// - MCP Specification: https://modelcontextprotocol.io/specification
// - mcp-go Library: https://github.com/mark3labs/mcp-go
package mcp
