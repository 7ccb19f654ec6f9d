// Package scaffold generates new agent-configuration packages from embedded
// skeletons. It powers the "agentpack create" command, producing a package
// manifest, a starter directive template, and example agent and MCP exports,
// with the generated manifest validated against the schema before the result
// is reported.
package scaffold
