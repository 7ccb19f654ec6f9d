// Package manifest handles parsing and validation of AgentPack
// manifests. A package manifest describes an installable
// agent-configuration package and its per-tool export tables; a
// project manifest describes a consuming project's dependencies and
// named render profiles. Both share one file name (agentpack.yaml),
// are discriminated by a type field, and validate against an embedded
// JSON Schema.
package manifest
