// Package config resolves the settings a render run needs, layering
// four sources in increasing precedence: built-in defaults, the
// project's .agentpack/config.yaml, AGENTPACK_* environment variables,
// and explicit caller overrides. Nothing in the pipeline reads paths
// or environment ambiently; everything flows through the resolved
// value returned here.
package config
