// Package render turns installed packages into tool configuration
// files under the project's modules directory.
//
// A render walks the discovered packages one at a time, flattens each
// package's per-tool export tables into a file plan, and writes every
// planned file: templated sources run through the directive pipeline,
// literal sources are copied byte for byte. Destinations are confined
// to the project root, existing files are skipped unless forced, and
// forced overwrites are backed up once per run.
package render
