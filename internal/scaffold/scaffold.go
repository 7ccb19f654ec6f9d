package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/agentpack-labs/agentpack/internal/manifest"
)

// Data holds the template variables available to package skeletons.
type Data struct {
	Name        string   // e.g., "review-pack"
	Scope       string   // e.g., "acme" (may be empty)
	PackageName string   // Derived: @<scope>/<name> or <name>
	Description string   // Human-readable description
	Version     string   // Semver, e.g., "0.1.0"
	Tools       []string // Tool names the manifest exports to
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
	Warnings  []string
}

// NewData creates a Data with derived fields populated.
func NewData(name, scope, description string, tools []string) *Data {
	d := &Data{
		Name:    name,
		Scope:   scope,
		Version: "0.1.0",
		Tools:   tools,
	}

	d.PackageName = name
	if scope != "" {
		d.PackageName = "@" + scope + "/" + name
	}

	d.Description = description
	if d.Description == "" {
		d.Description = fmt.Sprintf("Agent configuration package %s", d.PackageName)
	}

	return d
}

const skeletonDir = "scaffolds/package"

// Generate creates a new package skeleton in outputDir. Skeleton files
// ending in .tmpl are rendered through text/template with data; every
// other file is copied verbatim, so directive templates arrive with
// their own {{ }} syntax untouched.
func Generate(data *Data, outputDir string) (*Result, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Check for existing files to prevent accidental overwrites.
	existing, err := os.ReadDir(outputDir)
	if err == nil && len(existing) > 0 {
		return nil, fmt.Errorf("output directory %s is not empty; remove existing files first", outputDir)
	}

	result := &Result{OutputDir: outputDir}

	err = fs.WalkDir(scaffoldFS, skeletonDir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		raw, err := fs.ReadFile(scaffoldFS, p)
		if err != nil {
			return fmt.Errorf("reading skeleton %s: %w", p, err)
		}

		rel := strings.TrimPrefix(p, skeletonDir+"/")
		outName := strings.TrimSuffix(rel, ".tmpl")
		outPath := filepath.Join(outputDir, filepath.FromSlash(outName))
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(outPath), err)
		}

		// Only .tmpl files are Go templates. Directive templates use
		// {{ }} themselves and must be copied without processing.
		if !strings.HasSuffix(rel, ".tmpl") {
			if err := os.WriteFile(outPath, raw, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			result.Files = append(result.Files, outName)
			return nil
		}

		tmpl, err := template.New(path.Base(p)).Parse(string(raw))
		if err != nil {
			return fmt.Errorf("parsing skeleton %s: %w", rel, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("executing skeleton %s: %w", rel, err)
		}

		if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		result.Files = append(result.Files, outName)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Validate the generated manifest against the schema.
	manifestFile := filepath.Join(outputDir, manifest.Filename)
	if _, err := os.Stat(manifestFile); err == nil {
		valResult, valErr := manifest.ValidateFile(manifestFile)
		if valErr != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Could not validate manifest: %v", valErr))
		} else if !valResult.Valid {
			for _, issue := range valResult.Issues {
				msg := issue.Message
				if issue.Path != "" {
					msg = issue.Path + ": " + msg
				}
				result.Warnings = append(result.Warnings, msg)
			}
		}
	}

	return result, nil
}
