package manifest

import "sort"

// Filename is the manifest file expected at a package or project root.
const Filename = "agentpack.yaml"

// Base contains the fields shared by both manifest kinds.
type Base struct {
	Type        string `yaml:"type" json:"type"`
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Package describes one installable agent-configuration package.
type Package struct {
	Base    `yaml:",inline"`
	Author  string               `yaml:"author,omitempty" json:"author,omitempty"`
	Tags    []string             `yaml:"tags,omitempty" json:"tags,omitempty"`
	Exports map[string]ExportSet `yaml:"exports" json:"exports"`
}

// ExportSet lists what one tool receives from a package. Template is a
// single templated file rendered under the tool's default filename;
// agents, commands, skills and prompts are whole directory trees; mcp
// is a protocol config file that downstream routing must exclude from
// generic exposure.
type ExportSet struct {
	Template string `yaml:"template,omitempty" json:"template,omitempty"`
	Agents   string `yaml:"agents,omitempty" json:"agents,omitempty"`
	Commands string `yaml:"commands,omitempty" json:"commands,omitempty"`
	Skills   string `yaml:"skills,omitempty" json:"skills,omitempty"`
	Prompts  string `yaml:"prompts,omitempty" json:"prompts,omitempty"`
	MCP      string `yaml:"mcp,omitempty" json:"mcp,omitempty"`
}

// Export is one flattened export table row.
type Export struct {
	Category string // template, agents, commands, skills, prompts, mcp
	Path     string // package-relative source path
	Dir      bool   // collect recursively
	Config   bool   // protocol config, excluded from generic exposure
}

// List flattens the set in a fixed category order, skipping empty
// entries.
func (e ExportSet) List() []Export {
	var out []Export
	if e.Template != "" {
		out = append(out, Export{Category: "template", Path: e.Template})
	}
	if e.Agents != "" {
		out = append(out, Export{Category: "agents", Path: e.Agents, Dir: true})
	}
	if e.Commands != "" {
		out = append(out, Export{Category: "commands", Path: e.Commands, Dir: true})
	}
	if e.Skills != "" {
		out = append(out, Export{Category: "skills", Path: e.Skills, Dir: true})
	}
	if e.Prompts != "" {
		out = append(out, Export{Category: "prompts", Path: e.Prompts, Dir: true})
	}
	if e.MCP != "" {
		out = append(out, Export{Category: "mcp", Path: e.MCP, Config: true})
	}
	return out
}

// Tools returns the names of the tools the package exports to, sorted
// so render order is deterministic.
func (p *Package) Tools() []string {
	tools := make([]string, 0, len(p.Exports))
	for name := range p.Exports {
		tools = append(tools, name)
	}
	sort.Strings(tools)
	return tools
}

// Project describes a consuming project: the packages it depends on
// and named profiles grouping them for selective renders.
type Project struct {
	Base         `yaml:",inline"`
	Dependencies map[string]string   `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Profiles     map[string][]string `yaml:"profiles,omitempty" json:"profiles,omitempty"`
}

// Manifest type constants for the type discriminator field.
const (
	TypePackage = "package"
	TypeProject = "project"
)

// ValidTypes contains all valid manifest type values.
var ValidTypes = []string{TypePackage, TypeProject}
