package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentpack-labs/agentpack/internal/branding"
	"github.com/agentpack-labs/agentpack/internal/tools"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Render is the fully resolved configuration for one render run. All
// paths are absolute.
type Render struct {
	ProjectRoot string
	Tool        tools.Name
	SafeMode    bool
	NoCache     bool
	ModulesDir  string
	CachePath   string
	StoreRoot   string
	Filenames   map[string]string // tool name -> default output filename
}

// Overrides are explicit caller settings. They outrank both the
// project config file and environment variables.
type Overrides struct {
	Tool       string
	SafeMode   *bool
	NoCache    bool
	ModulesDir string
	CachePath  string
	StoreRoot  string
}

// Dir returns the project-local settings directory
// (<projectRoot>/.agentpack).
func Dir(projectRoot string) string {
	return filepath.Join(projectRoot, branding.HomeDir())
}

// FilePath returns the project config file path
// (<projectRoot>/.agentpack/config.yaml).
func FilePath(projectRoot string) string {
	return filepath.Join(Dir(projectRoot), fileName+"."+fileType)
}

// EnsureDir creates the project settings directory if needed.
func EnsureDir(projectRoot string) error {
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating settings directory %s: %w", dir, err)
	}
	return nil
}

// UserStoreRoot returns the default content-store location under the
// user's home directory (~/.agentpack/store).
func UserStoreRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir(), "store")
	}
	return filepath.Join(home, branding.HomeDir(), "store")
}

// resolver builds the layered viper for a project: defaults, then the
// project config file, then AGENTPACK_* environment variables.
func resolver(root string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("tool", string(tools.ClaudeCode))
	v.SetDefault("safe_mode", true)
	v.SetDefault("modules_dir", filepath.Join(branding.HomeDir(), "modules"))
	v.SetDefault("cache_path", filepath.Join(branding.HomeDir(), "snipcache.json"))
	v.SetDefault("store_root", UserStoreRoot())

	v.SetConfigFile(FilePath(root))
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A project without a config file is a normal state.
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", FilePath(root), err)
	}
	return v, nil
}

// Get returns one resolved setting as ForRender would see it.
func Get(projectRoot, key string) (string, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	v, err := resolver(root)
	if err != nil {
		return "", err
	}
	return v.GetString(key), nil
}

// Set writes one key into the project config file, creating the file
// if needed. Other keys already in the file are preserved; defaults
// and environment values are not written.
func Set(projectRoot, key, value string) error {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	if err := EnsureDir(root); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(FilePath(root))
	v.SetConfigType(fileType)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", FilePath(root), err)
	}
	v.Set(key, value)

	if err := v.WriteConfigAs(FilePath(root)); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ForRender resolves the configuration for a render of projectRoot.
func ForRender(projectRoot string, o Overrides) (*Render, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	v, err := resolver(root)
	if err != nil {
		return nil, err
	}

	if o.Tool != "" {
		v.Set("tool", o.Tool)
	}
	if o.SafeMode != nil {
		v.Set("safe_mode", *o.SafeMode)
	}
	if o.ModulesDir != "" {
		v.Set("modules_dir", o.ModulesDir)
	}
	if o.CachePath != "" {
		v.Set("cache_path", o.CachePath)
	}
	if o.StoreRoot != "" {
		v.Set("store_root", o.StoreRoot)
	}

	toolName, ok := tools.Parse(v.GetString("tool"))
	if !ok {
		return nil, fmt.Errorf("unsupported tool %q (supported: %s)", v.GetString("tool"), supportedList())
	}

	return &Render{
		ProjectRoot: root,
		Tool:        toolName,
		SafeMode:    v.GetBool("safe_mode"),
		NoCache:     o.NoCache,
		ModulesDir:  absUnder(root, v.GetString("modules_dir")),
		CachePath:   absUnder(root, v.GetString("cache_path")),
		StoreRoot:   absUnder(root, v.GetString("store_root")),
		Filenames:   tools.DefaultFiles(),
	}, nil
}

// absUnder anchors a relative path at the project root; absolute paths
// pass through.
func absUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func supportedList() string {
	names := tools.All()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
