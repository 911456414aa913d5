package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prefixes distinguishing the two kinds of base references.
const (
	imagePrefix = "image:"
	stagePrefix = "stage:"
)

// Identifies what a stage's From field points at.
type BaseKind string

const (
	// Base is an external OCI archive (path or tag).
	BaseImage BaseKind = "image"

	// Base is a previously declared stage.
	BaseStage BaseKind = "stage"
)

// A parsed base reference.
type BaseRef struct {
	Kind  BaseKind // Whether the base is an external image or a named stage.
	Value string   // Archive path/tag, or the referenced stage name.
}

// An ordered list of stages making up one buildable recipe.
type Recipe struct {
	Stages []Stage `yaml:"stages" json:"stages"`
}

// A named unit of provisioning extending a base filesystem state.
type Stage struct {
	Name        string         `yaml:"name" json:"name"`
	From        string         `yaml:"from" json:"from"`
	Transient   bool           `yaml:"transient,omitempty" json:"transient,omitempty"`
	Args        []Argument     `yaml:"args,omitempty" json:"args,omitempty"`
	Actions     []Action       `yaml:"actions,omitempty" json:"actions,omitempty"`
	Preferences map[string]any `yaml:"preferences,omitempty" json:"preferences,omitempty"`
}

// Scope of a declared argument.
type ArgScope string

const (
	// Resolved at build time and expanded into action strings.
	ScopeBuild ArgScope = "build"

	// Propagated unresolved into the realized graph metadata for the
	// launch surface to bind.
	ScopeRuntime ArgScope = "runtime"
)

// A declared stage argument.
type Argument struct {
	Name    string   `yaml:"name" json:"name"`
	Default *string  `yaml:"default,omitempty" json:"default,omitempty"`
	Scope   ArgScope `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// Returns the argument's scope, defaulting to build.
func (a Argument) EffectiveScope() ArgScope {
	if a.Scope == "" {
		return ScopeBuild
	}
	return a.Scope
}

// Parses the stage's From field into a base reference.
//
// The field must carry an "image:" or "stage:" prefix with a non-empty
// value. Stage references are resolved against earlier stages by the
// graph package.
func (s Stage) ParseFrom() (BaseRef, error) {
	switch {
	case strings.HasPrefix(s.From, imagePrefix):
		v := s.From[len(imagePrefix):]
		if v == "" {
			return BaseRef{}, fmt.Errorf("stage %q: empty image reference", s.Name)
		}
		return BaseRef{Kind: BaseImage, Value: v}, nil

	case strings.HasPrefix(s.From, stagePrefix):
		v := s.From[len(stagePrefix):]
		if v == "" {
			return BaseRef{}, fmt.Errorf("stage %q: empty stage reference", s.Name)
		}
		return BaseRef{Kind: BaseStage, Value: v}, nil

	case s.From == "":
		return BaseRef{}, fmt.Errorf("stage %q: missing from field", s.Name)

	default:
		return BaseRef{}, fmt.Errorf("stage %q: base %q must use an image: or stage: prefix", s.Name, s.From)
	}
}

// Reads and decodes a recipe from a YAML file.
func Load(path string) (*Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipe: %w", err)
	}
	defer f.Close()

	var r Recipe
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode recipe %s: %w", path, err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Decodes a recipe from YAML bytes.
func Decode(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Checks structural validity of the recipe.
//
// Stage names must be present and unique, base references must parse, and
// every action must describe exactly one operation. Base resolution order
// and cycle detection are graph concerns, not checked here.
func (r *Recipe) Validate() error {
	if len(r.Stages) == 0 {
		return fmt.Errorf("recipe has no stages")
	}

	seen := make(map[string]bool, len(r.Stages))
	for _, stage := range r.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage with base %q has no name", stage.From)
		}
		if seen[stage.Name] {
			return fmt.Errorf("duplicate stage name %q", stage.Name)
		}
		seen[stage.Name] = true

		if _, err := stage.ParseFrom(); err != nil {
			return err
		}

		for i, action := range stage.Actions {
			if _, err := action.Kind(); err != nil {
				return fmt.Errorf("stage %q action %d: %w", stage.Name, i+1, err)
			}
		}

		for _, arg := range stage.Args {
			if arg.Name == "" {
				return fmt.Errorf("stage %q declares an unnamed argument", stage.Name)
			}
			switch arg.EffectiveScope() {
			case ScopeBuild, ScopeRuntime:
			default:
				return fmt.Errorf("stage %q argument %q: unknown scope %q", stage.Name, arg.Name, arg.Scope)
			}
		}
	}

	return nil
}
