package topology

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"graphwatch/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed default_registry.yaml
var defaultRegistryYAML []byte

// Role is the structural position of an agent in the default topology
type Role string

const (
	RoleRoot   Role = "root"
	RoleHead   Role = "head"
	RoleMember Role = "member"
	// RoleInfra is a cross-cutting dependency (cache, database) wired to
	// both its owning service and the root.
	RoleInfra Role = "infra"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleRoot, RoleHead, RoleMember, RoleInfra:
		return true
	}
	return false
}

// AgentDef is one registry entry
type AgentDef struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Category    domain.Category   `yaml:"category"`
	Role        Role              `yaml:"role"`
	Status      domain.NodeStatus `yaml:"status,omitempty"`
	Owner       string            `yaml:"owner,omitempty"`
	Priority    int               `yaml:"priority,omitempty"`
	Description string            `yaml:"description,omitempty"`
}

// Registry is the static list of agents the baseline graph is built from
type Registry struct {
	Agents []AgentDef `yaml:"agents"`
}

// ParseRegistry decodes a YAML registry. Unknown fields are rejected so a
// typo in a role or owner key fails loudly.
func ParseRegistry(r io.Reader) (*Registry, error) {
	var reg Registry
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	for i := range reg.Agents {
		if reg.Agents[i].Role == "" {
			reg.Agents[i].Role = RoleMember
		}
	}
	return &reg, nil
}

// LoadRegistryFile reads a registry from disk
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, path)
		}
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	defer f.Close()

	return ParseRegistry(f)
}

// DefaultRegistry returns the built-in agent registry
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(bytes.NewReader(defaultRegistryYAML))
}

// LoadRegistry returns the registry at path, or the built-in one when path is empty
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	return LoadRegistryFile(path)
}

// Lookup returns the definition with the given id
func (r *Registry) Lookup(id string) (AgentDef, bool) {
	for _, a := range r.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentDef{}, false
}

// Heads returns the head agent id for each category that has one
func (r *Registry) Heads() map[domain.Category]string {
	heads := make(map[domain.Category]string)
	for _, a := range r.Agents {
		if a.Role == RoleHead {
			if _, ok := heads[a.Category]; !ok {
				heads[a.Category] = a.ID
			}
		}
	}
	return heads
}

// Validate checks every structural rule the builder depends on
func (r *Registry) Validate() error {
	ids := make(map[string]AgentDef, len(r.Agents))
	heads := make(map[domain.Category]string)
	var root string

	for _, a := range r.Agents {
		if a.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidAgent)
		}
		if _, dup := ids[a.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.ID)
		}
		ids[a.ID] = a

		if !a.Category.Valid() {
			return fmt.Errorf("%w: agent %s has category %q", ErrUnknownCategory, a.ID, a.Category)
		}
		if !a.Role.Valid() {
			return fmt.Errorf("%w: agent %s has role %q", ErrUnknownRole, a.ID, a.Role)
		}
		if a.Status != "" && !a.Status.Valid() {
			return fmt.Errorf("%w: agent %s has status %q", ErrInvalidAgent, a.ID, a.Status)
		}

		switch a.Role {
		case RoleRoot:
			if root != "" {
				return fmt.Errorf("%w: %s and %s", ErrMultipleRoots, root, a.ID)
			}
			root = a.ID
		case RoleHead:
			if prev, ok := heads[a.Category]; ok {
				return fmt.Errorf("%w: %s has %s and %s", ErrMultipleHeads, a.Category, prev, a.ID)
			}
			heads[a.Category] = a.ID
		}
	}

	if root == "" {
		return ErrMissingRoot
	}

	for _, a := range r.Agents {
		if needsHead(a) {
			if _, ok := heads[a.Category]; !ok {
				return fmt.Errorf("%w: %s (needed by %s)", ErrMissingHead, a.Category, a.ID)
			}
		}
		if a.Role == RoleInfra {
			if a.Owner == "" {
				return fmt.Errorf("%w: infra agent %s has no owner", ErrUnknownOwner, a.ID)
			}
			if _, ok := ids[a.Owner]; !ok || a.Owner == a.ID {
				return fmt.Errorf("%w: %s owned by %q", ErrUnknownOwner, a.ID, a.Owner)
			}
		}
	}
	return nil
}

// needsHead reports whether the agent attaches to the graph through its
// category head. Core agents hang directly off the root.
func needsHead(a AgentDef) bool {
	if a.Category == domain.CategoryCore {
		return false
	}
	return a.Role == RoleMember || a.Role == RoleInfra
}
