package playbook

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk playbook document layout.
type File struct {
	Playbooks []*Playbook `yaml:"playbooks"`
}

// playbookSet is one immutable, priority-sorted generation of playbooks.
// The whole set is swapped atomically on reload.
type playbookSet struct {
	ordered []*Playbook
	byID    map[string]*Playbook
}

// Store holds loaded playbooks, keeps them priority-sorted, and supports
// atomic reload. Readers never observe a partially updated set; a failed
// reload keeps the previous generation intact.
type Store struct {
	path     string
	validate *validator.Validate
	current  atomic.Pointer[playbookSet]
}

// NewStore creates a Store bound to a playbook file. Nothing is loaded
// until Load is called.
func NewStore(path string) *Store {
	v := validator.New()
	v.RegisterValidation("operator_token", func(fl validator.FieldLevel) bool {
		return Operator(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("soar_action_type", func(fl validator.FieldLevel) bool {
		return ActionType(fl.Field().String()).IsValid()
	})

	s := &Store{path: path, validate: v}
	s.current.Store(&playbookSet{byID: make(map[string]*Playbook)})
	return s
}

// Load reads, validates, and installs the playbook set from the store's
// file. On error the previously installed set stays in place.
func (s *Store) Load() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read playbook file: %w", err)
	}
	return s.LoadBytes(data)
}

// LoadBytes parses and installs a playbook document. Exposed for tests
// and for callers that fetch playbooks from somewhere other than disk.
func (s *Store) LoadBytes(data []byte) (int, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse playbooks: %w", err)
	}

	set, err := s.buildSet(file.Playbooks)
	if err != nil {
		return 0, err
	}

	s.current.Store(set)
	slog.Info("playbooks loaded", "count", len(set.ordered))
	return len(set.ordered), nil
}

// Reload re-reads the playbook file. A reload that fails to parse or
// validate leaves the running set untouched and reports the error.
func (s *Store) Reload() (int, error) {
	return s.Load()
}

func (s *Store) buildSet(playbooks []*Playbook) (*playbookSet, error) {
	byID := make(map[string]*Playbook, len(playbooks))
	for i, pb := range playbooks {
		if pb == nil {
			return nil, fmt.Errorf("playbook %d is empty", i)
		}
		if err := s.validate.Struct(pb); err != nil {
			return nil, fmt.Errorf("invalid playbook %q: %w", pb.ID, err)
		}
		if _, exists := byID[pb.ID]; exists {
			return nil, fmt.Errorf("duplicate playbook id: %s", pb.ID)
		}
		byID[pb.ID] = pb
	}

	// Priority descending, ties keep file order.
	ordered := make([]*Playbook, len(playbooks))
	copy(ordered, playbooks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	return &playbookSet{ordered: ordered, byID: byID}, nil
}

// List returns the loaded playbooks in dispatch order. With enabledOnly
// set, disabled playbooks are filtered out.
func (s *Store) List(enabledOnly bool) []*Playbook {
	set := s.current.Load()
	if !enabledOnly {
		out := make([]*Playbook, len(set.ordered))
		copy(out, set.ordered)
		return out
	}

	out := make([]*Playbook, 0, len(set.ordered))
	for _, pb := range set.ordered {
		if pb.Enabled {
			out = append(out, pb)
		}
	}
	return out
}

// Get returns a playbook by ID.
func (s *Store) Get(id string) (*Playbook, bool) {
	pb, ok := s.current.Load().byID[id]
	return pb, ok
}

// Count returns the number of loaded playbooks.
func (s *Store) Count() int {
	return len(s.current.Load().ordered)
}
