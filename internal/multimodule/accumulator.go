package multimodule

import (
	"maps"
	"slices"
	"sync"

	"github.com/jcdickinson/docloc/internal/packagelist"
)

// NavNode is one entry of the site navigation.
type NavNode struct {
	Name     string    `json:"name"`
	Path     string    `json:"path,omitempty"`
	Children []NavNode `json:"children,omitempty"`
}

// Fragment is what one module contributes to the site.
type Fragment struct {
	Module      string
	RelativeDir string
	List        *packagelist.PackageList
	// Locations maps the DRI keys of the module's pages to their locations.
	Locations map[string]string
	// Navigation paths are relative to the module's directory.
	Navigation NavNode
}

// Result is the merged output of all fragments.
type Result struct {
	List       *packagelist.PackageList
	Navigation []NavNode
	Inputs     []Input
}

// Accumulator collects fragments from concurrent module builds.
type Accumulator struct {
	mu        sync.Mutex
	fragments map[string]Fragment
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{fragments: make(map[string]Fragment)}
}

// Add records a fragment. A second fragment for the same module is rejected
// with a *ModuleCollisionError.
func (a *Accumulator) Add(f Fragment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.fragments[f.Module]; ok {
		return &ModuleCollisionError{Name: f.Module}
	}
	a.fragments[f.Module] = f
	return nil
}

// Len returns the number of fragments added so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fragments)
}

// Finish merges the fragments in module name order, so the result does not
// depend on the order they were added in.
func (a *Accumulator) Finish() (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := &Result{}
	for _, name := range slices.Sorted(maps.Keys(a.fragments)) {
		f := a.fragments[name]
		res.Inputs = append(res.Inputs, Input{Name: f.Module, RelativeDir: f.RelativeDir, List: f.List, Locations: f.Locations})
		res.Navigation = append(res.Navigation, rebaseNav(cleanDir(f.RelativeDir), f.Navigation))
	}

	list, err := Merge(res.Inputs)
	if err != nil {
		return nil, err
	}
	res.List = list
	return res, nil
}

func rebaseNav(dir string, n NavNode) NavNode {
	out := NavNode{Name: n.Name}
	if n.Path != "" {
		out.Path = rebase(dir, n.Path)
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, rebaseNav(dir, c))
	}
	return out
}
