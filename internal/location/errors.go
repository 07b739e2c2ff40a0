package location

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPathCollision is returned (wrapped) when two pages still share an
// output path after disambiguation.
var ErrPathCollision = errors.New("unresolvable path collision")

// PathCollisionError names the pages that claimed the same path.
type PathCollisionError struct {
	Path  string
	Pages []string
}

func (e *PathCollisionError) Error() string {
	return fmt.Sprintf("path %q claimed by %s", e.Path, strings.Join(e.Pages, " and "))
}

func (e *PathCollisionError) Unwrap() error {
	return ErrPathCollision
}

// ErrInvalidTree is returned (wrapped) for page trees that are not trees.
var ErrInvalidTree = errors.New("invalid page tree")

// TreeError describes a structural defect of the page tree.
type TreeError struct {
	Page   string
	Reason string
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("page %q: %s", e.Page, e.Reason)
}

func (e *TreeError) Unwrap() error {
	return ErrInvalidTree
}
