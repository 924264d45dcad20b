package archive

import (
	"sort"
	"strings"

	"github.com/resourcex/resourcex"
)

// Package is the materialized file tree obtained from unpacking an
// archive: an ordered mapping from path to bytes plus a derived tree view.
type Package struct {
	files map[string][]byte
	paths []string
}

// NewPackage validates files (POSIX paths, no leading slash, no "." or
// ".." segments) and returns a Package wrapping them.
func NewPackage(files map[string][]byte) (*Package, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		if err := validatePath(p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return &Package{files: files, paths: paths}, nil
}

func validatePath(p string) error {
	if p == "" {
		return resourcex.NewError(resourcex.KindCorruptArchive, "empty file path")
	}
	if strings.HasPrefix(p, "/") {
		return resourcex.NewError(resourcex.KindCorruptArchive, "absolute path: "+p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return resourcex.NewError(resourcex.KindCorruptArchive, "invalid path segment in: "+p)
		}
	}
	return nil
}

// Paths returns every file path in sorted order.
func (p *Package) Paths() []string { return append([]string(nil), p.paths...) }

// File returns the bytes stored at path.
func (p *Package) File(path string) ([]byte, bool) {
	b, ok := p.files[path]
	return b, ok
}

// Files returns the underlying path -> bytes mapping. Callers must not
// mutate it.
func (p *Package) Files() map[string][]byte { return p.files }

// TreeNode is one entry of the tree view: either a file (Children is nil)
// or a directory (Children holds its immediate entries, sorted by name).
type TreeNode struct {
	Name     string
	Path     string
	IsDir    bool
	Children []*TreeNode
}

// Tree builds the directory tree view over the package's paths.
func (p *Package) Tree() *TreeNode {
	root := &TreeNode{IsDir: true}
	dirs := map[string]*TreeNode{"": root}

	for _, path := range p.paths {
		dir := ""
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			dir, name = path[:i], path[i+1:]
		}
		parent := ensureDirRec(dirs, dir)
		parent.Children = append(parent.Children, &TreeNode{Name: name, Path: path})
	}

	sortTree(root)
	return root
}

func ensureDirRec(dirs map[string]*TreeNode, path string) *TreeNode {
	if n, ok := dirs[path]; ok {
		return n
	}
	parent := ""
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parent, name = path[:i], path[i+1:]
	}
	pn := ensureDirRec(dirs, parent)
	n := &TreeNode{Name: name, Path: path, IsDir: true}
	pn.Children = append(pn.Children, n)
	dirs[path] = n
	return n
}

func sortTree(n *TreeNode) {
	sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Path < n.Children[j].Path })
	for _, c := range n.Children {
		if c.IsDir {
			sortTree(c)
		}
	}
}
