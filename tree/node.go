// Package tree is the in-memory model of a crawled FTP directory tree.
//
// A tree is made of Directory and File nodes. Children keep the order in
// which the server listed them. A tree can be rendered as indented text
// (Render, String) or encoded as a keyed document with encoding/json or
// gopkg.in/yaml.v3, where every directory is a mapping from child name to
// child and every file is {"name": <name>}.
package tree

// Node is a File or a Directory.
type Node interface {
	Name() string
}

var (
	_ Node = (*File)(nil)
	_ Node = (*Directory)(nil)
)

// File is a leaf entry.
type File struct {
	name string
}

// NewFile returns a File with the given name.
func NewFile(name string) *File {
	return &File{name: name}
}

// Name returns the file name.
func (f *File) Name() string {
	return f.name
}

// Directory is an entry with ordered children.
type Directory struct {
	name  string
	nodes []Node
}

// NewDirectory returns an empty Directory with the given name.
func NewDirectory(name string) *Directory {
	return &Directory{name: name}
}

// Name returns the directory name.
func (d *Directory) Name() string {
	return d.name
}

// Add appends nodes to the directory's children.
func (d *Directory) Add(nodes ...Node) {
	d.nodes = append(d.nodes, nodes...)
}

// Nodes returns the children in listing order. The slice must not be
// modified.
func (d *Directory) Nodes() []Node {
	return d.nodes
}

// Len returns the number of direct children.
func (d *Directory) Len() int {
	return len(d.nodes)
}

// Count returns the number of nodes below root, at any depth.
func Count(root *Directory) int {
	n := 0
	for _, node := range root.nodes {
		n++
		if dir, ok := node.(*Directory); ok {
			n += Count(dir)
		}
	}
	return n
}

// Names returns the slash-separated path of every node below root, in
// depth-first listing order.
func Names(root *Directory) []string {
	var names []string
	var walk func(d *Directory, prefix string)
	walk = func(d *Directory, prefix string) {
		for _, node := range d.nodes {
			path := prefix + node.Name()
			names = append(names, path)
			if dir, ok := node.(*Directory); ok {
				walk(dir, path+"/")
			}
		}
	}
	walk(root, "")
	return names
}
