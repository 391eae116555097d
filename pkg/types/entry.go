package types

// Entry is a node of a frozen filesystem snapshot. It is either a *Directory
// or a *File; nothing outside this package can add another kind.
type Entry interface {
	Path() string
	isEntry()
}

type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

func (*File) isEntry() {}

// Directory holds the children that existed under Path when it was scanned.
// The children are never changed after construction.
type Directory struct {
	path     string
	children []Entry
}

func NewDirectory(path string, children []Entry) *Directory {
	owned := make([]Entry, len(children))
	copy(owned, children)
	return &Directory{path: path, children: owned}
}

func (d *Directory) Path() string { return d.path }

func (*Directory) isEntry() {}

// Children returns a copy of the captured children, in scan order.
func (d *Directory) Children() []Entry {
	out := make([]Entry, len(d.children))
	copy(out, d.children)
	return out
}

func (d *Directory) Len() int {
	return len(d.children)
}

// ChildPaths returns the sorted paths of the immediate children only.
func (d *Directory) ChildPaths() PathList {
	list := make(PathList, 0, len(d.children))
	for _, c := range d.children {
		list = append(list, c.Path())
	}
	list.Sort()
	return list
}
