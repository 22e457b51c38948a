package store

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// File is a Store backed by one file per product under a root directory,
// named by the random id Save assigns. It goes through the package-local
// fileSystem seam rather than touching the os package directly, the same
// testability seam the teacher threads through its on-disk components:
// osFileSystem in production, memoryFileSystem in tests, with no behavior
// difference between them.
type File struct {
	fs   fileSystem
	root string
}

// OpenFile builds a File store rooted at root, creating the directory if
// it does not already exist.
func OpenFile(root string) (*File, error) {
	return openFile(osFileSystem{}, root)
}

func openFile(fs fileSystem, root string) (*File, error) {
	if err := fs.MkdirAll(root); err != nil {
		return nil, fmt.Errorf("store: create root %s: %w", root, err)
	}
	return &File{fs: fs, root: root}, nil
}

func (f *File) path(id ID) string {
	return filepath.Join(f.root, id.String()+".product")
}

func (f *File) Save(product Product) (ID, error) {
	id := uuid.New()
	data := encodeProduct(product)
	if err := f.fs.WriteFile(f.path(id), data); err != nil {
		return ID{}, fmt.Errorf("store: write %s: %w", id, err)
	}
	return id, nil
}

func (f *File) Get(id ID) (Product, error) {
	data, err := f.fs.ReadFile(f.path(id))
	if err != nil {
		return Product{}, &NotFoundError{ID: id}
	}
	return decodeProduct(data)
}

func (f *File) Has(id ID) bool {
	return f.fs.Exists(f.path(id))
}

// encodeProduct/decodeProduct use a trivial fixed-width kind header rather
// than gob or JSON: the payload is already an opaque blob (PNG bytes, a
// gob-encoded mesh, a JSON record) and re-wrapping it in another codec
// would just cost a second allocation.
func encodeProduct(p Product) []byte {
	header := []byte(strconv.Itoa(int(p.Kind)) + "\n")
	return append(header, p.Data...)
}

func decodeProduct(data []byte) (Product, error) {
	for i, b := range data {
		if b == '\n' {
			kind, err := strconv.Atoi(string(data[:i]))
			if err != nil {
				return Product{}, fmt.Errorf("store: corrupt product header: %w", err)
			}
			return Product{Kind: Kind(kind), Data: data[i+1:]}, nil
		}
	}
	return Product{}, fmt.Errorf("store: corrupt product: missing header")
}
