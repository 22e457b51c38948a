package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/banshee-data/landform-texture/internal/testutil"
)

func openTestFile(t *testing.T) *File {
	t.Helper()
	s, err := openFile(newMemoryFileSystem(), "/products")
	testutil.AssertNoError(t, err)
	return s
}

func TestFileSaveGetRoundTrip(t *testing.T) {
	cases := map[string]func(t *testing.T) *File{
		"memory": func(t *testing.T) *File {
			return openTestFile(t)
		},
		"os": func(t *testing.T) *File {
			s, err := OpenFile(t.TempDir())
			testutil.AssertNoError(t, err)
			return s
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			s := build(t)

			id, err := s.Save(Product{Kind: KindIndexTIFF, Data: []byte("index-data")})
			testutil.AssertNoError(t, err)

			got, err := s.Get(id)
			testutil.AssertNoError(t, err)
			if got.Kind != KindIndexTIFF || string(got.Data) != "index-data" {
				t.Errorf("got %+v, want Kind=KindIndexTIFF Data=index-data", got)
			}
		})
	}
}

func TestFileGetMissingReturnsNotFoundError(t *testing.T) {
	s := openTestFile(t)

	id, err := s.Save(Product{Data: []byte("present")})
	testutil.AssertNoError(t, err)
	missing := id
	missing[0] ^= 0xFF

	_, err = s.Get(missing)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("got %v, want *NotFoundError", err)
	}
}

func TestFileHas(t *testing.T) {
	s := openTestFile(t)

	id, err := s.Save(Product{Data: []byte("present")})
	testutil.AssertNoError(t, err)
	if !s.Has(id) {
		t.Error("Has(id) = false after Save")
	}
	id[0] ^= 0xFF
	if s.Has(id) {
		t.Error("Has(unknown) = true")
	}
}

func TestFilePathJoinsRootAndID(t *testing.T) {
	f := &File{root: "/products"}
	id := uuid.New()
	want := filepath.Join("/products", id.String()+".product")
	if got := f.path(id); got != want {
		t.Errorf("path(%s) = %q, want %q", id, got, want)
	}
}
