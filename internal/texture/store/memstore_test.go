package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemorySaveGetRoundTrip(t *testing.T) {
	m := NewMemory()
	id, err := m.Save(Product{Kind: KindStats, Data: []byte("hello")})
	require.NoError(t, err)
	got, err := m.Get(id)
	require.NoError(t, err)
	if got.Kind != KindStats || string(got.Data) != "hello" {
		t.Errorf("got %+v, want Kind=KindStats Data=hello", got)
	}
}

func TestMemoryGetMissingReturnsNotFoundError(t *testing.T) {
	m := NewMemory()
	id, _ := m.Save(Product{})
	missing := id
	missing[0] ^= 0xFF

	_, err := m.Get(missing)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestMemoryHas(t *testing.T) {
	m := NewMemory()
	id, _ := m.Save(Product{})
	if !m.Has(id) {
		t.Error("Has(id) = false after Save")
	}
	id[0] ^= 0xFF
	if m.Has(id) {
		t.Error("Has(unknown) = true")
	}
}
