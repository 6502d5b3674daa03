package scope

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string][]Declaration

func (f fakeSource) Declarations(path string) ([]Declaration, error) {
	if path == filepath.Join("repo", "broken", "X.java") {
		return nil, errors.New("unreadable")
	}
	return f[path], nil
}

func TestFromChangedFiles(t *testing.T) {
	cart := []Declaration{
		{Actor: "com.acme.Cart", Action: "<class>", StartLine: 3, EndLine: 40},
		{Actor: "com.acme.Cart", Action: "add(int)", StartLine: 10, EndLine: 15},
		{Actor: "com.acme.Cart", Action: "total()", StartLine: 17, EndLine: 25},
	}
	src := fakeSource{
		filepath.Join("repo", "src", "Cart.java"): cart,
		filepath.Join("repo", "src", "New.java"):  {{Actor: "com.acme.New", Action: "<class>", StartLine: 1, EndLine: 5}},
	}

	s := FromChangedFiles("repo", []Change{
		{Path: "src/Cart.java", Lines: []int{12, 13}},
		{Path: "src/New.java", Lines: []int{1, 2, 3, 4, 5}, Type: Added},
		{Path: "src/Gone.java", Type: Deleted},
		{Path: "broken/X.java", Lines: []int{1}},
		{Path: "README.md", Lines: []int{1}},
	}, src)

	changes := s.Changes()
	require.Len(t, changes, 5)
	assert.Equal(t, []Declaration{cart[0], cart[1]}, changes[0].Declarations)
	assert.Len(t, changes[1].Declarations, 1)
	assert.Nil(t, changes[2].Declarations)
	assert.Nil(t, changes[3].Declarations)
	assert.Nil(t, changes[4].Declarations)
	assert.Equal(t, []string{"src/Cart.java", "src/New.java", "src/Gone.java", "broken/X.java", "README.md"}, s.Paths())
}

func TestFromChangedFiles_NoSource(t *testing.T) {
	s := FromChangedFiles("repo", []Change{{Path: "a.java", Lines: []int{1}}}, nil)
	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.Changes()[0].Declarations)
}
