package explorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/box/boxtest"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
)

func TestListChildren(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	parent := srv.AddFolder("0", "Accounting")
	srv.AddFolder(parent, "Invoices")
	srv.AddFile(parent, "a.pdf", []byte("123"))
	srv.AddFolder(parent, "Receipts")

	e := New(box.New(box.StaticToken("t"), srv.Config()))
	listing, err := e.ListChildren(context.Background(), parent)
	require.NoError(t, err)

	assert.Equal(t, "Accounting", listing.Folder.Name)
	assert.Equal(t, 3, listing.TotalCount)
	require.Len(t, listing.Subfolders, 2)
	assert.Equal(t, "Invoices", listing.Subfolders[0].Name)
	assert.Equal(t, "Receipts", listing.Subfolders[1].Name)
	require.Len(t, listing.Files, 1)
	assert.EqualValues(t, 3, listing.Files[0].Size)
}

func TestListChildren_DefaultsToRoot(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	srv.AddFolder("0", "Top")

	listing, err := New(box.New(box.StaticToken("t"), srv.Config())).ListChildren(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "0", listing.Folder.ID)
	assert.Len(t, listing.Subfolders, 1)
}

func TestListChildren_RemoteUnavailable(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	parent := srv.AddFolder("0", "Accounting")
	srv.FailList[parent] = true

	_, err := New(box.New(box.StaticToken("t"), srv.Config())).ListChildren(context.Background(), parent)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUpstreamUnavailable))
}

func TestCreateFolder(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	e := New(box.New(box.StaticToken("t"), srv.Config()))

	_, err := e.CreateFolder(context.Background(), "0", "")
	assert.True(t, errs.Is(err, errs.CodeInvalidRequest))

	f, err := e.CreateFolder(context.Background(), "0", "Invoices")
	require.NoError(t, err)
	_, ok := srv.Child("0", "Invoices")
	assert.True(t, ok)
	assert.Equal(t, "0", f.ParentID)
}

func TestHistory(t *testing.T) {
	h := NewHistory(nil)
	_, ok := h.Current()
	assert.False(t, ok)

	h.Push("0", "All Files")
	h.Push("10", "Accounting")
	h.Push("11", "2024")

	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, "All Files / Accounting / 2024", cur.Path)

	h.JumpTo(0)
	assert.Len(t, h.Crumbs(), 1)

	h.JumpTo(5)
	assert.Len(t, h.Crumbs(), 1)

	h.Navigate("10", "Accounting")
	h.Navigate("11", "2024")
	h.Navigate("10", "Accounting")
	crumbs := h.Crumbs()
	require.Len(t, crumbs, 2)
	assert.Equal(t, "10", crumbs[1].ID)
	assert.Equal(t, "All Files / Accounting", crumbs[1].Path)
}
