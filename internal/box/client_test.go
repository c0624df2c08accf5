package box_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/box/boxtest"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
)

func newClient(t *testing.T, srv *boxtest.Server, mutate func(*box.Config)) *box.Client {
	t.Helper()
	cfg := srv.Config()
	if mutate != nil {
		mutate(&cfg)
	}
	return box.New(box.StaticToken("token-1"), cfg)
}

func TestListItems_PaginatesUntilTotalCount(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	parent := srv.AddFolder("0", "Parent")
	for i := 0; i < 7; i++ {
		srv.AddFile(parent, fmt.Sprintf("f%d.pdf", i), []byte("x"))
	}

	c := newClient(t, srv, func(cfg *box.Config) { cfg.PageSize = 3 })
	nodes, total, err := c.ListItems(context.Background(), parent)
	require.NoError(t, err)

	assert.Equal(t, 7, total)
	require.Len(t, nodes, 7)
	assert.Equal(t, "f0.pdf", nodes[0].Name)
	assert.Equal(t, "f6.pdf", nodes[6].Name)
	assert.Equal(t, parent, nodes[0].ParentID)
	assert.Equal(t, 3, srv.CountRequests("GET /2.0/folders/"+parent+"/items"))
}

func TestListItems_RespectsMaxItems(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	parent := srv.AddFolder("0", "Parent")
	for i := 0; i < 5; i++ {
		srv.AddFile(parent, fmt.Sprintf("f%d.pdf", i), nil)
	}

	c := newClient(t, srv, func(cfg *box.Config) { cfg.PageSize = 2; cfg.MaxItems = 3 })
	nodes, total, err := c.ListItems(context.Background(), parent)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, nodes, 3)
}

func TestListItems_UpstreamError(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	parent := srv.AddFolder("0", "Parent")
	srv.FailList[parent] = true

	_, _, err := newClient(t, srv, nil).ListItems(context.Background(), parent)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUpstreamUnavailable))
}

func TestSend_UnauthorizedMapsToAuthRequired(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	srv.AllowTokens("other")

	_, err := newClient(t, srv, nil).GetFolder(context.Background(), "0")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeAuthRequired))
}

func TestCreateFolder_ConflictIsRecognizable(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	c := newClient(t, srv, nil)

	created, err := c.CreateFolder(context.Background(), "0", "Invoices")
	require.NoError(t, err)
	assert.Equal(t, "Invoices", created.Name)
	assert.True(t, created.IsFolder())

	_, err = c.CreateFolder(context.Background(), "0", "Invoices")
	require.Error(t, err)
	assert.True(t, box.IsConflict(err))
}

func TestMoveAndDownload(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	src := srv.AddFolder("0", "Unsorted")
	dst := srv.AddFolder("0", "Invoices")
	file := srv.AddFile(src, "invoice.pdf", []byte("%PDF-1.4"))
	c := newClient(t, srv, nil)

	data, err := c.DownloadFile(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, c.MoveFile(context.Background(), file, dst))
	assert.Equal(t, dst, srv.Parent(file))
}

func TestUploadFile_SmallUsesMultipart(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	folder := srv.AddFolder("0", "log")
	c := newClient(t, srv, nil)

	node, err := c.UploadFile(context.Background(), folder, "process_log.csv", []byte("a,b\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "process_log.csv", node.Name)
	assert.Equal(t, []byte("a,b\n"), srv.Content(node.ID))
	assert.Equal(t, 1, srv.CountRequests("POST /upload/files/content"))
	assert.Zero(t, srv.CountRequests("POST /upload/files/upload_sessions"))

	_, err = c.UploadFile(context.Background(), folder, "process_log.csv", []byte("x"), "text/csv")
	assert.True(t, box.IsConflict(err))
}

func TestUploadFile_LargeUsesUploadSession(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	srv.PartSize = 4
	folder := srv.AddFolder("0", "log")
	c := newClient(t, srv, func(cfg *box.Config) { cfg.ChunkedUploadThreshold = 10 })

	payload := bytes.Repeat([]byte("abc"), 5) // 15 bytes, 4 parts
	node, err := c.UploadFile(context.Background(), folder, "big.csv", payload, "text/csv")
	require.NoError(t, err)

	assert.Equal(t, payload, srv.Content(node.ID))
	assert.Equal(t, 4, srv.CountRequests("PUT /upload/files/upload_sessions/"))
	assert.Equal(t, 1, srv.CountRequests("POST /upload/files/upload_sessions/"))
	assert.Zero(t, srv.CountRequests("POST /upload/files/content"))
}

func TestCurrentUser(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	srv.SetUser("token-1", "9001")

	u, err := newClient(t, srv, nil).CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9001", u.ID)
	assert.Equal(t, "9001@example.com", u.Login)

	srv.AllowTokens("someone-else")
	_, err = newClient(t, srv, nil).CurrentUser(context.Background())
	assert.True(t, errs.Is(err, errs.CodeAuthRequired))
}
