package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckImage(t *testing.T) {
	assert.NoError(t, CheckImage("image/png", 1024))
	assert.NoError(t, CheckImage("IMAGE/JPEG", MaxImageSize))
	assert.ErrorIs(t, CheckImage("application/pdf", 10), ErrInvalidFormat)
	assert.ErrorIs(t, CheckImage("image/png", MaxImageSize+1), ErrInvalidFormat)
}

func TestLocalImageStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalImageStore(dir, "/uploads")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "cat.PNG", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	url, err = store.Put(context.Background(), "noext", "image/webp", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".webp"))
}

func TestImgurImageStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Client-ID test-client", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "base64", r.FormValue("type"))

		var resp ImgurResponse
		resp.Success = true
		resp.Status = 200
		resp.Data.ID = "abc123"
		resp.Data.Link = "https://i.imgur.com/abc123.png"
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	store := NewImgurImageStore("test-client")
	store.Endpoint = srv.URL
	url, err := store.Put(context.Background(), "a.png", "image/png", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://i.imgur.com/abc123.png", url)

	_, err = NewImgurImageStore("").Put(context.Background(), "a.png", "image/png", strings.NewReader("data"))
	assert.Error(t, err)
}
