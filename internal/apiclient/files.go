package apiclient

import (
	"context"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/da-luiz/Clear-Chain/internal/files"
)

// Upload sends a supporting document and returns where it was stored.
func (c *Client) Upload(ctx context.Context, name string, body io.Reader) (files.Stored, error) {
	var out files.Stored
	err := c.do(ctx, http.MethodPost, "/api/files/upload", true, func(r *resty.Request) {
		r.SetFileReader("file", name, body)
	}, &out)
	return out, err
}
