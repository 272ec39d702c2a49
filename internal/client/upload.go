package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/composer"
)

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload streams file to the file service as multipart/form-data and
// returns the file id it assigned.
//
// POST {files}/v1/spaces/:id/files  fields: file, uploader_id
func (c *Client) Upload(ctx context.Context, spaceID uuid.UUID, file composer.File, userID uuid.UUID) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUpload(mw, file.Name, f, userID)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	endpoint := c.filesURL + "/v1/spaces/" + spaceID.String() + "/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		_ = pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("upload %s: %w", file.Name, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("upload %s: file service returned no id", file.Name)
	}
	return resp.ID, nil
}

func writeUpload(mw *multipart.Writer, name string, r io.Reader, userID uuid.UUID) error {
	if err := mw.WriteField("uploader_id", userID.String()); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}
