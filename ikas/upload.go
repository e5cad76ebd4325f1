package ikas

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// verifyImage decodes the staged file once before upload so corrupt files
// fail locally instead of burning a platform call.
func verifyImage(path string, data []byte) error {
	var err error
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		_, err = webp.Decode(bytes.NewReader(data))
	} else {
		_, err = imaging.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// UploadImage sends one staged image to the binary upload endpoint. The
// first image of a variant (order 0) becomes the cover image.
func (c *Client) UploadImage(ctx context.Context, variantID, path string, order int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	if err := verifyImage(path, data); err != nil {
		return err
	}

	payload := map[string]any{
		"productImage": map[string]any{
			"variantIds": []string{variantID},
			"base64":     base64.StdEncoding.EncodeToString(data),
			"order":      order,
			"isMain":     order == 0,
		},
	}
	return c.postUpload(ctx, payload, true)
}

func (c *Client) postUpload(ctx context.Context, payload map[string]any, allowFallback bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal upload payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{URL: c.UploadURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if allowFallback && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		switched, serr := c.switchToFallback(ctx, fmt.Sprintf("upload HTTP %d", resp.StatusCode))
		if serr != nil {
			return serr
		}
		if switched {
			return c.postUpload(ctx, payload, false)
		}
	}
	raw := make([]byte, 300)
	n, _ := resp.Body.Read(raw)
	return &ProtocolError{Status: resp.StatusCode, Message: snippet(raw[:n])}
}
