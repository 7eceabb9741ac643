package client

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"

	_ "golang.org/x/image/webp"
)

// FetchImage 从网关 /media 下载已保存的图片
func (u *Uploader) FetchImage(ctx context.Context, filename string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/media/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, err
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", filename, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return img, nil
}
