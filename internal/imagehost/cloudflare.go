package imagehost

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/pkg/httpclient"
)

const uploadURLTemplate = "https://api.cloudflare.com/client/v4/accounts/%s/images/v1"

// Client uploads raw image bytes to Cloudflare Images and derives public
// delivery URLs from the opaque image id.
type Client struct {
	http        httpclient.Client
	accountID   string
	accountHash string
	apiToken    string
	log         logger.Logger
}

// Config carries the account-level settings for the images API.
type Config struct {
	AccountID   string
	AccountHash string
	APIToken    string
}

// New builds an images client over the given HTTP client.
func New(http httpclient.Client, cfg Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Client{
		http:        http,
		accountID:   cfg.AccountID,
		accountHash: cfg.AccountHash,
		apiToken:    cfg.APIToken,
		log:         log,
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Result  struct {
		ID string `json:"id"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Upload sends the image bytes and returns the assigned image id.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	req := httpclient.MultipartRequest{
		FileField: "file",
		FileName:  filename,
		FileData:  data,
		// Public URLs are wanted.
		Fields: map[string]string{"requireSignedURLs": "false"},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiToken,
	}

	resp, err := c.http.PostMultipart(ctx, fmt.Sprintf(uploadURLTemplate, c.accountID), req, headers)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("image upload returned status %d", resp.StatusCode())
	}

	var decoded uploadResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return "", fmt.Errorf("decode image upload response: %w", err)
	}
	if !decoded.Success {
		if len(decoded.Errors) > 0 {
			return "", fmt.Errorf("image upload rejected: %d %s", decoded.Errors[0].Code, decoded.Errors[0].Message)
		}
		return "", fmt.Errorf("image upload rejected")
	}

	c.log.DebugObj("image uploaded", "image_meta", map[string]any{
		"filename": filename,
		"image_id": decoded.Result.ID,
	})
	return decoded.Result.ID, nil
}

// PublicURL derives the public delivery URL for an uploaded image.
func (c *Client) PublicURL(imageID string) string {
	return fmt.Sprintf("https://imagedelivery.net/%s/%s/public", c.accountHash, imageID)
}
