package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (Response, error)
	PostMultipart(ctx context.Context, url string, req MultipartRequest, headers map[string]string) (Response, error)
}

// MultipartRequest describes a single-file multipart/form-data upload.
type MultipartRequest struct {
	FileField string
	FileName  string
	FileData  []byte
	Fields    map[string]string
}
