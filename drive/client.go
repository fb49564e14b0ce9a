package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/dostvardhan/drivegate"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"
)

// ClientConfig holds configuration for the provider client.
// The base URLs are overridable so tests can point at a fake provider.
type ClientConfig struct {
	APIBase    string
	UploadBase string
	// FolderID is the optional container objects are created under.
	FolderID   string
	HTTPClient *http.Client
}

// Client calls the storage provider's REST API: create-object,
// get-object-metadata, stream-object-media, list-objects-in-container,
// and the public-read permission grant.
//
// Every call carries an access token from the credential manager. On a
// single authorization failure the client invalidates the cached token
// and retries exactly once with a fresh one; a second failure surfaces
// as ErrUpstream. Never more than one re-exchange per call.
type Client struct {
	creds      *Credentials
	httpClient *http.Client
	apiBase    string
	uploadBase string
	folderID   string
}

func NewClient(creds *Credentials, cfg ClientConfig) *Client {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	uploadBase := cfg.UploadBase
	if uploadBase == "" {
		uploadBase = defaultUploadBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		creds:      creds,
		httpClient: httpClient,
		apiBase:    apiBase,
		uploadBase: uploadBase,
		folderID:   cfg.FolderID,
	}
}

// do runs a provider call with the bounded credential retry. The build
// callback must produce a fresh request (including a fresh body) on each
// invocation, since a retried request cannot reuse a consumed stream.
func (c *Client) do(ctx context.Context, build func(token string) (*http.Request, error)) (*http.Response, error) {
	token, err := c.creds.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(build, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drainAndClose(resp.Body)

	c.creds.Invalidate()
	token, err = c.creds.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	return c.send(build, token)
}

func (c *Client) send(build func(token string) (*http.Request, error), token string) (*http.Response, error) {
	req, err := build(token)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", drivegate.ErrUpstream, err)
	}
	return resp, nil
}

// Create streams content into a new provider object using a
// multipart/related upload: a JSON metadata part followed by the media
// part, written through a pipe so the payload is never held whole in
// memory. The content seeker is rewound before each attempt so the
// bounded retry can replay the body.
func (c *Client) Create(ctx context.Context, req drivegate.UploadRequest, content io.ReadSeeker) (drivegate.StoredObject, error) {
	meta := map[string]any{
		"name":     req.Name,
		"mimeType": req.MimeType,
	}
	if c.folderID != "" {
		meta["parents"] = []string{c.folderID}
	}

	// The previous attempt's writer goroutine keeps reading from the
	// shared seeker until the transport closes its pipe, which happens
	// asynchronously after a 401. A retry must wait for it to finish
	// before rewinding.
	var prevWriter chan struct{}

	build := func(string) (*http.Request, error) {
		if prevWriter != nil {
			<-prevWriter
		}

		if _, err := content.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("create object: rewind content: %w", err)
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		writerDone := make(chan struct{})
		prevWriter = writerDone
		go func() {
			defer close(writerDone)
			writeMultipartRelated(pw, mw, meta, req.MimeType, content)
		}()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.uploadBase+"/files?uploadType=multipart&fields=id,name,mimeType,size", pr)
		if err != nil {
			_ = pr.Close()
			return nil, fmt.Errorf("create object: %w", err)
		}
		httpReq.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())
		return httpReq, nil
	}

	resp, err := c.do(ctx, build)
	if err != nil {
		return drivegate.StoredObject{}, fmt.Errorf("create object: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return drivegate.StoredObject{}, fmt.Errorf("create object: %w", statusError(resp))
	}

	var obj drivegate.StoredObject
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return drivegate.StoredObject{}, fmt.Errorf("create object: decode response: %w", err)
	}

	return obj, nil
}

func writeMultipartRelated(pw *io.PipeWriter, mw *multipart.Writer, meta map[string]any, mimeType string, content io.Reader) {
	var err error
	defer func() { _ = pw.CloseWithError(err) }()

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := mw.CreatePart(metaHeader)
	if err != nil {
		return
	}
	if err = json.NewEncoder(part).Encode(meta); err != nil {
		return
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	part, err = mw.CreatePart(mediaHeader)
	if err != nil {
		return
	}
	if _, err = io.Copy(part, content); err != nil {
		return
	}

	err = mw.Close()
}

// Meta fetches object metadata. Returns drivegate.ErrNotFound for
// unknown ids.
func (c *Client) Meta(ctx context.Context, id string) (drivegate.StoredObject, error) {
	resp, err := c.do(ctx, func(string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			c.apiBase+"/files/"+url.PathEscape(id)+"?fields=id,name,mimeType,size", nil)
	})
	if err != nil {
		return drivegate.StoredObject{}, fmt.Errorf("object meta %s: %w", id, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return drivegate.StoredObject{}, fmt.Errorf("object meta %s: %w", id, drivegate.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return drivegate.StoredObject{}, fmt.Errorf("object meta %s: %w", id, statusError(resp))
	}

	var obj drivegate.StoredObject
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return drivegate.StoredObject{}, fmt.Errorf("object meta %s: decode response: %w", id, err)
	}

	return obj, nil
}

// Stream opens the object's media bytes. The caller must close the
// returned ReadCloser; closing it releases the underlying connection,
// and request-context cancellation aborts an in-flight read.
func (c *Client) Stream(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, func(string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			c.apiBase+"/files/"+url.PathEscape(id)+"?alt=media", nil)
	})
	if err != nil {
		return nil, fmt.Errorf("stream object %s: %w", id, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("stream object %s: %w", id, drivegate.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(resp)
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("stream object %s: %w", id, err)
	}

	return resp.Body, nil
}

// List enumerates objects in the configured container, following page
// tokens until exhausted.
func (c *Client) List(ctx context.Context) ([]drivegate.StoredObject, error) {
	var objects []drivegate.StoredObject
	pageToken := ""

	for {
		q := url.Values{}
		q.Set("fields", "nextPageToken,files(id,name,mimeType,size)")
		q.Set("pageSize", "1000")
		if c.folderID != "" {
			q.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", c.folderID))
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		resp, err := c.do(ctx, func(string) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet,
				c.apiBase+"/files?"+q.Encode(), nil)
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := statusError(resp)
			drainAndClose(resp.Body)
			return nil, fmt.Errorf("list objects: %w", err)
		}

		var page struct {
			NextPageToken string                    `json:"nextPageToken"`
			Files         []drivegate.StoredObject `json:"files"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		drainAndClose(resp.Body)
		if decodeErr != nil {
			return nil, fmt.Errorf("list objects: decode response: %w", decodeErr)
		}

		objects = append(objects, page.Files...)

		if page.NextPageToken == "" {
			return objects, nil
		}
		pageToken = page.NextPageToken
	}
}

// AllowPublicRead grants anyone read access to the object.
func (c *Client) AllowPublicRead(ctx context.Context, id string) error {
	body := `{"role":"reader","type":"anyone"}`

	resp, err := c.do(ctx, func(string) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.apiBase+"/files/"+url.PathEscape(id)+"/permissions", strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	})
	if err != nil {
		return fmt.Errorf("public read grant %s: %w", id, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("public read grant %s: %w", id, statusError(resp))
	}

	return nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("%w: status %d", drivegate.ErrUpstream, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", drivegate.ErrUpstream, resp.StatusCode, msg)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
