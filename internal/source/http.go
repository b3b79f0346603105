package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fridgeframe/internal/media"

	"golang.org/x/sync/singleflight"
)

const (
	photoSizeSuffix = "=w1200-h800"
	videoSizeSuffix = "=dv-w1280-h720"
	maxBodyBytes    = 8 << 20
	defaultTimeout  = time.Minute
)

// payload is the endpoint's JSON. Both the kiosk's historical field names
// and the camelCase ones are accepted.
type payload struct {
	Photos     []payloadItem `json:"photos"`
	Items      []payloadItem `json:"items"`
	AlbumTitle string        `json:"album_title"`
	AlbumAlt   string        `json:"albumTitle"`
	Error      string        `json:"error"`
}

type payloadItem struct {
	BaseURL   string `json:"baseUrl"`
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
	PhotoTime string `json:"photo_time"`
	Filename  string `json:"filename"`
	Error     string `json:"error"`
}

func (p payload) items() []payloadItem {
	if len(p.Photos) > 0 {
		return p.Photos
	}
	return p.Items
}

func (p payload) album() string {
	if p.AlbumTitle != "" {
		return p.AlbumTitle
	}
	return p.AlbumAlt
}

// HTTPSource fetches batches from the provisioning endpoint. Concurrent
// FetchBatch calls share one request.
type HTTPSource struct {
	endpoint string
	client   *http.Client
	rawURLs  bool
	logger   LoggerFunc
	group    singleflight.Group
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithRawURLs disables the sizing suffixes appended to item URLs.
func WithRawURLs(raw bool) HTTPOption {
	return func(s *HTTPSource) { s.rawURLs = raw }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l LoggerFunc) HTTPOption {
	return func(s *HTTPSource) { s.logger = l }
}

// NewHTTPSource creates a source for endpoint, e.g. http://frame.local/newphoto.
func NewHTTPSource(endpoint string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchBatch implements slideshow.BatchSource. The shared request is not
// tied to any one caller's context; each caller stops waiting when its own
// ctx is done.
func (s *HTTPSource) FetchBatch(ctx context.Context) (media.Batch, error) {
	ch := s.group.DoChan("batch", func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
		defer cancel()
		return s.fetch(fctx)
	})
	select {
	case <-ctx.Done():
		return media.Batch{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logMessage(s.logger, "joined an in-flight batch request")
		}
		if res.Err != nil {
			return media.Batch{}, res.Err
		}
		return res.Val.(media.Batch), nil
	}
}

// timeout bounds a shared request. It follows the client's own limit.
func (s *HTTPSource) timeout() time.Duration {
	if s.client != nil && s.client.Timeout > 0 {
		return s.client.Timeout
	}
	return defaultTimeout
}

func (s *HTTPSource) fetch(ctx context.Context) (media.Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return media.Batch{}, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return media.Batch{}, fmt.Errorf("request batch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return media.Batch{}, fmt.Errorf("read batch response: %w", err)
	}

	var p payload
	decodeErr := json.Unmarshal(body, &p)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if decodeErr != nil {
		if !ok {
			return media.Batch{}, fmt.Errorf("%w: %s", ErrEndpoint, resp.Status)
		}
		return media.Batch{}, fmt.Errorf("decode batch response: %w", decodeErr)
	}
	if p.Error != "" || !ok {
		return media.Batch{}, s.failure(p, resp.Status)
	}
	return s.toBatch(p)
}

// failure turns an error payload into a FetchError carrying whatever
// placeholders the endpoint supplied.
func (s *HTTPSource) failure(p payload, status string) error {
	reason := p.Error
	if reason == "" {
		reason = fmt.Sprintf("%s: %s", ErrEndpoint, status)
	}
	fe := &media.FetchError{Reason: reason, Album: p.album(), Err: ErrEndpoint}
	for _, pi := range p.items() {
		if pi.Error != "" {
			fe.Placeholders = append(fe.Placeholders, media.ErrorItem(pi.Error))
		}
	}
	logMessage(s.logger, "endpoint reported failure: %s (%d placeholders)", reason, len(fe.Placeholders))
	return fe
}

func (s *HTTPSource) toBatch(p payload) (media.Batch, error) {
	raw := p.items()
	if len(raw) == 0 {
		return media.Batch{}, ErrNoMedia
	}
	items := make([]media.Item, 0, len(raw))
	for i, pi := range raw {
		it, err := s.toItem(pi)
		if err != nil {
			logMessage(s.logger, "dropping item %d: %v", i, err)
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return media.Batch{}, ErrNoMedia
	}
	return media.NewBatch(p.album(), items), nil
}

func (s *HTTPSource) toItem(pi payloadItem) (media.Item, error) {
	if pi.Error != "" || strings.EqualFold(pi.MediaType, "error") {
		msg := pi.Error
		if msg == "" {
			msg = "unknown error"
		}
		return media.ErrorItem(msg), nil
	}
	kind := media.KindPhoto
	if pi.MediaType != "" {
		k, err := media.ParseKind(pi.MediaType)
		if err != nil {
			return media.Item{}, err
		}
		kind = k
	}
	ref := pi.BaseURL
	if ref == "" {
		ref = pi.URL
	}
	if !s.rawURLs {
		ref = sized(ref, kind)
	}
	it := media.Item{
		Kind:       kind,
		SourceRef:  ref,
		CapturedAt: parseCaptureTime(pi.PhotoTime),
		Filename:   pi.Filename,
	}
	if err := it.Validate(); err != nil {
		return media.Item{}, err
	}
	return it, nil
}

// sized appends the display sizing suffix unless the ref already has one.
func sized(ref string, kind media.Kind) string {
	if ref == "" || strings.Contains(ref[strings.LastIndex(ref, "/")+1:], "=") {
		return ref
	}
	if kind == media.KindVideo {
		return ref + videoSizeSuffix
	}
	return ref + photoSizeSuffix
}

func parseCaptureTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
