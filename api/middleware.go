package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const gzipEncoding = "gzip"

// GzipRequestMiddleware transparently inflates gzip request bodies. Board
// documents compress well, so clients are encouraged to send them encoded; a
// body that claims gzip but does not parse is answered with 400 before any
// handler runs.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}

			inflated, err := newInflatedBody(req.Body)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			req.Body = inflated
			// The declared length describes the compressed stream, which no
			// longer matches what handlers will read.
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)

			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), gzipEncoding) {
			return true
		}
	}
	return false
}

// inflatedBody reads through a gzip stream and closes both the decompressor
// and the underlying request body.
type inflatedBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func newInflatedBody(raw io.ReadCloser) (*inflatedBody, error) {
	gr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &inflatedBody{Reader: gr, raw: raw}, nil
}

func (b *inflatedBody) Close() error {
	err := b.Reader.Close()
	if cerr := b.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
