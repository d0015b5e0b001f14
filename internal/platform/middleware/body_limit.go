package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// ImportPath is the roster workbook upload endpoint, which gets the larger
// of the two body limits.
const ImportPath = "/api/v1/roster/import"

const defaultBodyLimit = 1 << 20

// BodyLimit caps request bodies at defaultLimit, or at uploadLimit for
// POST /api/v1/roster/import. Limits are sizes such as "1M", "512K" or
// "2G"; a bare number is bytes. Oversized requests get a 413.
func BodyLimit(defaultLimit string, uploadLimit string) echo.MiddlewareFunc {
	limits := [2]int64{parseLimit(defaultLimit), parseLimit(uploadLimit)}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := limits[0]
			if req.Method == http.MethodPost && strings.TrimSuffix(req.URL.Path, "/") == ImportPath {
				limit = limits[1]
			}
			if req.ContentLength > limit {
				return payloadTooLarge(limit)
			}

			// Content-Length may be absent or wrong.
			req.Body = &cappedBody{ReadCloser: req.Body, left: limit, limit: limit}
			return next(c)
		}
	}
}

// cappedBody fails the read that takes the body past limit.
type cappedBody struct {
	io.ReadCloser
	left  int64
	limit int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, payloadTooLarge(b.limit)
	}
	// One byte past the limit is enough to tell an exact fit from an overflow.
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return 0, payloadTooLarge(b.limit)
	}
	return n, err
}

func payloadTooLarge(limit int64) error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit))
}

var sizeUnits = []struct {
	suffix string
	scale  int64
}{
	{"GB", 1 << 30}, {"G", 1 << 30},
	{"MB", 1 << 20}, {"M", 1 << 20},
	{"KB", 1 << 10}, {"K", 1 << 10},
	{"B", 1},
}

// parseLimit reads a size such as "10M". Anything unparseable means 1 MB.
func parseLimit(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	scale := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, scale = strings.TrimSuffix(s, u.suffix), u.scale
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n * scale
}
