package api

import (
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// pageRequest reads ?page= and ?limit=. An unparsable page is answered with
// 404 and false; an unparsable limit falls back to the default.
func pageRequest(c *gin.Context, cfg config.PaginationConfig) (service.PageRequest, bool) {
	limit := max(cfg.DefaultLimit, 1)
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = min(n, cfg.MaxLimit)
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		// pages whose offset does not fit an int are past any real result set
		if err != nil || n < 1 || n-1 > math.MaxInt/limit {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return service.PageRequest{}, false
		}
		page = n
	}
	return service.PageRequest{Page: page, Limit: limit}, true
}

// writePage renders a page envelope. A page past the end of a non-empty
// result set is a 404, as is any page but the first of an empty one.
func writePage[T any](c *gin.Context, req service.PageRequest, total int64, results []T) {
	if req.Page > 1 && int64(req.Offset()) >= total {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
		return
	}

	page := types.Page[T]{Count: total, Results: results}
	if int64(req.Offset())+int64(len(results)) < total {
		page.Next = pageURL(c, req.Page+1)
	}
	if req.Page > 1 {
		page.Previous = pageURL(c, req.Page-1)
	}
	c.JSON(http.StatusOK, page)
}

func pageURL(c *gin.Context, page int) *string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := c.Request.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: q.Encode()}
	s := u.String()
	return &s
}
