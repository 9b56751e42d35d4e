package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// List endpoints page with ?offset=&limit=.
const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// Page is one window of a list response.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the window a Page was cut from.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// paginate cuts items by the request's offset and limit and sets the Link
// header. A negative offset reads as 0; a missing, non-positive or oversized
// limit reads as defaultPageLimit. Data is never nil.
func paginate[T any](c *fiber.Ctx, items []T) Page[T] {
	offset := max(c.QueryInt("offset", 0), 0)
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)

	p := Page[T]{
		Data:       append(make([]T, 0, end-start), items[start:end]...),
		Pagination: Pagination{Offset: offset, Limit: limit, Total: total},
	}
	setLinkHeader(c, p.Pagination)
	return p
}

// setLinkHeader writes RFC 8288 first/prev/next/last links. Query
// parameters other than offset and limit are carried over.
func setLinkHeader(c *fiber.Ctx, p Pagination) {
	// last starts on a page boundary so following next from 0 reaches it.
	last := 0
	if p.Total > 0 {
		last = (p.Total - 1) / p.Limit * p.Limit
	}

	links := []string{pageLink(c, 0, p.Limit, "first")}
	if p.Offset > 0 {
		links = append(links, pageLink(c, max(min(p.Offset, p.Total)-p.Limit, 0), p.Limit, "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, pageLink(c, p.Offset+p.Limit, p.Limit, "next"))
	}
	links = append(links, pageLink(c, last, p.Limit, "last"))

	c.Set(fiber.HeaderLink, strings.Join(links, ", "))
}

func pageLink(c *fiber.Ctx, offset, limit int, rel string) string {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)

	c.Context().QueryArgs().CopyTo(args)
	args.SetUint("offset", offset)
	args.SetUint("limit", limit)
	return fmt.Sprintf(`<%s?%s>; rel=%q`, c.Path(), args.QueryString(), rel)
}
