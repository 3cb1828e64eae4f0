package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPageNumber keeps (page-1)*size well inside int range.
	MaxPageNumber = math.MaxInt32 / MaxPageSize
)

// Pagination is bound from query parameters on list endpoints.
type Pagination struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	PageToken string `form:"page_token"`
}

// Page is a resolved, validated page request.
type Page struct {
	Number int
	Size   int
}

type PageInfo struct {
	Page              int    `json:"page"`
	PageSize          int    `json:"page_size"`
	TotalItems        int64  `json:"total_items"`
	TotalPages        int    `json:"total_pages"`
	HasMore           bool   `json:"has_more"`
	NextPageToken     string `json:"next_page_token,omitempty"`
	PreviousPageToken string `json:"previous_page_token,omitempty"`
}

type token struct {
	Page   int    `json:"p"`
	Filter string `json:"f"`
}

// Fingerprint identifies a filter combination. Tokens issued under one
// fingerprint do not carry over to another.
func Fingerprint(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, part := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(part))
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "\x1f")))
	return hex.EncodeToString(sum[:8])
}

func EncodeToken(page int, filter string) string {
	b, err := json.Marshal(token{Page: page, Filter: filter})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeToken(data string) (int, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return 0, "", err
	}
	var t token
	if err := json.Unmarshal(b, &t); err != nil {
		return 0, "", err
	}
	return t.Page, t.Filter, nil
}

func NormalizePageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}

// Resolve turns the request into a page. A page token wins over the page
// number, and a token minted under a different filter resolves to page 1.
func Resolve(p Pagination, filter string) Page {
	page := Page{Number: 1, Size: NormalizePageSize(p.PageSize)}

	if tok := strings.TrimSpace(p.PageToken); tok != "" {
		number, tokenFilter, err := DecodeToken(tok)
		if err == nil && tokenFilter == filter && number >= 1 {
			page.Number = min(number, MaxPageNumber)
		}
		return page
	}

	if p.Page >= 1 {
		page.Number = min(p.Page, MaxPageNumber)
	}
	return page
}

func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Scope applies offset/limit to a gorm query.
func (p Page) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Size)
}

func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func BuildPageInfo(page Page, total int64, filter string) PageInfo {
	totalPages := TotalPages(total, page.Size)
	info := PageInfo{
		Page:       page.Number,
		PageSize:   page.Size,
		TotalItems: total,
		TotalPages: totalPages,
		HasMore:    page.Number < totalPages,
	}
	if info.HasMore {
		info.NextPageToken = EncodeToken(page.Number+1, filter)
	}
	if page.Number > 1 {
		info.PreviousPageToken = EncodeToken(page.Number-1, filter)
	}
	return info
}
