package ingest

import "errors"

var (
	// ErrRateLimited is returned when the shop has used up its upload window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrShopNotFound is returned when the upload targets an unregistered shop.
	ErrShopNotFound = errors.New("shop not found")
	// ErrInvalidUpload marks uploads rejected at the edge before any state is touched.
	ErrInvalidUpload = errors.New("invalid upload")
)
