package enrich

import "fmt"

// FetchError is a non-2xx response from the insights API.
type FetchError struct {
	LocationID int64
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("enrich: location %d: status %d: %s", e.LocationID, e.StatusCode, e.Body)
}

// ParseError is a candidate or response the fetcher cannot use.
type ParseError struct {
	LocationID int64
	Msg        string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("enrich: location %d: %s", e.LocationID, e.Msg)
}
