// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the group platform and grant service clients. The
// timeout caps a single attempt; the retry policy around those calls owns
// the overall budget.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	},
}
