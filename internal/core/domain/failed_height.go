package domain

import "time"

// FailedHeight is a ledger entry for a height that could not be archived.
type FailedHeight struct {
	Height     int64     `json:"height"`
	Gateway    string    `json:"gateway"`
	Proxy      string    `json:"proxy"`
	Error      string    `json:"error_msg"`
	RetryCount int       `json:"retry_count"`
	LastFailed time.Time `json:"last_failed"`
}
