package booking

import (
	"net/http"

	"github.com/askarbek/ride-driver-agent/internal/domain/types"
)

// classifyStatus maps a non-2xx response status to the domain failure kind.
// The coordinator matches on these with errors.Is; retry policy lives there,
// not here.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return types.ErrBackendNotFound
	case status == http.StatusConflict:
		return types.ErrBackendConflict
	default:
		return types.ErrBackendServer
	}
}
