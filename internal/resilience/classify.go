package resilience

import (
	"errors"

	"github.com/Strob0t/Studio/internal/domain"
)

// ServerFaults is a breaker classifier that ignores provider rejections of
// bad input and counts everything else.
func ServerFaults(err error) bool {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return !ue.ClientFault()
	}
	return true
}
