package attachment

import (
	"context"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ClamdScanner streams content to a clamd daemon.
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner returns nil when address is empty, which disables scanning.
func NewClamdScanner(address string) Scanner {
	if address == "" {
		return nil
	}
	return &ClamdScanner{client: clamd.NewClamd(address)}
}

func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan attachment: %w", err)
	}

	var verdict error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return verdict
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				verdict = fmt.Errorf("%w: %s", ErrInfected, result.Description)
			default:
				verdict = fmt.Errorf("scan attachment: %s %s", result.Status, result.Description)
			}
		}
	}
}
