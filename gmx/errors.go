package gmx

import "fmt"

// ConnectionError reports that the RPC endpoint could not be reached or did
// not behave like an Ethereum JSON-RPC endpoint at client construction.
// Construction failures are terminal; the caller decides whether to rebuild.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// FetchError reports that a position or balance read failed or returned a
// malformed payload. Reads are all-or-nothing: a FetchError means no partial
// result was produced.
type FetchError struct {
	// Op names the failing read, e.g. "getAccountPositions" or "balanceOf".
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
