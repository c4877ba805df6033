package connection

import (
	"context"
	"time"

	"github.com/viant/agentrpc"
)

// roundTrip pairs an outgoing request with its eventual response. The
// connection owns it from send time until a response, timeout or close
// completes it; completion happens exactly once because the trip is always
// removed from the pending map before being completed.
type roundTrip struct {
	request  *agentrpc.Request
	response *agentrpc.Response
	err      error
	done     chan struct{}
}

func newRoundTrip(request *agentrpc.Request) *roundTrip {
	return &roundTrip{request: request, done: make(chan struct{})}
}

// wait blocks until the trip completes, the timeout fires or ctx is done.
func (t *roundTrip) wait(ctx context.Context, timeout time.Duration) (*agentrpc.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, agentrpc.NewTimeoutError(t.request.Method, timeout)
	case <-t.done:
		if t.err != nil {
			return nil, t.err
		}
		return t.response, nil
	}
}

func (t *roundTrip) setResponse(response *agentrpc.Response) {
	t.response = response
	close(t.done)
}

func (t *roundTrip) setError(err error) {
	t.err = err
	close(t.done)
}
