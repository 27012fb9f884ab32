package persistence

import (
	"context"

	"interviewer/pkg/interview"
	"interviewer/pkg/logx"
)

// ResultSaver is the write side of Store.
type ResultSaver interface {
	SaveResult(ctx context.Context, result *interview.SessionResult) error
}

// Request asks the persistence worker to save a result.
type Request struct {
	Result   *interview.SessionResult
	Response chan<- error // nil for fire-and-forget writes
}

// PersistResult sends result to the persistence worker. A nil channel or
// result is a no-op, so callers can run without a database.
func PersistResult(result *interview.SessionResult, persistenceChannel chan<- *Request) {
	if persistenceChannel == nil || result == nil {
		return
	}

	persistenceChannel <- &Request{Result: result}
}

// RunWorker saves requests until the channel is closed or ctx is done.
// Save failures are logged for fire-and-forget requests and returned on the
// response channel otherwise.
func RunWorker(ctx context.Context, saver ResultSaver, requests <-chan *Request) {
	logger := logx.NewLogger("persistence")
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if req == nil || req.Result == nil {
				continue
			}
			err := saver.SaveResult(ctx, req.Result)
			if req.Response != nil {
				req.Response <- err
				continue
			}
			if err != nil {
				logger.Error("Failed to persist result %s: %v", req.Result.SessionID, err)
			}
		}
	}
}
