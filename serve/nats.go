package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Reply is the JSON reply to a recognition request over NATS
type Reply struct {
	RequestID string  `json:"request_id"`
	Result    *Result `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	// ClientError is set when the request itself was at fault
	ClientError bool `json:"client_error,omitempty"`
}

// Responder answers recognition requests published on a NATS subject.  The
// request payload is the encoded image and the reply a JSON Reply.
type Responder struct {
	svc     *Service
	metrics *Metrics
	log     *zap.SugaredLogger
	timeout time.Duration
	sub     *nats.Subscription
}

// NewResponder returns a responder with the given per request timeout
func NewResponder(svc *Service, metrics *Metrics, timeout time.Duration,
	log *zap.SugaredLogger) *Responder {

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Responder{
		svc:     svc,
		metrics: metrics,
		log:     log,
		timeout: timeout,
	}
}

// Start subscribes to subject in a queue group so several instances share
// the load
func (r *Responder) Start(nc *nats.Conn, subject, queue string) error {

	sub, err := nc.QueueSubscribe(subject, queue, r.handle)

	if err != nil {
		return fmt.Errorf("error subscribing to %s: %w", subject, err)
	}

	r.sub = sub
	r.log.Infof("answering plate requests on %s", subject)

	return nil
}

// Stop drains the subscription
func (r *Responder) Stop() error {

	if r.sub == nil {
		return nil
	}

	return r.sub.Drain()
}

// handle answers one request message
func (r *Responder) handle(msg *nats.Msg) {

	id := msg.Header.Get(requestIDHeader)

	if id == "" {
		id = uuid.NewString()
	}

	data, err := json.Marshal(r.Answer(id, msg.Data))

	if err != nil {
		r.log.Errorw("error encoding reply", "request_id", id, "error", err)
		return
	}

	if err := msg.Respond(data); err != nil {
		r.log.Errorw("error sending reply", "request_id", id, "error", err)
	}
}

// Answer recognises one image and builds the reply
func (r *Responder) Answer(id string, image []byte) Reply {

	ctx := context.Background()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.svc.Recognize(ctx, image)

	if err != nil {
		client := IsClientError(err)
		status := "error"

		if client {
			status = "rejected"
		}

		r.metrics.request("nats", status)
		r.log.Infow("recognition failed", "request_id", id, "error", err)

		return Reply{RequestID: id, Error: err.Error(), ClientError: client}
	}

	r.metrics.request("nats", "ok")

	return Reply{RequestID: id, Result: &res}
}
