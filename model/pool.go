package model

import (
	"context"

	"github.com/swdee/go-platenet"
)

// Pool holds a fixed number of batch size one inference sessions so several
// requests can run the classifier concurrently
type Pool struct {
	sessions *platenet.Pool[*Session]
}

// NewPool creates size inference sessions over the classifier
func NewPool(c *Classifier, size int) (*Pool, error) {

	sessions, err := platenet.NewPool(size, func(int) (*Session, error) {
		return c.NewSession(1)
	})

	if err != nil {
		return nil, err
	}

	return &Pool{sessions: sessions}, nil
}

// Predict runs one image on a free session, waiting for one if all are busy
func (p *Pool) Predict(ctx context.Context, input []float64) (platenet.Prediction, error) {

	s, err := p.sessions.Get(ctx)

	if err != nil {
		return nil, err
	}

	defer p.sessions.Return(s)

	return s.Predict(ctx, input)
}

// Size returns the number of sessions in the pool
func (p *Pool) Size() int {
	return p.sessions.Size()
}

// Close the pool and all its sessions
func (p *Pool) Close() error {
	p.sessions.Close()
	return nil
}
