package memory

import (
	"context"

	"payment-webhook-engine/internal/core/domain"
)

// ClientDirectory implements ports.ClientStore over the statically
// provisioned emitter and operator credentials. The maps are built once at
// startup and never mutated, so lookups need no locking.
type ClientDirectory struct {
	emitters  map[string]*domain.EmitterClient
	operators map[string]*domain.Operator
}

func NewClientDirectory(emitters []*domain.EmitterClient, operators []*domain.Operator) *ClientDirectory {
	d := &ClientDirectory{
		emitters:  make(map[string]*domain.EmitterClient, len(emitters)),
		operators: make(map[string]*domain.Operator, len(operators)),
	}
	for _, e := range emitters {
		d.emitters[e.AccessKey] = e
	}
	for _, o := range operators {
		d.operators[o.KeyID] = o
	}
	return d
}

func (d *ClientDirectory) EmitterByAccessKey(ctx context.Context, accessKey string) (*domain.EmitterClient, error) {
	e, ok := d.emitters[accessKey]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (d *ClientDirectory) OperatorByKeyID(ctx context.Context, keyID string) (*domain.Operator, error) {
	o, ok := d.operators[keyID]
	if !ok {
		return nil, nil
	}
	return o, nil
}
