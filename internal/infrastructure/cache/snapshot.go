package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
)

const snapshotFormatVersion = 1

// snapshotProduct keeps the loaded-fields mask, which the domain type does
// not serialize
type snapshotProduct struct {
	catalog.Product
	Fields catalog.Field `json:"fields"`
}

type snapshotEnvelope struct {
	Version  int               `json:"version"`
	SavedAt  time.Time         `json:"saved_at"`
	Products []snapshotProduct `json:"products"`
}

func encodeSnapshot(products []catalog.Product, now time.Time) ([]byte, error) {
	env := snapshotEnvelope{
		Version:  snapshotFormatVersion,
		SavedAt:  now,
		Products: make([]snapshotProduct, len(products)),
	}
	for i, p := range products {
		env.Products[i] = snapshotProduct{Product: p, Fields: p.Fields}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) ([]catalog.Product, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode product snapshot: %w", err)
	}
	if env.Version != snapshotFormatVersion {
		return nil, fmt.Errorf("unsupported product snapshot version %d", env.Version)
	}
	products := make([]catalog.Product, len(env.Products))
	for i, sp := range env.Products {
		p := sp.Product
		p.Fields = sp.Fields
		products[i] = p
	}
	return products, nil
}
