package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// CardInstrument is the payment instrument presented by the caller. The full
// number never leaves this process; only the last four digits are persisted.
type CardInstrument struct {
	Number     string
	Expiry     string
	CVV        string
	HolderName string
}

// ChargeResult is the gateway's verdict on a single charge attempt
type ChargeResult struct {
	Success    bool
	GatewayRef string
	Message    string
}

// Gateway is the external payment gateway collaborator. One call per payment
// attempt; the processor never retries against the gateway.
type Gateway interface {
	Charge(ctx context.Context, transactionID string, card CardInstrument, amount int64) (ChargeResult, error)
}

// MockGateway simulates an external gateway with a configurable success rate
// and processing delay. The delay honors context cancellation so a bounded
// timeout upstream is respected.
type MockGateway struct {
	SuccessRate float64
	Latency     time.Duration
}

// NewMockGateway creates a mock gateway with a 95% approval rate
func NewMockGateway() *MockGateway {
	return &MockGateway{
		SuccessRate: 0.95,
		Latency:     time.Second,
	}
}

// Charge simulates one gateway round trip
func (g *MockGateway) Charge(ctx context.Context, transactionID string, card CardInstrument, amount int64) (ChargeResult, error) {
	select {
	case <-time.After(g.Latency):
	case <-ctx.Done():
		return ChargeResult{}, ctx.Err()
	}

	success := rand.Float64() < g.SuccessRate

	result := ChargeResult{
		Success:    success,
		GatewayRef: fmt.Sprintf("GW-%d", time.Now().UnixMilli()),
	}
	if success {
		result.Message = "Payment processed successfully"
	} else {
		result.Message = "Payment declined"
	}

	return result, nil
}
