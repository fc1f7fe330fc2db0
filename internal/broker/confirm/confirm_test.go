package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/korea-trading-core/core/internal/model"
)

// mockClient scripts a sequence of order-status responses and a cancel
// outcome, the way the buy/sell executors' Gateway would behave.
type mockClient struct {
	statuses    []model.OrderStatus
	statusErr   error
	statusCalls int

	cancelResult model.CancelResult
	cancelErr    error
	cancelCalls  int
}

func (m *mockClient) OrderStatus(ctx context.Context, orderNo string) (model.OrderStatus, error) {
	if m.statusErr != nil {
		return model.OrderStatus{}, m.statusErr
	}
	i := m.statusCalls
	m.statusCalls++
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	return m.statuses[i], nil
}

func (m *mockClient) Cancel(ctx context.Context, orderNo string) (model.CancelResult, error) {
	m.cancelCalls++
	return m.cancelResult, m.cancelErr
}

func TestPollConfirmsFill(t *testing.T) {
	m := &mockClient{statuses: []model.OrderStatus{
		{Filled: false},
		{Filled: true, FilledQty: 12, AvgPrice: decimal.NewFromInt(72120)},
	}}

	out, err := Poll(context.Background(), m, "ORD1", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !out.Filled || out.FilledQty != 12 || !out.AvgPrice.Equal(decimal.NewFromInt(72120)) {
		t.Fatalf("outcome = %+v, want filled 12 @ 72120", out)
	}
	if m.cancelCalls != 0 {
		t.Error("a confirmed fill must not be cancelled")
	}
}

func TestPollCancelsAfterExhaustedPolls(t *testing.T) {
	m := &mockClient{
		statuses:     []model.OrderStatus{{Filled: false}},
		cancelResult: model.CancelResult{Success: true},
	}

	out, err := Poll(context.Background(), m, "ORD2", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if out.Filled || out.Uncertain {
		t.Fatalf("outcome = %+v, want clean no-fill", out)
	}
	if m.statusCalls != 3 {
		t.Errorf("status polled %d times, want 3", m.statusCalls)
	}
	if m.cancelCalls != 1 {
		t.Errorf("cancel called %d times, want 1", m.cancelCalls)
	}
}

func TestPollResolvesCancelRaceAsFill(t *testing.T) {
	// Cancel fails because the order filled between the last poll and
	// the cancel; the extra status poll must surface the fill.
	m := &mockClient{
		statuses: []model.OrderStatus{
			{Filled: false},
			{Filled: false},
			{Filled: false},
			{Filled: true, FilledQty: 5, AvgPrice: decimal.NewFromInt(10000)},
		},
		cancelResult: model.CancelResult{Success: false},
	}

	out, err := Poll(context.Background(), m, "ORD3", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !out.Filled || out.FilledQty != 5 {
		t.Fatalf("outcome = %+v, want the racing fill", out)
	}
}

func TestPollMarksUncertainWhenNothingResolves(t *testing.T) {
	m := &mockClient{
		statuses:  []model.OrderStatus{{Filled: false}},
		cancelErr: errors.New("venue 500"),
	}
	// After cancel fails, the follow-up status poll still says unfilled.
	out, err := Poll(context.Background(), m, "ORD4", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !out.Uncertain {
		t.Fatalf("outcome = %+v, want Uncertain", out)
	}
}

func TestDryRunSkipsPolling(t *testing.T) {
	m := &mockClient{}
	out, err := Poll(context.Background(), m, DryRunOrderNo, 3, time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !out.Filled {
		t.Fatal("dry-run order must be treated as filled")
	}
	if m.statusCalls != 0 || m.cancelCalls != 0 {
		t.Error("dry-run must not touch the gateway")
	}
}
