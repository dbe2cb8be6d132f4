package pricing

import (
	"errors"
	"testing"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
)

func TestComputeFee(t *testing.T) {
	cases := []struct {
		rate     int64
		duration int
		want     Fee
	}{
		{40000, 90, Fee{LawyerFee: 60000, ServiceFee: 6000, Total: 66000}},
		{40000, 30, Fee{LawyerFee: 20000, ServiceFee: 2000, Total: 22000}},
		{40000, 60, Fee{LawyerFee: 40000, ServiceFee: 4000, Total: 44000}},
		{40000, 120, Fee{LawyerFee: 80000, ServiceFee: 8000, Total: 88000}},
		{0, 60, Fee{}},
	}
	for _, tc := range cases {
		got, err := ComputeFee(tc.rate, tc.duration)
		if err != nil {
			t.Fatalf("rate=%d duration=%d: unexpected error %v", tc.rate, tc.duration, err)
		}
		if got != tc.want {
			t.Fatalf("rate=%d duration=%d: expected %+v, got %+v", tc.rate, tc.duration, tc.want, got)
		}
	}
}

func TestComputeFeeRoundsEachComponent(t *testing.T) {
	// 33335 * 0.5 = 16667.5 -> 16668; 16668 * 0.1 = 1666.8 -> 1667.
	// Rounding once on the unrounded sum would give 18334 instead of 18335.
	got, err := ComputeFee(33335, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Fee{LawyerFee: 16668, ServiceFee: 1667, Total: 18335}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	// 45 * 0.1 = 4.5 rounds up to 5.
	got, err = ComputeFee(45, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ServiceFee != 5 || got.Total != 50 {
		t.Fatalf("expected service fee 5 and total 50, got %+v", got)
	}
}

func TestComputeFeeRejectsBadInput(t *testing.T) {
	if _, err := ComputeFee(40000, 45); !errors.Is(err, model.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := ComputeFee(-1, 60); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}
