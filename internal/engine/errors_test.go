package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestRejection(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantReason string
		wantOK     bool
	}{
		{
			name:       "BareSentinel",
			err:        ErrInsufficientFunds,
			wantReason: "insufficient balance",
			wantOK:     true,
		},
		{
			name:       "WrappedSentinelKeepsDetail",
			err:        fmt.Errorf("%w: you can bet up to 40 more this round", ErrBetAboveRoomCap),
			wantReason: "bet exceeds your room limit for this round: you can bet up to 40 more this round",
			wantOK:     true,
		},
		{
			name:   "InternalFailure",
			err:    errors.New("connection refused"),
			wantOK: false,
		},
		{
			name:   "Nil",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reason, ok := Rejection(tc.err)
			if ok != tc.wantOK {
				t.Fatalf("unexpected ok, want: %v, got: %v", tc.wantOK, ok)
			}
			if reason != tc.wantReason {
				t.Errorf("unexpected reason, want: %q, got: %q", tc.wantReason, reason)
			}
		})
	}
}
