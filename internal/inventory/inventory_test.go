package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "seatline/internal/errors"
	"seatline/internal/repository/memory"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in    string
		label string
		ok    bool
	}{
		{"1", "1", true},
		{"01", "1", true},
		{"seat 12", "12", true},
		{"A3", "3", true},
		{"-1", "-1", true},
		{" -07", "-7", true},
		{"window", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		label, _, ok := Normalize(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.label, label, tt.in)
	}
}

func TestEnsureSeeded_ZeroCapacity(t *testing.T) {
	db := memory.New()
	err := EnsureSeeded(context.Background(), db.Seats(), 1, 0)
	assert.Equal(t, apperrors.KindCapacity, apperrors.KindOf(err))
}

func TestEnsureSeeded_Twice(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	require.NoError(t, EnsureSeeded(ctx, db.Seats(), 1, 4))
	require.NoError(t, EnsureSeeded(ctx, db.Seats(), 1, 4))

	seats, err := db.Seats().ListByTrip(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, seats, 4)
}

func TestLookup_Normalization(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	require.NoError(t, EnsureSeeded(ctx, db.Seats(), 1, 4))

	seats, err := Lookup(ctx, db.Seats(), 1, 4, []string{"1", "01", " 1 ", "2"})
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "1", seats[0].SeatLabel)
	assert.Equal(t, "2", seats[1].SeatLabel)
}

func TestLookup_Errors(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	require.NoError(t, EnsureSeeded(ctx, db.Seats(), 1, 4))

	_, err := Lookup(ctx, db.Seats(), 1, 4, []string{"5"})
	assert.Equal(t, apperrors.KindCapacity, apperrors.KindOf(err))

	_, err = Lookup(ctx, db.Seats(), 1, 4, []string{"0"})
	assert.Equal(t, apperrors.KindCapacity, apperrors.KindOf(err))

	seats, err := Lookup(ctx, db.Seats(), 1, 4, []string{"-1"})
	assert.Equal(t, apperrors.KindCapacity, apperrors.KindOf(err))
	assert.Empty(t, seats)

	_, err = Lookup(ctx, db.Seats(), 1, 4, []string{"aisle"})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = Lookup(ctx, db.Seats(), 1, 4, []string{"", "  "})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestLookup_CreatesMissingInRangeSeat(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	// seeded before the bus grew from 2 to 4 seats
	require.NoError(t, EnsureSeeded(ctx, db.Seats(), 1, 2))

	seats, err := Lookup(ctx, db.Seats(), 1, 4, []string{"04"})
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, "4", seats[0].SeatLabel)

	all, err := db.Seats().ListByTrip(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
