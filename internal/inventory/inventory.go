// Package inventory seeds trip seat sets and resolves requested seat identifiers.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"

	apperrors "seatline/internal/errors"
	"seatline/internal/models"
	"seatline/internal/repository"
)

// EnsureSeeded materializes seats 1..seatCount for a trip that has no records yet
func EnsureSeeded(ctx context.Context, seats repository.SeatStore, tripID int64, seatCount int) error {
	if seatCount <= 0 {
		return apperrors.Capacity("seed", "trip %d has no known seat capacity", tripID)
	}

	created, err := seats.EnsureSeeded(ctx, tripID, seatCount)
	if err != nil {
		return apperrors.Internal("seed", fmt.Errorf("failed to seed trip %d: %w", tripID, err))
	}
	if created > 0 {
		slog.Info("Seeded seat inventory", "trip_id", tripID, "seats", created)
	}
	return nil
}

// Normalize strips every non-digit character and returns the canonical
// numeric label. A leading minus keeps its sign, so "-1" is seat -1 and not
// seat 1. ok is false when the identifier carries no digits.
func Normalize(identifier string) (label string, n int, ok bool) {
	negative := strings.HasPrefix(strings.TrimSpace(identifier), "-")
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, identifier)
	if digits == "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		// more digits than fit in an int is out of any bus capacity
		n = int(^uint(0) >> 1)
		if negative {
			n = -n
		}
		return "", n, true
	}
	if negative {
		n = -n
	}
	return strconv.Itoa(n), n, true
}

// Lookup resolves identifiers to seat records. Exact labels win; otherwise the
// numeric form is used, so "1", "01" and 1 name the same seat. In-range numeric
// seats without a record are created on demand. The result is deduplicated and
// keeps the order of first appearance.
func Lookup(ctx context.Context, seats repository.SeatStore, tripID int64, seatCount int, identifiers []string) ([]models.SeatRecord, error) {
	const op = "lookup"

	identifiers = lo.Uniq(lo.FilterMap(identifiers, func(id string, _ int) (string, bool) {
		id = strings.TrimSpace(id)
		return id, id != ""
	}))
	if len(identifiers) == 0 {
		return nil, apperrors.Validation(op, "at least one seat is required")
	}

	type candidate struct {
		raw       string
		canonical string
		numeric   bool
		n         int
	}
	candidates := make([]candidate, 0, len(identifiers))
	probe := make([]string, 0, len(identifiers)*2)
	for _, id := range identifiers {
		c := candidate{raw: id}
		c.canonical, c.n, c.numeric = Normalize(id)
		candidates = append(candidates, c)
		probe = append(probe, id)
		if c.numeric && c.canonical != id {
			probe = append(probe, c.canonical)
		}
	}

	found, err := fetch(ctx, seats, tripID, probe)
	if err != nil {
		return nil, err
	}

	var missing []string
	labels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := found[c.raw]; ok {
			labels = append(labels, c.raw)
			continue
		}
		if !c.numeric {
			return nil, apperrors.NotFound(op, "seat %q not found", c.raw)
		}
		if c.n < 1 || c.n > seatCount {
			return nil, apperrors.Capacity(op, "seat %q is outside the bus capacity of %d", c.raw, seatCount)
		}
		if _, ok := found[c.canonical]; !ok {
			missing = append(missing, c.canonical)
		}
		labels = append(labels, c.canonical)
	}

	if len(missing) > 0 {
		missing = lo.Uniq(missing)
		for _, label := range missing {
			if err := seats.InsertIfAbsent(ctx, tripID, label); err != nil {
				return nil, apperrors.Internal(op, fmt.Errorf("failed to create seat %s: %w", label, err))
			}
		}
		created, err := fetch(ctx, seats, tripID, missing)
		if err != nil {
			return nil, err
		}
		for label, rec := range created {
			found[label] = rec
		}
		slog.Info("Created missing seat records", "trip_id", tripID, "labels", missing)
	}

	labels = lo.Uniq(labels)
	out := make([]models.SeatRecord, 0, len(labels))
	for _, label := range labels {
		rec, ok := found[label]
		if !ok {
			return nil, apperrors.Internal(op, fmt.Errorf("seat %s vanished after creation", label))
		}
		out = append(out, rec)
	}
	return out, nil
}

func fetch(ctx context.Context, seats repository.SeatStore, tripID int64, labels []string) (map[string]models.SeatRecord, error) {
	records, err := seats.FindByLabels(ctx, tripID, labels)
	if err != nil {
		return nil, apperrors.Internal("lookup", fmt.Errorf("failed to load seats: %w", err))
	}
	return lo.KeyBy(records, func(s models.SeatRecord) string { return s.SeatLabel }), nil
}
