package seed

import (
	"time"

	"seatline/internal/models"
)

type demoRoute struct {
	origin      string
	destination string
	durationMin int
	stops       []models.RouteStop
}

var demoRoutes = []demoRoute{
	{
		origin: "Almaty", destination: "Taraz", durationMin: 420,
		stops: []models.RouteStop{
			{Name: "Almaty", Position: 1, DistanceKm: 0},
			{Name: "Kaskelen", Position: 2, DistanceKm: 40},
			{Name: "Kordai", Position: 3, DistanceKm: 270},
			{Name: "Taraz", Position: 4, DistanceKm: 490},
		},
	},
	{
		origin: "Astana", destination: "Karaganda", durationMin: 180,
		stops: []models.RouteStop{
			{Name: "Astana", Position: 1, DistanceKm: 0},
			{Name: "Temirtau", Position: 2, DistanceKm: 190},
			{Name: "Karaganda", Position: 3, DistanceKm: 220},
		},
	},
}

var demoBuses = []models.Bus{
	{BusType: "coach", SeatCount: 45},
	{BusType: "minibus", SeatCount: 18},
}

// DemoTrips builds a small catalog of trips departing over the next days.
// Ids are assigned sequentially so the memory catalog can use them as is.
func DemoTrips(now time.Time, days int) []*models.Trip {
	var trips []*models.Trip
	var stopID int64
	base := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

	for ri, r := range demoRoutes {
		route := &models.Route{
			ID:          int64(ri + 1),
			Origin:      r.origin,
			Destination: r.destination,
			DurationMin: r.durationMin,
		}
		for _, s := range r.stops {
			stopID++
			s.ID = stopID
			s.RouteID = route.ID
			route.Stops = append(route.Stops, s)
		}
		route.DistanceKm = route.Stops[len(route.Stops)-1].DistanceKm

		for day := 0; day < days; day++ {
			for bi := range demoBuses {
				bus := demoBuses[bi]
				bus.ID = int64(bi + 1)
				departure := base.Add(time.Duration(day)*24*time.Hour + time.Duration(8+bi*6)*time.Hour)
				trips = append(trips, &models.Trip{
					ID:            int64(len(trips) + 1),
					RouteID:       route.ID,
					BusID:         &bus.ID,
					DepartureTime: departure,
					ArrivalTime:   departure.Add(time.Duration(r.durationMin) * time.Minute),
					BasePrice:     route.DistanceKm * 1000,
					Route:         route,
					Bus:           &bus,
				})
			}
		}
	}
	return trips
}
