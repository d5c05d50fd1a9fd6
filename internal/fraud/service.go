package fraud

import (
	"context"
	"math"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/richxcame/fraud-screening/pkg/common"
)

// earthRadiusMeters is the mean Earth radius used for great-circle
// distances.
const earthRadiusMeters = 6371000.0

// Service runs the fraud detectors over the committed transaction set. All
// three detectors are read-only; they never mutate what ingestion wrote.
type Service struct {
	repo  FraudRepository
	clock clockwork.Clock
}

// Ensure the concrete service satisfies the handler's requirements.
var _ FraudService = (*Service)(nil)

// NewService creates a new fraud service
func NewService(repo FraudRepository, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: repo, clock: clock}
}

// UsersMultipleLocations reports emails whose transactions are spread more
// than the detection threshold apart. Only pairs with strictly increasing
// created_at count, so two transactions at the same instant never pair.
// Results are ordered by spread descending, email ascending on ties.
func (s *Service) UsersMultipleLocations(ctx context.Context) ([]MultiLocationSignal, error) {
	located, err := s.repo.LocatedTransactionsByEmail(ctx)
	if err != nil {
		return nil, err
	}

	signals := make([]MultiLocationSignal, 0)
	for start := 0; start < len(located); {
		end := start + 1
		for end < len(located) && located[end].Email == located[start].Email {
			end++
		}

		spread := maxPairwiseDistance(located[start:end])
		if spread > multiLocationThresholdMeters {
			signals = append(signals, MultiLocationSignal{
				Email:             located[start].Email,
				MaxDistanceMeters: spread,
			})
		}
		start = end
	}

	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].MaxDistanceMeters != signals[j].MaxDistanceMeters {
			return signals[i].MaxDistanceMeters > signals[j].MaxDistanceMeters
		}
		return signals[i].Email < signals[j].Email
	})
	return signals, nil
}

// FailedTransactionsByLocation groups failed transactions into grid cells
// and reports cells holding strictly more than threshold failures, ordered
// by count descending with (lat, lon) ascending on ties.
func (s *Service) FailedTransactionsByLocation(ctx context.Context, threshold int) ([]FailedClusterSignal, error) {
	locations, err := s.repo.FailedTransactionLocations(ctx)
	if err != nil {
		return nil, err
	}

	type gridCell struct {
		lat, lon float64
	}
	counts := make(map[gridCell]int64)
	for _, loc := range locations {
		cell := gridCell{lat: snapToGrid(loc.Lat), lon: snapToGrid(loc.Lon)}
		counts[cell]++
	}

	clusters := make([]FailedClusterSignal, 0)
	for cell, count := range counts {
		if count > int64(threshold) {
			clusters = append(clusters, FailedClusterSignal{
				GridLat:     cell.lat,
				GridLon:     cell.lon,
				FailedCount: count,
			})
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].FailedCount != clusters[j].FailedCount {
			return clusters[i].FailedCount > clusters[j].FailedCount
		}
		if clusters[i].GridLat != clusters[j].GridLat {
			return clusters[i].GridLat < clusters[j].GridLat
		}
		return clusters[i].GridLon < clusters[j].GridLon
	})
	return clusters, nil
}

// TopAgentsPastYear ranks agents by summed successful amounts over the
// trailing 365 days, bounded to limit rows.
func (s *Service) TopAgentsPastYear(ctx context.Context, limit int) ([]TopAgentSignal, error) {
	if limit < 1 {
		return nil, common.NewBadRequestError("limit must be at least 1")
	}

	since := s.clock.Now().UTC().AddDate(0, 0, -topAgentsWindowDays)
	return s.repo.TopAgentTotalsSince(ctx, since, limit)
}

// maxPairwiseDistance finds the largest distance between any two
// transactions in one email's group whose timestamps differ. Pairs sharing
// an instant are skipped, matching the strict earlier-before-later pairing.
func maxPairwiseDistance(group []LocatedTransaction) float64 {
	var maxMeters float64
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			if group[i].CreatedAt.Equal(group[j].CreatedAt) {
				continue
			}
			d := haversineMeters(group[i].Lat, group[i].Lon, group[j].Lat, group[j].Lon)
			if d > maxMeters {
				maxMeters = d
			}
		}
	}
	return maxMeters
}

// haversineMeters computes the great-circle surface distance between two
// coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// snapToGrid snaps a coordinate to the detection grid in degree space.
// Values exactly between two cells round to the even cell, rint semantics.
func snapToGrid(v float64) float64 {
	return math.RoundToEven(v/gridCellSizeDegrees) * gridCellSizeDegrees
}
