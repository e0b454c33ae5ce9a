package rollup

import (
	"sort"

	"energy-monitor/internal/models"
)

// Aggregate folds a set of readings into one RollupBucket per
// (site, bucket_start). It is a pure function of its input: the readings are
// re-sorted ascending by timestamp (then site, then sector) before
// accumulation so repeated runs over the same set produce field-identical
// buckets. Buckets with zero readings are simply absent from the result.
//
// Duplicate (site, sector, hour) slots must already be resolved upstream
// (the ingestion buffer keeps the latest-ingested value); Aggregate treats
// every input row as authoritative.
func Aggregate(readings []models.ConsumptionReading, width models.BucketWidth) []models.RollupBucket {
	if len(readings) == 0 {
		return nil
	}

	ordered := make([]models.ConsumptionReading, len(readings))
	copy(ordered, readings)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		if ordered[i].Site != ordered[j].Site {
			return ordered[i].Site < ordered[j].Site
		}
		return ordered[i].Sector < ordered[j].Sector
	})

	type bucketKey struct {
		site  models.Site
		start int64
	}
	buckets := make(map[bucketKey]*models.RollupBucket)
	var order []bucketKey

	for _, r := range ordered {
		start := width.Truncate(r.Timestamp)
		key := bucketKey{site: r.Site, start: start.Unix()}
		b, ok := buckets[key]
		if !ok {
			b = &models.RollupBucket{
				Site:          r.Site,
				BucketStart:   start,
				Width:         width,
				EnergyMinKWh:  r.EnergyKWh,
				EnergyMaxKWh:  r.EnergyKWh,
				SectorSumsKWh: make(map[models.Sector]float64),
			}
			buckets[key] = b
			order = append(order, key)
		}
		b.EnergySumKWh += r.EnergyKWh
		b.WaterSumL += r.WaterLiters
		b.CO2SumKg += r.CO2Kg
		if r.EnergyKWh < b.EnergyMinKWh {
			b.EnergyMinKWh = r.EnergyKWh
		}
		if r.EnergyKWh > b.EnergyMaxKWh {
			b.EnergyMaxKWh = r.EnergyKWh
		}
		b.SectorSumsKWh[r.Sector] += r.EnergyKWh
		b.RecordCount++
	}

	out := make([]models.RollupBucket, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		b.EnergyAvgKWh = b.EnergySumKWh / float64(b.RecordCount)
		out = append(out, *b)
	}

	// Stable output order: bucket_start, then site.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BucketStart.Equal(out[j].BucketStart) {
			return out[i].BucketStart.Before(out[j].BucketStart)
		}
		return out[i].Site < out[j].Site
	})
	return out
}
