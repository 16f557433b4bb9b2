package db

import "github.com/j-veylop/claude-usage-dashboard/internal/models"

// downsample reduces points to at most limit entries. Input is split into
// contiguous chunks of len(points)/limit and the first limit chunks are
// merged, so a trailing remainder is dropped.
func downsample[T any](points []T, limit int, merge func(chunk []T) T) []T {
	if limit <= 0 || len(points) <= limit {
		return points
	}

	size := len(points) / limit
	out := make([]T, 0, limit)
	for start := 0; start < len(points) && len(out) < limit; start += size {
		end := min(start+size, len(points))
		out = append(out, merge(points[start:end]))
	}
	return out
}

func mergeUsage(chunk []models.DataPoint) models.DataPoint {
	var sum float64
	for _, p := range chunk {
		sum += p.Utilization
	}
	return models.DataPoint{
		Timestamp:   chunk[len(chunk)/2].Timestamp,
		Utilization: sum / float64(len(chunk)),
	}
}

func mergeTokens(chunk []models.TokenDataPoint) models.TokenDataPoint {
	var input, output, cacheCreation, cacheRead int64
	for _, p := range chunk {
		input += p.InputTokens
		output += p.OutputTokens
		cacheCreation += p.CacheCreationInputTokens
		cacheRead += p.CacheReadInputTokens
	}
	return models.NewTokenDataPoint(chunk[len(chunk)/2].Timestamp, input, output, cacheCreation, cacheRead)
}

func downsampleUsage(points []models.DataPoint, limit int) []models.DataPoint {
	return downsample(points, limit, mergeUsage)
}

func downsampleTokens(points []models.TokenDataPoint, limit int) []models.TokenDataPoint {
	return downsample(points, limit, mergeTokens)
}
