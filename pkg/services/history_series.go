package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"wage-forecast-api/pkg/models"
)

// HistorySeries 検証済みの年次賃金系列（年の昇順、重複なし）
// 構築後は変更されない。アクセサはコピーを返す
type HistorySeries struct {
	points []models.WagePoint
}

// BuildHistorySeries 生の観測値から HistorySeries を構築する
func BuildHistorySeries(raw []models.RawObservation) (*HistorySeries, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "history", Index: -1, Reason: "at least one observation is required"}
	}

	points := make([]models.WagePoint, 0, len(raw))
	seen := make(map[int]int, len(raw))

	for i, obs := range raw {
		yearValue, err := toNumber(obs.Year)
		if err != nil {
			return nil, &ValidationError{Field: "year", Index: i, Reason: err.Error()}
		}
		if yearValue != math.Trunc(yearValue) || math.Abs(yearValue) > math.MaxInt32 {
			return nil, &ValidationError{Field: "year", Index: i, Reason: fmt.Sprintf("%v is not an integral year", yearValue)}
		}
		year := int(yearValue)

		wage, err := toNumber(obs.Wage)
		if err != nil {
			return nil, &ValidationError{Field: "wage", Index: i, Reason: err.Error()}
		}
		if wage < 0 {
			return nil, &ValidationError{Field: "wage", Index: i, Reason: fmt.Sprintf("negative wage %v", wage)}
		}

		if prev, dup := seen[year]; dup {
			return nil, &ValidationError{Field: "year", Index: i, Reason: fmt.Sprintf("duplicate year %d (also at index %d)", year, prev)}
		}
		seen[year] = i

		points = append(points, models.WagePoint{Year: year, Wage: wage})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })

	return &HistorySeries{points: points}, nil
}

// NewHistorySeries builds a series from already-typed points.
func NewHistorySeries(points []models.WagePoint) (*HistorySeries, error) {
	raw := make([]models.RawObservation, len(points))
	for i, p := range points {
		raw[i] = models.RawObservation{Year: p.Year, Wage: p.Wage}
	}
	return BuildHistorySeries(raw)
}

// Len returns the number of observations.
func (h *HistorySeries) Len() int { return len(h.points) }

// Points returns a copy of the observations in year order.
func (h *HistorySeries) Points() []models.WagePoint {
	out := make([]models.WagePoint, len(h.points))
	copy(out, h.points)
	return out
}

// Years 年の配列（float64）を返す
func (h *HistorySeries) Years() []float64 {
	out := make([]float64, len(h.points))
	for i, p := range h.points {
		out[i] = float64(p.Year)
	}
	return out
}

// Wages 賃金の配列を返す
func (h *HistorySeries) Wages() []float64 {
	out := make([]float64, len(h.points))
	for i, p := range h.points {
		out[i] = p.Wage
	}
	return out
}

// First returns the earliest observation.
func (h *HistorySeries) First() models.WagePoint { return h.points[0] }

// Last returns the most recent observation.
func (h *HistorySeries) Last() models.WagePoint { return h.points[len(h.points)-1] }

// toNumber JSON数値・整数・数値文字列を float64 に変換する
func toNumber(v interface{}) (float64, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing value")
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", n.String())
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("non-numeric value of type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}
