// Package table infers row/column structure from token geometry alone and
// normalizes the resulting grid.
package table

import (
	"math"
	"sort"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
)

// Config holds the clustering tolerances. Zero values pick defaults that
// match the production service's constants.
type Config struct {
	NoiseThreshold     float64 // token confidence floor, default 0.20
	RowToleranceFactor float64 // multiple of median token height, default 1.3
	MinRowTolerance    float64 // px, default 15
	MaxRowTolerance    float64 // px, default 50
	ColumnGapFactor    float64 // multiple of median x-gap, default 2.0
	MinColumnGap       float64 // px, default 20
}

func (c Config) withDefaults() Config {
	if c.NoiseThreshold <= 0 {
		c.NoiseThreshold = entity.DefaultNoiseThreshold
	}
	if c.RowToleranceFactor <= 0 {
		c.RowToleranceFactor = 1.3
	}
	if c.MinRowTolerance <= 0 {
		c.MinRowTolerance = 15
	}
	if c.MaxRowTolerance <= 0 {
		c.MaxRowTolerance = 50
	}
	if c.ColumnGapFactor <= 0 {
		c.ColumnGapFactor = 2.0
	}
	if c.MinColumnGap <= 0 {
		c.MinColumnGap = 20
	}
	return c
}

// rowCluster is one band of tokens with a running mean vertical center.
type rowCluster struct {
	tokens []entity.Token
	sumY   float64
}

func (r *rowCluster) center() float64 { return r.sumY / float64(len(r.tokens)) }

func (r *rowCluster) add(t entity.Token) {
	r.tokens = append(r.tokens, t)
	r.sumY += t.Box.CenterY()
}

// Reconstruct builds a rectangular table from retained tokens. Tokens must
// already be noise-filtered. An empty input yields an empty table.
func Reconstruct(tokens []entity.Token, cfg Config) entity.Table {
	cfg = cfg.withDefaults()
	if len(tokens) == 0 {
		return entity.Table{}
	}

	rows := clusterRows(tokens, cfg)
	columns := clusterColumns(tokens, cfg)
	grid := assignCells(rows, columns, cfg)
	return dropEmpty(grid)
}

// clusterRows sorts by vertical center and sweeps once: a token joins the
// open cluster when its center is within tolerance of the cluster's running
// center, otherwise it opens a new cluster. A token on the boundary joins
// the earlier-opened cluster.
func clusterRows(tokens []entity.Token, cfg Config) []*rowCluster {
	sorted := make([]entity.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.CenterY() < sorted[j].Box.CenterY()
	})

	tol := rowTolerance(sorted, cfg)

	var rows []*rowCluster
	var cur *rowCluster
	for _, t := range sorted {
		if cur != nil && math.Abs(t.Box.CenterY()-cur.center()) <= tol {
			cur.add(t)
			continue
		}
		cur = &rowCluster{}
		cur.add(t)
		rows = append(rows, cur)
	}
	return rows
}

// rowTolerance is proportional to the median token height, clamped so that
// extreme handwriting sizes cannot collapse or shatter the banding.
func rowTolerance(tokens []entity.Token, cfg Config) float64 {
	heights := make([]float64, 0, len(tokens))
	for _, t := range tokens {
		if h := t.Box.Height(); h > 0 {
			heights = append(heights, h)
		}
	}
	tol := cfg.MinRowTolerance
	if len(heights) > 0 {
		tol = median(heights) * cfg.RowToleranceFactor
	}
	return clamp(tol, cfg.MinRowTolerance, cfg.MaxRowTolerance)
}

// clusterColumns derives global column positions from all tokens, so column
// alignment stays consistent even when a row is missing a value. Returns the
// column centers, ascending.
func clusterColumns(tokens []entity.Token, cfg Config) []float64 {
	xs := make([]float64, 0, len(tokens))
	for _, t := range tokens {
		xs = append(xs, t.Box.CenterX())
	}
	sort.Float64s(xs)

	gap := cfg.MinColumnGap
	if len(xs) > 1 {
		gaps := make([]float64, 0, len(xs)-1)
		for i := 1; i < len(xs); i++ {
			gaps = append(gaps, xs[i]-xs[i-1])
		}
		if g := median(gaps) * cfg.ColumnGapFactor; g > gap {
			gap = g
		}
	}

	var centers []float64
	cluster := []float64{xs[0]}
	for _, x := range xs[1:] {
		if x-cluster[len(cluster)-1] < gap {
			cluster = append(cluster, x)
			continue
		}
		centers = append(centers, median(cluster))
		cluster = []float64{x}
	}
	centers = append(centers, median(cluster))
	return centers
}

// assignCells places each row's tokens into the nearest global column.
// Several tokens landing in one cell concatenate left to right; tokens on
// distinct sub-lines of the same band join with a line break.
func assignCells(rows []*rowCluster, columns []float64, cfg Config) entity.Table {
	grid := make(entity.Table, 0, len(rows))
	for _, row := range rows {
		cells := make([][]entity.Token, len(columns))
		for _, t := range row.tokens {
			col := nearestColumn(columns, t.Box.CenterX())
			cells[col] = append(cells[col], t)
		}
		out := make([]string, len(columns))
		for i, cell := range cells {
			out[i] = joinCell(cell, cfg)
		}
		grid = append(grid, out)
	}
	return grid
}

func nearestColumn(columns []float64, x float64) int {
	best := 0
	bestDist := math.Abs(x - columns[0])
	for i := 1; i < len(columns); i++ {
		if d := math.Abs(x - columns[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// joinCell orders one cell's tokens geometrically: sub-lines split where the
// vertical centers diverge by more than half a token height, joined with
// "\n"; within a sub-line tokens join left to right with a space.
func joinCell(cell []entity.Token, cfg Config) string {
	if len(cell) == 0 {
		return ""
	}
	sort.SliceStable(cell, func(i, j int) bool {
		return cell[i].Box.CenterY() < cell[j].Box.CenterY()
	})

	lineGap := rowTolerance(cell, cfg) / 2

	var lines [][]entity.Token
	cur := []entity.Token{cell[0]}
	for _, t := range cell[1:] {
		if t.Box.CenterY()-cur[len(cur)-1].Box.CenterY() > lineGap {
			lines = append(lines, cur)
			cur = []entity.Token{t}
			continue
		}
		cur = append(cur, t)
	}
	lines = append(lines, cur)

	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].Box.CenterX() < line[j].Box.CenterX()
		})
		s := ""
		for i, t := range line {
			if i > 0 {
				s += " "
			}
			s += t.Text
		}
		parts = append(parts, s)
	}

	joined := parts[0]
	for _, p := range parts[1:] {
		joined += "\n" + p
	}
	return joined
}

// dropEmpty removes rows with no content and columns empty across every row,
// re-indexing the remaining columns contiguously.
func dropEmpty(grid entity.Table) entity.Table {
	if len(grid) == 0 {
		return grid
	}
	cols := len(grid[0])

	keepCol := make([]bool, cols)
	for _, row := range grid {
		for i, cell := range row {
			if cell != "" {
				keepCol[i] = true
			}
		}
	}

	out := make(entity.Table, 0, len(grid))
	for _, row := range grid {
		empty := true
		kept := make([]string, 0, cols)
		for i, cell := range row {
			if !keepCol[i] {
				continue
			}
			kept = append(kept, cell)
			if cell != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, kept)
		}
	}
	return out
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
