package circle

import "github.com/MeKo-Tech/teavision/internal/utils"

// compStats represents statistics for a connected component.
type compStats struct {
	label int32
	count int
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// connectedComponents labels the 8-connected foreground regions of m.
// Labels start at 1; background pixels keep label 0.
func connectedComponents(m *utils.Mask) ([]compStats, []int32) {
	w, h := m.Width, m.Height
	labels := make([]int32, w*h)
	var comps []compStats
	var label int32 = 1
	queue := make([]int, 0, 256)

	for y := range h {
		for x := range w {
			idx := y*w + x
			if m.Pix[idx] == 0 || labels[idx] != 0 {
				continue
			}
			st := compStats{label: label, minX: x, minY: y, maxX: x, maxY: y}
			labels[idx] = label
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				ci := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				cx, cy := ci%w, ci/w
				updateComponentStats(&st, cx, cy)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := cx+dx, cy+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						ni := ny*w + nx
						if m.Pix[ni] != 0 && labels[ni] == 0 {
							labels[ni] = label
							queue = append(queue, ni)
						}
					}
				}
			}
			comps = append(comps, st)
			label++
		}
	}
	return comps, labels
}

// updateComponentStats updates the component statistics with a new pixel.
func updateComponentStats(st *compStats, cx, cy int) {
	st.count++
	st.minX = min(st.minX, cx)
	st.minY = min(st.minY, cy)
	st.maxX = max(st.maxX, cx)
	st.maxY = max(st.maxY, cy)
}
