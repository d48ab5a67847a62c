//go:build !gocv
// +build !gocv

package vision

// CVSegmenter недоступен без тега gocv.
type CVSegmenter struct {
	*ColorSegmenter
}

// NewCVSegmenter возвращает ошибку, если сборка без тега gocv.
func NewCVSegmenter() (*CVSegmenter, error) {
	return nil, errGoCVDisabled
}
