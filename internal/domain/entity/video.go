package entity

// VideoProperties описывает исходный видеопоток.
type VideoProperties struct {
	Width  int
	Height int
	FPS    float64
}

// SinkParams фиксирует параметры выходного потока на момент открытия.
type SinkParams struct {
	Width  int
	Height int
	FPS    float64
	FourCC string
}
