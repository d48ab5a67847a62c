package entity

import "time"

// Stage — именованный этап обработки кадра, время которого измеряется.
type Stage string

const (
	StageColorConversion Stage = "hsv"    // RGB -> HSV
	StageMasking         Stage = "mask"   // пороговая маска по оттенку
	StageDetection       Stage = "detect" // поиск геометрии
)

// Label возвращает подпись этапа для отчёта.
func (s Stage) Label() string {
	switch s {
	case StageColorConversion:
		return "Color conversion"
	case StageMasking:
		return "Masking"
	case StageDetection:
		return "Detection"
	default:
		return string(s)
	}
}

// StageStats — итоговая статистика одного этапа за весь прогон.
type StageStats struct {
	Stage      Stage
	Frames     int
	Total      time.Duration
	Mean       time.Duration
	StdDev     time.Duration
	P50        time.Duration
	P95        time.Duration
	Throughput float64 // кадров в секунду
	Valid      bool    // false, если Total == 0
}
