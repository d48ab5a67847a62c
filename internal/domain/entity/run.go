package entity

import "time"

// RunSummary — итог одного прогона конвейера.
type RunSummary struct {
	ID                 string
	Input              string
	Output             string
	StartedAt          time.Time
	FinishedAt         time.Time
	Frames             int // прочитано и записано кадров
	AnnotatedFrames    int // кадров с нарисованной геометрией
	DetectionFailures  int
	Stages             []StageStats
	CombinedThroughput float64
	CombinedValid      bool
	Err                string // пусто, если прогон завершился штатно
}

// Succeeded сообщает, что прогон завершился без фатальной ошибки.
func (r *RunSummary) Succeeded() bool {
	return r.Err == ""
}

// Duration возвращает длительность прогона по настенным часам.
func (r *RunSummary) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
