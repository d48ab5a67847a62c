package entity

import "errors"

// Ошибки конвейера. Проверяются через errors.Is.
var (
	// ErrInvalidFrame — кадр отсутствует или имеет неверный формат.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrDetectionFailure — детектор геометрии не смог обработать кадр.
	ErrDetectionFailure = errors.New("detection failure")

	// ErrStreamIO — ошибка открытия, чтения или записи видеопотока.
	ErrStreamIO = errors.New("stream io failure")

	// ErrZeroDuration — суммарная длительность этапа равна нулю.
	ErrZeroDuration = errors.New("zero accumulated duration")

	// ErrDimensionMismatch — размеры половин композита не совпадают.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrPipelineClosed — конвейер уже завершил работу.
	ErrPipelineClosed = errors.New("pipeline closed")

	// ErrRunNotFound — прогона с таким ID нет в истории.
	ErrRunNotFound = errors.New("run not found")
)
