package service

import (
	"fmt"
	"time"
)

// Stage - стадия конвейера генерации
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StageStore    Stage = "store"
)

// State - состояние конвейера. Переходы линейные:
// start → fetched → extracted → generated → validated → stored → done,
// из любой стадии возможен переход в failed.
type State string

const (
	StateStart     State = "start"
	StateFetched   State = "fetched"
	StateExtracted State = "extracted"
	StateGenerated State = "generated"
	StateValidated State = "validated"
	StateStored    State = "stored"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// completedState - состояние после успешного завершения стадии
var completedState = map[Stage]State{
	StageFetch:    StateFetched,
	StageExtract:  StateExtracted,
	StageGenerate: StateGenerated,
	StageValidate: StateValidated,
	StageStore:    StateStored,
}

// StageError - отказ конвейера с указанием стадии.
// Вид ошибки (apperrors.ErrX) остаётся доступен через errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Transition - событие перехода конвейера
type Transition struct {
	State State     `json:"state"`
	Stage Stage     `json:"stage,omitempty"`
	Err   error     `json:"-"`
	At    time.Time `json:"at"`
}

// Observer получает каждый переход конвейера. Вызывается синхронно
// в горутине запроса, поэтому не должен блокироваться надолго.
type Observer func(Transition)

type observers []Observer

func (o observers) emit(t Transition) {
	t.At = time.Now()
	for _, fn := range o {
		if fn != nil {
			fn(t)
		}
	}
}
