package service

import (
	"errors"
	"fmt"
)

// ErrValidation indica datos de entrada incompletos o inválidos.
var ErrValidation = errors.New("validation error")

// PersistenceError envuelve un fallo del almacenamiento junto con la etapa del turno.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed at %s: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
