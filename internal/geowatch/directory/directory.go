// Package directory is the narrow view of the HR employee directory used
// to decide whether a sample's employee is monitored.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrEmployeeNotFound means the directory answered and has no such id.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrUnavailable means the directory could not be reached.  Callers
	// degrade rather than reject.
	ErrUnavailable = errors.New("employee directory unavailable")
)

type Employee struct {
	ID          string
	DisplayName string
	Active      bool
}

// Directory looks up employees.  Any error other than ErrEmployeeNotFound
// is treated as the directory being unavailable.
type Directory interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
}

// Static is an in-process directory seeded from config or tests.
type Static struct {
	mu        sync.RWMutex
	employees map[string]Employee
}

func NewStatic(employees ...Employee) *Static {
	s := &Static{employees: make(map[string]Employee, len(employees))}
	for _, e := range employees {
		s.Put(e)
	}
	return s
}

func (s *Static) Put(e Employee) {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		return
	}
	s.mu.Lock()
	s.employees[e.ID] = e
	s.mu.Unlock()
}

func (s *Static) GetEmployee(ctx context.Context, id string) (Employee, error) {
	if err := ctx.Err(); err != nil {
		return Employee{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[strings.TrimSpace(id)]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

// AllowAll reports every non-empty id as an active employee.  It is the
// default when no directory is configured.
type AllowAll struct{}

func (AllowAll) GetEmployee(_ context.Context, id string) (Employee, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Employee{}, ErrEmployeeNotFound
	}
	return Employee{ID: id, DisplayName: id, Active: true}, nil
}

// Func adapts a plain function, typically a client for a remote HR service.
type Func func(ctx context.Context, id string) (Employee, error)

func (f Func) GetEmployee(ctx context.Context, id string) (Employee, error) { return f(ctx, id) }
