package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/directory"
)

// EmployeeRegistry decides whether a sample's employee is monitored.  The
// directory is advisory: when it cannot be reached the sample is still
// accepted, just without zone resolution.
type EmployeeRegistry struct {
	dir    directory.Directory
	logger *zap.Logger
}

func NewEmployeeRegistry(dir directory.Directory, logger *zap.Logger) *EmployeeRegistry {
	if dir == nil {
		dir = directory.AllowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeRegistry{dir: dir, logger: logger}
}

// IsMonitored reports whether employeeID is a known, active employee.
func (r *EmployeeRegistry) IsMonitored(ctx context.Context, employeeID string) bool {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return false
	}

	e, err := r.dir.GetEmployee(ctx, employeeID)
	switch {
	case errors.Is(err, directory.ErrEmployeeNotFound):
		r.logger.Debug("sample from unknown employee", zap.String("employee_id", employeeID))
		return false
	case err != nil:
		r.logger.Warn("employee directory unavailable; storing sample unmonitored",
			zap.String("employee_id", employeeID), zap.Error(err))
		return false
	case !e.Active:
		r.logger.Debug("sample from inactive employee", zap.String("employee_id", employeeID))
		return false
	}
	return true
}
