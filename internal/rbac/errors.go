package rbac

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that a referenced user, role, grant or assignment does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrDuplicateGrant indicates the (role, resource, action) triple is already granted.
	ErrDuplicateGrant = fmt.Errorf("rbac: permission already granted: %w", httpx.ErrDuplicate)
	// ErrDenied is the rejection a caller maps a negative decision to.
	ErrDenied = fmt.Errorf("rbac: %w", httpx.ErrForbidden)
	// ErrUnauthenticated means the caller context lacks an authenticated, active user.
	ErrUnauthenticated = fmt.Errorf("rbac: %w", httpx.ErrUnauthorized)
	// ErrStoreFault means the decision could not be evaluated. It always accompanies a denial.
	ErrStoreFault = fmt.Errorf("rbac: store fault: %w", httpx.ErrUnavailable)
)
