package port

import (
	"context"

	"deploy_networks/internal/domain/entity"
)

// DeployTargetService selects networks for a deployment and prepares their transports.
type DeployTargetService interface {
	// Select resolves a profile and its credential without any network I/O.
	Select(name string) (entity.DeployTarget, error)

	// Connect selects a network and lazily creates its transport.
	Connect(ctx context.Context, name string) (TransportHandle, error)

	// Check validates and probes the named networks (all networks when names is empty).
	Check(ctx context.Context, names []string) []entity.CheckResult
}
