package sessions

import (
	"context"

	"github.com/haasonsaas/agentbridge/internal/observability"
)

type meteredProvisioner struct {
	Provisioner
	metrics *observability.Metrics
}

// Metered records the outcome of every provisioning call in m.
func Metered(p Provisioner, m *observability.Metrics) Provisioner {
	if m == nil {
		return p
	}
	return meteredProvisioner{Provisioner: p, metrics: m}
}

func (p meteredProvisioner) CreateFromTemplate(ctx context.Context, templateVersion string, vars map[string]string) (string, error) {
	id, err := p.Provisioner.CreateFromTemplate(ctx, templateVersion, vars)
	p.metrics.Provisioning("create", err)
	return id, err
}

func (p meteredProvisioner) Deprovision(ctx context.Context, agentID string) error {
	err := p.Provisioner.Deprovision(ctx, agentID)
	p.metrics.Provisioning("delete", err)
	return err
}
