package domains

import (
	"context"

	"fleet-api-server/internal/models"
)

// CreateExternalRequest attaches a user-supplied hostname to a project.
// Port names the internal domain the hostname must shadow.
type CreateExternalRequest struct {
	ProjectID uint   `json:"project_id"`
	Hostname  string `json:"hostname"`
	Protocol  string `json:"protocol"`
	Port      int    `json:"port"`
}

// CreateInternalRequest registers the system-generated hostname for one
// concrete service instance.
type CreateInternalRequest struct {
	ProjectID   uint   `json:"project_id"`
	ServiceName string `json:"service_name"`
	Port        int    `json:"port"`
	Protocol    string `json:"protocol"`
}

type DomainRepository interface {
	Get(ctx context.Context, id uint) (*models.Domain, error)
	ListByProject(ctx context.Context, projectID uint) ([]*models.Domain, error)
	CountExternal(ctx context.Context, projectID uint, hostname string) (int64, error)
	// CreateExternal re-checks hostname uniqueness and the presence of the
	// shadowed internal domain inside the insert transaction, serialized
	// per project.
	CreateExternal(ctx context.Context, d *models.Domain) error
	// CreateInternal enforces at most one internal domain per
	// (project, serviceName, port), serialized per project.
	CreateInternal(ctx context.Context, d *models.Domain) error
	FindInternalByPort(ctx context.Context, projectID uint, port int) (*models.Domain, error)
	// SetPrimary flips the primary flag across the project's live domains
	// in one statement.
	SetPrimary(ctx context.Context, projectID, domainID uint) error
	SetVerified(ctx context.Context, domainID uint, verified bool) error
}

type DomainService interface {
	IsUniqueForProject(ctx context.Context, projectID uint, hostname string) (bool, error)
	CreateExternal(ctx context.Context, req CreateExternalRequest) (*models.Domain, error)
	CreateInternal(ctx context.Context, req CreateInternalRequest) (*models.Domain, error)
	SetPrimary(ctx context.Context, projectID, domainID uint) error
	// ResolveParent maps any domain to the internal domain traffic for it
	// ultimately targets. Internal domains resolve to themselves.
	ResolveParent(ctx context.Context, domainID uint) (*models.Domain, error)
	RecordVerification(ctx context.Context, domainID uint, verified bool) error
	ListByProject(ctx context.Context, projectID uint) ([]*models.Domain, error)
}
