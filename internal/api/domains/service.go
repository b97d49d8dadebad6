package domains

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

// internalSuffix is the zone all system-generated hostnames live under.
const internalSuffix = "svc.fleet.internal"

type domainService struct {
	repository DomainRepository
	logger     *zap.Logger
}

var _ DomainService = (*domainService)(nil)

func NewDomainService(r DomainRepository, logger *zap.Logger) DomainService {
	return &domainService{
		repository: r,
		logger:     logger,
	}
}

func (s *domainService) IsUniqueForProject(ctx context.Context, projectID uint, hostname string) (bool, error) {
	count, err := s.repository.CountExternal(ctx, projectID, normalizeHostname(hostname))
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// CreateExternal pre-checks uniqueness for an early answer, then relies on
// the repository's in-transaction re-check for the authoritative one. The
// shadowing internal domain must already exist; a hostname with nothing to
// route to is rejected outright rather than repaired later.
func (s *domainService) CreateExternal(ctx context.Context, req CreateExternalRequest) (*models.Domain, error) {
	hostname := normalizeHostname(req.Hostname)
	if hostname == "" {
		return nil, commonerrors.ConflictErr("external domain", "(empty hostname)")
	}

	unique, err := s.IsUniqueForProject(ctx, req.ProjectID, hostname)
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, commonerrors.ConflictErr("external domain", hostname)
	}

	if _, err := s.repository.FindInternalByPort(ctx, req.ProjectID, req.Port); err != nil {
		return nil, err
	}

	d := &models.Domain{
		ProjectID: req.ProjectID,
		Kind:      models.DomainKindExternal,
		Hostname:  hostname,
		Protocol:  defaultProtocol(req.Protocol),
		Port:      req.Port,
	}
	if err := s.repository.CreateExternal(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("external domain created",
		zap.Uint("project_id", req.ProjectID),
		zap.Uint("domain_id", d.ID),
		zap.String("hostname", hostname))
	return d, nil
}

func (s *domainService) CreateInternal(ctx context.Context, req CreateInternalRequest) (*models.Domain, error) {
	d := &models.Domain{
		ProjectID:   req.ProjectID,
		Kind:        models.DomainKindInternal,
		Hostname:    internalHostname(req.ProjectID, req.ServiceName, req.Port),
		Protocol:    defaultProtocol(req.Protocol),
		ServiceName: req.ServiceName,
		Port:        req.Port,
	}
	if err := s.repository.CreateInternal(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("internal domain created",
		zap.Uint("project_id", req.ProjectID),
		zap.Uint("domain_id", d.ID),
		zap.String("service", req.ServiceName),
		zap.Int("port", req.Port))
	return d, nil
}

func (s *domainService) SetPrimary(ctx context.Context, projectID, domainID uint) error {
	if err := s.repository.SetPrimary(ctx, projectID, domainID); err != nil {
		return err
	}
	s.logger.Info("primary domain changed",
		zap.Uint("project_id", projectID),
		zap.Uint("domain_id", domainID))
	return nil
}

// ResolveParent walks an external hostname to the internal domain its
// traffic targets, keyed by port within the project. An external domain
// without a parent should not exist; when one shows up anyway it is logged
// as an integrity violation and surfaces to the caller as plain not-found.
func (s *domainService) ResolveParent(ctx context.Context, domainID uint) (*models.Domain, error) {
	d, err := s.repository.Get(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if d.Internal() {
		return d, nil
	}

	parent, err := s.repository.FindInternalByPort(ctx, d.ProjectID, d.Port)
	if err != nil {
		if _, ok := err.(commonerrors.NotFoundError); ok {
			violation := commonerrors.DataIntegrityErr("domain", d.Hostname,
				fmt.Sprintf("external domain has no internal domain on port %d", d.Port))
			s.logger.Error("unresolvable external domain",
				zap.Uint("project_id", d.ProjectID),
				zap.Uint("domain_id", d.ID),
				zap.Int("port", d.Port),
				zap.Error(violation))
			return nil, commonerrors.NotFoundErr("parent domain of", d.Hostname)
		}
		return nil, err
	}
	return parent, nil
}

func (s *domainService) RecordVerification(ctx context.Context, domainID uint, verified bool) error {
	if err := s.repository.SetVerified(ctx, domainID, verified); err != nil {
		return err
	}
	s.logger.Info("domain verification recorded",
		zap.Uint("domain_id", domainID),
		zap.Bool("verified", verified))
	return nil
}

func (s *domainService) ListByProject(ctx context.Context, projectID uint) ([]*models.Domain, error) {
	return s.repository.ListByProject(ctx, projectID)
}

func internalHostname(projectID uint, serviceName string, port int) string {
	return fmt.Sprintf("%s-%d.project-%s.%s",
		serviceName, port, strconv.FormatUint(uint64(projectID), 10), internalSuffix)
}

func normalizeHostname(hostname string) string {
	return strings.ToLower(strings.TrimSpace(hostname))
}

func defaultProtocol(protocol string) string {
	if protocol == "" {
		return "https"
	}
	return protocol
}
