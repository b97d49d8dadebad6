package domains

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	commonerrors "fleet-api-server/internal/api/common/errors"
	"fleet-api-server/internal/models"
)

type domainRepository struct {
	db *gorm.DB
}

func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepository{
		db: db,
	}
}

func (r *domainRepository) Get(ctx context.Context, id uint) (*models.Domain, error) {
	var d models.Domain
	err := r.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NotFoundErr("domain", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *domainRepository) ListByProject(ctx context.Context, projectID uint) ([]*models.Domain, error) {
	var ds []*models.Domain
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&ds).Error
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *domainRepository) CountExternal(ctx context.Context, projectID uint, hostname string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Domain{}).
		Where("project_id = ? AND kind = ? AND hostname = ?",
			projectID, models.DomainKindExternal, hostname).
		Count(&count).Error
	return count, err
}

// lockProject serializes all domain writes of one project by taking a row
// lock on the project itself. Absent rows cannot be locked, so uniqueness
// re-checks need this to actually close the insert race.
func lockProject(tx *gorm.DB, projectID uint) error {
	var project models.Project
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&project, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return commonerrors.NotFoundErr("project", strconv.FormatUint(uint64(projectID), 10))
	}
	return err
}

func (r *domainRepository) CreateExternal(ctx context.Context, d *models.Domain) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, d.ProjectID); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Domain{}).
			Where("project_id = ? AND kind = ? AND hostname = ?",
				d.ProjectID, models.DomainKindExternal, d.Hostname).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return commonerrors.ConflictErr("external domain", d.Hostname)
		}

		// the shadowed internal domain must still exist at commit time,
		// or a concurrent removal leaves this hostname routing nowhere
		var parents int64
		if err := tx.Model(&models.Domain{}).
			Where("project_id = ? AND kind = ? AND port = ?",
				d.ProjectID, models.DomainKindInternal, d.Port).
			Count(&parents).Error; err != nil {
			return err
		}
		if parents == 0 {
			return commonerrors.NotFoundErr("internal domain for port", strconv.Itoa(d.Port))
		}

		return tx.Create(d).Error
	})
}

func (r *domainRepository) CreateInternal(ctx context.Context, d *models.Domain) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, d.ProjectID); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Domain{}).
			Where("project_id = ? AND kind = ? AND service_name = ? AND port = ?",
				d.ProjectID, models.DomainKindInternal, d.ServiceName, d.Port).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return commonerrors.ConflictErr("internal domain",
				fmt.Sprintf("%s:%d", d.ServiceName, d.Port))
		}

		return tx.Create(d).Error
	})
}

func (r *domainRepository) FindInternalByPort(ctx context.Context, projectID uint, port int) (*models.Domain, error) {
	var d models.Domain
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND kind = ? AND port = ?",
			projectID, models.DomainKindInternal, port).
		Order("created_at ASC, id ASC").
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NotFoundErr("internal domain for port", strconv.Itoa(port))
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SetPrimary flips every live domain of the project in a single UPDATE, so
// two racing calls serialize at the row level and exactly one domain ends
// up primary either way. Never issued as N independent writes.
func (r *domainRepository) SetPrimary(ctx context.Context, projectID, domainID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Domain
		err := tx.Where("id = ? AND project_id = ?", domainID, projectID).First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return commonerrors.NotFoundErr("domain", strconv.FormatUint(uint64(domainID), 10))
		}
		if err != nil {
			return err
		}

		return tx.Model(&models.Domain{}).
			Where("project_id = ?", projectID).
			Update("is_primary", gorm.Expr("id = ?", domainID)).Error
	})
}

func (r *domainRepository) SetVerified(ctx context.Context, domainID uint, verified bool) error {
	res := r.db.WithContext(ctx).Model(&models.Domain{}).
		Where("id = ? AND kind = ?", domainID, models.DomainKindExternal).
		Update("verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return commonerrors.NotFoundErr("external domain", strconv.FormatUint(uint64(domainID), 10))
	}
	return nil
}
