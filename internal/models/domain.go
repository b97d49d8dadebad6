package models

import (
	"gorm.io/gorm"
)

// DomainKind is a closed tagged variant; there is no third kind.
type DomainKind string

const (
	// DomainKindExternal is a user-supplied hostname pointed at the platform.
	DomainKindExternal DomainKind = "external"
	// DomainKindInternal is a system-generated hostname identifying one
	// concrete service instance (serviceName + port) on a server.
	DomainKindInternal DomainKind = "internal"
)

// Domain is a hostname attached to a project. Shared fields apply to both
// kinds; Verified is meaningful for external domains only, ServiceName and
// Port for internal ones. Port doubles as the routing key an external
// domain resolves through.
type Domain struct {
	gorm.Model
	ProjectID   uint       `gorm:"column:project_id;not null;index" json:"project_id"`
	Kind        DomainKind `gorm:"column:kind;not null;index" json:"kind"`
	Hostname    string     `gorm:"column:hostname;not null;index" json:"hostname"`
	Protocol    string     `gorm:"column:protocol;default:'https'" json:"protocol"`
	IsPrimary   bool       `gorm:"column:is_primary;not null;default:false" json:"is_primary"`
	Verified    bool       `gorm:"column:verified;not null;default:false" json:"verified"`
	ServiceName string     `gorm:"column:service_name" json:"service_name"`
	Port        int        `gorm:"column:port" json:"port"`
}

func (d Domain) Internal() bool {
	return d.Kind == DomainKindInternal
}
