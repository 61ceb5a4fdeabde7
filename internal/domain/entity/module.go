package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModuleCategory agrupa módulos en el panel (solo presentación).
type ModuleCategory string

const (
	CategoryCore          ModuleCategory = "core"
	CategorySales         ModuleCategory = "sales"
	CategoryOperations    ModuleCategory = "operations"
	CategoryCommunication ModuleCategory = "communication"
	CategoryIntelligence  ModuleCategory = "intelligence"
)

// ModulePricing precio de un módulo comprable por separado (add-on).
type ModulePricing struct {
	MonthlyPrice decimal.Decimal
	PerUnit      bool   // el precio se multiplica por Quantity
	UnitName     string // ej. "número", "agente"
	MaxUnits     int    // 0 = sin límite
	TrialDays    int
}

// PlanRequirement restricción de plan para un módulo.
type PlanRequirement struct {
	MinPlan         string   // ID del plan mínimo; vacío = sin mínimo
	IncludedInPlans []string // IDs de planes que lo incluyen sin costo adicional
}

// ModuleDefinition definición inmutable de un módulo del catálogo.
type ModuleDefinition struct {
	ID              string
	Name            string
	Category        ModuleCategory
	IsCore          bool
	Dependencies    []string
	Pricing         *ModulePricing   // nil = no se vende por separado
	PlanRequirement *PlanRequirement // nil = sin restricción
}

// IsUnitPriced informa si el módulo se cobra por unidad.
func (m *ModuleDefinition) IsUnitPriced() bool {
	return m.Pricing != nil && m.Pricing.PerUnit
}

// IncludedIn informa si el plan incluye el módulo según su propia regla.
func (m *ModuleDefinition) IncludedIn(planID string) bool {
	if m.PlanRequirement == nil {
		return false
	}
	for _, id := range m.PlanRequirement.IncludedInPlans {
		if id == planID {
			return true
		}
	}
	return false
}

// ModuleStatus estado persistido de un módulo para un tenant.
type ModuleStatus string

const (
	ModuleActive   ModuleStatus = "active"
	ModuleInactive ModuleStatus = "inactive"
)

// AccessSource motivo por el que un módulo está (o estuvo) activo.
type AccessSource string

const (
	SourceNone   AccessSource = ""
	SourceCore   AccessSource = "core"
	SourcePlan   AccessSource = "plan"
	SourceAddon  AccessSource = "addon"
	SourceManual AccessSource = "manual"
	SourceTrial  AccessSource = "trial"
)

// IsGrant informa si la fuente es una concesión explícita (independiente del plan).
func (s AccessSource) IsGrant() bool {
	return s == SourceAddon || s == SourceManual || s == SourceTrial
}

// Valid informa si la fuente es una de las conocidas (sin contar SourceNone).
func (s AccessSource) Valid() bool {
	switch s {
	case SourceCore, SourcePlan, SourceAddon, SourceManual, SourceTrial:
		return true
	}
	return false
}

// ModuleState estado de un módulo para un tenant. Nunca se borra: deshabilitar
// solo cambia Status y conserva AccessSource y Quantity para reactivar.
type ModuleState struct {
	TenantID         string
	ModuleID         string
	Status           ModuleStatus
	AccessSource     AccessSource
	Quantity         int // >= 1 solo en módulos por unidad; 0 en el resto
	EnabledAt        *time.Time
	ExpiresAt        *time.Time // solo trial/addon
	DisabledManually bool       // deshabilitado vía DisableModule; el plan no lo reactiva
	UpdatedAt        time.Time
}

// IsActive informa si el estado está activo y sin vencer en now.
func (s *ModuleState) IsActive(now time.Time) bool {
	if s == nil || s.Status != ModuleActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Clone devuelve una copia independiente.
func (s *ModuleState) Clone() *ModuleState {
	if s == nil {
		return nil
	}
	c := *s
	if s.EnabledAt != nil {
		t := *s.EnabledAt
		c.EnabledAt = &t
	}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
