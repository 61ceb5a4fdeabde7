package dto

import "time"

// ModuleStateResponse estado efectivo de un módulo para el tenant.
type ModuleStateResponse struct {
	ModuleID         string     `json:"module_id"`
	Name             string     `json:"name"`
	Category         string     `json:"category"`
	IsCore           bool       `json:"is_core"`
	Enabled          bool       `json:"enabled"`
	Status           string     `json:"status"`
	AccessSource     string     `json:"access_source,omitempty"`
	Quantity         int        `json:"quantity,omitempty"`
	EnabledAt        *time.Time `json:"enabled_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	DisabledManually bool       `json:"disabled_manually,omitempty"`
}

// EntitlementListResponse módulos del tenant bajo su plan.
type EntitlementListResponse struct {
	TenantID string                `json:"tenant_id"`
	Plan     string                `json:"plan"`
	Modules  []ModuleStateResponse `json:"modules"`
}

// ModuleEnabledResponse respuesta de GET /api/entitlements/:moduleId.
type ModuleEnabledResponse struct {
	ModuleID string `json:"module_id"`
	Enabled  bool   `json:"enabled"`
}

// CanEnableResponse resultado de canEnableModule.
type CanEnableResponse struct {
	ModuleID  string   `json:"module_id"`
	CanEnable bool     `json:"can_enable"`
	Code      string   `json:"code,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

// EnableModuleRequest body para POST /api/entitlements/:moduleId/enable.
// Force omite la validación de dependencias y plan (override de administrador).
type EnableModuleRequest struct {
	AccessSource string     `json:"access_source,omitempty"` // addon | manual | trial
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Force        bool       `json:"force,omitempty"`
}

// UpdateQuantityRequest body para PUT /api/entitlements/:moduleId/quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantityResponse resultado de updateModuleQuantity.
type UpdateQuantityResponse struct {
	Module  ModuleStateResponse `json:"module"`
	Changed bool                `json:"changed"`
}
