// Package cities owns the city registry: which municipalities exist, which
// vendor serves each one, and how the stable city key is derived.
package cities

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/engagic/engagic/internal/database"
)

func init() {
	database.Register((*City)(nil))
	database.Register((*Zipcode)(nil))
}

// Vendor identifies a meeting-management platform
type Vendor string

const (
	VendorPrimeGov    Vendor = "primegov"
	VendorCivicClerk  Vendor = "civicclerk"
	VendorLegistar    Vendor = "legistar"
	VendorGranicus    Vendor = "granicus"
	VendorNovusAgenda Vendor = "novusagenda"
	VendorCivicPlus   Vendor = "civicplus"
	VendorIQM2        Vendor = "iqm2"
)

// Status marks whether a city participates in sync
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// City is a municipality tracked by the pipeline.
//
// Banana is the identity key, deterministically derived from name and state
// (see Banana). It is immutable for the life of the city; a rename rebuilds
// it and cascades to foreign keys.
type City struct {
	bun.BaseModel `bun:"table:cities,alias:c"`

	Banana     string     `bun:"banana,pk"`
	Name       string     `bun:"name,notnull"`
	State      string     `bun:"state,notnull"`
	Vendor     Vendor     `bun:"vendor,notnull"`
	Slug       string     `bun:"slug,notnull"` // vendor-specific handle, e.g. "cityofpaloalto"
	County     *string    `bun:"county"`
	Status     Status     `bun:"status,notnull,default:'active'"`
	LastSynced *time.Time `bun:"last_synced"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// Zipcode maps a zipcode to a city. Many zipcodes may point at one banana.
type Zipcode struct {
	bun.BaseModel `bun:"table:zipcodes,alias:z"`

	Zipcode string `bun:"zipcode,pk"`
	Banana  string `bun:"banana,notnull"`
}
