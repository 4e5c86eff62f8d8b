//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"fmt"
	"strings"
	"time"
)

// Locality is a city record for which marketing pages are generated.
// Localities are created by the import step; the pipeline only reads them,
// apart from the published URL fields set after a successful publish.
type Locality struct {
	ID         string   `json:"id"                    db:"id"`
	Name       string   `json:"name"                  db:"name"`
	RegionCode string   `json:"region_code"           db:"region_code"`
	Region     string   `json:"region,omitempty"      db:"region"`
	County     *string  `json:"county,omitempty"      db:"county"`
	Population *int     `json:"population,omitempty"  db:"population"`
	Latitude   *float64 `json:"latitude,omitempty"    db:"latitude"`
	Longitude  *float64 `json:"longitude,omitempty"   db:"longitude"`
	// PermitCost overrides the per-state dumpster permit estimate, in whole dollars.
	PermitCost   *int       `json:"permit_cost,omitempty"   db:"permit_cost"`
	Landmarks    []string   `json:"landmarks,omitempty"     db:"landmarks"`
	PublishedURL *string    `json:"published_url,omitempty" db:"published_url"`
	PublishedAt  *time.Time `json:"published_at,omitempty"  db:"published_at"`
	CreatedAt    time.Time  `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"              db:"updated_at"`
}

// DisplayName returns "City, ST".
func (l *Locality) DisplayName() string {
	return fmt.Sprintf("%s, %s", l.Name, l.RegionCode)
}

// HasGeo reports whether both coordinates are known.
func (l *Locality) HasGeo() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Validate checks the fields the pipeline depends on.
func (l *Locality) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("locality %s: name is required", l.ID)
	}
	if len(strings.TrimSpace(l.RegionCode)) != 2 {
		return fmt.Errorf("locality %s: region code must be two letters, got %q", l.ID, l.RegionCode)
	}
	return nil
}

// SetPublishedRequest records where a locality's main page was published.
type SetPublishedRequest struct {
	LocalityID string
	URL        string
	At         time.Time
}
