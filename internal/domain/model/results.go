//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Results is the structured payload stored on a job.
// Sections are written one key at a time during a run; Pages are filled in on completion.
type Results struct {
	Sections      map[string]map[SectionKey]Section `json:"sections"`
	Neighborhoods []string                          `json:"neighborhoods,omitempty"`
	Pages         []Page                            `json:"pages,omitempty"`
	SectionErrors map[string]string                 `json:"section_errors,omitempty"`
}

// Section returns the stored section for ref, if any.
func (r *Results) Section(ref SectionRef) (Section, bool) {
	page, ok := r.Sections[ref.PageKey]
	if !ok {
		return Section{}, false
	}
	s, ok := page[ref.SectionKey]
	return s, ok
}

// Has reports whether ref was already generated.
func (r *Results) Has(ref SectionRef) bool {
	_, ok := r.Section(ref)
	return ok
}

// SetSection stores s under ref, replacing any previous value.
func (r *Results) SetSection(ref SectionRef, s Section) {
	if r.Sections == nil {
		r.Sections = make(map[string]map[SectionKey]Section)
	}
	page := r.Sections[ref.PageKey]
	if page == nil {
		page = make(map[SectionKey]Section)
		r.Sections[ref.PageKey] = page
	}
	page[ref.SectionKey] = s
}

// SetSectionError records a best-effort section failure.
func (r *Results) SetSectionError(ref SectionRef, msg string) {
	if r.SectionErrors == nil {
		r.SectionErrors = make(map[string]string)
	}
	r.SectionErrors[ref.String()] = msg
}

// Page returns the assembled page with the given key.
func (r *Results) Page(key string) (*Page, bool) {
	for i := range r.Pages {
		if r.Pages[i].Key == key {
			return &r.Pages[i], true
		}
	}
	return nil, false
}

// Value implements driver.Valuer so Results can be written to a jsonb column.
func (r Results) Value() (driver.Value, error) {
	if r.Sections == nil {
		r.Sections = map[string]map[SectionKey]Section{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner for jsonb columns. NULL scans to empty results.
func (r *Results) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*r = Results{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("scan results: unsupported type %T", src)
	}
	var out Results
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("scan results: %w", err)
	}
	*r = out
	return nil
}
