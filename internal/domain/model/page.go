//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"time"
)

// ContentBlock is one named fragment of a page body, built from a single section.
type ContentBlock struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// Page is an assembled document derived from a job's sections.
// Pages only exist inside a job's results payload.
type Page struct {
	Key             string            `json:"key"`
	Type            PageType          `json:"type"`
	Neighborhood    string            `json:"neighborhood,omitempty"`
	Title           string            `json:"title"`
	Slug            string            `json:"slug"`
	MetaDescription string            `json:"meta_description"`
	H1              string            `json:"h1"`
	Blocks          []ContentBlock    `json:"blocks"`
	HTML            string            `json:"html"`
	WordCount       int               `json:"word_count"`
	FAQs            []FAQ             `json:"faqs,omitempty"`
	StructuredData  []json.RawMessage `json:"structured_data"`
}

// Block returns the named block, or a zero block when absent.
func (p *Page) Block(name string) ContentBlock {
	for _, b := range p.Blocks {
		if b.Name == name {
			return b
		}
	}
	return ContentBlock{Name: name}
}

// PublishedPage records one page created in the CMS.
type PublishedPage struct {
	LocalityID  string    `json:"locality_id"             db:"locality_id"`
	JobID       string    `json:"job_id"                  db:"job_id"`
	PageKey     string    `json:"page_key"                db:"page_key"`
	Slug        string    `json:"slug"                    db:"slug"`
	CMSID       int64     `json:"cms_id"                  db:"cms_id"`
	Link        string    `json:"link"                    db:"link"`
	ParentCMSID *int64    `json:"parent_cms_id,omitempty" db:"parent_cms_id"`
	CreatedAt   time.Time `json:"created_at"              db:"created_at"`
}

// PublishResult is returned after all pages of a job were published.
type PublishResult struct {
	LocalityID string          `json:"locality_id"`
	JobID      string          `json:"job_id"`
	MainURL    string          `json:"main_url"`
	Pages      []PublishedPage `json:"pages"`
}
