package pages

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/UltimateServices/Dumpsters-CRM/internal/content"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// Business constants shared by the structured data and the page bodies.
const (
	BusinessName   = "Ultimate Dumpsters"
	BusinessURL    = "https://ultimatedumpsters.com"
	BusinessLogo   = BusinessURL + "/logo.png"
	PriceRange     = "$295-$695"
	RatingValue    = "4.9"
	ReviewCount    = "1200"
	OpeningHours   = "Mo-Su 06:00-22:00"
	FoundingDate   = "2009"
	schemaContext  = "https://schema.org"
	organizationID = BusinessURL + "/#organization"
)

// DumpsterSize is one rentable container with its price band in whole dollars.
type DumpsterSize struct {
	Yards      int
	MinPrice   int
	MaxPrice   int
	Dimensions string
	Summary    string
	Uses       [2]string
	Popular    bool
}

// Sizes lists the containers offered everywhere, smallest first.
var Sizes = []DumpsterSize{
	{Yards: 10, MinPrice: 295, MaxPrice: 395, Dimensions: "12' L × 8' W × 4' H", Summary: "Perfect for small projects", Uses: [2]string{"Bathroom remodels", "Small cleanouts"}},
	{Yards: 20, MinPrice: 395, MaxPrice: 495, Dimensions: "22' L × 8' W × 4' H", Summary: "Ideal for home renovations", Uses: [2]string{"Kitchen remodels", "Garage cleanouts"}, Popular: true},
	{Yards: 30, MinPrice: 495, MaxPrice: 595, Dimensions: "22' L × 8' W × 6' H", Summary: "Large renovation projects", Uses: [2]string{"Whole house cleanouts", "Large renovations"}},
	{Yards: 40, MinPrice: 595, MaxPrice: 695, Dimensions: "22' L × 8' W × 8' H", Summary: "Commercial & construction", Uses: [2]string{"New construction", "Commercial projects"}},
}

// PriceLabel renders the band as "$295-$395".
func (d DumpsterSize) PriceLabel() string {
	return fmt.Sprintf("$%d-$%d", d.MinPrice, d.MaxPrice)
}

// The structs below mirror the schema.org vocabulary. Field order is the
// marshaled key order, so identical input always yields identical bytes.

type faqPageSchema struct {
	Context    string           `json:"@context"`
	Type       string           `json:"@type"`
	MainEntity []questionSchema `json:"mainEntity"`
}

type questionSchema struct {
	Type           string       `json:"@type"`
	Name           string       `json:"name"`
	AcceptedAnswer answerSchema `json:"acceptedAnswer"`
}

type answerSchema struct {
	Type string `json:"@type"`
	Text string `json:"text"`
}

type citySchema struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type providerSchema struct {
	Type       string `json:"@type"`
	ID         string `json:"@id,omitempty"`
	Name       string `json:"name"`
	Telephone  string `json:"telephone"`
	PriceRange string `json:"priceRange"`
}

type serviceSchema struct {
	Context         string             `json:"@context"`
	Type            string             `json:"@type"`
	ServiceType     string             `json:"serviceType"`
	Provider        providerSchema     `json:"provider"`
	AreaServed      citySchema         `json:"areaServed"`
	HasOfferCatalog offerCatalogSchema `json:"hasOfferCatalog"`
}

type offerCatalogSchema struct {
	Type            string        `json:"@type"`
	Name            string        `json:"name"`
	ItemListElement []offerSchema `json:"itemListElement"`
}

type offerSchema struct {
	Type               string             `json:"@type"`
	ItemOffered        offeredSchema      `json:"itemOffered"`
	PriceSpecification priceSpecification `json:"priceSpecification"`
}

type offeredSchema struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type priceSpecification struct {
	Type          string `json:"@type"`
	Price         string `json:"price"`
	PriceCurrency string `json:"priceCurrency"`
}

type localBusinessSchema struct {
	Context         string                `json:"@context"`
	Type            string                `json:"@type"`
	ID              string                `json:"@id"`
	Name            string                `json:"name"`
	Image           string                `json:"image"`
	Telephone       string                `json:"telephone"`
	PriceRange      string                `json:"priceRange"`
	Address         postalAddressSchema   `json:"address"`
	Geo             *geoSchema            `json:"geo,omitempty"`
	AggregateRating aggregateRatingSchema `json:"aggregateRating"`
	AreaServed      citySchema            `json:"areaServed"`
	OpeningHours    string                `json:"openingHours"`
}

type postalAddressSchema struct {
	Type            string `json:"@type"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	AddressCountry  string `json:"addressCountry"`
}

type geoSchema struct {
	Type      string  `json:"@type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type aggregateRatingSchema struct {
	Type        string `json:"@type"`
	RatingValue string `json:"ratingValue"`
	ReviewCount string `json:"reviewCount"`
	BestRating  string `json:"bestRating"`
	WorstRating string `json:"worstRating"`
}

type organizationSchema struct {
	Context      string   `json:"@context"`
	Type         string   `json:"@type"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Logo         string   `json:"logo"`
	Telephone    string   `json:"telephone"`
	FoundingDate string   `json:"foundingDate"`
	Description  string   `json:"description"`
	SameAs       []string `json:"sameAs"`
}

var anyLinkMarker = regexp.MustCompile(`\[Link:[^\]]*\]`)

// FAQPageSchema builds the FAQPage object. Link markers are removed from answers.
func FAQPageSchema(faqs []model.FAQ) json.RawMessage {
	entities := make([]questionSchema, 0, len(faqs))
	for _, f := range faqs {
		entities = append(entities, questionSchema{
			Type: "Question",
			Name: f.Question,
			AcceptedAnswer: answerSchema{
				Type: "Answer",
				Text: strings.Join(strings.Fields(anyLinkMarker.ReplaceAllString(f.Answer, "")), " "),
			},
		})
	}
	return mustMarshal(faqPageSchema{Context: schemaContext, Type: "FAQPage", MainEntity: entities})
}

// ServiceSchema builds the Service object with the dumpster offer catalog.
func ServiceSchema(loc *model.Locality) json.RawMessage {
	offers := make([]offerSchema, 0, len(Sizes))
	for _, s := range Sizes {
		offers = append(offers, offerSchema{
			Type:        "Offer",
			ItemOffered: offeredSchema{Type: "Service", Name: fmt.Sprintf("%d Yard Dumpster Rental", s.Yards)},
			PriceSpecification: priceSpecification{
				Type:          "PriceSpecification",
				Price:         fmt.Sprintf("%d-%d", s.MinPrice, s.MaxPrice),
				PriceCurrency: "USD",
			},
		})
	}
	return mustMarshal(serviceSchema{
		Context:     schemaContext,
		Type:        "Service",
		ServiceType: "dumpster rental service",
		Provider: providerSchema{
			Type:       "LocalBusiness",
			Name:       BusinessName,
			Telephone:  content.Phone,
			PriceRange: PriceRange,
		},
		AreaServed: citySchema{Type: "City", Name: loc.Name},
		HasOfferCatalog: offerCatalogSchema{
			Type:            "OfferCatalog",
			Name:            "Dumpster Rental Services",
			ItemListElement: offers,
		},
	})
}

// LocalBusinessSchema builds the LocalBusiness object. Geo is omitted when the
// locality has no coordinates.
func LocalBusinessSchema(loc *model.Locality) json.RawMessage {
	lb := localBusinessSchema{
		Context:    schemaContext,
		Type:       "LocalBusiness",
		ID:         organizationID,
		Name:       BusinessName,
		Image:      BusinessLogo,
		Telephone:  content.Phone,
		PriceRange: PriceRange,
		Address: postalAddressSchema{
			Type:            "PostalAddress",
			AddressLocality: loc.Name,
			AddressRegion:   loc.RegionCode,
			AddressCountry:  "US",
		},
		AggregateRating: aggregateRatingSchema{
			Type:        "AggregateRating",
			RatingValue: RatingValue,
			ReviewCount: ReviewCount,
			BestRating:  "5",
			WorstRating: "1",
		},
		AreaServed:   citySchema{Type: "City", Name: loc.Name},
		OpeningHours: OpeningHours,
	}
	if loc.HasGeo() && finite(*loc.Latitude) && finite(*loc.Longitude) {
		lb.Geo = &geoSchema{Type: "GeoCoordinates", Latitude: *loc.Latitude, Longitude: *loc.Longitude}
	}
	return mustMarshal(lb)
}

// OrganizationSchema builds the Organization object. It does not depend on the locality.
func OrganizationSchema() json.RawMessage {
	return mustMarshal(organizationSchema{
		Context:      schemaContext,
		Type:         "Organization",
		Name:         BusinessName,
		URL:          BusinessURL,
		Logo:         BusinessLogo,
		Telephone:    content.Phone,
		FoundingDate: FoundingDate,
		Description:  "Professional dumpster rental service serving customers nationwide with 15+ years of experience.",
		SameAs: []string{
			"https://www.facebook.com/ultimatedumpsters",
			"https://www.linkedin.com/company/ultimatedumpsters",
		},
	})
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// mustMarshal marshals the schema structs above, which contain only strings,
// numbers and slices of them and cannot fail.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal structured data: %v", err))
	}
	return b
}
