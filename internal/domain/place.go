package domain

import (
	"math"
	"sort"
	"strings"
)

// ParsedQuery is what the model extracted from a free-form message.
// Nil fields mean "no preference"; they are omitted on the wire, never nulled.
type ParsedQuery struct {
	Query   string   `json:"query"`
	Near    string   `json:"near"`
	Price   *string  `json:"price,omitempty"`    // "1".."4", comma separated
	OpenNow *bool    `json:"open_now,omitempty"` // only ever true
	Rating  *float64 `json:"rating,omitempty"`   // 0..10 scale
}

// Normalize trims strings and drops stand-in values so that absence stays the only
// way to say "no preference".
func (p *ParsedQuery) Normalize() {
	p.Query = strings.TrimSpace(p.Query)
	p.Near = strings.TrimSpace(p.Near)
	if p.Price != nil {
		s := strings.ReplaceAll(strings.TrimSpace(*p.Price), " ", "")
		if s == "" {
			p.Price = nil
		} else {
			p.Price = &s
		}
	}
	if p.OpenNow != nil && !*p.OpenNow {
		p.OpenNow = nil
	}
	if p.Rating != nil {
		if *p.Rating <= 0 || math.IsNaN(*p.Rating) {
			p.Rating = nil
		} else {
			r := Round2(*p.Rating)
			p.Rating = &r
		}
	}
}

// StarsToRating converts a 1-5 star value to the provider's 0-10 scale.
func StarsToRating(stars float64) float64 { return Round2(stars * 2) }

// Round2 rounds to at most two decimal places.
func Round2(f float64) float64 { return math.Round(f*100) / 100 }

type Category struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	ShortName  string        `json:"short_name,omitempty"`
	PluralName string        `json:"plural_name,omitempty"`
	Icon       *CategoryIcon `json:"icon,omitempty"`
}

type CategoryIcon struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

type Location struct {
	Address          string `json:"address,omitempty"`
	FormattedAddress string `json:"formatted_address,omitempty"`
	Locality         string `json:"locality,omitempty"`
	Region           string `json:"region,omitempty"`
	Postcode         string `json:"postcode,omitempty"`
	Country          string `json:"country,omitempty"`
	CrossStreet      string `json:"cross_street,omitempty"`
}

type Hours struct {
	Display        string         `json:"display,omitempty"`
	IsLocalHoliday *bool          `json:"is_local_holiday,omitempty"`
	OpenNow        *bool          `json:"open_now,omitempty"`
	Regular        []RegularHours `json:"regular,omitempty"`
}

type RegularHours struct {
	Day   int    `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

type Stats struct {
	TotalPhotos  *int `json:"total_photos,omitempty"`
	TotalRatings *int `json:"total_ratings,omitempty"`
	TotalTips    *int `json:"total_tips,omitempty"`
}

// PlaceResult is one place as returned by the places provider.
type PlaceResult struct {
	ID          string     `json:"fsq_id"`
	Name        string     `json:"name"`
	Categories  []Category `json:"categories,omitempty"`
	Location    *Location  `json:"location,omitempty"`
	Price       *int       `json:"price,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	Hours       *Hours     `json:"hours,omitempty"`
	Description string     `json:"description,omitempty"`
	Stats       *Stats     `json:"stats,omitempty"`
}

// IsOpen reports whether the provider marked the place as currently open.
func (p PlaceResult) IsOpen() bool {
	return p.Hours != nil && p.Hours.OpenNow != nil && *p.Hours.OpenNow
}

type SearchResponse struct {
	Results []PlaceResult `json:"results"`
	Total   int           `json:"total"`
}

// NewSearchResponse keeps Total in step with Results.
func NewSearchResponse(rs []PlaceResult) SearchResponse {
	if rs == nil {
		rs = []PlaceResult{}
	}
	return SearchResponse{Results: rs, Total: len(rs)}
}

// FilterMinRating keeps results rated at least min. Unrated results are dropped
// while a filter is active; with a nil min everything passes.
func FilterMinRating(rs []PlaceResult, min *float64) []PlaceResult {
	if min == nil {
		return rs
	}
	out := make([]PlaceResult, 0, len(rs))
	for _, r := range rs {
		if r.Rating != nil && *r.Rating >= *min {
			out = append(out, r)
		}
	}
	return out
}

// PrioritizeOpen returns a copy with open places first, otherwise keeping the
// provider's order.
func PrioritizeOpen(rs []PlaceResult) []PlaceResult {
	out := make([]PlaceResult, len(rs))
	copy(out, rs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsOpen() && !out[j].IsOpen() })
	return out
}
