package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transaction is rent or sale.
type Transaction string

const (
	TransactionRent Transaction = "rent"
	TransactionSale Transaction = "sale"
)

// DateLayout is the wire format for move-in dates.
const DateLayout = "2006-01-02"

// Filters is the accumulated search criteria for one search flow. A nil field is unknown.
type Filters struct {
	Location          *string      `json:"location,omitempty"`
	Transaction       *Transaction `json:"transaction,omitempty"`
	PropertyType      *string      `json:"property_type,omitempty"`
	Bedrooms          *int         `json:"bedrooms,omitempty"`
	Bathrooms         *int         `json:"bathrooms,omitempty"`
	BudgetMin         *int         `json:"budget_min,omitempty"`
	BudgetMax         *int         `json:"budget_max,omitempty"`
	MoveInDate        *string      `json:"move_in_date,omitempty"`
	LeaseMonths       *int         `json:"lease_months,omitempty"`
	TenantGender      *string      `json:"tenant_gender,omitempty"`
	TenantNationality *string      `json:"tenant_nationality,omitempty"`
	RoomType          *string      `json:"room_type,omitempty"`
	Furnishing        *string      `json:"furnishing,omitempty"`
	Environment       *string      `json:"environment,omitempty"`
	NeedsEnsuite      *bool        `json:"needs_ensuite,omitempty"`
	NeedsCooking      *bool        `json:"needs_cooking,omitempty"`
	HasPets           *bool        `json:"has_pets,omitempty"`
	NeedsAircon       *bool        `json:"needs_aircon,omitempty"`
}

// PartialFilters is what one message contributed. Nil fields were not mentioned.
type PartialFilters Filters

// FilterField names a filter that a search flow may require.
type FilterField string

const (
	FieldLocation     FilterField = "location"
	FieldBudgetMax    FilterField = "budget_max"
	FieldTenantGender FilterField = "tenant_gender"
	FieldPropertyType FilterField = "property_type"
)

var flexibleLocations = []string{
	"anywhere", "any where", "any location", "any area", "no preference", "dont mind", "don't mind",
	"doesn't matter", "does not matter", "flexible", "all areas", "whole singapore", "any",
}

// IsFlexibleLocation reports whether the location means "search everywhere".
func IsFlexibleLocation(loc string) bool {
	l := strings.ToLower(strings.TrimSpace(loc))
	if l == "" {
		return false
	}
	for _, k := range flexibleLocations {
		if l == k || (len(k) > 3 && strings.Contains(l, k)) {
			return true
		}
	}
	return false
}

// Merge applies p over f and returns notes for values it refused.
// Answers overwrite earlier ones, nil never clears, transaction is fixed once set.
func (f *Filters) Merge(p PartialFilters, now time.Time) []string {
	var notes []string

	setString(&f.Location, p.Location)
	if f.Transaction == nil && p.Transaction != nil {
		switch *p.Transaction {
		case TransactionRent, TransactionSale:
			t := *p.Transaction
			f.Transaction = &t
		}
	}
	setString(&f.PropertyType, p.PropertyType)
	setCount(&f.Bedrooms, p.Bedrooms)
	setCount(&f.Bathrooms, p.Bathrooms)
	setCount(&f.LeaseMonths, p.LeaseMonths)
	setString(&f.TenantGender, p.TenantGender)
	setString(&f.TenantNationality, p.TenantNationality)
	setString(&f.RoomType, p.RoomType)
	setString(&f.Furnishing, p.Furnishing)
	setString(&f.Environment, p.Environment)
	setBool(&f.NeedsEnsuite, p.NeedsEnsuite)
	setBool(&f.NeedsCooking, p.NeedsCooking)
	setBool(&f.HasPets, p.HasPets)
	setBool(&f.NeedsAircon, p.NeedsAircon)

	notes = append(notes, f.mergeBudget(p.BudgetMin, p.BudgetMax)...)

	if p.MoveInDate != nil && strings.TrimSpace(*p.MoveInDate) != "" {
		raw := strings.TrimSpace(*p.MoveInDate)
		d, err := time.Parse(DateLayout, raw)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		switch {
		case err != nil:
			notes = append(notes, fmt.Sprintf("I couldn't understand the move-in date %q. Could you give it as a date, e.g. %s?", raw, today.AddDate(0, 1, 0).Format(DateLayout)))
		case d.Before(today):
			notes = append(notes, fmt.Sprintf("The move-in date %s is in the past, so I've left it out. When would you like to move in?", raw))
		default:
			v := d.Format(DateLayout)
			f.MoveInDate = &v
		}
	}
	return notes
}

func (f *Filters) mergeBudget(minP, maxP *int) []string {
	var notes []string
	newMin, newMax := positive(minP), positive(maxP)
	if newMin != nil && newMax != nil && *newMin > *newMax {
		newMin, newMax = newMax, newMin
	}
	if newMax != nil {
		f.BudgetMax = newMax
		if newMin == nil && f.BudgetMin != nil && *f.BudgetMin > *newMax {
			f.BudgetMin = nil
			notes = append(notes, "I've dropped your earlier minimum budget since it was above the new maximum.")
		}
	}
	if newMin != nil {
		f.BudgetMin = newMin
		if newMax == nil && f.BudgetMax != nil && *f.BudgetMax < *newMin {
			f.BudgetMax = nil
			notes = append(notes, "I've dropped your earlier maximum budget since it was below the new minimum.")
		}
	}
	return notes
}

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	return Filters{
		Location:          clonePtr(f.Location),
		Transaction:       clonePtr(f.Transaction),
		PropertyType:      clonePtr(f.PropertyType),
		Bedrooms:          clonePtr(f.Bedrooms),
		Bathrooms:         clonePtr(f.Bathrooms),
		BudgetMin:         clonePtr(f.BudgetMin),
		BudgetMax:         clonePtr(f.BudgetMax),
		MoveInDate:        clonePtr(f.MoveInDate),
		LeaseMonths:       clonePtr(f.LeaseMonths),
		TenantGender:      clonePtr(f.TenantGender),
		TenantNationality: clonePtr(f.TenantNationality),
		RoomType:          clonePtr(f.RoomType),
		Furnishing:        clonePtr(f.Furnishing),
		Environment:       clonePtr(f.Environment),
		NeedsEnsuite:      clonePtr(f.NeedsEnsuite),
		NeedsCooking:      clonePtr(f.NeedsCooking),
		HasPets:           clonePtr(f.HasPets),
		NeedsAircon:       clonePtr(f.NeedsAircon),
	}
}

// IsEmpty reports whether nothing has been collected.
func (f Filters) IsEmpty() bool {
	return f == Filters{}
}

// FlexibleLocation reports whether the user asked to search all areas.
func (f Filters) FlexibleLocation() bool {
	return f.Location != nil && IsFlexibleLocation(*f.Location)
}

// MissingFilterFields lists, in asking order, the required filters still unknown for table.
// An unresolved table only requires a location.
func MissingFilterFields(table ListingTable, f Filters) []FilterField {
	var missing []FilterField
	if f.Location == nil {
		missing = append(missing, FieldLocation)
	}
	switch {
	case table.IsRoom():
		if f.BudgetMax == nil {
			missing = append(missing, FieldBudgetMax)
		}
		if f.TenantGender == nil {
			missing = append(missing, FieldTenantGender)
		}
	case table.IsResidential():
		if f.PropertyType == nil {
			missing = append(missing, FieldPropertyType)
		}
	}
	return missing
}

var (
	colivingTypes   = []string{"coliving", "co-living", "co living"}
	roomTypes       = []string{"room", "common room", "master room", "master bedroom"}
	commercialTypes = []string{"office", "shop", "retail", "warehouse", "industrial", "commercial", "f&b", "shophouse", "factory"}
	newLaunchTypes  = []string{"new launch", "developer", "ec", "executive condo"}
)

// ResolveTable infers the listing table from collected filters; empty when undetermined.
func ResolveTable(f Filters) ListingTable {
	pt := ""
	if f.PropertyType != nil {
		pt = strings.ToLower(*f.PropertyType)
	}
	if matchesAny(pt, colivingTypes) {
		return TableColiving
	}
	if f.RoomType != nil || exactAny(pt, roomTypes) {
		return TableRooms
	}
	if f.Transaction == nil {
		return ""
	}
	rent := *f.Transaction == TransactionRent
	newLaunch := matchesAny(pt, newLaunchTypes)
	if matchesAny(pt, commercialTypes) {
		switch {
		case rent:
			return TableCommercialRent
		case newLaunch:
			return TableCommercialDeveloper
		default:
			return TableCommercialResale
		}
	}
	switch {
	case rent:
		return TableResidentialRent
	case newLaunch:
		return TableResidentialDeveloper
	default:
		return TableResidentialResale
	}
}

func matchesAny(s string, words []string) bool {
	if s == "" {
		return false
	}
	for _, w := range words {
		if s == w || (len(w) > 3 && strings.Contains(s, w)) {
			return true
		}
	}
	return false
}

func exactAny(s string, words []string) bool {
	for _, w := range words {
		if s == w {
			return true
		}
	}
	return false
}

func setString(dst **string, src *string) {
	if src == nil {
		return
	}
	v := strings.TrimSpace(*src)
	if v == "" {
		return
	}
	*dst = &v
}

func setCount(dst **int, src *int) {
	if src == nil || *src < 0 {
		return
	}
	v := *src
	*dst = &v
}

func setBool(dst **bool, src *bool) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

func positive(p *int) *int {
	if p == nil || *p <= 0 {
		return nil
	}
	v := *p
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Describe renders the known criteria for prompts and replies,
// e.g. "condo, for rent, in Bugis, 2 bedrooms, up to 5,000".
func (f Filters) Describe() string {
	var parts []string
	if f.PropertyType != nil {
		parts = append(parts, *f.PropertyType)
	}
	if f.RoomType != nil {
		parts = append(parts, *f.RoomType)
	}
	if f.Transaction != nil {
		parts = append(parts, "for "+string(*f.Transaction))
	}
	if f.Location != nil {
		if f.FlexibleLocation() {
			parts = append(parts, "any area")
		} else {
			parts = append(parts, "in "+*f.Location)
		}
	}
	if f.Bedrooms != nil {
		parts = append(parts, plural(*f.Bedrooms, "bedroom"))
	}
	if f.Bathrooms != nil {
		parts = append(parts, "at least "+plural(*f.Bathrooms, "bathroom"))
	}
	switch {
	case f.BudgetMin != nil && f.BudgetMax != nil:
		parts = append(parts, FormatAmount(*f.BudgetMin)+" to "+FormatAmount(*f.BudgetMax))
	case f.BudgetMax != nil:
		parts = append(parts, "up to "+FormatAmount(*f.BudgetMax))
	case f.BudgetMin != nil:
		parts = append(parts, "from "+FormatAmount(*f.BudgetMin))
	}
	if f.MoveInDate != nil {
		parts = append(parts, "moving in from "+*f.MoveInDate)
	}
	if f.LeaseMonths != nil {
		parts = append(parts, fmt.Sprintf("%d-month lease", *f.LeaseMonths))
	}
	if f.TenantGender != nil {
		parts = append(parts, "tenant: "+*f.TenantGender)
	}
	if f.TenantNationality != nil {
		parts = append(parts, "nationality: "+*f.TenantNationality)
	}
	if f.Furnishing != nil {
		parts = append(parts, *f.Furnishing)
	}
	if f.Environment != nil {
		parts = append(parts, *f.Environment+" environment")
	}
	for _, flag := range []struct {
		v    *bool
		text string
	}{
		{f.NeedsEnsuite, "ensuite bathroom"},
		{f.NeedsCooking, "cooking allowed"},
		{f.HasPets, "pet friendly"},
		{f.NeedsAircon, "aircon"},
	} {
		if flag.v != nil && *flag.v {
			parts = append(parts, flag.text)
		}
	}
	if len(parts) == 0 {
		return "no criteria yet"
	}
	return strings.Join(parts, ", ")
}

// FormatAmount renders n with thousands separators.
func FormatAmount(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
