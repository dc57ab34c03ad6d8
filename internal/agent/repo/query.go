package repo

import (
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

const statusAvailable = "available"

var propertyColumns = []string{
	"id", "listing_table", "agent_id", "name", "property_type", "address", "area", "nearest_mrt",
	"bedrooms", "bathrooms", "price", "furnishing", "gender_preference", "environment",
	"allows_cooking", "allows_pets", "has_ensuite", "available_from", "description", "url", "status",
}

var locationNoise = regexp.MustCompile(`(?i)\b(near|nearby|around|area|areas|district|mrt|station|estate|in|at|the)\b`)

// cleanLocation strips filler words so "near Bugis MRT" matches "Bugis".
func cleanLocation(loc string) string {
	cleaned := locationNoise.ReplaceAllString(loc, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

func likeArg(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// buildSearchQuery translates collected filters into a bounded listing query.
func buildSearchQuery(table model.ListingTable, f model.Filters, limit int) sq.SelectBuilder {
	q := sq.Select(propertyColumns...).
		From("properties").
		Where(sq.Eq{"listing_table": string(table), "status": statusAvailable})

	if f.Location != nil && !f.FlexibleLocation() {
		if loc := cleanLocation(*f.Location); loc != "" {
			arg := likeArg(loc)
			q = q.Where(sq.Or{
				sq.Like{"LOWER(area)": arg},
				sq.Like{"LOWER(address)": arg},
				sq.Like{"LOWER(nearest_mrt)": arg},
				sq.Like{"LOWER(name)": arg},
			})
		}
	}
	if f.BudgetMax != nil {
		q = q.Where(sq.LtOrEq{"price": *f.BudgetMax})
	}
	if f.BudgetMin != nil {
		q = q.Where(sq.GtOrEq{"price": *f.BudgetMin})
	}

	if table.IsRoom() {
		if f.TenantGender != nil {
			q = q.Where(sq.Or{
				sq.Eq{"LOWER(gender_preference)": []string{"", "any", "mixed"}},
				sq.Eq{"LOWER(gender_preference)": strings.ToLower(*f.TenantGender)},
			})
		}
		if f.NeedsEnsuite != nil && *f.NeedsEnsuite {
			q = q.Where(sq.Eq{"has_ensuite": true})
		}
	} else {
		if f.PropertyType != nil {
			q = q.Where(sq.Like{"LOWER(property_type)": likeArg(*f.PropertyType)})
		}
		if f.Bedrooms != nil {
			q = q.Where(sq.Eq{"bedrooms": *f.Bedrooms})
		}
		if f.Bathrooms != nil {
			q = q.Where(sq.GtOrEq{"bathrooms": *f.Bathrooms})
		}
	}

	if f.Furnishing != nil {
		q = q.Where(sq.Like{"LOWER(furnishing)": likeArg(*f.Furnishing)})
	}
	if f.Environment != nil {
		q = q.Where(sq.Like{"LOWER(environment)": likeArg(*f.Environment)})
	}
	if f.NeedsCooking != nil && *f.NeedsCooking {
		q = q.Where(sq.Eq{"allows_cooking": true})
	}
	if f.HasPets != nil && *f.HasPets {
		q = q.Where(sq.Eq{"allows_pets": true})
	}
	if f.MoveInDate != nil {
		q = q.Where(sq.Or{
			sq.Eq{"available_from": nil},
			sq.LtOrEq{"available_from": *f.MoveInDate},
		})
	}

	if limit <= 0 {
		limit = 10
	}
	return q.OrderBy("price ASC", "id ASC").Limit(uint64(limit))
}
