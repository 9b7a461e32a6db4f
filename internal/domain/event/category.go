package event

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryConcert   Category = "concert"
	CategoryFoodDeal  Category = "food-deal"
	CategoryTrivia    Category = "trivia"
	CategoryTheatre   Category = "theatre"
	CategorySports    Category = "sports"
	CategoryFestival  Category = "festival"
	CategoryMarket    Category = "market"
	CategoryWorkshop  Category = "workshop"
	CategoryNightlife Category = "nightlife"
	CategoryFamily    Category = "family"
	CategoryCommunity Category = "community"
	Category19Plus    Category = "19plus"
	CategoryActivity  Category = "activity"
)

var categoryLabels = map[Category]string{
	CategoryConcert:   "Concerts",
	CategoryFoodDeal:  "Food & Drink Deals",
	CategoryTrivia:    "Trivia Nights",
	CategoryTheatre:   "Theatre & Arts",
	CategorySports:    "Sports",
	CategoryFestival:  "Festivals",
	CategoryMarket:    "Markets",
	CategoryWorkshop:  "Workshops & Classes",
	CategoryNightlife: "Nightlife",
	CategoryFamily:    "Family Friendly",
	CategoryCommunity: "Community Events",
	Category19Plus:    "19+",
	CategoryActivity:  "Activities",
}

func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c Category) Label() string {
	return categoryLabels[c]
}

// ParseCategory accepts a category slug, case-insensitively.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

// ParseCategories splits comma separated values and rejects unknown ones.
func ParseCategories(values []string) ([]Category, error) {
	out := make([]Category, 0, len(values))
	seen := make(map[Category]struct{}, len(values))

	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := ParseCategory(part)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}
