package models

import "strings"

// Rating is a bureau risk classification assigned per credit-granting entity
type Rating string

const (
	Rating5  Rating = "5"
	Rating4  Rating = "4"
	Rating3  Rating = "3"
	Rating2  Rating = "2" // legacy undifferentiated grade 2
	Rating2D Rating = "2D"
	Rating2C Rating = "2C"
	Rating2B Rating = "2B"
	Rating2A Rating = "2A"
	Rating1C Rating = "1C"
	Rating1B Rating = "1B"
	Rating1A Rating = "1A"

	// Sentinels carry no rank.
	RatingZero          Rating = "0"
	RatingNotClassified Rating = "N/C"
	RatingNone          Rating = "N"
)

// ratingScale lists ranked codes from worst to best. It must not change at runtime.
var ratingScale = [...]Rating{
	Rating5, Rating4, Rating3, Rating2, Rating2D, Rating2C, Rating2B, Rating2A, Rating1C, Rating1B, Rating1A,
}

var ratingRank = func() map[Rating]int {
	m := make(map[Rating]int, len(ratingScale))
	for i, r := range ratingScale {
		m[r] = i
	}
	return m
}()

// ParseRating trims and upper-cases a provider rating code. Unknown codes map to N/C.
func ParseRating(s string) Rating {
	r := Rating(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RatingZero, RatingNotClassified, RatingNone:
		return r
	case "NC", "":
		return RatingNotClassified
	}
	if _, ok := ratingRank[r]; ok {
		return r
	}
	return RatingNotClassified
}

// Ranked reports whether the rating takes part in the worst-to-best order.
func (r Rating) Ranked() bool {
	_, ok := ratingRank[r]
	return ok
}

// Rank returns the position on the scale, 0 being the worst. Sentinels return -1.
func (r Rating) Rank() int {
	if i, ok := ratingRank[r]; ok {
		return i
	}
	return -1
}

// WorseThan reports whether r is strictly worse than other. Unranked codes are never worse,
// and any ranked code is worse than an unranked one.
func (r Rating) WorseThan(other Rating) bool {
	if !r.Ranked() {
		return false
	}
	if !other.Ranked() {
		return true
	}
	return r.Rank() < other.Rank()
}

// Good reports whether the rating is one of the first-grade codes.
func (r Rating) Good() bool {
	switch r {
	case Rating1A, Rating1B, Rating1C:
		return true
	}
	return false
}

// RatingScale returns a copy of the ranked codes from worst to best.
func RatingScale() []Rating {
	out := make([]Rating, len(ratingScale))
	copy(out, ratingScale[:])
	return out
}

// badRatings is the fixed set of codes that reject an applicant outright.
// 2C and 2D rank below 2B on the scale but are not members, so membership is
// checked per entity rather than on the worst rating.
var badRatings = map[Rating]struct{}{
	Rating2B: {},
	Rating2:  {},
	Rating3:  {},
	Rating4:  {},
	Rating5:  {},
}

// Rejectable reports whether the rating belongs to the bad-rating set
func (r Rating) Rejectable() bool {
	_, ok := badRatings[r]
	return ok
}

// WorstRating folds entities in array order, replacing the running minimum only
// with a strictly worse ranked rating. It returns RatingNone when nothing is ranked.
func WorstRating(entities ...[]Entity) Rating {
	worst := RatingNone
	for _, list := range entities {
		for _, e := range list {
			if e.Rating.WorseThan(worst) {
				worst = e.Rating
			}
		}
	}
	return worst
}

// WorstRejectable returns the worst rating of the bad-rating set held by any entity.
// It reports false when no entity carries a rejectable rating.
func WorstRejectable(entities ...[]Entity) (Rating, bool) {
	worst, found := RatingNone, false
	for _, list := range entities {
		for _, e := range list {
			if e.Rating.Rejectable() && (!found || e.Rating.WorseThan(worst)) {
				worst, found = e.Rating, true
			}
		}
	}
	return worst, found
}
