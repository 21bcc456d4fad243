package wellness

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const (
	Morning   = "morning"
	Afternoon = "afternoon"
	Evening   = "evening"
)

// Tier is an activity bucket derived from steps and calories burned.
type Tier string

const (
	TierHigh     Tier = "high"
	TierModerate Tier = "moderate"
	TierLow      Tier = "low"
	TierFallback Tier = "fallback"
)

// genericTipChance applies only when the branch did not add its own tip.
const genericTipChance = 0.3

var genericTips = []string{
	" Consider a local organic version if available!",
	" Pair this with a fresh juice – even better if it's from a local vendor!",
	" Remember to minimize food waste with your meal!",
}

// Rand is the randomness the food engine draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// dish is one cell of the menu table. A tip is appended with probability
// tipChance. ecoIncluded marks texts that already carry eco advice and
// never receive a generic tip.
type dish struct {
	text        string
	tip         string
	tipChance   float64
	ecoIncluded bool
}

// anyTime keys the generic dish used for unrecognized times of day.
const anyTime = ""

var menu = map[Tier]map[string]dish{
	TierHigh: {
		Morning: {
			text:      "Paneer Sandwich + Banana Shake (₹60, Eco-Rating: 3/5), a great start for an active day!",
			tip:       "Consider using a reusable cup for your shake!",
			tipChance: 0.5,
		},
		Afternoon: {text: "Rajma Chawal + Lassi (₹70, Eco-Rating: 4/5), a wholesome meal to refuel."},
		Evening:   {text: "Vegetable Pulao + Curd (₹65, Eco-Rating: 4/5), light yet satisfying for the evening."},
		anyTime:   {text: "Consider a balanced meal like Dal Makhani with Roti (₹80, Eco-Rating: 3/5) to recover."},
	},
	TierModerate: {
		Morning: {
			text:      "Oats with Fruits and Nuts (₹50, Eco-Rating: 5/5), a healthy and energizing breakfast.",
			tip:       "Choose seasonal fruits from local vendors for an extra eco-boost!",
			tipChance: 0.5,
		},
		Afternoon: {text: "Dal Roti with a side of Salad (₹55, Eco-Rating: 4/5), a balanced and light lunch."},
		Evening:   {text: "Vegetable Soup with a slice of Brown Bread (₹45, Eco-Rating: 3/5), light and easy to digest."},
		anyTime:   {text: "A serving of Idli Sambar (₹60, Eco-Rating: 4/5) could be a good choice."},
	},
	TierLow: {
		Morning: {text: "A piece of Fruit (e.g., Apple or Banana) (₹20, Eco-Rating: 5/5) or a glass of Milk (₹25, Eco-Rating: 3/5)."},
		Afternoon: {
			text:      "Light snack like a Fruit Salad (₹40, Eco-Rating: 5/5) or Coconut Water (₹30, Eco-Rating: 5/5).",
			tip:       "If it's coconut water, try to get it directly from a vendor to avoid packaging.",
			tipChance: 0.7,
		},
		Evening: {text: "A cup of Green Tea with a few Almonds (₹35, Eco-Rating: 4/5)."},
		anyTime: {text: "Consider a light snack like Sprout Salad (₹30, Eco-Rating: 5/5) or a small bowl of Yogurt (₹25, Eco-Rating: 3/5)."},
	},
	TierFallback: {
		Morning:   {text: "Poha with a glass of Juice (₹40, Eco-Rating: 3/5) is a popular choice for breakfast."},
		Afternoon: {text: "Consider a Thali meal for a variety of options (₹90-₹150, Eco-Rating: Varies)."},
		Evening:   {text: "Khichdi with a dollop of Ghee (₹50, Eco-Rating: 4/5) is a comforting and healthy dinner."},
		anyTime: {
			text:        "Water is always a good choice! For food, consider your hunger level and preferences. Opt for less packaging where possible.",
			ecoIncluded: true,
		},
	},
}

// ClassifyActivity picks the tier. The first matching rule wins; inputs in
// the gaps between tiers land in TierFallback.
func ClassifyActivity(steps int, caloriesBurned float64) Tier {
	switch {
	case caloriesBurned > 300 && steps > 5000:
		return TierHigh
	case caloriesBurned >= 100 && caloriesBurned <= 300 && steps >= 2000 && steps <= 5000:
		return TierModerate
	case caloriesBurned < 100:
		return TierLow
	default:
		return TierFallback
	}
}

func lookupDish(steps int, caloriesBurned float64, timeOfDay string) dish {
	dishes := menu[ClassifyActivity(steps, caloriesBurned)]
	if d, ok := dishes[strings.ToLower(timeOfDay)]; ok {
		return d
	}
	return dishes[anyTime]
}

// BaseRecommendation returns the recommendation text without any eco-tip.
// It does not consume randomness.
func BaseRecommendation(steps int, caloriesBurned float64, timeOfDay string) string {
	return lookupDish(steps, caloriesBurned, timeOfDay).text
}

// FoodRecommender appends randomized eco-tips to the menu text.
type FoodRecommender struct {
	mu  sync.Mutex
	rng Rand
}

// NewFoodRecommender uses rng for every eco-tip draw. A nil rng is
// replaced by a PCG source seeded from the clock.
func NewFoodRecommender(rng Rand) *FoodRecommender {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &FoodRecommender{rng: rng}
}

// Recommend returns exactly one recommendation. timeOfDay is matched
// case-insensitively against morning, afternoon and evening.
func (f *FoodRecommender) Recommend(steps int, caloriesBurned float64, timeOfDay string) string {
	d := lookupDish(steps, caloriesBurned, timeOfDay)
	text := d.text
	tipped := d.ecoIncluded

	f.mu.Lock()
	defer f.mu.Unlock()

	if d.tip != "" && f.rng.Float64() < d.tipChance {
		text += " " + d.tip
		tipped = true
	}
	if !tipped && f.rng.Float64() < genericTipChance {
		text += genericTips[f.rng.IntN(len(genericTips))]
	}
	return text
}
