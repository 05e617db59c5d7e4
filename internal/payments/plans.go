package payments

import (
	"strings"

	"pricing-service/internal/models"
)

// Plan is a subscription tier, priced in USD cents per month
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Currency string   `json:"currency"`
	Interval string   `json:"interval"`
	Features []string `json:"features"`
}

var plans = []Plan{
	{
		ID:       models.PlanStarter,
		Name:     "Starter",
		Price:    0,
		Currency: "USD",
		Interval: "month",
		Features: []string{
			"Up to 100 products",
			"Basic pricing optimization",
			"Email support",
			"1 store connection",
		},
	},
	{
		ID:       models.PlanProfessional,
		Name:     "Professional",
		Price:    2900,
		Currency: "USD",
		Interval: "month",
		Features: []string{
			"Up to 1,000 products",
			"Advanced optimization",
			"Real-time analytics",
			"3 store connections",
			"Priority support",
			"Custom pricing rules",
		},
	},
	{
		ID:       models.PlanEnterprise,
		Name:     "Enterprise",
		Price:    9900,
		Currency: "USD",
		Interval: "month",
		Features: []string{
			"Unlimited products",
			"Advanced optimization with market data",
			"Advanced analytics & reporting",
			"Unlimited store connections",
			"24/7 dedicated support",
			"Custom integrations",
			"White-label options",
		},
	},
}

// Plans returns the plan catalog
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// LookupPlan finds a plan by id
func LookupPlan(id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// IsPaidPlan reports whether id can be subscribed to through the gateway
func IsPaidPlan(id string) bool {
	p, ok := LookupPlan(id)
	return ok && p.Price > 0
}

// MonthlyRevenue sums plan prices over active subscriber counts keyed by plan
func MonthlyRevenue(activeByPlan map[string]int) int64 {
	var total int64
	for id, n := range activeByPlan {
		if p, ok := LookupPlan(id); ok {
			total += p.Price * int64(n)
		}
	}
	return total
}

var regionalMethods = map[string][]string{
	"US": {"stripe", "paypal"},
	"CA": {"stripe", "paypal"},
	"GB": {"stripe", "paypal"},
	"SA": {"stripe", "tap", "moyasar", "paytabs"},
	"AE": {"stripe", "tap", "paytabs"},
	"EG": {"stripe", "paymob", "fawry"},
	"IN": {"stripe", "razorpay"},
	"NG": {"stripe", "flutterwave"},
}

// MethodsForCountry lists the payment methods offered in an ISO country
func MethodsForCountry(country string) []string {
	if m, ok := regionalMethods[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return append([]string(nil), m...)
	}
	return []string{"stripe", "paypal"}
}
