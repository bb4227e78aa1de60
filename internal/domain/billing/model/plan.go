package model

// Plan is one row of the static price table. Plans never change at
// runtime; repricing is a deploy.
type Plan struct {
	ID          string  `json:"id"`
	ProductName string  `json:"productName"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	PeriodDays  int     `json:"periodDays"`
}

// Plans is the price table the invoice issuer validates against.
// The monthly plan charges 1 UAH up front; renewals are billed by the
// gateway at the regular price.
var Plans = map[string]Plan{
	"monthly": {
		ID:          "monthly",
		ProductName: "MindCare support, monthly subscription",
		Amount:      1,
		Currency:    "UAH",
		PeriodDays:  30,
	},
	"yearly": {
		ID:          "yearly",
		ProductName: "MindCare support, yearly subscription",
		Amount:      2390,
		Currency:    "UAH",
		PeriodDays:  365,
	},
}

// GetPlan looks a plan up by id.
func GetPlan(id string) (Plan, bool) {
	p, ok := Plans[id]
	return p, ok
}
