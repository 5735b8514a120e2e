package profile

import "github.com/ncacord/qraphael/internal/storage"

// Category identifies one independently-fetched profile fragment.
type Category string

const (
	CategoryIdentity      Category = "identity"
	CategoryPreferences   Category = "preferences"
	CategoryMedical       Category = "medical"
	CategoryFinancial     Category = "financial"
	CategoryProfessional  Category = "professional"
	CategoryEducation     Category = "education"
	CategorySocial        Category = "social"
	CategorySecurity      Category = "security"
	CategoryMiscellaneous Category = "miscellaneous"
	CategoryInterests     Category = "interests"
)

// Categories lists every profile category in canonical order.
var Categories = []Category{
	CategoryIdentity,
	CategoryPreferences,
	CategoryMedical,
	CategoryFinancial,
	CategoryProfessional,
	CategoryEducation,
	CategorySocial,
	CategorySecurity,
	CategoryMiscellaneous,
	CategoryInterests,
}

// Identity holds the user's name and contact details, built from the
// detail_type → detail_value rows of user_details.
type Identity struct {
	Name    string            `json:"name,omitempty"`
	Contact map[string]string `json:"contact,omitempty"`
}

// Preferences is the open-ended preference map; keys are unique per user.
type Preferences map[string]string

// Medical groups the per-user medical record lists. Each list is
// independently optional.
type Medical struct {
	Conditions    []storage.MedicalCondition `json:"conditions,omitempty"`
	Medications   []storage.Medication       `json:"medications,omitempty"`
	Immunizations []storage.Immunization     `json:"immunizations,omitempty"`
	Visits        []storage.DoctorVisit      `json:"visits,omitempty"`
	Insurance     []storage.InsuranceEntry   `json:"insurance,omitempty"`
	Metrics       []storage.HealthMetric     `json:"metrics,omitempty"`
}

// Financial groups the per-user financial record lists.
type Financial struct {
	Investments        []storage.Investment        `json:"investments,omitempty"`
	RetirementAccounts []storage.RetirementAccount `json:"retirement_accounts,omitempty"`
	TaxRecords         []storage.TaxRecord         `json:"tax_records,omitempty"`
	Expenses           []storage.Expense           `json:"expenses,omitempty"`
	Cards              []storage.Card              `json:"cards,omitempty"`
	BankAccounts       []storage.BankAccount       `json:"bank_accounts,omitempty"`
	Loans              []storage.Loan              `json:"loans,omitempty"`
	Salaries           []storage.Salary            `json:"salaries,omitempty"`
	Debts              []storage.Debt              `json:"debts,omitempty"`
}
