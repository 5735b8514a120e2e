package profile

import (
	"errors"
	"log/slog"

	"github.com/ncacord/qraphael/internal/storage"
)

// Store defines the storage operations the Accessor needs.
// Implemented by storage.Store.
type Store interface {
	GetUserDetails(userID string) (map[string]string, error)
	SetUserDetail(userID, detailType, value string) error
	GetPreferences(userID string) (map[string]string, error)
	SetPreference(userID, prefType, value string) error

	GetMedicalConditions(userID string) ([]storage.MedicalCondition, error)
	GetMedications(userID string) ([]storage.Medication, error)
	GetImmunizations(userID string) ([]storage.Immunization, error)
	GetDoctorVisits(userID string) ([]storage.DoctorVisit, error)
	GetInsuranceInfo(userID string) ([]storage.InsuranceEntry, error)
	GetHealthMetrics(userID string) ([]storage.HealthMetric, error)

	GetInvestments(userID string) ([]storage.Investment, error)
	GetRetirementAccounts(userID string) ([]storage.RetirementAccount, error)
	GetTaxRecords(userID string) ([]storage.TaxRecord, error)
	GetExpenses(userID string) ([]storage.Expense, error)
	GetCards(userID string) ([]storage.Card, error)
	GetBankAccounts(userID string) ([]storage.BankAccount, error)
	GetLoans(userID string) ([]storage.Loan, error)
	GetSalaries(userID string) ([]storage.Salary, error)
	GetDebts(userID string) ([]storage.Debt, error)

	GetProfessional(userID string) (storage.Professional, error)
	GetEducation(userID string) (storage.Education, error)
	GetSocial(userID string) (storage.Social, error)
	GetSecurity(userID string) (storage.Security, error)
	GetMiscellaneous(userID string) (storage.Miscellaneous, error)
	GetInterests(userID string) (storage.Interests, error)

	SetProfessional(userID string, p storage.Professional) error
	SetEducation(userID string, e storage.Education) error
	SetSocial(userID string, so storage.Social) error
	SetSecurity(userID string, sec storage.Security) error
	SetMiscellaneous(userID string, m storage.Miscellaneous) error
	SetInterests(userID string, i storage.Interests) error
}

// Accessor reads and writes per-category profile fragments. Every read
// degrades to the zero fragment: no rows is not an error, and a store
// failure is logged but never surfaces to the caller, so one category's
// trouble cannot block aggregation of the others.
type Accessor struct {
	store  Store
	logger *slog.Logger
}

// NewAccessor creates an Accessor over the given store.
func NewAccessor(store Store) *Accessor {
	return &Accessor{store: store, logger: slog.Default()}
}

// identityNameKey is the detail_type holding the user's name.
const identityNameKey = "name"

// Identity returns the user's identity fragment.
func (a *Accessor) Identity(userID string) Identity {
	details := mapOrEmpty(a, userID, CategoryIdentity, a.store.GetUserDetails)
	id := Identity{}
	if len(details) == 0 {
		return id
	}
	id.Contact = make(map[string]string, len(details))
	for k, v := range details {
		if k == identityNameKey {
			id.Name = v
			continue
		}
		id.Contact[k] = v
	}
	if len(id.Contact) == 0 {
		id.Contact = nil
	}
	return id
}

// SetName upserts the user's name into the identity fragment.
func (a *Accessor) SetName(userID, name string) error {
	return a.store.SetUserDetail(userID, identityNameKey, name)
}

// Preferences returns the user's preference map; empty when unset.
func (a *Accessor) Preferences(userID string) Preferences {
	return Preferences(mapOrEmpty(a, userID, CategoryPreferences, a.store.GetPreferences))
}

// SetPreference upserts one preference key.
func (a *Accessor) SetPreference(userID, key, value string) error {
	return a.store.SetPreference(userID, key, value)
}

// Medical returns the user's medical fragment. Each sub-list is fetched
// and degraded independently.
func (a *Accessor) Medical(userID string) Medical {
	return Medical{
		Conditions:    listOrEmpty(a, userID, CategoryMedical, a.store.GetMedicalConditions),
		Medications:   listOrEmpty(a, userID, CategoryMedical, a.store.GetMedications),
		Immunizations: listOrEmpty(a, userID, CategoryMedical, a.store.GetImmunizations),
		Visits:        listOrEmpty(a, userID, CategoryMedical, a.store.GetDoctorVisits),
		Insurance:     listOrEmpty(a, userID, CategoryMedical, a.store.GetInsuranceInfo),
		Metrics:       listOrEmpty(a, userID, CategoryMedical, a.store.GetHealthMetrics),
	}
}

// Financial returns the user's financial fragment.
func (a *Accessor) Financial(userID string) Financial {
	return Financial{
		Investments:        listOrEmpty(a, userID, CategoryFinancial, a.store.GetInvestments),
		RetirementAccounts: listOrEmpty(a, userID, CategoryFinancial, a.store.GetRetirementAccounts),
		TaxRecords:         listOrEmpty(a, userID, CategoryFinancial, a.store.GetTaxRecords),
		Expenses:           listOrEmpty(a, userID, CategoryFinancial, a.store.GetExpenses),
		Cards:              listOrEmpty(a, userID, CategoryFinancial, a.store.GetCards),
		BankAccounts:       listOrEmpty(a, userID, CategoryFinancial, a.store.GetBankAccounts),
		Loans:              listOrEmpty(a, userID, CategoryFinancial, a.store.GetLoans),
		Salaries:           listOrEmpty(a, userID, CategoryFinancial, a.store.GetSalaries),
		Debts:              listOrEmpty(a, userID, CategoryFinancial, a.store.GetDebts),
	}
}

// Professional returns the user's professional record, zero when absent.
func (a *Accessor) Professional(userID string) storage.Professional {
	return oneOrEmpty(a, userID, CategoryProfessional, a.store.GetProfessional)
}

// Education returns the user's education record, zero when absent.
func (a *Accessor) Education(userID string) storage.Education {
	return oneOrEmpty(a, userID, CategoryEducation, a.store.GetEducation)
}

// Social returns the user's social connections record, zero when absent.
func (a *Accessor) Social(userID string) storage.Social {
	return oneOrEmpty(a, userID, CategorySocial, a.store.GetSocial)
}

// Security returns the user's security record, zero when absent.
func (a *Accessor) Security(userID string) storage.Security {
	return oneOrEmpty(a, userID, CategorySecurity, a.store.GetSecurity)
}

// Miscellaneous returns the user's miscellaneous record, zero when absent.
func (a *Accessor) Miscellaneous(userID string) storage.Miscellaneous {
	return oneOrEmpty(a, userID, CategoryMiscellaneous, a.store.GetMiscellaneous)
}

// Interests returns the user's interests record, zero when absent.
func (a *Accessor) Interests(userID string) storage.Interests {
	return oneOrEmpty(a, userID, CategoryInterests, a.store.GetInterests)
}

// SetProfessional replaces the user's professional record.
func (a *Accessor) SetProfessional(userID string, p storage.Professional) error {
	return a.store.SetProfessional(userID, p)
}

// SetEducation replaces the user's education record.
func (a *Accessor) SetEducation(userID string, e storage.Education) error {
	return a.store.SetEducation(userID, e)
}

// SetSocial replaces the user's social connections record.
func (a *Accessor) SetSocial(userID string, so storage.Social) error {
	return a.store.SetSocial(userID, so)
}

// SetSecurity replaces the user's security record.
func (a *Accessor) SetSecurity(userID string, sec storage.Security) error {
	return a.store.SetSecurity(userID, sec)
}

// SetMiscellaneous replaces the user's miscellaneous record.
func (a *Accessor) SetMiscellaneous(userID string, m storage.Miscellaneous) error {
	return a.store.SetMiscellaneous(userID, m)
}

// SetInterests replaces the user's interests record.
func (a *Accessor) SetInterests(userID string, i storage.Interests) error {
	return a.store.SetInterests(userID, i)
}

func mapOrEmpty(a *Accessor, userID string, cat Category, fn func(string) (map[string]string, error)) map[string]string {
	v, err := fn(userID)
	if err != nil {
		a.logger.Warn("profile fetch failed, using empty fragment",
			"category", cat, "user_id", userID, "error", err)
		return nil
	}
	return v
}

func listOrEmpty[T any](a *Accessor, userID string, cat Category, fn func(string) ([]T, error)) []T {
	v, err := fn(userID)
	if err != nil {
		a.logger.Warn("profile fetch failed, using empty fragment",
			"category", cat, "user_id", userID, "error", err)
		return nil
	}
	return v
}

// oneOrEmpty fetches a singleton record. ErrNotFound is the normal
// "no record yet" case and is not logged.
func oneOrEmpty[T any](a *Accessor, userID string, cat Category, fn func(string) (T, error)) T {
	v, err := fn(userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("profile fetch failed, using empty fragment",
				"category", cat, "user_id", userID, "error", err)
		}
		var zero T
		return zero
	}
	return v
}
