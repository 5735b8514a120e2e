package profile

import (
	"errors"
	"testing"

	"github.com/ncacord/qraphael/internal/storage"
)

// --- Mock store ---

// mockStore backs the happy path with in-memory fixtures and can be
// switched into a failing mode that rejects every query.
type mockStore struct {
	details map[string]string
	prefs   map[string]string

	conditions []storage.MedicalCondition
	loans      []storage.Loan

	interests    storage.Interests
	professional storage.Professional
	hasSingleton bool

	err error
}

func (m *mockStore) GetUserDetails(userID string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.details, nil
}

func (m *mockStore) SetUserDetail(userID, detailType, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.details == nil {
		m.details = make(map[string]string)
	}
	m.details[detailType] = value
	return nil
}

func (m *mockStore) GetPreferences(userID string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.prefs, nil
}

func (m *mockStore) SetPreference(userID, prefType, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.prefs == nil {
		m.prefs = make(map[string]string)
	}
	m.prefs[prefType] = value
	return nil
}

func (m *mockStore) GetMedicalConditions(string) ([]storage.MedicalCondition, error) {
	return m.conditions, m.err
}
func (m *mockStore) GetMedications(string) ([]storage.Medication, error)     { return nil, m.err }
func (m *mockStore) GetImmunizations(string) ([]storage.Immunization, error) { return nil, m.err }
func (m *mockStore) GetDoctorVisits(string) ([]storage.DoctorVisit, error)   { return nil, m.err }
func (m *mockStore) GetInsuranceInfo(string) ([]storage.InsuranceEntry, error) {
	return nil, m.err
}
func (m *mockStore) GetHealthMetrics(string) ([]storage.HealthMetric, error) { return nil, m.err }
func (m *mockStore) GetInvestments(string) ([]storage.Investment, error)     { return nil, m.err }
func (m *mockStore) GetRetirementAccounts(string) ([]storage.RetirementAccount, error) {
	return nil, m.err
}
func (m *mockStore) GetTaxRecords(string) ([]storage.TaxRecord, error)     { return nil, m.err }
func (m *mockStore) GetExpenses(string) ([]storage.Expense, error)         { return nil, m.err }
func (m *mockStore) GetCards(string) ([]storage.Card, error)               { return nil, m.err }
func (m *mockStore) GetBankAccounts(string) ([]storage.BankAccount, error) { return nil, m.err }
func (m *mockStore) GetLoans(string) ([]storage.Loan, error)               { return m.loans, m.err }
func (m *mockStore) GetSalaries(string) ([]storage.Salary, error)          { return nil, m.err }
func (m *mockStore) GetDebts(string) ([]storage.Debt, error)               { return nil, m.err }

func (m *mockStore) GetProfessional(string) (storage.Professional, error) {
	if m.err != nil {
		return storage.Professional{}, m.err
	}
	if !m.hasSingleton {
		return storage.Professional{}, storage.ErrNotFound
	}
	return m.professional, nil
}

func (m *mockStore) GetEducation(string) (storage.Education, error) {
	return storage.Education{}, storage.ErrNotFound
}

func (m *mockStore) GetSocial(string) (storage.Social, error) {
	return storage.Social{}, storage.ErrNotFound
}

func (m *mockStore) GetSecurity(string) (storage.Security, error) {
	return storage.Security{}, storage.ErrNotFound
}

func (m *mockStore) GetMiscellaneous(string) (storage.Miscellaneous, error) {
	return storage.Miscellaneous{}, storage.ErrNotFound
}

func (m *mockStore) GetInterests(string) (storage.Interests, error) {
	if m.err != nil {
		return storage.Interests{}, m.err
	}
	if !m.hasSingleton {
		return storage.Interests{}, storage.ErrNotFound
	}
	return m.interests, nil
}

func (m *mockStore) SetProfessional(_ string, p storage.Professional) error {
	if m.err != nil {
		return m.err
	}
	m.professional = p
	m.hasSingleton = true
	return nil
}

func (m *mockStore) SetEducation(string, storage.Education) error         { return m.err }
func (m *mockStore) SetSocial(string, storage.Social) error               { return m.err }
func (m *mockStore) SetSecurity(string, storage.Security) error           { return m.err }
func (m *mockStore) SetMiscellaneous(string, storage.Miscellaneous) error { return m.err }

func (m *mockStore) SetInterests(_ string, i storage.Interests) error {
	if m.err != nil {
		return m.err
	}
	m.interests = i
	m.hasSingleton = true
	return nil
}

// --- Tests ---

func TestIdentitySplitsNameFromContact(t *testing.T) {
	store := &mockStore{details: map[string]string{
		"name":  "Ada",
		"email": "ada@example.com",
	}}
	acc := NewAccessor(store)

	id := acc.Identity("u1")
	if id.Name != "Ada" {
		t.Errorf("expected name %q, got %q", "Ada", id.Name)
	}
	if id.Contact["email"] != "ada@example.com" {
		t.Errorf("expected contact email, got %v", id.Contact)
	}
	if _, ok := id.Contact["name"]; ok {
		t.Error("name must not be duplicated into contact fields")
	}
}

func TestMissingUserDegradesToZeroFragments(t *testing.T) {
	acc := NewAccessor(&mockStore{})

	if id := acc.Identity("nobody"); id.Name != "" || id.Contact != nil {
		t.Errorf("expected zero identity, got %+v", id)
	}
	if prefs := acc.Preferences("nobody"); len(prefs) != 0 {
		t.Errorf("expected empty preferences, got %v", prefs)
	}
	if med := acc.Medical("nobody"); len(med.Conditions) != 0 {
		t.Errorf("expected empty medical fragment, got %+v", med)
	}
	if p := acc.Professional("nobody"); p != (storage.Professional{}) {
		t.Errorf("expected zero professional record, got %+v", p)
	}
}

func TestStoreErrorDegradesToZeroFragments(t *testing.T) {
	acc := NewAccessor(&mockStore{err: errors.New("connection lost")})

	if id := acc.Identity("u1"); id.Name != "" {
		t.Errorf("expected zero identity on store failure, got %+v", id)
	}
	if fin := acc.Financial("u1"); len(fin.Loans) != 0 {
		t.Errorf("expected empty financial fragment on store failure, got %+v", fin)
	}
	if i := acc.Interests("u1"); i != (storage.Interests{}) {
		t.Errorf("expected zero interests on store failure, got %+v", i)
	}
}

func TestFragmentsCarryStoreRows(t *testing.T) {
	store := &mockStore{
		conditions: []storage.MedicalCondition{
			{Name: "asthma", DiagnosisDate: "2019-03-01", Status: "managed"},
		},
		loans: []storage.Loan{
			{Type: "auto", Amount: 18000.50, Date: "2024-06-15", DueDate: "2029-06-15"},
		},
		interests:    storage.Interests{Hobbies: "outdoors"},
		hasSingleton: true,
	}
	acc := NewAccessor(store)

	med := acc.Medical("u1")
	if len(med.Conditions) != 1 || med.Conditions[0].Name != "asthma" {
		t.Errorf("unexpected medical fragment: %+v", med)
	}
	fin := acc.Financial("u1")
	if len(fin.Loans) != 1 || fin.Loans[0].Amount != 18000.50 {
		t.Errorf("unexpected financial fragment: %+v", fin)
	}
	if got := acc.Interests("u1"); got.Hobbies != "outdoors" {
		t.Errorf("unexpected interests fragment: %+v", got)
	}
}

func TestSetSingletonRecordsPersist(t *testing.T) {
	store := &mockStore{}
	acc := NewAccessor(store)

	p := storage.Professional{CurrentJob: "engineer at Acme", SkillsCertifications: "Go"}
	if err := acc.SetProfessional("u1", p); err != nil {
		t.Fatalf("SetProfessional: %v", err)
	}
	if got := acc.Professional("u1"); got != p {
		t.Errorf("expected %+v, got %+v", p, got)
	}

	i := storage.Interests{Hobbies: "chess"}
	if err := acc.SetInterests("u1", i); err != nil {
		t.Fatalf("SetInterests: %v", err)
	}
	if got := acc.Interests("u1"); got != i {
		t.Errorf("expected %+v, got %+v", i, got)
	}

	failing := NewAccessor(&mockStore{err: errors.New("connection lost")})
	if err := failing.SetSecurity("u1", storage.Security{}); err == nil {
		t.Error("expected the store error to surface from a setter")
	}
}

func TestSetNamePersists(t *testing.T) {
	store := &mockStore{}
	acc := NewAccessor(store)

	if err := acc.SetName("u1", "Ada"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if got := acc.Identity("u1"); got.Name != "Ada" {
		t.Errorf("expected identity to reflect new name, got %+v", got)
	}
}
