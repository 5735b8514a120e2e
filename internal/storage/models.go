package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MemoryEntry is one appended line of a user's conversation transcript.
type MemoryEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"memory_text"`
	CreatedAt time.Time `json:"created_at"`
}

// Date-bearing fields below are date-only strings (YYYY-MM-DD) stored as
// TEXT, so they round-trip through serialization byte-for-byte.

type MedicalCondition struct {
	Name          string `json:"condition_name"`
	DiagnosisDate string `json:"diagnosis_date,omitempty"`
	Status        string `json:"status,omitempty"`
}

type Medication struct {
	Name              string `json:"medication_name"`
	Dosage            string `json:"dosage,omitempty"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	PrescribingDoctor string `json:"prescribing_doctor,omitempty"`
}

type Immunization struct {
	Vaccine string `json:"vaccine_name"`
	Date    string `json:"vaccination_date,omitempty"`
}

type DoctorVisit struct {
	Doctor string `json:"doctor_name"`
	Date   string `json:"visit_date,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type InsuranceEntry struct {
	Provider        string `json:"provider_name"`
	PolicyNumber    string `json:"policy_number,omitempty"`
	CoverageDetails string `json:"coverage_details,omitempty"`
}

type HealthMetric struct {
	Name         string  `json:"metric_name"`
	Value        float64 `json:"metric_value"`
	RecordedDate string  `json:"recorded_date,omitempty"`
}

type Investment struct {
	Type  string  `json:"investment_type"`
	Value float64 `json:"investment_value"`
	Date  string  `json:"investment_date,omitempty"`
}

type RetirementAccount struct {
	Type        string  `json:"account_type"`
	Value       float64 `json:"account_value"`
	Institution string  `json:"institution,omitempty"`
}

type TaxRecord struct {
	Year          int     `json:"tax_year"`
	FilingStatus  string  `json:"filing_status,omitempty"`
	TaxableIncome float64 `json:"taxable_income"`
}

type Expense struct {
	Category string  `json:"expense_category"`
	Amount   float64 `json:"expense_amount"`
	Date     string  `json:"expense_date,omitempty"`
}

type Card struct {
	Type       string `json:"card_type"`
	Number     string `json:"card_number,omitempty"`
	ExpiryDate string `json:"expiry_date,omitempty"`
	CVV        string `json:"cvv,omitempty"`
}

type BankAccount struct {
	Bank          string `json:"bank_name"`
	AccountNumber string `json:"account_number,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

type Loan struct {
	Type    string  `json:"loan_type"`
	Amount  float64 `json:"loan_amount"`
	Date    string  `json:"loan_date,omitempty"`
	DueDate string  `json:"due_date,omitempty"`
}

type Salary struct {
	Amount float64 `json:"salary_amount"`
	Date   string  `json:"salary_date,omitempty"`
}

type Debt struct {
	Type   string  `json:"debt_type"`
	Amount float64 `json:"debt_amount"`
	Date   string  `json:"debt_date,omitempty"`
}

// Singleton records: at most one row per user; a missing row reads back as
// the zero value.

type Professional struct {
	EmploymentHistory    string `json:"employment_history,omitempty"`
	CurrentJob           string `json:"current_job,omitempty"`
	SkillsCertifications string `json:"skills_certifications,omitempty"`
}

type Education struct {
	Degrees   string `json:"degrees,omitempty"`
	Courses   string `json:"courses,omitempty"`
	Languages string `json:"languages,omitempty"`
}

type Social struct {
	FamilyMembers       string `json:"family_members,omitempty"`
	Friends             string `json:"friends,omitempty"`
	SocialMediaAccounts string `json:"social_media_accounts,omitempty"`
}

type Security struct {
	Passwords         string `json:"passwords,omitempty"`
	SecurityQuestions string `json:"security_questions,omitempty"`
}

type Miscellaneous struct {
	VehicleInfo     string `json:"vehicle_info,omitempty"`
	PropertyInfo    string `json:"property_info,omitempty"`
	Subscriptions   string `json:"subscriptions,omitempty"`
	ShoppingHistory string `json:"shopping_history,omitempty"`
}

type Interests struct {
	Hobbies           string `json:"hobbies,omitempty"`
	FoodPreferences   string `json:"food_preferences,omitempty"`
	TravelPreferences string `json:"travel_preferences,omitempty"`
	Entertainment     string `json:"entertainment,omitempty"`
}

/// Interaction records one completed turn: the user's utterance, the prompt
// that conditioned generation (empty for canned replies), and the reply.
type Interaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UserQuery string    `json:"user_query"`
	Prompt    string    `json:"prompt,omitempty"`
	Response  string    `json:"response"`
	Kind      string    `json:"kind"` // "canned" or "generated"
	Model     string    `json:"model,omitempty"`
}

// Document is raw ingested material awaiting text extraction.
type Document struct {
	ID          string
	UserID      string
	Title       string
	Content     string // base64 for binary content types
	ContentType string // "text", "html", or "pdf"
	Source      string
	Status      string // "pending", "extracted", "failed"
	CreatedAt   time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
