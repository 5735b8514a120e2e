package storage

import (
	"database/sql"
	"time"
)

// The one-query-per-table profile accessors. Multi-row categories share the
// queryList helper; singleton categories share queryOne. Row order for
// multi-row categories is insertion order (rowid).

func queryList[T any](db *sql.DB, query, userID string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// queryOne fetches a singleton record, returning ErrNotFound when the user
// has no row.
func queryOne[T any](db *sql.DB, query, userID string, scan func(*sql.Row) (T, error)) (T, error) {
	var zero T
	v, err := scan(db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

// --- Identity and preferences (key/value rows) ---

// GetUserDetails returns the user's identity rows as a detail_type → value map.
func (s *Store) GetUserDetails(userID string) (map[string]string, error) {
	return s.keyValueRows(userID, `SELECT detail_type, detail_value FROM user_details WHERE user_id = ?`)
}

// SetUserDetail upserts one identity detail (e.g. "name", "email").
func (s *Store) SetUserDetail(userID, detailType, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_details (user_id, detail_type, detail_value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, detail_type) DO UPDATE SET detail_value = excluded.detail_value`,
		userID, detailType, value,
	)
	return err
}

// GetPreferences returns the user's preference rows as a type → value map.
func (s *Store) GetPreferences(userID string) (map[string]string, error) {
	return s.keyValueRows(userID, `SELECT preference_type, preference_value FROM user_preferences WHERE user_id = ?`)
}

// SetPreference upserts one preference; preference keys are unique per user.
func (s *Store) SetPreference(userID, prefType, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_preferences (user_id, preference_type, preference_value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, preference_type) DO UPDATE SET preference_value = excluded.preference_value`,
		userID, prefType, value,
	)
	return err
}

func (s *Store) keyValueRows(userID, query string) (map[string]string, error) {
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

// --- Medical ---

func (s *Store) GetMedicalConditions(userID string) ([]MedicalCondition, error) {
	return queryList(s.db,
		`SELECT condition_name, COALESCE(diagnosis_date, ''), COALESCE(status, '')
		 FROM medical_conditions WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (MedicalCondition, error) {
			var c MedicalCondition
			err := rows.Scan(&c.Name, &c.DiagnosisDate, &c.Status)
			return c, err
		})
}

func (s *Store) GetMedications(userID string) ([]Medication, error) {
	return queryList(s.db,
		`SELECT medication_name, COALESCE(dosage, ''), COALESCE(start_date, ''), COALESCE(end_date, ''), COALESCE(prescribing_doctor, '')
		 FROM medications WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Medication, error) {
			var m Medication
			err := rows.Scan(&m.Name, &m.Dosage, &m.StartDate, &m.EndDate, &m.PrescribingDoctor)
			return m, err
		})
}

func (s *Store) GetImmunizations(userID string) ([]Immunization, error) {
	return queryList(s.db,
		`SELECT vaccine_name, COALESCE(vaccination_date, '') FROM immunizations WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Immunization, error) {
			var i Immunization
			err := rows.Scan(&i.Vaccine, &i.Date)
			return i, err
		})
}

func (s *Store) GetDoctorVisits(userID string) ([]DoctorVisit, error) {
	return queryList(s.db,
		`SELECT doctor_name, COALESCE(visit_date, ''), COALESCE(notes, '') FROM doctor_visits WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (DoctorVisit, error) {
			var v DoctorVisit
			err := rows.Scan(&v.Doctor, &v.Date, &v.Notes)
			return v, err
		})
}

func (s *Store) GetInsuranceInfo(userID string) ([]InsuranceEntry, error) {
	return queryList(s.db,
		`SELECT provider_name, COALESCE(policy_number, ''), COALESCE(coverage_details, '')
		 FROM insurance_info WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (InsuranceEntry, error) {
			var e InsuranceEntry
			err := rows.Scan(&e.Provider, &e.PolicyNumber, &e.CoverageDetails)
			return e, err
		})
}

func (s *Store) GetHealthMetrics(userID string) ([]HealthMetric, error) {
	return queryList(s.db,
		`SELECT metric_name, COALESCE(metric_value, 0), COALESCE(recorded_date, '')
		 FROM health_metrics WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (HealthMetric, error) {
			var m HealthMetric
			err := rows.Scan(&m.Name, &m.Value, &m.RecordedDate)
			return m, err
		})
}

// --- Financial ---

func (s *Store) GetInvestments(userID string) ([]Investment, error) {
	return queryList(s.db,
		`SELECT investment_type, COALESCE(investment_value, 0), COALESCE(investment_date, '')
		 FROM investments WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Investment, error) {
			var v Investment
			err := rows.Scan(&v.Type, &v.Value, &v.Date)
			return v, err
		})
}

func (s *Store) GetRetirementAccounts(userID string) ([]RetirementAccount, error) {
	return queryList(s.db,
		`SELECT account_type, COALESCE(account_value, 0), COALESCE(institution, '')
		 FROM retirement_accounts WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (RetirementAccount, error) {
			var a RetirementAccount
			err := rows.Scan(&a.Type, &a.Value, &a.Institution)
			return a, err
		})
}

func (s *Store) GetTaxRecords(userID string) ([]TaxRecord, error) {
	return queryList(s.db,
		`SELECT tax_year, COALESCE(filing_status, ''), COALESCE(taxable_income, 0)
		 FROM tax_information WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (TaxRecord, error) {
			var r TaxRecord
			err := rows.Scan(&r.Year, &r.FilingStatus, &r.TaxableIncome)
			return r, err
		})
}

func (s *Store) GetExpenses(userID string) ([]Expense, error) {
	return queryList(s.db,
		`SELECT expense_category, COALESCE(expense_amount, 0), COALESCE(expense_date, '')
		 FROM expense_tracking WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Expense, error) {
			var e Expense
			err := rows.Scan(&e.Category, &e.Amount, &e.Date)
			return e, err
		})
}

// AddExpense appends one expense log entry. Expense rows are append-only.
func (s *Store) AddExpense(userID string, e Expense) error {
	date := e.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	_, err := s.db.Exec(
		`INSERT INTO expense_tracking (user_id, expense_category, expense_amount, expense_date) VALUES (?, ?, ?, ?)`,
		userID, e.Category, e.Amount, date,
	)
	return err
}

func (s *Store) GetCards(userID string) ([]Card, error) {
	return queryList(s.db,
		`SELECT card_type, COALESCE(card_number, ''), COALESCE(expiry_date, ''), COALESCE(cvv, '')
		 FROM cards WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Card, error) {
			var c Card
			err := rows.Scan(&c.Type, &c.Number, &c.ExpiryDate, &c.CVV)
			return c, err
		})
}

func (s *Store) GetBankAccounts(userID string) ([]BankAccount, error) {
	return queryList(s.db,
		`SELECT bank_name, COALESCE(account_number, ''), COALESCE(routing_number, '')
		 FROM bank_accounts WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (BankAccount, error) {
			var a BankAccount
			err := rows.Scan(&a.Bank, &a.AccountNumber, &a.RoutingNumber)
			return a, err
		})
}

func (s *Store) GetLoans(userID string) ([]Loan, error) {
	return queryList(s.db,
		`SELECT loan_type, COALESCE(loan_amount, 0), COALESCE(loan_date, ''), COALESCE(due_date, '')
		 FROM loans WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Loan, error) {
			var l Loan
			err := rows.Scan(&l.Type, &l.Amount, &l.Date, &l.DueDate)
			return l, err
		})
}

func (s *Store) GetSalaries(userID string) ([]Salary, error) {
	return queryList(s.db,
		`SELECT COALESCE(salary_amount, 0), COALESCE(salary_date, '') FROM salaries WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Salary, error) {
			var sal Salary
			err := rows.Scan(&sal.Amount, &sal.Date)
			return sal, err
		})
}

func (s *Store) GetDebts(userID string) ([]Debt, error) {
	return queryList(s.db,
		`SELECT debt_type, COALESCE(debt_amount, 0), COALESCE(debt_date, '') FROM debts WHERE user_id = ? ORDER BY id`,
		userID, func(rows *sql.Rows) (Debt, error) {
			var d Debt
			err := rows.Scan(&d.Type, &d.Amount, &d.Date)
			return d, err
		})
}

// --- Singleton records ---

func (s *Store) GetProfessional(userID string) (Professional, error) {
	return queryOne(s.db,
		`SELECT COALESCE(employment_history, ''), COALESCE(current_job, ''), COALESCE(skills_certifications, '')
		 FROM professional_info WHERE user_id = ?`,
		userID, func(row *sql.Row) (Professional, error) {
			var p Professional
			err := row.Scan(&p.EmploymentHistory, &p.CurrentJob, &p.SkillsCertifications)
			return p, err
		})
}

func (s *Store) SetProfessional(userID string, p Professional) error {
	_, err := s.db.Exec(`
		INSERT INTO professional_info (user_id, employment_history, current_job, skills_certifications)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			employment_history = excluded.employment_history,
			current_job = excluded.current_job,
			skills_certifications = excluded.skills_certifications`,
		userID, p.EmploymentHistory, p.CurrentJob, p.SkillsCertifications,
	)
	return err
}

func (s *Store) GetEducation(userID string) (Education, error) {
	return queryOne(s.db,
		`SELECT COALESCE(degrees, ''), COALESCE(courses, ''), COALESCE(languages, '')
		 FROM educational_data WHERE user_id = ?`,
		userID, func(row *sql.Row) (Education, error) {
			var e Education
			err := row.Scan(&e.Degrees, &e.Courses, &e.Languages)
			return e, err
		})
}

func (s *Store) SetEducation(userID string, e Education) error {
	_, err := s.db.Exec(`
		INSERT INTO educational_data (user_id, degrees, courses, languages) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			degrees = excluded.degrees,
			courses = excluded.courses,
			languages = excluded.languages`,
		userID, e.Degrees, e.Courses, e.Languages,
	)
	return err
}

func (s *Store) GetSocial(userID string) (Social, error) {
	return queryOne(s.db,
		`SELECT COALESCE(family_members, ''), COALESCE(friends, ''), COALESCE(social_media_accounts, '')
		 FROM social_connections WHERE user_id = ?`,
		userID, func(row *sql.Row) (Social, error) {
			var so Social
			err := row.Scan(&so.FamilyMembers, &so.Friends, &so.SocialMediaAccounts)
			return so, err
		})
}

func (s *Store) SetSocial(userID string, so Social) error {
	_, err := s.db.Exec(`
		INSERT INTO social_connections (user_id, family_members, friends, social_media_accounts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			family_members = excluded.family_members,
			friends = excluded.friends,
			social_media_accounts = excluded.social_media_accounts`,
		userID, so.FamilyMembers, so.Friends, so.SocialMediaAccounts,
	)
	return err
}

func (s *Store) GetSecurity(userID string) (Security, error) {
	return queryOne(s.db,
		`SELECT COALESCE(passwords, ''), COALESCE(security_questions, '') FROM security_info WHERE user_id = ?`,
		userID, func(row *sql.Row) (Security, error) {
			var sec Security
			err := row.Scan(&sec.Passwords, &sec.SecurityQuestions)
			return sec, err
		})
}

func (s *Store) SetSecurity(userID string, sec Security) error {
	_, err := s.db.Exec(`
		INSERT INTO security_info (user_id, passwords, security_questions) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			passwords = excluded.passwords,
			security_questions = excluded.security_questions`,
		userID, sec.Passwords, sec.SecurityQuestions,
	)
	return err
}

func (s *Store) GetMiscellaneous(userID string) (Miscellaneous, error) {
	return queryOne(s.db,
		`SELECT COALESCE(vehicle_info, ''), COALESCE(property_info, ''), COALESCE(subscriptions, ''), COALESCE(shopping_history, '')
		 FROM miscellaneous_info WHERE user_id = ?`,
		userID, func(row *sql.Row) (Miscellaneous, error) {
			var m Miscellaneous
			err := row.Scan(&m.VehicleInfo, &m.PropertyInfo, &m.Subscriptions, &m.ShoppingHistory)
			return m, err
		})
}

func (s *Store) SetMiscellaneous(userID string, m Miscellaneous) error {
	_, err := s.db.Exec(`
		INSERT INTO miscellaneous_info (user_id, vehicle_info, property_info, subscriptions, shopping_history)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			vehicle_info = excluded.vehicle_info,
			property_info = excluded.property_info,
			subscriptions = excluded.subscriptions,
			shopping_history = excluded.shopping_history`,
		userID, m.VehicleInfo, m.PropertyInfo, m.Subscriptions, m.ShoppingHistory,
	)
	return err
}

func (s *Store) GetInterests(userID string) (Interests, error) {
	return queryOne(s.db,
		`SELECT COALESCE(hobbies, ''), COALESCE(food_preferences, ''), COALESCE(travel_preferences, ''), COALESCE(entertainment, '')
		 FROM preferences_interests WHERE user_id = ?`,
		userID, func(row *sql.Row) (Interests, error) {
			var i Interests
			err := row.Scan(&i.Hobbies, &i.FoodPreferences, &i.TravelPreferences, &i.Entertainment)
			return i, err
		})
}

func (s *Store) SetInterests(userID string, i Interests) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences_interests (user_id, hobbies, food_preferences, travel_preferences, entertainment)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			hobbies = excluded.hobbies,
			food_preferences = excluded.food_preferences,
			travel_preferences = excluded.travel_preferences,
			entertainment = excluded.entertainment`,
		userID, i.Hobbies, i.FoodPreferences, i.TravelPreferences, i.Entertainment,
	)
	return err
}
