package models

import "fmt"

// Patient is a clinical record owned by the manager who registered it.
type Patient struct {
	BaseModel
	OwnerID        uint           `gorm:"column:user_id;index;not null" json:"user_id"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	Age            int            `gorm:"not null" json:"age"`
	Gender         string         `gorm:"size:20;not null" json:"gender"`
	Contact        string         `gorm:"size:50;not null" json:"contact"`
	Mail           *string        `gorm:"size:255" json:"mail"`
	ConditionType  string         `gorm:"size:100;not null" json:"condition_type"`
	LengthOfStay   *int           `json:"length_of_stay"`
	Outcome        *string        `gorm:"size:255" json:"outcome"`
	Glucose        *float64       `json:"glucose"`
	Insulin        *float64       `json:"insulin"`
	BMI            *float64       `gorm:"column:bmi" json:"bmi"`
	Diabetes       *bool          `json:"diabetes"`
	HeartRate      *float64       `json:"heart_rate"`
	SystolicBP     *float64       `gorm:"column:systolic_bp" json:"systolic_bp"`
	DiastolicBP    *float64       `gorm:"column:diastolic_bp" json:"diastolic_bp"`
	BloodSugar     *float64       `json:"blood_sugar"`
	CKMB           *float64       `gorm:"column:ck_mb" json:"ck_mb"`
	Troponin       *float64       `json:"troponin"`
	VisitDate      Date           `gorm:"not null" json:"visit_date"`
	NextFollowup   Date           `gorm:"index;not null" json:"next_followup"`
	AssignedDoctor *string        `gorm:"size:255" json:"assigned_doctor"`
	Status         FollowupStatus `gorm:"size:20;not null;default:'Scheduled'" json:"status"`
}

func (Patient) TableName() string { return "patients" }

// PatientOption is the unscoped projection used to fill selection controls.
type PatientOption struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	ConditionType string `json:"condition_type"`
}

// PatientUpdate is the allow-listed set of patient fields a manager may change.
// Anything else in a request body is ignored.
type PatientUpdate struct {
	Name           *string  `json:"name" binding:"omitempty,min=1"`
	Age            *int     `json:"age" binding:"omitempty,gte=0"`
	Gender         *string  `json:"gender" binding:"omitempty,min=1"`
	Contact        *string  `json:"contact" binding:"omitempty,min=1"`
	Mail           *string  `json:"mail"`
	ConditionType  *string  `json:"condition_type" binding:"omitempty,min=1"`
	LengthOfStay   *int     `json:"length_of_stay"`
	Outcome        *string  `json:"outcome"`
	Glucose        *float64 `json:"glucose"`
	Insulin        *float64 `json:"insulin"`
	BMI            *float64 `json:"bmi"`
	Diabetes       *bool    `json:"diabetes"`
	HeartRate      *float64 `json:"heart_rate"`
	SystolicBP     *float64 `json:"systolic_bp"`
	DiastolicBP    *float64 `json:"diastolic_bp"`
	BloodSugar     *float64 `json:"blood_sugar"`
	CKMB           *float64 `json:"ck_mb"`
	Troponin       *float64 `json:"troponin"`
	VisitDate      *string  `json:"visit_date" binding:"omitempty,datetime=2006-01-02"`
	NextFollowup   *string  `json:"next_followup" binding:"omitempty,datetime=2006-01-02"`
	AssignedDoctor *string  `json:"assigned_doctor"`
	Status         *string  `json:"status" binding:"omitempty,oneof=Scheduled Pending Today Overdue Completed Missed"`
}

// Columns maps every supplied field to its fixed column name.
func (u PatientUpdate) Columns() (map[string]interface{}, error) {
	cols := make(map[string]interface{})

	setString := func(col string, v *string) {
		if v != nil {
			cols[col] = *v
		}
	}
	setFloat := func(col string, v *float64) {
		if v != nil {
			cols[col] = *v
		}
	}
	setDate := func(col string, v *string) error {
		if v == nil {
			return nil
		}
		d, err := ParseDate(*v)
		if err != nil {
			return fmt.Errorf("%s must be a date in YYYY-MM-DD format", col)
		}
		cols[col] = d
		return nil
	}

	setString("name", u.Name)
	if u.Age != nil {
		cols["age"] = *u.Age
	}
	setString("gender", u.Gender)
	setString("contact", u.Contact)
	setString("mail", u.Mail)
	setString("condition_type", u.ConditionType)
	if u.LengthOfStay != nil {
		cols["length_of_stay"] = *u.LengthOfStay
	}
	setString("outcome", u.Outcome)
	setFloat("glucose", u.Glucose)
	setFloat("insulin", u.Insulin)
	setFloat("bmi", u.BMI)
	if u.Diabetes != nil {
		cols["diabetes"] = *u.Diabetes
	}
	setFloat("heart_rate", u.HeartRate)
	setFloat("systolic_bp", u.SystolicBP)
	setFloat("diastolic_bp", u.DiastolicBP)
	setFloat("blood_sugar", u.BloodSugar)
	setFloat("ck_mb", u.CKMB)
	setFloat("troponin", u.Troponin)
	if err := setDate("visit_date", u.VisitDate); err != nil {
		return nil, err
	}
	if err := setDate("next_followup", u.NextFollowup); err != nil {
		return nil, err
	}
	setString("assigned_doctor", u.AssignedDoctor)
	if u.Status != nil {
		cols["status"] = FollowupStatus(*u.Status)
	}

	return cols, nil
}
