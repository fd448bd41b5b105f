package registration

import (
	"regexp"
	"strings"
	"time"
)

// emailPattern accepts word characters in any script, not only ASCII.
var emailPattern = regexp.MustCompile(`^[\p{L}\p{N}_.-]+@[\p{L}\p{N}_.-]+\.[\p{L}\p{N}_]+$`)

var (
	DefaultDateOfBirthMin = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
	DefaultDateOfBirthMax = time.Date(2015, time.December, 31, 0, 0, 0, 0, time.UTC)
)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func normalizeFields(f Fields) Fields {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	f.Country = strings.TrimSpace(f.Country)
	f.Profession = strings.TrimSpace(f.Profession)
	if !f.DateOfBirth.IsZero() {
		y, m, d := f.DateOfBirth.Date()
		f.DateOfBirth = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return f
}

// validateFields reports the first failing field, checked in form order.
func validateFields(f Fields, dobMin, dobMax time.Time) *Error {
	if f.Name == "" {
		return NewInvalidFieldError(FIELD_NAME, "Please enter your name.")
	}
	if !IsValidEmail(f.Email) {
		return NewInvalidFieldError(FIELD_EMAIL, "Invalid email address. Enter a valid email.")
	}
	if f.DateOfBirth.IsZero() {
		return NewInvalidFieldError(FIELD_DATE_OF_BIRTH, "Please enter your date of birth.")
	}
	if f.DateOfBirth.Before(dobMin) || f.DateOfBirth.After(dobMax) {
		return NewInvalidFieldError(FIELD_DATE_OF_BIRTH,
			"Date of birth must be between "+dobMin.Format(time.DateOnly)+" and "+dobMax.Format(time.DateOnly)+".")
	}
	if f.City == "" {
		return NewInvalidFieldError(FIELD_CITY, "Please enter your city.")
	}
	if f.State == "" {
		return NewInvalidFieldError(FIELD_STATE, "Please enter your state/province.")
	}
	if f.Country == "" {
		return NewInvalidFieldError(FIELD_COUNTRY, "Please enter your country.")
	}
	if f.Profession == "" {
		return NewInvalidFieldError(FIELD_PROFESSION, "Please enter your profession.")
	}
	return nil
}
