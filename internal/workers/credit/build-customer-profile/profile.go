// internal/workers/credit/build-customer-profile/profile.go
package buildcustomerprofile

import (
	"fmt"
	"time"

	"credit-workers/internal/models"
)

const (
	gapNoPriorEmployment   = "No prior employment"
	gapOnlyCurrent         = "Has only current employment with no employment interruptions"
	gapInconsistent        = "Inconsistent employment history"
	gapNoInterruption      = "No employment interruptions between the last job and the current one"
	gapMonthsFormat        = "%d months of employment gap"
	descriptionFormat      = "Customer with income of %s and current debt of %s. %s."
	maxUninterruptedGapDay = 30
)

// employmentGap computes the gap between the two most recent records.
// history is ordered most recent first.
func employmentGap(history []models.EmploymentRecord) (int, string) {
	switch len(history) {
	case 0:
		return 0, gapNoPriorEmployment
	case 1:
		return 0, gapOnlyCurrent
	}

	latest, previous := history[0], history[1]
	if previous.EndDate == nil {
		return 0, gapInconsistent
	}

	from := truncateDay(*previous.EndDate)
	to := truncateDay(latest.StartDate)
	if days := int(to.Sub(from).Hours() / 24); days <= maxUninterruptedGapDay {
		return 0, gapNoInterruption
	}

	months := monthsBetween(from, to)
	if months < 1 {
		months = 1
	}
	return months, fmt.Sprintf(gapMonthsFormat, months)
}

// monthsBetween counts whole calendar months from from to to.
func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return months
}

// truncateDay drops the clock part so gaps are counted in calendar days.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func describe(data *CustomerData, gapDescription string) string {
	return fmt.Sprintf(descriptionFormat,
		data.MonthlyIncome.StringFixed(2),
		data.CurrentDebt.StringFixed(2),
		gapDescription)
}

func newProfile(data *CustomerData) *models.CustomerProfile {
	gapMonths, gapDescription := employmentGap(data.EmploymentHistory)
	return &models.CustomerProfile{
		IdentityDocument:    data.IdentityDocument,
		MonthlyIncome:       data.MonthlyIncome,
		CurrentDebt:         data.CurrentDebt,
		EmploymentHistory:   data.EmploymentHistory,
		EmploymentGapMonths: gapMonths,
		SemanticDescription: describe(data, gapDescription),
	}
}
