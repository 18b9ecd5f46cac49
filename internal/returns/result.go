package returns

// Code classifies an eligibility outcome so callers can branch without
// reading the human-readable reason.
type Code string

const (
	CodeMissingReference  Code = "missing_reference"
	CodeInvalidFormat     Code = "invalid_format"
	CodeNotFound          Code = "not_found"
	CodeWindowExpired     Code = "window_expired"
	CodeDateError         Code = "date_error"
	CodeNothingReturnable Code = "nothing_returnable"
	CodeEligible          Code = "eligible"
)

// EligibilityResult is the outcome of one evaluation. Success is false only
// for input-format failures; business refusals come back with Success true
// and Eligible false.
type EligibilityResult struct {
	Success            bool     `json:"success"`
	Eligible           bool     `json:"eligible"`
	Code               Code     `json:"code"`
	Reason             string   `json:"reason"`
	ReturnableProducts []string `json:"returnable_products"`
	OrderID            string   `json:"order_id,omitempty"`
	CustomerID         string   `json:"customer_id,omitempty"`
	CustomerName       string   `json:"customer_name,omitempty"`
	ReturnID           string   `json:"return_id,omitempty"`
}

// IsFormatError reports whether the reference itself was unusable, in which
// case the user should be asked for it again.
func (r EligibilityResult) IsFormatError() bool {
	return r.Code == CodeMissingReference || r.Code == CodeInvalidFormat
}

func formatFailure(code Code, reason string) EligibilityResult {
	return EligibilityResult{
		Success:            false,
		Code:               code,
		Reason:             reason,
		ReturnableProducts: []string{},
	}
}

func ineligible(code Code, reason string) EligibilityResult {
	return EligibilityResult{
		Success:            true,
		Code:               code,
		Reason:             reason,
		ReturnableProducts: []string{},
	}
}
