package domain

// UnknownReason is returned for status codes missing from the table.
const UnknownReason = "unknown reason"

var statusReasons = map[string]string{
	// client
	"3000": "Refused by client",

	// processor
	"2010": "Request was refused by the processor",
	"2009": "Parent transaction is too old to be refunded",
	"2008": "Invalid merchant email",
	"2007": "Invalid or Inactive supervisor card",
	"2006": "Insufficient funds in POS available for refund",
	"2005": "POS is closed and unable to accept transactions",
	"2004": "Request timed-out and was refused by the processor",
	"2003": "Card or network daily limit exceeded",
	"2002": "Refused by the card issuer",
	"2001": "Insufficient funds in client's account",
	"2000": "Generic processor error",

	// gateway
	"1003": "Parent transaction ID of refund request is not an accepted Payment",
	"1002": "Gateway is not authorized to execute transactions on the specified POS",
	"1001": "Request timed-out and will not be processed",
	"1000": "Generic gateway error",
}

// StatusReason maps a vPOS status_reason code to its description.
func StatusReason(code string) string {
	if reason, ok := statusReasons[code]; ok {
		return reason
	}
	return UnknownReason
}
