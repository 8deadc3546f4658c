// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package fieldkind

import "fmt"

// Error codes carried by ValidationError.
const (
	CodeRequired = "required"
	CodeInvalid  = "invalid"
	// CodeInvalidChoice is used by Choice fields.
	CodeInvalidChoice = "invalid_choice"
	// CodeInvalidDate and CodeInvalidTime are used by the two halves of a
	// DateTime input.
	CodeInvalidDate = "invalid_date"
	CodeInvalidTime = "invalid_time"
)

const requiredMessage = "This field is required."

var invalidMessages = map[Kind]string{
	Integer:   "Enter a whole number.",
	Float:     "Enter a number.",
	Decimal:   "Enter a number.",
	Boolean:   "Enter a valid boolean.",
	String:    "Enter valid text.",
	Text:      "Enter valid text.",
	Email:     "Enter a valid email address.",
	Date:      "Enter a valid date.",
	Time:      "Enter a valid time.",
	DateTime:  "Enter a valid date/time.",
	Timedelta: "Enter a valid duration.",
	Choice:    "Select a valid choice.",
	List:      "Enter a valid list.",
	JSON:      "Enter a valid JSON.",
}

// ValidationError describes input rejected by a field rule. Message is
// suitable for display next to an input field.
type ValidationError struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(k Kind) *ValidationError {
	return &ValidationError{Kind: k, Code: CodeInvalid, Message: invalidMessages[k]}
}

func required(k Kind) *ValidationError {
	return &ValidationError{Kind: k, Code: CodeRequired, Message: requiredMessage}
}

func invalidChoice(value string) *ValidationError {
	return &ValidationError{
		Kind:    Choice,
		Code:    CodeInvalidChoice,
		Message: fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", value),
	}
}

func invalidDatePart() *ValidationError {
	return &ValidationError{Kind: DateTime, Code: CodeInvalidDate, Message: invalidMessages[Date]}
}

func invalidTimePart() *ValidationError {
	return &ValidationError{Kind: DateTime, Code: CodeInvalidTime, Message: invalidMessages[Time]}
}
