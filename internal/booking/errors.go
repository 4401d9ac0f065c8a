package booking

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Kind classifies why a reservation request was refused.
type Kind string

const (
	KindInvalidInput            Kind = "INVALID_INPUT"
	KindNotFound                Kind = "NOT_FOUND"
	KindNotFoundOrInactive      Kind = "NOT_FOUND_OR_INACTIVE"
	KindEmptySelection          Kind = "EMPTY_SELECTION"
	KindCapacityExceeded        Kind = "CAPACITY_EXCEEDED"
	KindConflict                Kind = "CONFLICT"
	KindStructuralRuleViolation Kind = "STRUCTURAL_RULE_VIOLATION"
	KindInfrastructureFailure   Kind = "INFRASTRUCTURE_FAILURE"
)

// HTTPStatus maps a kind to the status code returned to clients.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound, KindNotFoundOrInactive:
		return http.StatusNotFound
	case KindEmptySelection, KindCapacityExceeded, KindStructuralRuleViolation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindInfrastructureFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Failure is the error every pipeline step returns.  IDs and Pairs are
// sorted so the same request always yields the same message.
type Failure struct {
	Kind    Kind
	Message string
	Field   string
	IDs     []uuid.UUID
	Pairs   []model.Pair
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not a Failure.
func KindOf(err error) Kind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return ""
}

func invalidInput(field, msg string) *Failure {
	return &Failure{Kind: KindInvalidInput, Field: field, Message: msg}
}

func notFound(id uuid.UUID) *Failure {
	return &Failure{Kind: KindNotFound, Message: "reservation not found: " + id.String(), IDs: []uuid.UUID{id}}
}

func venueUnavailable(id uuid.UUID) *Failure {
	return &Failure{
		Kind:    KindNotFoundOrInactive,
		Field:   "venue_id",
		Message: "venue not found or inactive: " + id.String(),
		IDs:     []uuid.UUID{id},
	}
}

// catalogUnavailable reports tables and slots that are missing, inactive
// or belong to another venue.  Either list may be empty.
func catalogUnavailable(venueID uuid.UUID, resources, slots []uuid.UUID) *Failure {
	var parts []string
	var ids []uuid.UUID
	if len(resources) > 0 {
		parts = append(parts, "resources not found or inactive in venue "+venueID.String()+": "+joinIDs(resources))
		ids = append(ids, resources...)
	}
	if len(slots) > 0 {
		parts = append(parts, "slots not found or inactive in venue "+venueID.String()+": "+joinIDs(slots))
		ids = append(ids, slots...)
	}
	return &Failure{Kind: KindNotFoundOrInactive, Field: "pairs", Message: strings.Join(parts, "; "), IDs: ids}
}

func emptySelection() *Failure {
	return &Failure{Kind: KindEmptySelection, Field: "pairs", Message: "at least one resource/slot pair is required"}
}

func capacityExceeded(partySize int, resources []uuid.UUID) *Failure {
	ids := append([]uuid.UUID(nil), resources...)
	model.SortIDs(ids)
	return &Failure{
		Kind:    KindCapacityExceeded,
		Field:   "party_size",
		Message: fmt.Sprintf("party of %d exceeds the capacity of resources %s", partySize, joinIDs(ids)),
		IDs:     ids,
	}
}

func conflict(date model.Date, taken []model.Pair) *Failure {
	pairs := append([]model.Pair(nil), taken...)
	model.SortPairs(pairs)
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.String()
	}
	return &Failure{
		Kind:    KindConflict,
		Field:   "pairs",
		Message: fmt.Sprintf("already reserved on %s: %s", date, strings.Join(names, ", ")),
		Pairs:   pairs,
	}
}

func structural(field, msg string) *Failure {
	return &Failure{Kind: KindStructuralRuleViolation, Field: field, Message: msg}
}

func infrastructure(op string, err error) *Failure {
	return &Failure{Kind: KindInfrastructureFailure, Message: op + " failed", Err: err}
}

func joinIDs(ids []uuid.UUID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return strings.Join(s, ", ")
}
